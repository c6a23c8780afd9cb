package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	KV    KVConfig
	Redis RedisConfig
	Email EmailConfig

	AssetCatalogPath string
	ImagesDir        string
	UnitPolicy       string
	ReportRecipient  string
	LubricantsPath   string
}

type KVConfig struct {
	Backend   string
	KeyPrefix string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Channel    string
	LockWrites bool
}

// EmailConfig holds SMTP settings. Delivery is disabled while SMTPHost is
// empty.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

const (
	KVBackendDatabase = "database"
	KVBackendRedis    = "redis"

	UnitPolicyTrust  = "trust"
	UnitPolicyStrict = "strict"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "lubeqc"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", "127.0.0.1:8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "lubeqc"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "lubeqc.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 4),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		KV: KVConfig{
			Backend:   normalizeBackend(getenv("KV_BACKEND", KVBackendDatabase)),
			KeyPrefix: strings.TrimSpace(getenv("KV_KEY_PREFIX", "lubeqc:")),
		},
		Redis: RedisConfig{
			Addr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password:   getenv("REDIS_PASSWORD", ""),
			DB:         getenvInt("REDIS_DB", 0),
			Channel:    getenv("REDIS_CHANNEL", "lubeqc:consumption"),
			LockWrites: getenvBool("REDIS_LOCK_WRITES", false),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "lubeqc@localhost"),
		},
		AssetCatalogPath: getenv("ASSET_CATALOG_PATH", "assets/data/assets.csv"),
		ImagesDir:        getenv("IMAGES_DIR", "Images"),
		UnitPolicy:       normalizeUnitPolicy(getenv("LUBEQC_UNIT_POLICY", UnitPolicyTrust)),
		ReportRecipient:  strings.TrimSpace(getenv("REPORT_RECIPIENT", "")),
		LubricantsPath:   strings.TrimSpace(getenv("LUBRICANTS_CONFIG_PATH", "")),
	}

	return cfg
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c Config) StrictUnits() bool {
	return c.UnitPolicy == UnitPolicyStrict
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case KVBackendRedis:
		return KVBackendRedis
	default:
		return KVBackendDatabase
	}
}

func normalizeUnitPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case UnitPolicyStrict:
		return UnitPolicyStrict
	default:
		return UnitPolicyTrust
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
