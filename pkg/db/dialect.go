package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lubeqc/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypeSQLite   = "sqlite"
	TypeSQLite3  = "sqlite3"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// Dialect resolves the gorm dialector for the configured backend. "sqlite"
// is the pure Go driver used for the single-operator default; "sqlite3" is
// the cgo driver for hosts that already ship libsqlite3.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch normalizeType(cfg.DBType) {
	case TypeMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case TypePostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case TypeSQLite:
		return sqlite.Open(sqlitePath(cfg)), nil
	case TypeSQLite3:
		return cgosqlite.Open(sqlitePath(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

func normalizeType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return TypeSQLite
	}
	return value
}

// IsSQLite reports whether the configured backend is one of the sqlite drivers.
func IsSQLite(cfg config.Config) bool {
	switch normalizeType(cfg.DBType) {
	case TypeSQLite, TypeSQLite3:
		return true
	}
	return false
}

func sqlitePath(cfg config.Config) string {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		path = "lubeqc.db"
	}
	return path
}
