package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// LubricantEntry is one catalog product and its annual consumption target.
type LubricantEntry struct {
	Name         string  `mapstructure:"name" yaml:"name"`
	AnnualTarget float64 `mapstructure:"annualTarget" yaml:"annualTarget"`
}

// LubricantConfig is the lubricant catalog split by family.
type LubricantConfig struct {
	Grease []LubricantEntry `mapstructure:"grease" yaml:"grease"`
	Oil    []LubricantEntry `mapstructure:"oil" yaml:"oil"`
}

func DefaultLubricantConfig() LubricantConfig {
	return LubricantConfig{
		Grease: []LubricantEntry{
			{Name: "MOBIL UNIREX EP2", AnnualTarget: 9000},
			{Name: "MOBIL MOBILITH SHC 460", AnnualTarget: 9000},
		},
		Oil: []LubricantEntry{
			{Name: "MOBIL GEAR MS100", AnnualTarget: 500},
			{Name: "SHELL MORLINA S3 BA 220", AnnualTarget: 550},
			{Name: "SHELL OMALA S4 WE 220", AnnualTarget: 60},
			{Name: "SHELL OMALA S2 GX 460", AnnualTarget: 450},
			{Name: "SHELL TELLUS S2 MX 32", AnnualTarget: 20},
			{Name: "SHELL TELLUS S2 MX 68", AnnualTarget: 20},
		},
	}
}

type LubricantConfigHolder struct {
	current atomic.Value // holds LubricantConfig
}

// NewStaticLubricantConfigHolder returns a holder pinned to cfg.
func NewStaticLubricantConfigHolder(cfg LubricantConfig) *LubricantConfigHolder {
	holder := &LubricantConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewLubricantConfigHolder(appCfg Config, log *zap.Logger) (*LubricantConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("lubricant-config")

	v := viper.New()

	if appCfg.LubricantsPath != "" {
		v.SetConfigFile(appCfg.LubricantsPath)
	} else {
		v.SetConfigName("lubricants")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/lubeqc")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LUBEQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLubricantConfig()
	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// no file: built-in catalog
		fromFile = false
	}

	cfg := defaults
	if fromFile {
		var loaded LubricantConfig
		if err := v.UnmarshalKey("lubricants", &loaded); err != nil {
			return nil, err
		}
		if err := ValidateLubricantConfig(loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	holder := NewStaticLubricantConfigHolder(cfg)
	if !fromFile {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LubricantConfig
		if err := v.UnmarshalKey("lubricants", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateLubricantConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *LubricantConfigHolder) Get() LubricantConfig {
	return h.current.Load().(LubricantConfig)
}

func ValidateLubricantConfig(cfg LubricantConfig) error {
	if len(cfg.Grease) == 0 && len(cfg.Oil) == 0 {
		return errors.New("lubricants cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Grease)+len(cfg.Oil))
	for _, entry := range append(append([]LubricantEntry{}, cfg.Grease...), cfg.Oil...) {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return errors.New("lubricant name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate lubricant %q", name)
		}
		if entry.AnnualTarget < 0 {
			return fmt.Errorf("lubricant %q has negative target", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
