package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the agent configuration, read from an optional YAML file with
// TATUSCAN_* environment overrides.
type Config struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls the agent log level, file, and rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads the agent configuration. path may be empty, in which case
// defaults and environment variables alone apply; a path that cannot be read
// is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TATUSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "")
	v.SetDefault("interval", time.Minute)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.file", platformDefaults().LogFile)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
}

func validate(cfg *Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("url is required (config file or TATUSCAN_URL)")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	return nil
}
