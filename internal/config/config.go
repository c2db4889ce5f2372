package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader" mapstructure:"reader"`
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`
	Portal  PortalConfig  `yaml:"portal" mapstructure:"portal"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ReaderConfig configures the external extraction binary.
type ReaderConfig struct {
	BinPath     string `yaml:"bin_path" mapstructure:"bin_path"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
}

// Timeout returns the per-document extraction timeout.
func (c ReaderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// JournalConfig configures the local run journal.
type JournalConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// PortalConfig configures the billing portal client.
type PortalConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Username      string  `yaml:"username" mapstructure:"username"`
	Password      string  `yaml:"password" mapstructure:"password"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	InsecureTLS   bool    `yaml:"insecure_tls" mapstructure:"insecure_tls"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FATTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("reader.bin_path", "layout_reader")
	v.SetDefault("reader.timeout_secs", 5)
	v.SetDefault("reader.workers", 0)
	v.SetDefault("journal.path", "fatture-runs.db")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("portal.base_url", "https://portale.bollettaetica.com")
	v.SetDefault("portal.rate_per_second", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
