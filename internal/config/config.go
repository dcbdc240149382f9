// Package config loads application configuration from config.yaml and
// DOGE_* environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source string       `yaml:"source" mapstructure:"source"`
	API    APIConfig    `yaml:"api" mapstructure:"api"`
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// APIConfig configures both fetch backends and their retry budget.
type APIConfig struct {
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	SiteURL            string  `yaml:"site_url" mapstructure:"site_url"`
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	PerPage            int     `yaml:"per_page" mapstructure:"per_page"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CooldownSecs       int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	MaxCooldowns       int     `yaml:"max_cooldowns" mapstructure:"max_cooldowns"`
	BrowserTimeoutSecs int     `yaml:"browser_timeout_secs" mapstructure:"browser_timeout_secs"`
	SkipIfCurrent      bool    `yaml:"skip_if_current" mapstructure:"skip_if_current"`
}

// PathsConfig holds the file locations the store writes to.
type PathsConfig struct {
	Dataset  string `yaml:"dataset" mapstructure:"dataset"`
	RawLog   string `yaml:"raw_log" mapstructure:"raw_log"`
	RunLog   string `yaml:"run_log" mapstructure:"run_log"`
	Lock     string `yaml:"lock" mapstructure:"lock"`
	Enriched string `yaml:"enriched" mapstructure:"enriched"`
	Export   string `yaml:"export" mapstructure:"export"`
}

// EnrichConfig configures the FPDS enrichment pass.
type EnrichConfig struct {
	MaxWorkers  int     `yaml:"max_workers" mapstructure:"max_workers"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ExportConfig configures the Excel export.
type ExportConfig struct {
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// ServeConfig configures the read-only status API.
type ServeConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", "api")
	v.SetDefault("api.base_url", "https://api.doge.gov/savings/contracts")
	v.SetDefault("api.site_url", "https://doge.gov/savings")
	v.SetDefault("api.user_agent", "doge-tracker/1.0")
	v.SetDefault("api.per_page", 100)
	v.SetDefault("api.timeout_secs", 10)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.initial_backoff_ms", 1000)
	v.SetDefault("api.max_backoff_ms", 30000)
	v.SetDefault("api.backoff_multiplier", 2.0)
	v.SetDefault("api.rate_per_sec", 2)
	v.SetDefault("api.cooldown_secs", 60)
	v.SetDefault("api.max_cooldowns", 3)
	v.SetDefault("api.browser_timeout_secs", 60)
	v.SetDefault("api.skip_if_current", false)
	v.SetDefault("paths.dataset", "data/doge_contracts.csv")
	v.SetDefault("paths.raw_log", "data/doge_raw_api_data.csv")
	v.SetDefault("paths.run_log", "data/runs.jsonl")
	v.SetDefault("paths.lock", "data/.doge-tracker.lock")
	v.SetDefault("paths.enriched", "data/doge_contracts_enriched.csv")
	v.SetDefault("paths.export", "data/doge_contracts.xlsx")
	v.SetDefault("enrich.max_workers", 10)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("enrich.rate_per_sec", 5)
	v.SetDefault("export.sheet_name", "DOGE Contracts")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
