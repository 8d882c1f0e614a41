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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures the HTTP fetcher used by source adapters.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig configures the run orchestrator.
type PipelineConfig struct {
	MinCapacityMW      float64 `yaml:"min_capacity_mw" mapstructure:"min_capacity_mw"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	AdapterTimeoutSecs int     `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	RulesFile          string  `yaml:"rules_file" mapstructure:"rules_file"`
}

// ScorerConfig configures score-to-classification cutoffs and display limits.
// The scorer itself never reads the cutoffs; callers classify with them.
type ScorerConfig struct {
	Cutoff       int `yaml:"cutoff" mapstructure:"cutoff"`
	StrictCutoff int `yaml:"strict_cutoff" mapstructure:"strict_cutoff"`
	MaxNotes     int `yaml:"max_notes" mapstructure:"max_notes"`
}

// RetentionConfig configures the staleness window for the sweep.
type RetentionConfig struct {
	WindowDays int `yaml:"window_days" mapstructure:"window_days"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// WatchConfig configures the periodic scheduling loop.
type WatchConfig struct {
	IntervalHours int    `yaml:"interval_hours" mapstructure:"interval_hours"`
	AnchorTime    string `yaml:"anchor_time" mapstructure:"anchor_time"`
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
	v.SetEnvPrefix("GRIDHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "gridhound.db")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("pipeline.min_capacity_mw", 50)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.adapter_timeout_secs", 120)
	v.SetDefault("scorer.cutoff", 40)
	v.SetDefault("scorer.strict_cutoff", 60)
	v.SetDefault("scorer.max_notes", 5)
	v.SetDefault("retention.window_days", 90)
	v.SetDefault("server.port", 8080)
	v.SetDefault("watch.interval_hours", 6)
	v.SetDefault("watch.anchor_time", "06:00")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
