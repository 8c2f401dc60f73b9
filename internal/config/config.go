package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/localpulse/rankgrid-cli/internal/metrics"
	"github.com/localpulse/rankgrid-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Provider   ProviderConfig           `yaml:"provider" mapstructure:"provider"`
	Check      CheckConfig              `yaml:"check" mapstructure:"check"`
	Poll       PollConfig               `yaml:"poll" mapstructure:"poll"`
	Visibility metrics.VisibilityPolicy `yaml:"visibility" mapstructure:"visibility"`
	Store      StoreConfig              `yaml:"store" mapstructure:"store"`
	Server     ServerConfig             `yaml:"server" mapstructure:"server"`
	Log        LogConfig                `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds ranking provider credentials and tuning.
type ProviderConfig struct {
	// Mode selects the provider implementation: "live" or "fake".
	Mode      string  `yaml:"mode" mapstructure:"mode"`
	Login     string  `yaml:"login" mapstructure:"login"`
	Password  string  `yaml:"password" mapstructure:"password"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Device    string  `yaml:"device" mapstructure:"device"`
	Depth     int     `yaml:"depth" mapstructure:"depth"`
}

// CheckConfig holds default grid check parameters.
type CheckConfig struct {
	GridSize     int     `yaml:"grid_size" mapstructure:"grid_size"`
	RadiusKM     float64 `yaml:"radius_km" mapstructure:"radius_km"`
	Shape        string  `yaml:"shape" mapstructure:"shape"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	DeadlineSecs int     `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// PollConfig holds per-task polling timing.
type PollConfig struct {
	InitialWaitSecs  int `yaml:"initial_wait_secs" mapstructure:"initial_wait_secs"`
	BackoffSecs      int `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	BackoffCapSecs   int `yaml:"backoff_cap_secs" mapstructure:"backoff_cap_secs"`
	TaskDeadlineSecs int `yaml:"task_deadline_secs" mapstructure:"task_deadline_secs"`
}

// StoreConfig configures the check run persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP serving surface.
type ServerConfig struct {
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

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RANKGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider.mode", "live")
	v.SetDefault("provider.base_url", "https://api.dataforseo.com")
	v.SetDefault("provider.rate_limit", 10)
	v.SetDefault("provider.device", "desktop")
	v.SetDefault("provider.depth", 20)
	v.SetDefault("check.grid_size", 7)
	v.SetDefault("check.radius_km", 5)
	v.SetDefault("check.shape", "square")
	v.SetDefault("check.concurrency", 5)
	v.SetDefault("check.deadline_secs", 600)
	v.SetDefault("poll.initial_wait_secs", 15)
	v.SetDefault("poll.backoff_secs", 5)
	v.SetDefault("poll.backoff_cap_secs", 30)
	v.SetDefault("poll.task_deadline_secs", 90)
	v.SetDefault("visibility.afpr_weight", 40)
	v.SetDefault("visibility.grm_weight", 35)
	v.SetDefault("visibility.tss_weight", 25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "rankgrid.db")
	v.SetDefault("server.port", 8080)
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

// Validate checks the configuration needed by a subsystem before it runs.
func (c *Config) Validate(subsystem string) error {
	switch subsystem {
	case "provider":
		if c.Provider.Mode == "fake" {
			return nil
		}
		if c.Provider.Mode != "live" {
			return eris.Errorf("config: unknown provider mode %q (valid: live, fake)", c.Provider.Mode)
		}
		if c.Provider.Login == "" || c.Provider.Password == "" {
			return eris.New("config: provider.login and provider.password are required in live mode")
		}
		return nil
	case "check":
		if c.Check.GridSize <= 0 {
			return eris.New("config: check.grid_size must be positive")
		}
		if _, err := c.Shape(); err != nil {
			return err
		}
		return c.Visibility.Validate()
	case "store":
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				return eris.New("config: store.path is required for sqlite")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required for postgres")
			}
		default:
			return eris.Errorf("config: unknown store driver %q (valid: sqlite, postgres)", c.Store.Driver)
		}
		return nil
	default:
		return eris.Errorf("config: unknown subsystem %q", subsystem)
	}
}

// Shape parses the configured default grid shape.
func (c *Config) Shape() (model.Shape, error) {
	return model.ParseShape(c.Check.Shape)
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
