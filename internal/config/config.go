package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/beroe-labs/abi/internal/auth"
	"github.com/beroe-labs/abi/internal/ledger"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       auth.Config      `yaml:"auth" mapstructure:"auth"`
	Credits    ledger.Config    `yaml:"credits" mapstructure:"credits"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Intel      IntelConfig      `yaml:"intel" mapstructure:"intel"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend shared by the credit ledger
// and the auth store.
type StoreConfig struct {
	Driver      string             `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string             `yaml:"database_url" mapstructure:"database_url"`
	Pool        *ledger.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CacheConfig configures the key-value store used for rate limits, evidence
// caching, and verification codes. Empty means in-process memory.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// ServerConfig configures the HTTP front-door.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CookieSecret   string   `yaml:"cookie_secret" mapstructure:"cookie_secret"`
	SecureCookies  bool     `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// IntelConfig holds supplier-intelligence API settings.
type IntelConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CatalogConfig points at the managed-category taxonomy file. Empty falls
// back to the built-in seed catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("ABI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "abi.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secure_cookies", true)
	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.hash_cost", 10)
	v.SetDefault("auth.require_invite", true)
	v.SetDefault("credits.auto_approve_threshold", 500)
	v.SetDefault("credits.request_ttl", "168h")
	v.SetDefault("credits.escalation_window", "24h")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("perplexity.model", "sonar-pro")

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

// Validate checks the fields the given command depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.CookieSecret == "" {
			problems = append(problems, "server.cookie_secret is required")
		}
		if c.Auth.HashCost != 0 && (c.Auth.HashCost < 4 || c.Auth.HashCost > 31) {
			problems = append(problems, "auth.hash_cost must be between 4 and 31")
		}
		if c.Credits.AutoApproveThreshold < 0 {
			problems = append(problems, "credits.auto_approve_threshold must be >= 0")
		}
	case "migrate", "expire-requests":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
