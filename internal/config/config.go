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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Embed    EmbedConfig    `yaml:"embed" mapstructure:"embed"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Promo    PromoConfig    `yaml:"promo" mapstructure:"promo"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatalogConfig configures catalog loading.
type CatalogConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// OracleConfig holds Anthropic API settings for the NL oracle stages.
type OracleConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// EmbedConfig holds OpenAI embeddings settings for semantic search.
type EmbedConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ResolverConfig configures the product resolution cascade.
type ResolverConfig struct {
	FuzzyNameThreshold float64 `yaml:"fuzzy_name_threshold" mapstructure:"fuzzy_name_threshold"`
	SemanticTopK       int     `yaml:"semantic_top_k" mapstructure:"semantic_top_k"`
	ConfidenceFloor    float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// LedgerConfig configures stock alternatives search.
type LedgerConfig struct {
	MaxAlternatives int     `yaml:"max_alternatives" mapstructure:"max_alternatives"`
	PriceBand       float64 `yaml:"price_band" mapstructure:"price_band"`
}

// PromoConfig configures promotion rule loading.
type PromoConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentEmails int `yaml:"max_concurrent_emails" mapstructure:"max_concurrent_emails"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("ORDERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "orderdesk.db")
	v.SetDefault("catalog.sheet_name", "products")
	v.SetDefault("oracle.model", "claude-haiku-4-5-20251001")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.requests_per_sec", 2.0)
	v.SetDefault("oracle.burst", 4)
	v.SetDefault("embed.model", "text-embedding-3-small")
	v.SetDefault("resolver.fuzzy_name_threshold", 0.8)
	v.SetDefault("resolver.semantic_top_k", 5)
	v.SetDefault("resolver.confidence_floor", 0.3)
	v.SetDefault("ledger.max_alternatives", 3)
	v.SetDefault("ledger.price_band", 0.2)
	v.SetDefault("promo.rules_path", "promotions.yaml")
	v.SetDefault("batch.max_concurrent_emails", 5)
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
