package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Embedding  EmbeddingConfig
	Index      IndexConfig
	Qdrant     QdrantConfig
	Validation ValidationConfig
	Search     SearchConfig
	Messages   MessagesConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig controls the global zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// EmbeddingConfig selects and configures the text embedding backend.
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"` // "openai" or "local"
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Dimension         int           `mapstructure:"dimension"`
	BatchSize         int           `mapstructure:"batch_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Type      string `mapstructure:"type"` // "qdrant" or "memory"
	BatchSize int    `mapstructure:"batch_size"`
}

// QdrantConfig holds Qdrant REST API configuration
type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ValidationConfig tunes shelf price validation.
type ValidationConfig struct {
	PriceTolerancePercent float64 `mapstructure:"price_tolerance_percent"`
	SearchLimit           int     `mapstructure:"search_limit"`
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold"`
	MaxConcurrency        int     `mapstructure:"max_concurrency"`
}

// SearchConfig tunes free-text catalog lookups.
type SearchConfig struct {
	Limit               int     `mapstructure:"limit"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// MessagesConfig controls chat message routing.
type MessagesConfig struct {
	AllowedUsers  []string `mapstructure:"allowed_users"`
	MaxReplyChars int      `mapstructure:"max_reply_chars"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL   string        `mapstructure:"redis_url"`
	MessageTTL time.Duration `mapstructure:"message_ttl"`
	LookupTTL  time.Duration `mapstructure:"lookup_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfcheck/")

	v.SetEnvPrefix("SHELFCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, eris.Wrap(err, "config: decode")
	}

	if err := validate(&config); err != nil {
		return nil, eris.Wrap(err, "config: invalid configuration")
	}

	return &config, nil
}

// Default returns the built-in defaults without reading files or the
// environment and without validation.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, eris.Wrap(err, "config: decode defaults")
	}
	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.requests_per_second", 5)

	v.SetDefault("index.type", "qdrant")
	v.SetDefault("index.batch_size", 100)

	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.collection", "products")
	v.SetDefault("qdrant.timeout", "30s")

	v.SetDefault("validation.price_tolerance_percent", 5.0)
	v.SetDefault("validation.search_limit", 5)
	v.SetDefault("validation.similarity_threshold", 0.7)
	v.SetDefault("validation.max_concurrency", 8)

	v.SetDefault("search.limit", 20)
	v.SetDefault("search.similarity_threshold", 0.5)

	v.SetDefault("messages.allowed_users", []string{})
	v.SetDefault("messages.max_reply_chars", 3900)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.message_ttl", "60s")
	v.SetDefault("cache.lookup_ttl", "5m")

	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Embedding.Provider {
	case "openai":
		if config.Embedding.APIKey == "" {
			return fmt.Errorf("embedding API key is required (set SHELFCHECK_EMBEDDING_API_KEY)")
		}
	case "local":
	default:
		return fmt.Errorf("embedding provider must be 'openai' or 'local', got: %s", config.Embedding.Provider)
	}

	if config.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got: %d", config.Embedding.Dimension)
	}

	if config.Index.Type != "qdrant" && config.Index.Type != "memory" {
		return fmt.Errorf("index type must be 'qdrant' or 'memory', got: %s", config.Index.Type)
	}

	if config.Index.Type == "qdrant" && config.Qdrant.URL == "" {
		return fmt.Errorf("Qdrant URL is required when index type is 'qdrant'")
	}

	if config.Validation.PriceTolerancePercent < 0 {
		return fmt.Errorf("price tolerance must not be negative, got: %v", config.Validation.PriceTolerancePercent)
	}

	if t := config.Validation.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("validation similarity threshold must be within [0,1], got: %v", t)
	}

	if t := config.Search.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("search similarity threshold must be within [0,1], got: %v", t)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
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
