package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds the server's runtime configuration. It is trimmed to the
// concerns the search/terminology/LSP core actually consumes; routing,
// auth and console configuration live in their own (external) layers.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// SearchCacheCapacity is the soft capacity of the query plan cache.
	// The hard eviction threshold is 1.5x this value.
	SearchCacheCapacity int `mapstructure:"SEARCH_CACHE_CAPACITY"`
	// SearchCacheTTLSeconds is the max age of a prepared query before a read
	// treats it as stale.
	SearchCacheTTLSeconds int64 `mapstructure:"SEARCH_CACHE_TTL_SECONDS"`

	// TerminologyCacheTTLSeconds is the max age of a cached ValueSet/CodeSystem/
	// ConceptMap canonical resolution.
	TerminologyCacheTTLSeconds int64 `mapstructure:"TERMINOLOGY_CACHE_TTL_SECONDS"`

	// LSPSchemaRefreshSeconds controls how often the LSP schema cache
	// re-reads the Postgres catalog.
	LSPSchemaRefreshSeconds int64 `mapstructure:"LSP_SCHEMA_REFRESH_SECONDS"`
	// LSPTransport selects "stdio" or "tcp" for the language server.
	LSPTransport string `mapstructure:"LSP_TRANSPORT"`
	// LSPListenAddr is used when LSPTransport is "tcp".
	LSPListenAddr string `mapstructure:"LSP_LISTEN_ADDR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SEARCH_CACHE_CAPACITY", 1024)
	v.SetDefault("SEARCH_CACHE_TTL_SECONDS", 3600)
	v.SetDefault("TERMINOLOGY_CACHE_TTL_SECONDS", 3600)
	v.SetDefault("LSP_SCHEMA_REFRESH_SECONDS", 300)
	v.SetDefault("LSP_TRANSPORT", "stdio")
	v.SetDefault("LSP_LISTEN_ADDR", "127.0.0.1:4389")

	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SEARCH_CACHE_CAPACITY")
	v.BindEnv("SEARCH_CACHE_TTL_SECONDS")
	v.BindEnv("TERMINOLOGY_CACHE_TTL_SECONDS")
	v.BindEnv("LSP_SCHEMA_REFRESH_SECONDS")
	v.BindEnv("LSP_TRANSPORT")
	v.BindEnv("LSP_LISTEN_ADDR")

	// Try reading .env file, but don't fail if missing.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running with ENV=development; schema and cache settings use permissive defaults")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks invariants that would otherwise surface as confusing
// runtime errors deep inside the cache or LSP transport.
func (c *Config) Validate() error {
	if c.SearchCacheCapacity <= 0 {
		return fmt.Errorf("SEARCH_CACHE_CAPACITY must be positive, got %d", c.SearchCacheCapacity)
	}
	if c.SearchCacheTTLSeconds <= 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL_SECONDS must be positive, got %d", c.SearchCacheTTLSeconds)
	}
	if c.LSPTransport != "stdio" && c.LSPTransport != "tcp" {
		return fmt.Errorf("LSP_TRANSPORT must be \"stdio\" or \"tcp\", got %q", c.LSPTransport)
	}
	return nil
}
