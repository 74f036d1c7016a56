package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
)

// Config holds the defaults read from the environment. Flags override them.
type Config struct {
	// Compile defaults
	Strict           bool `env:"HBS_STRICT" envDefault:"false"`
	NoEscape         bool `env:"HBS_NO_ESCAPE" envDefault:"false"`
	IgnoreStandalone bool `env:"HBS_IGNORE_STANDALONE" envDefault:"false"`

	// Partials directory registered before every render
	PartialsDir string   `env:"HBS_PARTIALS_DIR"`
	Extensions  []string `env:"HBS_EXTENSIONS" envSeparator:"," envDefault:".hbs,.handlebars"`

	// Optional precompiled template cache
	RedisAddr     string        `env:"HBS_REDIS_ADDR"`
	RedisPassword string        `env:"HBS_REDIS_PASS"`
	RedisDB       int           `env:"HBS_REDIS_DB" envDefault:"0"`
	CachePrefix   string        `env:"HBS_CACHE_PREFIX" envDefault:"hbs:template:"`
	CacheTTL      time.Duration `env:"HBS_CACHE_TTL" envDefault:"24h"`

	// Output
	NoColor  bool   `env:"NO_COLOR" envDefault:"false"`
	LogLevel string `env:"HBS_LOG_LEVEL" envDefault:"warn"`
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("HBS_LOG_LEVEL: %w", err)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("HBS_CACHE_TTL must not be negative")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("HBS_EXTENSIONS must list at least one extension")
	}
	return nil
}
