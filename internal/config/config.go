// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	BaseURL     string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`

	Cache CacheConfig `envPrefix:"CACHE_"`
}

// CacheConfig holds route cache configuration
type CacheConfig struct {
	Backend    string        `env:"BACKEND" envDefault:"file"` // file, badger or memory
	Dir        string        `env:"DIR"`                       // empty means ~/.tourguide_cache
	DefaultTTL time.Duration `env:"DEFAULT_TTL" envDefault:"1h"`
	MaxSize    int64         `env:"MAX_SIZE" envDefault:"5242880"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	return cfg, nil
}

// HasDatabase returns true if a route database is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks values that env parsing alone cannot
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "file", "badger", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of file, badger, memory - got %q", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive, got %s", c.Cache.DefaultTTL)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive, got %d", c.Cache.MaxSize)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

// RequireAPI validates the settings the HTTP API cannot run without
func (c *Config) RequireAPI() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// RequireWorker validates the settings the warm-up worker needs. The worker
// writes into the same cache the API reads, so only the file backend can be
// shared: badger locks its directory and memory is private to one process.
func (c *Config) RequireWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Cache.Backend != "file" {
		return fmt.Errorf("worker needs CACHE_BACKEND=file to share the cache with the api, got %q", c.Cache.Backend)
	}
	return nil
}
