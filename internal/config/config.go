// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":8080"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	EndpointsFile string `env:"ENDPOINTS_FILE" envDefault:"config/endpoints.yaml"`

	Upstream UpstreamConfig `envPrefix:"UPSTREAM_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Bulk     BulkConfig     `envPrefix:"BULK_"`
}

// UpstreamConfig holds the third-party API connection settings
type UpstreamConfig struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// CacheConfig holds the cache tier settings
type CacheConfig struct {
	// RemoteTimeout bounds every call to the remote store before the
	// facade falls back to the local tier.
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"250ms"`
	LocalShards   int           `env:"LOCAL_SHARDS" envDefault:"16"`
}

// BulkConfig holds the bulk coordinator settings
type BulkConfig struct {
	MaxInFlight int           `env:"MAX_IN_FLIGHT" envDefault:"8"`
	ItemTimeout time.Duration `env:"ITEM_TIMEOUT" envDefault:"15s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is usable before wiring anything to it
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	if c.Cache.RemoteTimeout <= 0 {
		return fmt.Errorf("CACHE_REMOTE_TIMEOUT must be positive, got %s", c.Cache.RemoteTimeout)
	}
	if c.Bulk.MaxInFlight < 1 {
		return fmt.Errorf("BULK_MAX_IN_FLIGHT must be at least 1, got %d", c.Bulk.MaxInFlight)
	}
	if c.Bulk.ItemTimeout <= 0 {
		return fmt.Errorf("BULK_ITEM_TIMEOUT must be positive, got %s", c.Bulk.ItemTimeout)
	}
	return nil
}
