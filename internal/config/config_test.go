package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://tracker.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected ListenAddr ':8080', got '%s'", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected RedisAddr 'localhost:6379', got '%s'", cfg.RedisAddr)
	}
	if cfg.EndpointsFile != "config/endpoints.yaml" {
		t.Errorf("Expected default endpoints file, got '%s'", cfg.EndpointsFile)
	}
	if cfg.Cache.RemoteTimeout != 250*time.Millisecond {
		t.Errorf("Expected remote timeout 250ms, got %s", cfg.Cache.RemoteTimeout)
	}
	if cfg.Bulk.MaxInFlight != 8 {
		t.Errorf("Expected max in-flight 8, got %d", cfg.Bulk.MaxInFlight)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://tracker.example.com")
	t.Setenv("UPSTREAM_API_KEY", "secret")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("CACHE_REMOTE_TIMEOUT", "100ms")
	t.Setenv("BULK_MAX_IN_FLIGHT", "16")
	t.Setenv("BULK_ITEM_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Upstream.APIKey != "secret" {
		t.Errorf("Expected APIKey 'secret', got '%s'", cfg.Upstream.APIKey)
	}
	if cfg.Upstream.Timeout != 3*time.Second {
		t.Errorf("Expected upstream timeout 3s, got %s", cfg.Upstream.Timeout)
	}
	if cfg.Cache.RemoteTimeout != 100*time.Millisecond {
		t.Errorf("Expected remote timeout 100ms, got %s", cfg.Cache.RemoteTimeout)
	}
	if cfg.Bulk.MaxInFlight != 16 {
		t.Errorf("Expected max in-flight 16, got %d", cfg.Bulk.MaxInFlight)
	}
	if cfg.Bulk.ItemTimeout != 5*time.Second {
		t.Errorf("Expected item timeout 5s, got %s", cfg.Bulk.ItemTimeout)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://tracker.example.com")
	t.Setenv("CACHE_REMOTE_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid CACHE_REMOTE_TIMEOUT")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when UPSTREAM_BASE_URL is missing")
	}

	cfg.Upstream.BaseURL = "https://tracker.example.com"
	cfg.Cache.RemoteTimeout = 250 * time.Millisecond
	cfg.Bulk.MaxInFlight = 8
	cfg.Bulk.ItemTimeout = 15 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("Should not error with a complete config: %v", err)
	}

	cfg.Bulk.MaxInFlight = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero BULK_MAX_IN_FLIGHT")
	}
}
