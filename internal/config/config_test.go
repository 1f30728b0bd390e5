package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

var configKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "STORE_TYPE", "DB_DSN",
	"FIXTURE_FILE", "MATCH_WORKERS", "MATCH_TIMEOUT", "REQUIRE_ORG_SCOPE",
	"RATE_LIMIT_PER_IP", "TIEBREAK_SEED", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr=':9090', got '%s'", cfg.MetricsAddr)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if cfg.MatchWorkers != 8 {
		t.Errorf("Expected MatchWorkers=8, got %d", cfg.MatchWorkers)
	}
	if cfg.MatchTimeout != 2*time.Second {
		t.Errorf("Expected MatchTimeout=2s, got %s", cfg.MatchTimeout)
	}
	if !cfg.RequireOrgScope {
		t.Error("Expected RequireOrgScope=true")
	}
	if cfg.RateLimitPerIP != 100 {
		t.Errorf("Expected RateLimitPerIP=100, got %d", cfg.RateLimitPerIP)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected LogFormat='json', got '%s'", cfg.LogFormat)
	}
	if cfg.TieBreakSeed == "" || !cfg.TieBreakSeedGenerated {
		t.Errorf("Expected a generated tie-break seed, got %q (generated=%v)", cfg.TieBreakSeed, cfg.TieBreakSeedGenerated)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_HTTP_ADDR", ":9999")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("MATCH_WORKERS", "3")
	t.Setenv("MATCH_TIMEOUT", "150ms")
	t.Setenv("REQUIRE_ORG_SCOPE", "false")
	t.Setenv("TIEBREAK_SEED", "fixed")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("Expected AppEnv='test', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.StoreType != "postgres" {
		t.Errorf("Expected StoreType='postgres', got '%s'", cfg.StoreType)
	}
	if cfg.MatchWorkers != 3 {
		t.Errorf("Expected MatchWorkers=3, got %d", cfg.MatchWorkers)
	}
	if cfg.MatchTimeout != 150*time.Millisecond {
		t.Errorf("Expected MatchTimeout=150ms, got %s", cfg.MatchTimeout)
	}
	if cfg.RequireOrgScope {
		t.Error("Expected RequireOrgScope=false")
	}
	if cfg.TieBreakSeed != "fixed" || cfg.TieBreakSeedGenerated {
		t.Errorf("Expected configured seed 'fixed', got %q (generated=%v)", cfg.TieBreakSeed, cfg.TieBreakSeedGenerated)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("Expected LogFormat='console', got '%s'", cfg.LogFormat)
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:         "dev",
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		StoreType:      "memory",
		MatchWorkers:   8,
		MatchTimeout:   2 * time.Second,
		RateLimitPerIP: 100,
		TieBreakSeed:   "seed",
		LogFormat:      "json",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown store", func(c *Config) { c.StoreType = "redis" }, "STORE_TYPE"},
		{"postgres without dsn", func(c *Config) { c.StoreType = "postgres"; c.DatabaseDSN = "" }, "DB_DSN"},
		{"postgres with dsn", func(c *Config) { c.StoreType = "postgres"; c.DatabaseDSN = "postgres://x" }, ""},
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }, "APP_HTTP_ADDR"},
		{"empty metrics addr", func(c *Config) { c.MetricsAddr = "" }, "METRICS_ADDR"},
		{"zero workers", func(c *Config) { c.MatchWorkers = 0 }, "MATCH_WORKERS"},
		{"zero timeout", func(c *Config) { c.MatchTimeout = 0 }, "MATCH_TIMEOUT"},
		{"zero rate limit", func(c *Config) { c.RateLimitPerIP = 0 }, "RATE_LIMIT_PER_IP"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"generated seed in prod", func(c *Config) { c.AppEnv = "prod"; c.TieBreakSeedGenerated = true }, "TIEBREAK_SEED"},
		{"generated seed in dev", func(c *Config) { c.TieBreakSeedGenerated = true }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}
