// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validTestConfig returns a config that passes Validate, for mutation
// in the table tests below.
func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate on defaults with secret failed: %v", err)
	}
}

func TestValidateRejectsUnsafeConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database path is required",
		},
		{
			name: "empty cache path without in_memory",
			mutate: func(c *Config) {
				c.Cache.Path = ""
				c.Cache.InMemory = false
			},
			wantErr: "cache path is required",
		},
		{
			name:    "zero cooldown TTL",
			mutate:  func(c *Config) { c.Cache.CooldownTTL = 0 },
			wantErr: "cache TTLs must be positive",
		},
		{
			name:    "negative shown TTL",
			mutate:  func(c *Config) { c.Cache.ShownTTL = -time.Hour },
			wantErr: "cache TTLs must be positive",
		},
		{
			name: "bypass mode in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Delivery.Mode = DeliveryModeBypassFrequencyCap
			},
			wantErr: "not allowed in production",
		},
		{
			name:    "unknown delivery mode",
			mutate:  func(c *Config) { c.Delivery.Mode = "turbo" },
			wantErr: "unknown delivery mode",
		},
		{
			name: "retention enabled with zero max age",
			mutate: func(c *Config) {
				c.Delivery.RetentionEnabled = true
				c.Delivery.RetentionMaxAge = 0
			},
			wantErr: "retention max age",
		},
		{
			name: "retention enabled with zero batch size",
			mutate: func(c *Config) {
				c.Delivery.RetentionEnabled = true
				c.Delivery.RetentionBatchSize = 0
			},
			wantErr: "retention batch size",
		},
		{
			name:    "short JWT secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name: "auth none in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.AuthMode = "none"
			},
			wantErr: "auth_mode=none is not allowed in production",
		},
		{
			name:    "unknown auth mode",
			mutate:  func(c *Config) { c.Security.AuthMode = "basic" },
			wantErr: "unknown auth mode",
		},
		{
			name: "nats enabled without url",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = ""
			},
			wantErr: "nats url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted unsafe config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAllowsBypassOutsideProduction(t *testing.T) {
	cfg := validTestConfig()
	cfg.Server.Environment = "development"
	cfg.Delivery.Mode = DeliveryModeBypassFrequencyCap
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected bypass mode in development: %v", err)
	}

	cfg = validTestConfig()
	cfg.Security.AuthMode = "none"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected auth_mode=none in development: %v", err)
	}
}

func TestEnvTransformPrefixedForm(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"VITRINE_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"VITRINE_SECURITY_AUTH_MODE", "security.auth_mode"},
		{"VITRINE_SERVER_PORT", "server.port"},
		{"VITRINE_CACHE_COOLDOWN_TTL", "cache.cooldown_ttl"},
		{"VITRINE_DELIVERY_RETENTION_MAX_AGE", "delivery.retention_max_age"},
		{"VITRINE_NATS_URL", "nats.url"},
		{"VITRINE_LOGGING_LEVEL", "logging.level"},
		// Unknown sections and malformed names are dropped, not guessed at.
		{"VITRINE_BOGUS_KEY", ""},
		{"VITRINE_", ""},
		{"VITRINE_SECURITY_", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestEnvTransformBareAliases(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"EXPOSURE_COOLDOWN_TTL", "cache.cooldown_ttl"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"AUTH_MODE", "security.auth_mode"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadPrefixedEnvOverrides(t *testing.T) {
	t.Setenv("VITRINE_SECURITY_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("VITRINE_SERVER_PORT", "9090")
	t.Setenv("VITRINE_CACHE_COOLDOWN_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Security.JWTSecret != "0123456789abcdef0123456789abcdef" {
		t.Error("VITRINE_SECURITY_JWT_SECRET was not applied")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cache.CooldownTTL != 5*time.Minute {
		t.Errorf("Cache.CooldownTTL = %v, want 5m", cfg.Cache.CooldownTTL)
	}
}

func TestLoadBareEnvAliases(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Security.AuthMode != "none" {
		t.Errorf("Security.AuthMode = %q, want none", cfg.Security.AuthMode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7070
security:
  auth_mode: none
logging:
  level: warn
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("VITRINE_LOGGING_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want file value 7070", cfg.Server.Port)
	}
	// Env vars are the highest-priority layer.
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want env value error", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("VITRINE_SECURITY_JWT_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a short JWT secret")
	}
}
