// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vitrine/config.yaml",
	"/etc/vitrine/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8646,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:            "/data/vitrine.duckdb",
			MaxMemory:       "1GB",
			Threads:         0, // 0 = use runtime.NumCPU()
			SeedDemoBanners: false,
		},
		Cache: CacheConfig{
			Path:        "/data/exposure",
			InMemory:    false,
			CooldownTTL: 10 * time.Minute,
			ShownTTL:    7 * 24 * time.Hour,
			RepeatTTL:   24 * time.Hour,
		},
		Delivery: DeliveryConfig{
			Mode:                   DeliveryModeStandard,
			RetentionEnabled:       false,
			RetentionMaxAge:        2 * 365 * 24 * time.Hour,
			RetentionSweepInterval: 24 * time.Hour,
			RetentionBatchSize:     1000,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			MaxReconnects: -1, // retry forever
			ReconnectWait: 2 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// configSections are the top-level config groups addressable through
// VITRINE_-prefixed environment variables.
var configSections = map[string]bool{
	"server":   true,
	"database": true,
	"cache":    true,
	"delivery": true,
	"nats":     true,
	"security": true,
	"logging":  true,
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Two forms are accepted. The prefixed form addresses any config path
// directly:
//   - VITRINE_SECURITY_JWT_SECRET -> security.jwt_secret
//   - VITRINE_SERVER_PORT -> server.port
//
// Bare aliases cover the conventional operational names:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - EXPOSURE_COOLDOWN_TTL -> cache.cooldown_ttl
//   - JWT_SECRET -> security.jwt_secret
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if rest, ok := strings.CutPrefix(key, "vitrine_"); ok {
		if section, field, found := strings.Cut(rest, "_"); found && field != "" && configSections[section] {
			return section + "." + field
		}
		return ""
	}

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"seed_demo_banners": "database.seed_demo_banners",

		// Exposure cache mappings
		"exposure_cache_path":      "cache.path",
		"exposure_cache_in_memory": "cache.in_memory",
		"exposure_cooldown_ttl":    "cache.cooldown_ttl",
		"exposure_shown_ttl":       "cache.shown_ttl",
		"exposure_repeat_ttl":      "cache.repeat_ttl",

		// Delivery mappings
		"delivery_mode":            "delivery.mode",
		"retention_enabled":        "delivery.retention_enabled",
		"retention_max_age":        "delivery.retention_max_age",
		"retention_sweep_interval": "delivery.retention_sweep_interval",
		"retention_batch_size":     "delivery.retention_batch_size",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_max_reconnects": "nats.max_reconnects",
		"nats_reconnect_wait": "nats.reconnect_wait",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are ignored rather than guessed at; anything the
	// server consumes must appear in the table above.
	return ""
}
