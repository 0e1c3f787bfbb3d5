// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package config loads and validates the Vitrine configuration using
// Koanf v2 with layered sources (env vars > config file > defaults).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Vitrine server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Delivery DeliveryConfig `koanf:"delivery"`
	NATS     NATSConfig     `koanf:"nats"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings for the durable stores
// (banner definitions and engagement records).
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// SeedDemoBanners loads a small demo banner set at startup.
	// Intended for development and screenshot/CI environments.
	SeedDemoBanners bool `koanf:"seed_demo_banners"`
}

// CacheConfig holds BadgerDB settings for the ephemeral exposure cache.
type CacheConfig struct {
	Path string `koanf:"path"`

	// InMemory runs badger without a disk backing. Markers then die with
	// the process, which weakens frequency capping across restarts.
	InMemory bool `koanf:"in_memory"`

	// CooldownTTL suppresses all banner delivery to a user after any
	// delivery. ShownTTL gates non-repeatable banners per (user, banner);
	// RepeatTTL is the minimum re-display interval for repeatable ones.
	CooldownTTL time.Duration `koanf:"cooldown_ttl"`
	ShownTTL    time.Duration `koanf:"shown_ttl"`
	RepeatTTL   time.Duration `koanf:"repeat_ttl"`
}

// DeliveryMode selects the delivery pipeline variant.
type DeliveryMode string

const (
	// DeliveryModeStandard applies cooldown and exposure gating.
	DeliveryModeStandard DeliveryMode = "standard"

	// DeliveryModeBypassFrequencyCap skips cooldown and exposure gating.
	// For test environments only; never enable in production.
	DeliveryModeBypassFrequencyCap DeliveryMode = "bypass_frequency_cap"
)

// DeliveryConfig holds delivery pipeline and retention settings.
type DeliveryConfig struct {
	Mode DeliveryMode `koanf:"mode"`

	// Engagement record retention sweep. Disabled by default; records
	// older than RetentionMaxAge are deleted in rate-limited batches.
	RetentionEnabled       bool          `koanf:"retention_enabled"`
	RetentionMaxAge        time.Duration `koanf:"retention_max_age"`
	RetentionSweepInterval time.Duration `koanf:"retention_sweep_interval"`
	RetentionBatchSize     int           `koanf:"retention_batch_size"`
}

// NATSConfig holds engagement event publishing settings.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthMode is "jwt" or "none". Session issuance is handled by an
	// external identity service; Vitrine only consumes the claims.
	AuthMode       string        `koanf:"auth_mode"`
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid or unsafe combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Cache.Path == "" && !c.Cache.InMemory {
		return fmt.Errorf("cache path is required unless cache.in_memory is set")
	}
	if c.Cache.CooldownTTL <= 0 || c.Cache.ShownTTL <= 0 || c.Cache.RepeatTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	switch c.Delivery.Mode {
	case DeliveryModeStandard:
	case DeliveryModeBypassFrequencyCap:
		if c.Server.Environment == "production" {
			return fmt.Errorf("delivery mode %q is not allowed in production", c.Delivery.Mode)
		}
	default:
		return fmt.Errorf("unknown delivery mode %q", c.Delivery.Mode)
	}

	if c.Delivery.RetentionEnabled {
		if c.Delivery.RetentionMaxAge <= 0 {
			return fmt.Errorf("retention max age must be positive")
		}
		if c.Delivery.RetentionBatchSize <= 0 {
			return fmt.Errorf("retention batch size must be positive")
		}
	}

	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
	case "none":
		if c.Server.Environment == "production" {
			return fmt.Errorf("auth_mode=none is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Security.AuthMode)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required when nats is enabled")
	}

	return nil
}
