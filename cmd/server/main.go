// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package main is the entry point for the Vitrine server.
//
// Vitrine delivers promotional banners to application users with
// frequency capping and records their engagement (views, clicks,
// dismissals) for analytics.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Database: DuckDB holding the banner catalog and engagement ledger
//  3. Exposure cache: BadgerDB frequency-cap markers behind a circuit breaker
//  4. Events (optional): NATS publisher for delivery and engagement events
//  5. Authentication: JWT or header-trust mode
//  6. HTTP server: REST API under supervisor control
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (VITRINE_ prefix), config file
// (config.yaml), built-in defaults.
//
// For JWT authentication (default):
//   - VITRINE_SECURITY_JWT_SECRET: 32+ character secret for token signing
//
// For local development:
//   - VITRINE_SECURITY_AUTH_MODE=none enables header-trust identity
//     (X-User-ID / X-User-Role)
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits up to 10s for in-flight requests,
// then closes the event publisher, exposure cache, and database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitrine-app/vitrine/internal/api"
	"github.com/vitrine-app/vitrine/internal/auth"
	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/database"
	"github.com/vitrine-app/vitrine/internal/delivery"
	"github.com/vitrine-app/vitrine/internal/events"
	"github.com/vitrine-app/vitrine/internal/exposure"
	"github.com/vitrine-app/vitrine/internal/logging"
	"github.com/vitrine-app/vitrine/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("delivery_mode", string(cfg.Delivery.Mode)).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	if cfg.Database.SeedDemoBanners {
		if err := db.SeedDemoBanners(context.Background()); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed demo banners")
		}
		logging.Info().Msg("Demo banner seeding complete")
	}

	// The exposure cache sits behind a circuit breaker: delivery degrades
	// to uncapped rather than failing when the cache is unhealthy.
	badgerCache, err := exposure.NewBadgerCache(&cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open exposure cache")
	}
	cache := exposure.NewBreakerCache(badgerCache)
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing exposure cache")
		}
	}()

	emitter := buildEmitter(&cfg.NATS)
	defer func() {
		if err := emitter.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	service := delivery.NewService(db, db, cache, emitter, cfg.Delivery.Mode)

	var jwtManager *auth.JWTManager
	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("Authentication disabled (AUTH_MODE=none): identity is read from X-User-ID")
		logging.Warn().Msg("Use this mode only for local development and isolated networks")
	}

	handler := api.NewHandler(service, db)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), &cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for the supervisor's event hook.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Delivery.RetentionEnabled {
		tree.AddBackgroundService(delivery.NewRetentionSweeper(db, cfg.Delivery))
		logging.Info().
			Dur("max_age", cfg.Delivery.RetentionMaxAge).
			Dur("sweep_interval", cfg.Delivery.RetentionSweepInterval).
			Msg("Retention sweeper added to supervisor tree")
	}

	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildEmitter wires the NATS publisher when events are enabled. A nil
// publisher yields a no-op emitter, so the delivery path never branches
// on whether eventing is configured.
func buildEmitter(cfg *config.NATSConfig) *events.Emitter {
	if !cfg.Enabled {
		logging.Info().Msg("Event publishing disabled")
		return events.NewEmitter(nil)
	}

	pub, err := events.NewNATSPublisher(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect NATS publisher")
	}
	logging.Info().Str("url", cfg.URL).Msg("NATS event publishing enabled")
	return events.NewEmitter(pub)
}
