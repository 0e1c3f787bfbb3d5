// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitrine-app/vitrine/internal/auth"
	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/middleware"
	"github.com/vitrine-app/vitrine/internal/models"
)

// Router wires handlers, authentication and the middleware stack.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	cfg     *config.SecurityConfig
}

// NewRouter creates a router. authMW in header-trust mode (nil JWT
// manager) is valid for development deployments.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg *config.SecurityConfig) *Router {
	return &Router{handler: handler, authMW: authMW, cfg: cfg}
}

// Setup builds the complete route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints: unauthenticated, permissively rate limited so
	// orchestrators can probe freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Delivery and engagement endpoints: authenticated, standard rate
	// limits, fully instrumented.
	r.Route("/api/v1/banners", func(r chi.Router) {
		r.Use(router.rateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)

		r.Get("/for-user", router.handler.BannerForUser)
		r.Post("/{id}/view", router.handler.Engagement(models.EngagementView))
		r.Post("/{id}/click", router.handler.Engagement(models.EngagementClick))
		r.Post("/{id}/dismiss", router.handler.Engagement(models.EngagementDismiss))
		r.Get("/{id}/stats", router.handler.Stats)
	})

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}

	reqs := router.cfg.RateLimitReqs
	window := router.cfg.RateLimitWindow
	if reqs <= 0 {
		reqs = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(reqs, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}
