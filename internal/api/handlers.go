// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vitrine-app/vitrine/internal/delivery"
)

// Pinger reports backing store liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	service *delivery.Service
	db      Pinger
}

// NewHandler creates the handler set.
func NewHandler(service *delivery.Service, db Pinger) *Handler {
	return &Handler{service: service, db: db}
}

// HealthLive answers liveness probes: the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady answers readiness probes: the durable store is reachable.
// The exposure cache is deliberately not probed; it is fail-open and must
// not gate readiness.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database not reachable")
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"status": "ready"})
}
