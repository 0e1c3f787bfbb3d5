// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-app/vitrine/internal/models"
	"github.com/vitrine-app/vitrine/internal/validation"
)

// statsRequest validates the stats query. From/To are optional RFC 3339
// timestamps bounding the viewed-at aggregation range.
type statsRequest struct {
	BannerID string `validate:"required,max=64"`
	From     string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To       string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Stats handles GET /banners/{id}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := statsRequest{
		BannerID: chi.URLParam(r, "id"),
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
	}
	if err := validation.ValidateStruct(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var filter models.StatsFilter
	if req.From != "" {
		from, _ := time.Parse(time.RFC3339, req.From)
		filter.From = &from
	}
	if req.To != "" {
		to, _ := time.Parse(time.RFC3339, req.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "to must not be before from")
		return
	}

	stats, err := h.service.Stats(r.Context(), req.BannerID, filter)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(stats)
}
