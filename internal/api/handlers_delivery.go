// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-app/vitrine/internal/auth"
	"github.com/vitrine-app/vitrine/internal/models"
	"github.com/vitrine-app/vitrine/internal/validation"
)

// engagementRequest is the validated shape of an engagement call. Kind
// comes from the route, BannerID from the path parameter.
type engagementRequest struct {
	BannerID string `validate:"required,max=64"`
	Kind     string `validate:"required,oneof=view click dismiss"`
}

// engagementResponse mirrors the contract: the idempotent outcome tag
// plus an engagement record snapshot.
type engagementResponse struct {
	Action string                   `json:"action"`
	Record *models.EngagementRecord `json:"record"`
}

// BannerForUser returns the best eligible banner for the authenticated
// user, or data=null when none applies. "No banner" is a 200.
func (h *Handler) BannerForUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	banner, err := h.service.BannerForUser(r.Context(), user)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	if banner == nil {
		rw.Success(nil)
		return
	}
	rw.Success(banner)
}

// Engagement handles POST /banners/{id}/{view|click|dismiss}. The kind is
// bound by the router, so each route stays an explicit, greppable line.
func (h *Handler) Engagement(kind models.EngagementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
			return
		}

		req := engagementRequest{
			BannerID: chi.URLParam(r, "id"),
			Kind:     string(kind),
		}
		if err := validation.ValidateStruct(&req); err != nil {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}

		outcome, record, err := h.service.RecordEngagement(r.Context(), user, req.BannerID, kind)
		if err != nil {
			rw.ServiceError(err)
			return
		}

		rw.Success(engagementResponse{
			Action: string(outcome),
			Record: record,
		})
	}
}
