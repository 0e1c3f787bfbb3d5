// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package delivery

import (
	"context"

	"github.com/vitrine-app/vitrine/internal/exposure"
	"github.com/vitrine-app/vitrine/internal/models"
)

// pick returns the first candidate the exposure cache allows, or nil when
// the list is empty or every candidate is capped. Candidates must already
// be ordered best-first; this function adds no ordering of its own.
func pick(ctx context.Context, cache exposure.Cache, userID string, candidates []models.BannerDefinition) (*models.BannerDefinition, error) {
	for i := range candidates {
		b := &candidates[i]
		shown, err := cache.WasShown(ctx, userID, b.ID, b.Repeatable)
		if err != nil {
			return nil, err
		}
		if !shown {
			return b, nil
		}
	}
	return nil, nil
}
