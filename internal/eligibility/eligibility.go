// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package eligibility applies the pure, side-effect-free banner filters:
// lifecycle status, time window and role targeting. Frequency capping is
// deliberately not here; it lives in the exposure cache and is applied by
// the delivery service.
package eligibility

import (
	"sort"
	"time"

	"github.com/vitrine-app/vitrine/internal/models"
)

// Filter returns the banners eligible for the given role at now, ordered
// best-first: higher priority wins, ties go to the newer banner.
//
// The input is not mutated; candidates arrive pre-filtered by status from
// the catalog query, but every rule is re-checked here so the function is
// correct on any input.
func Filter(candidates []models.BannerDefinition, role string, now time.Time) []models.BannerDefinition {
	eligible := make([]models.BannerDefinition, 0, len(candidates))
	for _, b := range candidates {
		if b.Status != models.BannerStatusActive {
			continue
		}
		if !b.InWindow(now) {
			continue
		}
		if !b.TargetsRole(role) {
			continue
		}
		eligible = append(eligible, b)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	return eligible
}
