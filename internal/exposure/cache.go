// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package exposure

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics.
var (
	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exposure_cache_operations_total",
			Help: "Total number of exposure cache operations",
		},
		[]string{"operation", "outcome"}, // operation: cooldown_check, shown_check, commit; outcome: hit, miss, success, failure
	)

	cacheFailOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exposure_cache_fail_open_total",
			Help: "Total number of cache failures answered fail-open",
		},
	)
)

// Cache gates banner delivery with expiring exposure markers.
type Cache interface {
	// InCooldown reports whether the user is inside the global
	// post-delivery cooldown window.
	InCooldown(ctx context.Context, userID string) (bool, error)

	// WasShown reports whether the per-(user, banner) marker exists.
	// repeatable selects which marker kind (and therefore TTL) applies.
	WasShown(ctx context.Context, userID, bannerID string, repeatable bool) (bool, error)

	// Commit records a delivery: it sets the user cooldown marker and the
	// per-banner marker in one atomic write. Committing a pair that
	// already has markers is not an error.
	Commit(ctx context.Context, userID, bannerID string, repeatable bool) error

	// Close releases the underlying store.
	Close() error
}
