// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package exposure

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/vitrine-app/vitrine/internal/logging"
)

var breakerState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "exposure_cache_breaker_state",
		Help: "Exposure cache circuit breaker state (0=closed, 1=half-open, 2=open)",
	},
)

// BreakerCache wraps a Cache with a circuit breaker and converts failures
// into fail-open answers: when the inner cache errors or the circuit is
// open, checks report "not capped" and commits are dropped. Frequency caps
// degrade during an outage; delivery never stops.
type BreakerCache struct {
	inner Cache
	cb    *gobreaker.CircuitBreaker[bool]
}

// NewBreakerCache wraps inner with a circuit breaker. The breaker trips at
// a 60% failure ratio over at least 10 requests and probes again after 30s.
func NewBreakerCache(inner Cache) *BreakerCache {
	settings := gobreaker.Settings{
		Name:    "exposure-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Exposure cache circuit breaker state change")
		},
	}
	return &BreakerCache{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[bool](settings),
	}
}

// InCooldown returns the inner answer, or false (deliver) on failure.
func (c *BreakerCache) InCooldown(ctx context.Context, userID string) (bool, error) {
	found, err := c.cb.Execute(func() (bool, error) {
		return c.inner.InCooldown(ctx, userID)
	})
	if err != nil {
		c.failOpen(err, "cooldown_check")
		return false, nil
	}
	return found, nil
}

// WasShown returns the inner answer, or false (deliver) on failure.
func (c *BreakerCache) WasShown(ctx context.Context, userID, bannerID string, repeatable bool) (bool, error) {
	found, err := c.cb.Execute(func() (bool, error) {
		return c.inner.WasShown(ctx, userID, bannerID, repeatable)
	})
	if err != nil {
		c.failOpen(err, "shown_check")
		return false, nil
	}
	return found, nil
}

// Commit is best-effort: a failed commit is logged and dropped so the
// delivery that triggered it still completes.
func (c *BreakerCache) Commit(ctx context.Context, userID, bannerID string, repeatable bool) error {
	_, err := c.cb.Execute(func() (bool, error) {
		return false, c.inner.Commit(ctx, userID, bannerID, repeatable)
	})
	if err != nil {
		c.failOpen(err, "commit")
	}
	return nil
}

// Close closes the inner cache directly; the breaker must not block
// shutdown.
func (c *BreakerCache) Close() error {
	return c.inner.Close()
}

func (c *BreakerCache) failOpen(err error, operation string) {
	cacheFailOpenTotal.Inc()
	logging.Warn().Err(err).
		Str("operation", operation).
		Str("breaker_state", c.cb.State().String()).
		Msg("Exposure cache unavailable, failing open")
}
