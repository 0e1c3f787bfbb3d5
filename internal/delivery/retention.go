// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package delivery

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/logging"
)

var retentionDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "engagement_retention_deleted_total",
		Help: "Total number of engagement records removed by the retention sweeper",
	},
)

// RetentionStore is the slice of the durable store the sweeper needs.
type RetentionStore interface {
	DeleteEngagementsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// RetentionSweeper deletes engagement records older than the configured
// maximum age in small rate-limited batches, keeping the store responsive
// while a large backlog drains. It implements suture.Service.
type RetentionSweeper struct {
	store   RetentionStore
	cfg     config.DeliveryConfig
	limiter *rate.Limiter
}

// NewRetentionSweeper creates a sweeper from the delivery configuration.
func NewRetentionSweeper(store RetentionStore, cfg config.DeliveryConfig) *RetentionSweeper {
	// One batch per second while draining a backlog.
	return &RetentionSweeper{
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Serve runs sweep rounds until ctx is cancelled.
func (s *RetentionSweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("Retention sweep failed")
			}
		}
	}
}

// sweep deletes expired records batch by batch until a batch comes back
// short, meaning the backlog is drained.
func (s *RetentionSweeper) sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.RetentionMaxAge)
	var total int64

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		deleted, err := s.store.DeleteEngagementsBefore(ctx, cutoff, s.cfg.RetentionBatchSize)
		if err != nil {
			return err
		}
		total += deleted
		retentionDeletedTotal.Add(float64(deleted))

		if deleted < int64(s.cfg.RetentionBatchSize) {
			break
		}
	}

	if total > 0 {
		logging.Info().Int64("deleted", total).Time("cutoff", cutoff).
			Msg("Retention sweep removed expired engagement records")
	}
	return nil
}
