// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package delivery orchestrates banner selection and engagement recording.
// It owns the request flow: cooldown short-circuit, eligibility filtering,
// exposure-capped selection, cache commit and best-effort view recording.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/database"
	"github.com/vitrine-app/vitrine/internal/eligibility"
	"github.com/vitrine-app/vitrine/internal/events"
	"github.com/vitrine-app/vitrine/internal/exposure"
	"github.com/vitrine-app/vitrine/internal/logging"
	"github.com/vitrine-app/vitrine/internal/models"
)

// Delivery metrics.
var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banner_deliveries_total",
			Help: "Total number of banners delivered",
		},
		[]string{"mode"},
	)

	suppressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banner_suppressions_total",
			Help: "Total number of requests answered with no banner",
		},
		[]string{"reason"}, // cooldown, no_candidates, all_capped
	)

	engagementOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banner_engagement_outcomes_total",
			Help: "Total number of engagement events by outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Catalog is the read-only banner definition source.
type Catalog interface {
	ListActiveCandidates(ctx context.Context, now time.Time) ([]models.BannerDefinition, error)
	GetBanner(ctx context.Context, id string) (*models.BannerDefinition, error)
}

// Ledger is the durable engagement store.
type Ledger interface {
	RecordView(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error)
	RecordClick(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error)
	RecordDismiss(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error)
	GetBannerStats(ctx context.Context, bannerID string, filter models.StatsFilter) (*models.BannerStats, error)
}

// Service is the selection orchestrator. It is stateless; all shared state
// lives in the cache and the two stores, so instances scale horizontally.
type Service struct {
	catalog Catalog
	ledger  Ledger
	cache   exposure.Cache
	emitter *events.Emitter
	mode    config.DeliveryMode
}

// NewService creates a delivery service. mode selects the production flow
// (DeliveryModeStandard) or the cap-free flow used in test environments.
func NewService(catalog Catalog, ledger Ledger, cache exposure.Cache, emitter *events.Emitter, mode config.DeliveryMode) *Service {
	return &Service{
		catalog: catalog,
		ledger:  ledger,
		cache:   cache,
		emitter: emitter,
		mode:    mode,
	}
}

// BannerForUser returns the best eligible banner for the user, or nil when
// none applies. A nil banner is a normal answer, not an error.
//
// In DeliveryModeBypassFrequencyCap every cache interaction is skipped:
// no cooldown check, no per-banner capping, no exposure commit. The mode
// exists for test environments only and is rejected by config validation
// in production.
func (s *Service) BannerForUser(ctx context.Context, user models.User) (*models.BannerDefinition, error) {
	now := time.Now().UTC()
	bypass := s.mode == config.DeliveryModeBypassFrequencyCap

	if !bypass {
		inCooldown, err := s.cache.InCooldown(ctx, user.ID)
		if err != nil {
			// The cache contract is fail-open; an error here means a
			// non-breaker cache was wired in. Treat it the same way.
			logging.Ctx(ctx).Warn().Err(err).Msg("Cooldown check failed, failing open")
		}
		if inCooldown {
			suppressionsTotal.WithLabelValues("cooldown").Inc()
			return nil, nil
		}
	}

	candidates, err := s.catalog.ListActiveCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%w: listing candidates: %v", ErrUnavailable, err)
	}

	eligible := eligibility.Filter(candidates, user.Role, now)
	if len(eligible) == 0 {
		suppressionsTotal.WithLabelValues("no_candidates").Inc()
		return nil, nil
	}

	var selected *models.BannerDefinition
	if bypass {
		selected = &eligible[0]
	} else {
		selected, err = pick(ctx, s.cache, user.ID, eligible)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Exposure check failed, failing open to best candidate")
			selected = &eligible[0]
		}
		if selected == nil {
			suppressionsTotal.WithLabelValues("all_capped").Inc()
			return nil, nil
		}

		// Commit before the view write: the cooldown must hold even if
		// the durable write below fails.
		if err := s.cache.Commit(ctx, user.ID, selected.ID, selected.Repeatable); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("banner_id", selected.ID).
				Msg("Exposure commit failed, delivering anyway")
		}
	}

	// Best-effort view record: the banner is already decided and the
	// cache markers are set, so losing the durable record is a logged
	// degradation, never a failed response.
	if outcome, _, err := s.ledger.RecordView(ctx, user.ID, selected.ID); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("user_id", user.ID).
			Str("banner_id", selected.ID).
			Msg("Failed to record delivery view")
	} else {
		engagementOutcomesTotal.WithLabelValues(string(models.EngagementView), string(outcome)).Inc()
	}

	deliveriesTotal.WithLabelValues(string(s.mode)).Inc()
	s.emitter.BannerDelivered(ctx, events.DeliveredEvent{
		UserID:      user.ID,
		BannerID:    selected.ID,
		Mode:        string(s.mode),
		DeliveredAt: now,
	})

	return selected, nil
}

// RecordEngagement validates the banner reference and applies one
// engagement event, returning the outcome tag and the updated record.
//
// The banner must exist and be active or draft. Accepting draft banners is
// a deliberate leniency for staging flows where engagement is exercised
// against unpublished banners; archived banners are not resolvable.
func (s *Service) RecordEngagement(ctx context.Context, user models.User, bannerID string, kind models.EngagementKind) (models.EngagementOutcome, *models.EngagementRecord, error) {
	banner, err := s.catalog.GetBanner(ctx, bannerID)
	if errors.Is(err, database.ErrBannerNotFound) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: resolving banner: %v", ErrUnavailable, err)
	}
	if banner.Status == models.BannerStatusArchived {
		return "", nil, ErrNotFound
	}

	var (
		outcome models.EngagementOutcome
		record  *models.EngagementRecord
	)
	switch kind {
	case models.EngagementView:
		outcome, record, err = s.ledger.RecordView(ctx, user.ID, bannerID)
	case models.EngagementClick:
		outcome, record, err = s.ledger.RecordClick(ctx, user.ID, bannerID)
	case models.EngagementDismiss:
		outcome, record, err = s.ledger.RecordDismiss(ctx, user.ID, bannerID)
	default:
		return "", nil, fmt.Errorf("unknown engagement kind %q", kind)
	}
	if errors.Is(err, database.ErrNoEngagement) {
		return "", nil, ErrPreconditionFailed
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: recording %s: %v", ErrUnavailable, kind, err)
	}

	engagementOutcomesTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	s.emitter.Engagement(ctx, events.EngagementEvent{
		UserID:     user.ID,
		BannerID:   bannerID,
		Kind:       kind,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	})

	return outcome, record, nil
}

// Stats returns engagement aggregates for an existing banner. Archived
// banners remain readable here; historical analytics outlive delivery.
func (s *Service) Stats(ctx context.Context, bannerID string, filter models.StatsFilter) (*models.BannerStats, error) {
	if _, err := s.catalog.GetBanner(ctx, bannerID); err != nil {
		if errors.Is(err, database.ErrBannerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: resolving banner: %v", ErrUnavailable, err)
	}

	stats, err := s.ledger.GetBannerStats(ctx, bannerID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregating stats: %v", ErrUnavailable, err)
	}
	return stats, nil
}
