// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vitrine-app/vitrine/internal/models"
)

// GetBannerStats aggregates engagement for one banner, optionally scoped to
// a viewed-at range. Rates are computed in Go so that an unviewed banner
// reports 0.0 rather than a division error.
//
// Unique view counting: total_views counts records with a viewed_at set, so
// repeat views by the same user contribute once. CTR is clicks over those
// unique views.
func (db *DB) GetBannerStats(ctx context.Context, bannerID string, filter models.StatsFilter) (*models.BannerStats, error) {
	query := `SELECT
		COUNT(*) FILTER (viewed_at IS NOT NULL) AS total_views,
		COUNT(*) FILTER (clicked) AS total_clicks,
		COUNT(*) FILTER (dismissed) AS total_dismisses,
		COUNT(DISTINCT user_id) AS unique_users,
		MIN(viewed_at) AS first_view,
		MAX(viewed_at) AS last_view
	FROM banner_engagements
	WHERE banner_id = ?`

	args := []any{bannerID}
	if filter.From != nil {
		query += " AND viewed_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND viewed_at < ?"
		args = append(args, filter.To.UTC())
	}

	stats := models.BannerStats{BannerID: bannerID}

	var firstView, lastView sql.NullTime
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalViews,
		&stats.TotalClicks,
		&stats.TotalDismisses,
		&stats.UniqueUsers,
		&firstView,
		&lastView,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate banner stats: %w", err)
	}

	stats.FirstView = nullTimePtr(firstView)
	stats.LastView = nullTimePtr(lastView)

	if stats.TotalViews > 0 {
		stats.CTR = float64(stats.TotalClicks) / float64(stats.TotalViews)
		stats.DismissRate = float64(stats.TotalDismisses) / float64(stats.TotalViews)
	}

	return &stats, nil
}
