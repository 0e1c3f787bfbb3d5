// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitrine-app/vitrine/internal/logging"
	"github.com/vitrine-app/vitrine/internal/models"
)

// CountBanners returns the total number of banner definitions.
func (db *DB) CountBanners(ctx context.Context) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM banners`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count banners: %w", err)
	}
	return count, nil
}

// SeedDemoBanners populates the catalog with a small demo set when it is
// empty. It is a no-op on a catalog that already has banners, so restarts
// never duplicate or overwrite authored content.
func (db *DB) SeedDemoBanners(ctx context.Context) error {
	count, err := db.CountBanners(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logging.Debug().Int64("banners", count).Msg("Banner catalog already populated, skipping demo seed")
		return nil
	}

	now := time.Now().UTC()
	weekEnd := now.Add(7 * 24 * time.Hour)

	demo := []models.BannerDefinition{
		{
			ID:    uuid.NewString(),
			Title: "Welcome to Vitrine",
			Media: []models.MediaRef{{URL: "https://cdn.vitrine.example/welcome.png", SortOrder: 0}},
			Action: models.BannerAction{
				Kind:    models.ActionScreen,
				Payload: "onboarding",
			},
			StartAt:    now,
			Repeatable: false,
			Priority:   100,
			Status:     models.BannerStatusActive,
			CreatedBy:  "seed",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:    uuid.NewString(),
			Title: "Daily check-in reminder",
			Media: []models.MediaRef{{URL: "https://cdn.vitrine.example/checkin.png", SortOrder: 0}},
			Action: models.BannerAction{
				Kind:    models.ActionLink,
				Payload: "https://vitrine.example/checkin",
			},
			StartAt:    now,
			Repeatable: true,
			Priority:   50,
			Status:     models.BannerStatusActive,
			CreatedBy:  "seed",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:    uuid.NewString(),
			Title: "Moderator tools tour",
			Action: models.BannerAction{
				Kind:    models.ActionScreen,
				Payload: "moderator-tour",
			},
			StartAt:    now,
			EndAt:      &weekEnd,
			Repeatable: false,
			Priority:   75,
			Roles:      []string{"moderator", "admin"},
			Status:     models.BannerStatusActive,
			CreatedBy:  "seed",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	for i := range demo {
		if err := db.PutBanner(ctx, &demo[i]); err != nil {
			return fmt.Errorf("failed to seed banner %q: %w", demo[i].Title, err)
		}
	}

	logging.Info().Int("banners", len(demo)).Msg("Seeded demo banner catalog")
	return nil
}
