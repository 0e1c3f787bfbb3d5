// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package database

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/vitrine-app/vitrine/internal/models"
)

func TestGetBannerStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// 10 viewers, 3 of whom click, 2 of whom dismiss.
	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if _, _, err := db.RecordView(ctx, userID, "banner-1"); err != nil {
			t.Fatalf("RecordView failed: %v", err)
		}
		if i < 3 {
			if _, _, err := db.RecordClick(ctx, userID, "banner-1"); err != nil {
				t.Fatalf("RecordClick failed: %v", err)
			}
		}
		if i >= 8 {
			if _, _, err := db.RecordDismiss(ctx, userID, "banner-1"); err != nil {
				t.Fatalf("RecordDismiss failed: %v", err)
			}
		}
	}

	// Noise on another banner must not leak in.
	if _, _, err := db.RecordView(ctx, "user-0", "banner-2"); err != nil {
		t.Fatalf("RecordView failed: %v", err)
	}

	stats, err := db.GetBannerStats(ctx, "banner-1", models.StatsFilter{})
	if err != nil {
		t.Fatalf("GetBannerStats failed: %v", err)
	}

	if stats.TotalViews != 10 {
		t.Errorf("TotalViews = %d, want 10", stats.TotalViews)
	}
	if stats.TotalClicks != 3 {
		t.Errorf("TotalClicks = %d, want 3", stats.TotalClicks)
	}
	if stats.TotalDismisses != 2 {
		t.Errorf("TotalDismisses = %d, want 2", stats.TotalDismisses)
	}
	if stats.UniqueUsers != 10 {
		t.Errorf("UniqueUsers = %d, want 10", stats.UniqueUsers)
	}
	if math.Abs(stats.CTR-0.3) > 1e-9 {
		t.Errorf("CTR = %f, want 0.3", stats.CTR)
	}
	if math.Abs(stats.DismissRate-0.2) > 1e-9 {
		t.Errorf("DismissRate = %f, want 0.2", stats.DismissRate)
	}
	if stats.FirstView == nil || stats.LastView == nil {
		t.Error("FirstView/LastView not populated")
	}
}

func TestGetBannerStatsNoViews(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.GetBannerStats(context.Background(), "unseen-banner", models.StatsFilter{})
	if err != nil {
		t.Fatalf("GetBannerStats failed: %v", err)
	}

	// Zero views must produce zero rates, not a division error.
	if stats.TotalViews != 0 || stats.CTR != 0 || stats.DismissRate != 0 {
		t.Errorf("Empty stats = %+v, want all zeroes", stats)
	}
	if stats.FirstView != nil || stats.LastView != nil {
		t.Error("FirstView/LastView must be nil with no views")
	}
}

func TestGetBannerStatsRangeFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.RecordView(ctx, "user-1", "banner-1"); err != nil {
		t.Fatalf("RecordView failed: %v", err)
	}

	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	stats, err := db.GetBannerStats(ctx, "banner-1", models.StatsFilter{From: &past, To: &future})
	if err != nil {
		t.Fatalf("GetBannerStats with range failed: %v", err)
	}
	if stats.TotalViews != 1 {
		t.Errorf("TotalViews in covering range = %d, want 1", stats.TotalViews)
	}

	stats, err = db.GetBannerStats(ctx, "banner-1", models.StatsFilter{From: &future})
	if err != nil {
		t.Fatalf("GetBannerStats with future range failed: %v", err)
	}
	if stats.TotalViews != 0 {
		t.Errorf("TotalViews in future range = %d, want 0", stats.TotalViews)
	}
}
