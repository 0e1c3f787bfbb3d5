// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package models

import "time"

// EngagementOutcome is the idempotent result tag of an engagement write.
type EngagementOutcome string

const (
	OutcomeCreated          EngagementOutcome = "created"
	OutcomeUpdated          EngagementOutcome = "updated"
	OutcomeAlreadyViewed    EngagementOutcome = "already_viewed"
	OutcomeClicked          EngagementOutcome = "clicked"
	OutcomeAlreadyClicked   EngagementOutcome = "already_clicked"
	OutcomeDismissed        EngagementOutcome = "dismissed"
	OutcomeAlreadyDismissed EngagementOutcome = "already_dismissed"
)

// EngagementKind identifies a user-initiated engagement event.
type EngagementKind string

const (
	EngagementView    EngagementKind = "view"
	EngagementClick   EngagementKind = "click"
	EngagementDismiss EngagementKind = "dismiss"
)

// EngagementRecord is the durable per-(user, banner) engagement ledger entry.
// Exactly one record may exist per pair; it is created lazily on first view
// and mutated in place by click/dismiss events.
type EngagementRecord struct {
	UserID   string `json:"user_id"`
	BannerID string `json:"banner_id"`

	// ViewedAt is set at most once, by the first successful view.
	ViewedAt *time.Time `json:"viewed_at,omitempty"`

	// Clicked and Dismissed are independent flags; both require a prior view.
	Clicked     bool       `json:"clicked"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	Dismissed   bool       `json:"dismissed"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	// Repeat-view analytics counters.
	ViewCount    int64      `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CTR returns the per-record click-through contribution: 1 if the record
// was both viewed and clicked, otherwise 0.
func (r *EngagementRecord) CTR() int {
	if r.ViewedAt != nil && r.Clicked {
		return 1
	}
	return 0
}

// BannerStats aggregates engagement for a single banner.
type BannerStats struct {
	BannerID       string     `json:"banner_id"`
	TotalViews     int64      `json:"total_views"`
	TotalClicks    int64      `json:"total_clicks"`
	TotalDismisses int64      `json:"total_dismisses"`
	UniqueUsers    int64      `json:"unique_users"`
	CTR            float64    `json:"ctr"`
	DismissRate    float64    `json:"dismiss_rate"`
	FirstView      *time.Time `json:"first_view,omitempty"`
	LastView       *time.Time `json:"last_view,omitempty"`
}

// StatsFilter optionally restricts stats aggregation to a viewed-at range.
type StatsFilter struct {
	From *time.Time
	To   *time.Time
}

// User is the per-request identity supplied by the external session
// collaborator. The engine never issues or validates credentials.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}
