// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package models contains the shared data structures for banner delivery
// and engagement tracking.
package models

import "time"

// BannerStatus is the lifecycle status of a banner definition.
// Only active banners are ever candidates for delivery.
type BannerStatus string

const (
	BannerStatusDraft    BannerStatus = "draft"
	BannerStatusActive   BannerStatus = "active"
	BannerStatusArchived BannerStatus = "archived"
)

// ActionKind describes what happens when a banner is tapped.
type ActionKind string

const (
	ActionNone   ActionKind = "none"
	ActionLink   ActionKind = "link"
	ActionScreen ActionKind = "screen"
)

// MediaRef is an ordered reference to an uploaded media asset.
// Media management itself is handled by an external collaborator.
type MediaRef struct {
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order"`
}

// BannerAction is the tap action attached to a banner.
// Payload holds the link URL or in-app screen name depending on Kind.
type BannerAction struct {
	Kind    ActionKind `json:"kind"`
	Payload string     `json:"payload,omitempty"`
}

// BannerDefinition is a promotional banner as authored externally.
// The delivery engine treats these as read-only.
type BannerDefinition struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Media []MediaRef `json:"media,omitempty"`

	Action BannerAction `json:"action"`

	// StartAt defaults to the creation time; EndAt nil means open-ended.
	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	// Repeatable selects which exposure gate applies: the 24h repeat
	// marker (true) or the 7-day shown marker (false).
	Repeatable bool `json:"repeatable"`

	// Priority orders candidates; higher wins.
	Priority int `json:"priority"`

	// Roles restricts targeting; an empty set means all roles.
	Roles []string `json:"roles,omitempty"`

	Status BannerStatus `json:"status"`

	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InWindow reports whether now falls inside the banner's eligibility window.
func (b *BannerDefinition) InWindow(now time.Time) bool {
	if now.Before(b.StartAt) {
		return false
	}
	if b.EndAt != nil && now.After(*b.EndAt) {
		return false
	}
	return true
}

// TargetsRole reports whether the banner targets the given role.
// An empty role set targets every role.
func (b *BannerDefinition) TargetsRole(role string) bool {
	if len(b.Roles) == 0 {
		return true
	}
	for _, r := range b.Roles {
		if r == role {
			return true
		}
	}
	return false
}
