// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package events publishes delivery and engagement events over Watermill.
// Publishing is strictly best-effort: the delivery pipeline never fails or
// blocks on the message bus.
package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitrine-app/vitrine/internal/logging"
	"github.com/vitrine-app/vitrine/internal/models"
)

// Topics.
const (
	TopicBannerDelivered  = "vitrine.banner.delivered"
	TopicBannerEngagement = "vitrine.banner.engagement"
)

var eventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of event publish attempts",
	},
	[]string{"topic", "outcome"}, // outcome: success, failure
)

// DeliveredEvent is emitted when a banner is returned to a user.
type DeliveredEvent struct {
	UserID      string    `json:"user_id"`
	BannerID    string    `json:"banner_id"`
	Mode        string    `json:"mode"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// EngagementEvent is emitted for every recorded engagement, including
// idempotent repeats (the outcome field distinguishes them).
type EngagementEvent struct {
	UserID     string                   `json:"user_id"`
	BannerID   string                   `json:"banner_id"`
	Kind       models.EngagementKind    `json:"kind"`
	Outcome    models.EngagementOutcome `json:"outcome"`
	OccurredAt time.Time                `json:"occurred_at"`
}

// Emitter publishes Vitrine events. A nil publisher disables emission,
// turning every method into a no-op; callers never need to branch.
type Emitter struct {
	pub message.Publisher
}

// NewEmitter wraps a Watermill publisher. Pass nil to disable publishing.
func NewEmitter(pub message.Publisher) *Emitter {
	return &Emitter{pub: pub}
}

// BannerDelivered emits a DeliveredEvent.
func (e *Emitter) BannerDelivered(ctx context.Context, ev DeliveredEvent) {
	e.publish(ctx, TopicBannerDelivered, ev)
}

// Engagement emits an EngagementEvent.
func (e *Emitter) Engagement(ctx context.Context, ev EngagementEvent) {
	e.publish(ctx, TopicBannerEngagement, ev)
}

func (e *Emitter) publish(ctx context.Context, topic string, payload any) {
	if e == nil || e.pub == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		eventsPublishedTotal.WithLabelValues(topic, "failure").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := e.pub.Publish(topic, msg); err != nil {
		eventsPublishedTotal.WithLabelValues(topic, "failure").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
		return
	}

	eventsPublishedTotal.WithLabelValues(topic, "success").Inc()
}

// Close closes the underlying publisher, if any.
func (e *Emitter) Close() error {
	if e == nil || e.pub == nil {
		return nil
	}
	return e.pub.Close()
}
