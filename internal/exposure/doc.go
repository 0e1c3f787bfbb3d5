// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package exposure implements the ephemeral frequency-capping cache.
//
// Three marker kinds gate delivery, each expiring by TTL:
//
//   - cooldown:<user>           global per-user suppression after any delivery
//   - shown:<user>:<banner>     non-repeatable banner already delivered
//   - repeat:<user>:<banner>    repeatable banner minimum re-display interval
//
// Markers are advisory, not durable: losing them means a user may see a
// banner again sooner than intended, which is acceptable. The durable
// engagement ledger in the database package is the system of record.
//
// The cache is FAIL-OPEN: when it is unreachable or its circuit breaker is
// open, reads report "not capped" and delivery proceeds. Over-delivery
// during an outage is preferred to a banner blackout.
package exposure
