// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package delivery

import "errors"

// Error taxonomy surfaced to callers. The HTTP layer maps these onto
// status codes; everything else is an internal error.
var (
	// ErrNotFound: the referenced banner does not exist or is not
	// resolvable (archived banners are not resolvable for engagement).
	ErrNotFound = errors.New("banner not found")

	// ErrPreconditionFailed: click/dismiss requested with no prior view
	// record for the (user, banner) pair.
	ErrPreconditionFailed = errors.New("engagement precondition failed")

	// ErrUnavailable: the durable store cannot be reached. The exposure
	// cache never produces this; it fails open instead.
	ErrUnavailable = errors.New("backing store unavailable")
)
