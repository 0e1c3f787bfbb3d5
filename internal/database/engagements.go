// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Engagement ledger writes. All three operations are idempotent: repeat
// calls return an already_* outcome and leave the record unchanged.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitrine-app/vitrine/internal/models"
)

// ErrNoEngagement is returned when click/dismiss is requested for a pair
// that has no prior view record.
var ErrNoEngagement = errors.New("no engagement record for user and banner")

// acquirePairLock acquires the per-(user, banner) write mutex. DuckDB
// uses optimistic concurrency and aborts conflicting writers, so writes
// to the same row are serialized in-process instead.
func (db *DB) acquirePairLock(userID, bannerID string) *sync.Mutex {
	muInterface, _ := db.pairLocks.LoadOrStore(userID+"\x00"+bannerID, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		db.pairLocks.Store(userID+"\x00"+bannerID, mu)
	}
	mu.Lock()
	return mu
}

// isWriteConflict reports whether err is a DuckDB transaction conflict.
// These are expected under concurrent engagement traffic and safe to
// retry; the operations themselves are idempotent.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "write-write conflict") ||
		strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "Conflict on tuple deletion")
}

// withConflictRetry runs fn up to three times with exponential backoff
// (1ms, 2ms) while it keeps returning a write conflict. Other errors are
// returned immediately.
func (db *DB) withConflictRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isWriteConflict(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

const engagementColumns = `user_id, banner_id, viewed_at, clicked, clicked_at,
	dismissed, dismissed_at, view_count, last_viewed_at, created_at, updated_at`

// RecordView upserts the engagement record for (userID, bannerID).
//
// The insert races safely under concurrency: the composite primary key
// guarantees a single winning record, and losers take the update path.
// viewed_at is set at most once; repeat views only bump view_count and
// last_viewed_at.
func (db *DB) RecordView(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	mu := db.acquirePairLock(userID, bannerID)
	defer mu.Unlock()

	var (
		outcome models.EngagementOutcome
		record  *models.EngagementRecord
	)
	err := db.withConflictRetry(ctx, func() error {
		var err error
		outcome, record, err = db.recordView(ctx, userID, bannerID)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, record, nil
}

func (db *DB) recordView(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO banner_engagements (user_id, banner_id, viewed_at, view_count, last_viewed_at, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT (user_id, banner_id) DO NOTHING`,
		userID, bannerID, now, now, now, now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to insert engagement: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		record, err := db.GetEngagement(ctx, userID, bannerID)
		if err != nil {
			return "", nil, err
		}
		return models.OutcomeCreated, record, nil
	}

	// Record already exists: idempotent no-op for viewed_at, but repeat
	// views still count for analytics.
	existing, err := db.GetEngagement(ctx, userID, bannerID)
	if err != nil {
		return "", nil, err
	}

	outcome := models.OutcomeAlreadyViewed
	if existing.ViewedAt == nil {
		// Tolerated anomaly: a record without viewed_at (e.g. created by
		// a partial write) gets its view timestamp backfilled here.
		outcome = models.OutcomeUpdated
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE banner_engagements
		 SET viewed_at = COALESCE(viewed_at, ?),
		     view_count = view_count + 1,
		     last_viewed_at = ?,
		     updated_at = ?
		 WHERE user_id = ? AND banner_id = ?`,
		now, now, now, userID, bannerID,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to update engagement: %w", err)
	}

	record, err := db.GetEngagement(ctx, userID, bannerID)
	if err != nil {
		return "", nil, err
	}
	return outcome, record, nil
}

// RecordClick marks the engagement record clicked.
//
// Precondition: a record must exist (a banner cannot be clicked before it
// was delivered). Returns ErrNoEngagement otherwise. A second click is an
// idempotent no-op returning already_clicked.
func (db *DB) RecordClick(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	return db.recordFlag(ctx, userID, bannerID, "clicked", "clicked_at",
		models.OutcomeClicked, models.OutcomeAlreadyClicked)
}

// RecordDismiss marks the engagement record dismissed, symmetric to
// RecordClick. Clicked and dismissed are independent flags; both may be
// set on the same record.
func (db *DB) RecordDismiss(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	return db.recordFlag(ctx, userID, bannerID, "dismissed", "dismissed_at",
		models.OutcomeDismissed, models.OutcomeAlreadyDismissed)
}

// recordFlag implements the shared click/dismiss transition. flagCol and
// atCol are trusted compile-time constants, never user input.
func (db *DB) recordFlag(ctx context.Context, userID, bannerID, flagCol, atCol string, done, already models.EngagementOutcome) (models.EngagementOutcome, *models.EngagementRecord, error) {
	mu := db.acquirePairLock(userID, bannerID)
	defer mu.Unlock()

	var (
		outcome models.EngagementOutcome
		record  *models.EngagementRecord
	)
	err := db.withConflictRetry(ctx, func() error {
		var err error
		outcome, record, err = db.recordFlagOnce(ctx, userID, bannerID, flagCol, atCol, done, already)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, record, nil
}

func (db *DB) recordFlagOnce(ctx context.Context, userID, bannerID, flagCol, atCol string, done, already models.EngagementOutcome) (models.EngagementOutcome, *models.EngagementRecord, error) {
	existing, err := db.GetEngagement(ctx, userID, bannerID)
	if errors.Is(err, ErrNoEngagement) {
		return "", nil, ErrNoEngagement
	}
	if err != nil {
		return "", nil, err
	}

	alreadySet := (flagCol == "clicked" && existing.Clicked) ||
		(flagCol == "dismissed" && existing.Dismissed)
	if alreadySet {
		return already, existing, nil
	}

	now := time.Now().UTC()

	// viewed_at is backfilled if somehow unset: a click/dismiss implies
	// the banner was seen.
	query := fmt.Sprintf(
		`UPDATE banner_engagements
		 SET %s = true, %s = ?, viewed_at = COALESCE(viewed_at, ?), updated_at = ?
		 WHERE user_id = ? AND banner_id = ?`,
		flagCol, atCol,
	)
	if _, err := db.conn.ExecContext(ctx, query, now, now, now, userID, bannerID); err != nil {
		return "", nil, fmt.Errorf("failed to update engagement %s: %w", flagCol, err)
	}

	record, err := db.GetEngagement(ctx, userID, bannerID)
	if err != nil {
		return "", nil, err
	}
	return done, record, nil
}

// GetEngagement returns the engagement record for (userID, bannerID), or
// ErrNoEngagement if none exists.
func (db *DB) GetEngagement(ctx context.Context, userID, bannerID string) (*models.EngagementRecord, error) {
	query := `SELECT ` + engagementColumns + `
		FROM banner_engagements WHERE user_id = ? AND banner_id = ?`

	row := db.conn.QueryRowContext(ctx, query, userID, bannerID)

	var (
		record       models.EngagementRecord
		viewedAt     sql.NullTime
		clickedAt    sql.NullTime
		dismissedAt  sql.NullTime
		lastViewedAt sql.NullTime
	)
	err := row.Scan(
		&record.UserID,
		&record.BannerID,
		&viewedAt,
		&record.Clicked,
		&clickedAt,
		&record.Dismissed,
		&dismissedAt,
		&record.ViewCount,
		&lastViewedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEngagement
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}

	record.ViewedAt = nullTimePtr(viewedAt)
	record.ClickedAt = nullTimePtr(clickedAt)
	record.DismissedAt = nullTimePtr(dismissedAt)
	record.LastViewedAt = nullTimePtr(lastViewedAt)

	return &record, nil
}

// DeleteEngagementsBefore removes up to limit engagement records created
// before cutoff. Used by the retention sweeper; returns the number of
// records deleted.
func (db *DB) DeleteEngagementsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM banner_engagements
		 WHERE (user_id, banner_id) IN (
		     SELECT user_id, banner_id FROM banner_engagements
		     WHERE created_at < ? LIMIT ?
		 )`,
		cutoff.UTC(), limit,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired engagements: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // driver without RowsAffected support; count is advisory
	}
	return deleted, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
