// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Banner catalog queries. The engine only reads banner definitions;
// authoring is handled by an external collaborator writing to the same
// table. PutBanner exists for the seeding path and tests.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/vitrine-app/vitrine/internal/models"
)

// ErrBannerNotFound is returned when a banner id does not resolve.
var ErrBannerNotFound = errors.New("banner not found")

const bannerColumns = `id, title, media, action_kind, action_payload, start_at, end_at,
	repeatable, priority, roles, status, created_by, updated_by, created_at, updated_at`

// ListActiveCandidates returns all banners with status active whose
// eligibility window contains now. Ordering is left to the eligibility
// filter, which also applies role targeting.
func (db *DB) ListActiveCandidates(ctx context.Context, now time.Time) ([]models.BannerDefinition, error) {
	query := `SELECT ` + bannerColumns + `
		FROM banners
		WHERE status = ? AND start_at <= ? AND (end_at IS NULL OR end_at >= ?)`

	rows, err := db.conn.QueryContext(ctx, query, string(models.BannerStatusActive), now.UTC(), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query active banners: %w", err)
	}
	defer rows.Close()

	var banners []models.BannerDefinition
	for rows.Next() {
		banner, err := scanBanner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan banner: %w", err)
		}
		banners = append(banners, banner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating banners: %w", err)
	}

	return banners, nil
}

// GetBanner returns a single banner definition by id.
// Returns ErrBannerNotFound if the id does not exist.
func (db *DB) GetBanner(ctx context.Context, id string) (*models.BannerDefinition, error) {
	query := `SELECT ` + bannerColumns + ` FROM banners WHERE id = ?`

	row := db.conn.QueryRowContext(ctx, query, id)
	banner, err := scanBanner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBannerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get banner %s: %w", id, err)
	}

	return &banner, nil
}

// PutBanner inserts or replaces a banner definition.
// Used by the demo seeding path and tests; production authoring writes
// through the external banner management service.
func (db *DB) PutBanner(ctx context.Context, banner *models.BannerDefinition) error {
	media, err := json.Marshal(banner.Media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}
	roles, err := json.Marshal(banner.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}

	query := `INSERT OR REPLACE INTO banners (` + bannerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var endAt interface{}
	if banner.EndAt != nil {
		endAt = banner.EndAt.UTC()
	}

	_, err = db.conn.ExecContext(ctx, query,
		banner.ID,
		banner.Title,
		string(media),
		string(banner.Action.Kind),
		banner.Action.Payload,
		banner.StartAt.UTC(),
		endAt,
		banner.Repeatable,
		banner.Priority,
		string(roles),
		string(banner.Status),
		banner.CreatedBy,
		banner.UpdatedBy,
		banner.CreatedAt.UTC(),
		banner.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to put banner %s: %w", banner.ID, err)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBanner(row rowScanner) (models.BannerDefinition, error) {
	var (
		banner        models.BannerDefinition
		media         sql.NullString
		actionKind    string
		actionPayload sql.NullString
		endAt         sql.NullTime
		roles         sql.NullString
		status        string
		createdBy     sql.NullString
		updatedBy     sql.NullString
	)

	err := row.Scan(
		&banner.ID,
		&banner.Title,
		&media,
		&actionKind,
		&actionPayload,
		&banner.StartAt,
		&endAt,
		&banner.Repeatable,
		&banner.Priority,
		&roles,
		&status,
		&createdBy,
		&updatedBy,
		&banner.CreatedAt,
		&banner.UpdatedAt,
	)
	if err != nil {
		return banner, err
	}

	banner.Action = models.BannerAction{
		Kind:    models.ActionKind(actionKind),
		Payload: actionPayload.String,
	}
	banner.Status = models.BannerStatus(status)
	banner.CreatedBy = createdBy.String
	banner.UpdatedBy = updatedBy.String
	if endAt.Valid {
		t := endAt.Time
		banner.EndAt = &t
	}
	if media.Valid && media.String != "" {
		if err := json.Unmarshal([]byte(media.String), &banner.Media); err != nil {
			return banner, fmt.Errorf("failed to unmarshal media for banner %s: %w", banner.ID, err)
		}
	}
	if roles.Valid && roles.String != "" {
		if err := json.Unmarshal([]byte(roles.String), &banner.Roles); err != nil {
			return banner, fmt.Errorf("failed to unmarshal roles for banner %s: %w", banner.ID, err)
		}
	}

	return banner, nil
}
