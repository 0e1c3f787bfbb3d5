// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

// Package database provides data access over DuckDB for the two durable
// stores: banner definitions (read-only to the engine) and the per-user
// per-banner engagement ledger.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Per-pair write locks for concurrent engagement upserts. DuckDB
	// aborts conflicting writers instead of serializing them, so
	// same-pair writes are serialized in-process.
	pairLocks sync.Map
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments; nothing here needs them.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initialize(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database after failed init")
		}
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close flushes the WAL via CHECKPOINT and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		// Best effort; a missed checkpoint only slows the next startup.
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// initialize creates tables and indexes.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.createTables(ctx); err != nil {
		return err
	}
	return db.createIndexes(ctx)
}

func (db *DB) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS banners (
			id VARCHAR PRIMARY KEY,
			title VARCHAR NOT NULL,
			media VARCHAR,
			action_kind VARCHAR NOT NULL DEFAULT 'none',
			action_payload VARCHAR,
			start_at TIMESTAMP NOT NULL,
			end_at TIMESTAMP,
			repeatable BOOLEAN NOT NULL DEFAULT false,
			priority INTEGER NOT NULL DEFAULT 0,
			roles VARCHAR,
			status VARCHAR NOT NULL DEFAULT 'draft',
			created_by VARCHAR,
			updated_by VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		// The composite primary key is the uniqueness guarantee for
		// concurrent first-view upserts: racing inserts resolve to a
		// single winning record, losers observe the existing row.
		`CREATE TABLE IF NOT EXISTS banner_engagements (
			user_id VARCHAR NOT NULL,
			banner_id VARCHAR NOT NULL,
			viewed_at TIMESTAMP,
			clicked BOOLEAN NOT NULL DEFAULT false,
			clicked_at TIMESTAMP,
			dismissed BOOLEAN NOT NULL DEFAULT false,
			dismissed_at TIMESTAMP,
			view_count BIGINT NOT NULL DEFAULT 0,
			last_viewed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, banner_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (db *DB) createIndexes(ctx context.Context) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_banners_status ON banners (status)`,
		`CREATE INDEX IF NOT EXISTS idx_banners_window ON banners (start_at, end_at)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_banner ON banner_engagements (banner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_viewed_at ON banner_engagements (viewed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_clicked_at ON banner_engagements (clicked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_created_at ON banner_engagements (created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
