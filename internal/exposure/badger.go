// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package exposure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/logging"
)

// BadgerCache stores exposure markers in BadgerDB, relying on its native
// TTL expiry so stale markers never need an explicit sweep.
type BadgerCache struct {
	db  *badger.DB
	cfg *config.CacheConfig
}

// NewBadgerCache opens the marker store at cfg.Path, or in memory when
// cfg.InMemory is set (markers then die with the process).
func NewBadgerCache(cfg *config.CacheConfig) (*BadgerCache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for exposure markers: %w", err)
	}

	return &BadgerCache{db: db, cfg: cfg}, nil
}

func cooldownKey(userID string) []byte {
	return []byte("cooldown:" + userID)
}

func markerKey(userID, bannerID string, repeatable bool) []byte {
	if repeatable {
		return []byte("repeat:" + userID + ":" + bannerID)
	}
	return []byte("shown:" + userID + ":" + bannerID)
}

// InCooldown reports whether the global cooldown marker exists. Badger
// treats expired entries as absent, so TTL expiry needs no handling here.
func (c *BadgerCache) InCooldown(ctx context.Context, userID string) (bool, error) {
	found, err := c.exists(cooldownKey(userID))
	if err != nil {
		cacheOperationsTotal.WithLabelValues("cooldown_check", "failure").Inc()
		return false, err
	}
	if found {
		cacheOperationsTotal.WithLabelValues("cooldown_check", "hit").Inc()
	} else {
		cacheOperationsTotal.WithLabelValues("cooldown_check", "miss").Inc()
	}
	return found, nil
}

// WasShown reports whether the per-(user, banner) marker exists.
func (c *BadgerCache) WasShown(ctx context.Context, userID, bannerID string, repeatable bool) (bool, error) {
	found, err := c.exists(markerKey(userID, bannerID, repeatable))
	if err != nil {
		cacheOperationsTotal.WithLabelValues("shown_check", "failure").Inc()
		return false, err
	}
	if found {
		cacheOperationsTotal.WithLabelValues("shown_check", "hit").Inc()
	} else {
		cacheOperationsTotal.WithLabelValues("shown_check", "miss").Inc()
	}
	return found, nil
}

func (c *BadgerCache) exists(key []byte) (bool, error) {
	var found bool
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read exposure marker: %w", err)
	}
	return found, nil
}

// Commit sets the cooldown marker and the per-banner marker atomically.
// The cooldown marker is always refreshed; the per-banner marker is
// set-if-absent so a racing delivery cannot shorten an existing expiry.
func (c *BadgerCache) Commit(ctx context.Context, userID, bannerID string, repeatable bool) error {
	markerTTL := c.cfg.ShownTTL
	if repeatable {
		markerTTL = c.cfg.RepeatTTL
	}

	now := []byte(time.Now().UTC().Format(time.RFC3339))

	err := c.db.Update(func(txn *badger.Txn) error {
		cd := badger.NewEntry(cooldownKey(userID), now).WithTTL(c.cfg.CooldownTTL)
		if err := txn.SetEntry(cd); err != nil {
			return err
		}

		key := markerKey(userID, bannerID, repeatable)
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.SetEntry(badger.NewEntry(key, now).WithTTL(markerTTL))
		}
		return err
	})
	if errors.Is(err, badger.ErrConflict) {
		// Lost a write race with another delivery for the same user; the
		// winner's markers serve the same purpose.
		logging.Debug().Str("user_id", userID).Str("banner_id", bannerID).
			Msg("Exposure commit lost write race, markers already set")
		cacheOperationsTotal.WithLabelValues("commit", "success").Inc()
		return nil
	}
	if err != nil {
		cacheOperationsTotal.WithLabelValues("commit", "failure").Inc()
		return fmt.Errorf("commit exposure markers: %w", err)
	}

	cacheOperationsTotal.WithLabelValues("commit", "success").Inc()
	return nil
}

// Close closes the underlying BadgerDB.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
