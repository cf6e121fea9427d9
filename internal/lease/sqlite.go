// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lease

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leases (
	key TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at_ms INTEGER NOT NULL
);`

// SQLiteStore keeps leases in a shared SQLite database so separate processes
// on one host exclude each other.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates the leases table on db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := sqlite.Migrate(ctx, db, sqliteSchemaVersion, sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Lease{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	var currentOwner string
	var currentExpires int64
	err = tx.QueryRowContext(ctx, "SELECT owner, expires_at_ms FROM leases WHERE key = ?", key).Scan(&currentOwner, &currentExpires)
	if err == nil {
		if currentExpires > now.UnixMilli() && currentOwner != owner {
			return Lease{Key: key, Owner: currentOwner, ExpiresAt: time.UnixMilli(currentExpires)}, false, nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Lease{}, false, err
	}

	expiresAt := now.Add(ttl).UnixMilli()
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO leases (key, owner, expires_at_ms) VALUES (?, ?, ?)", key, owner, expiresAt); err != nil {
		return Lease{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Lease{}, false, err
	}
	return Lease{Key: key, Owner: owner, ExpiresAt: time.UnixMilli(expiresAt)}, true, nil
}

func (s *SQLiteStore) Renew(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	return s.TryAcquire(ctx, key, owner, ttl)
}

func (s *SQLiteStore) Release(ctx context.Context, key, owner string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM leases WHERE key = ? AND owner = ?", key, owner)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Lease, bool, error) {
	var owner string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, "SELECT owner, expires_at_ms FROM leases WHERE key = ? AND expires_at_ms > ?",
		key, time.Now().UnixMilli()).Scan(&owner, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, err
	}
	return Lease{Key: key, Owner: owner, ExpiresAt: time.UnixMilli(expiresAt)}, true, nil
}
