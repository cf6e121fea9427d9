// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	platform TEXT NOT NULL,
	resume_token TEXT NOT NULL,
	expires_at_ms INTEGER NOT NULL DEFAULT 0,
	data BLOB NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_tenant ON checkpoints(tenant);`

// SQLiteStore keeps checkpoints in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
	now   func() time.Time
}

// OpenSQLiteStore opens path and migrates the schema. Close closes the db.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStore uses an existing db; Close leaves it open.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := sqlite.Migrate(ctx, db, sqliteSchemaVersion, sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	buf, err := encode(cp)
	if err != nil {
		return err
	}
	var expires int64
	if !cp.ExpiresAt.IsZero() {
		expires = cp.ExpiresAt.UnixMilli()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, tenant, platform, resume_token, expires_at_ms, data, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			resume_token = excluded.resume_token,
			expires_at_ms = excluded.expires_at_ms,
			data = excluded.data,
			updated_at_ms = excluded.updated_at_ms`,
		key(cp.Tenant, cp.Platform), normalizeTenant(cp.Tenant), cp.Platform, cp.ResumeToken, expires, buf, s.now().UnixMilli())
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, tenant, platform string) (Checkpoint, error) {
	cp, err := s.get(ctx, s.db, key(tenant, platform))
	if err != nil {
		return Checkpoint{}, err
	}
	return checkLoad(cp, tenant, s.now())
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, k string) (Checkpoint, error) {
	var buf []byte
	err := q.QueryRowContext(ctx, "SELECT data FROM checkpoints WHERE key = ?", k).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, err
	}
	return decode(buf)
}

func (s *SQLiteStore) Take(ctx context.Context, tenant, platform, token string) (Checkpoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, err
	}
	defer func() { _ = tx.Rollback() }()

	k := key(tenant, platform)
	cp, err := s.get(ctx, tx, k)
	if err != nil {
		return Checkpoint{}, err
	}
	remove, checkErr := checkTake(cp, tenant, token, s.now())
	if remove {
		if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE key = ?", k); err != nil {
			return Checkpoint{}, err
		}
		if err := tx.Commit(); err != nil {
			return Checkpoint{}, err
		}
	}
	if checkErr != nil {
		return Checkpoint{}, checkErr
	}
	return cp, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, tenant, platform string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE key = ?", key(tenant, platform))
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM checkpoints ORDER BY tenant, platform")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint
	for rows.Next() {
		var buf []byte
		if err := rows.Scan(&buf); err != nil {
			return nil, err
		}
		cp, err := decode(buf)
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Backend() string { return "sqlite" }
func (s *SQLiteStore) Degraded() bool  { return false }

func (s *SQLiteStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
