// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio/v2"
)

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, tenant, platform string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[storeKey(tenant, platform)]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[storeKey(s.Tenant, s.Platform)] = s
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// FileStore keeps all sessions in one JSON document rewritten atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore uses path (created on first Put).
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) load() (map[string]Session, error) {
	buf, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Session{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := map[string]Session{}
	if err := json.Unmarshal(buf, &items); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	return items, nil
}

func (f *FileStore) Get(_ context.Context, tenant, platform string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.load()
	if err != nil {
		return Session{}, err
	}
	s, ok := items[storeKey(tenant, platform)]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (f *FileStore) Put(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.load()
	if err != nil {
		return err
	}
	items[storeKey(s.Tenant, s.Platform)] = s
	buf, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(f.path, buf, 0o600)
}

func (f *FileStore) List(_ context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(items))
	for _, s := range items {
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (f *FileStore) Close() error { return nil }

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS browser_sessions (
	key TEXT PRIMARY KEY,
	tenant TEXT NOT NULL,
	platform TEXT NOT NULL,
	auth_state TEXT NOT NULL,
	data BLOB NOT NULL
);`

// SQLiteStore keeps sessions in a SQLite table. It can share a database
// with the lease store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// Not versioned: the lease store owns user_version on a shared db.
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("session: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, tenant, platform string) (Session, error) {
	var buf []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM browser_sessions WHERE key = ?", storeKey(tenant, platform)).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var out Session
	if err := json.Unmarshal(buf, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sess Session) error {
	buf, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO browser_sessions (key, tenant, platform, auth_state, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET auth_state = excluded.auth_state, data = excluded.data`,
		storeKey(sess.Tenant, sess.Platform), sess.Tenant, sess.Platform, string(sess.AuthState), buf)
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM browser_sessions")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Session
	for rows.Next() {
		var buf []byte
		if err := rows.Scan(&buf); err != nil {
			return nil, err
		}
		var sess Session
		if err := json.Unmarshal(buf, &sess); err != nil {
			continue
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSessions(out)
	return out, nil
}

func (s *SQLiteStore) Close() error { return nil }

func sortSessions(items []Session) {
	sort.Slice(items, func(i, j int) bool {
		return storeKey(items[i].Tenant, items[i].Platform) < storeKey(items[j].Tenant, items[j].Platform)
	})
}
