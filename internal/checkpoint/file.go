// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

const (
	filePrefix = "checkpoint_"
	fileSuffix = ".json"
)

// DefaultDir is <user config dir>/eventcast/checkpoints.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "eventcast", "checkpoints"), nil
}

// FileStore writes one JSON file per (tenant, platform). Writes are atomic;
// a process-local mutex serializes Take. Cross-process exclusion comes from
// the session lease.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewFileStore creates dir (0700) and checks that it is writable.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: dir not writable: %w", err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &FileStore{
		dir:    dir,
		now:    time.Now,
		logger: xglog.WithComponent("checkpoint"),
	}, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(tenant, platform string) string {
	return filepath.Join(s.dir, filePrefix+key(tenant, platform)+fileSuffix)
}

func (s *FileStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	buf, err := encode(cp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return renameio.WriteFile(s.path(cp.Tenant, cp.Platform), buf, 0o600)
}

func (s *FileStore) read(path string) (Checkpoint, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, err
	}
	return decode(buf)
}

func (s *FileStore) Load(_ context.Context, tenant, platform string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.read(s.path(tenant, platform))
	if err != nil {
		return Checkpoint{}, err
	}
	return checkLoad(cp, tenant, s.now())
}

func (s *FileStore) Take(_ context.Context, tenant, platform, token string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(tenant, platform)
	cp, err := s.read(path)
	if err != nil {
		return Checkpoint{}, err
	}
	remove, err := checkTake(cp, tenant, token, s.now())
	if remove {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return Checkpoint{}, fmt.Errorf("checkpoint: remove: %w", rmErr)
		}
	}
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

func (s *FileStore) Delete(_ context.Context, tenant, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(tenant, platform))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List skips files that cannot be decoded.
func (s *FileStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		cp, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable checkpoint")
			continue
		}
		out = append(out, cp)
	}
	sortCheckpoints(out)
	return out, nil
}

func (s *FileStore) Backend() string { return "file" }
func (s *FileStore) Degraded() bool  { return false }
func (s *FileStore) Close() error    { return nil }
