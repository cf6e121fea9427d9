// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/redisx"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config selects and configures the backend.
type Config struct {
	Backend string `yaml:"backend"`
	// Dir holds file checkpoints, and by default the sqlite/badger data.
	Dir   string         `yaml:"dir"`
	Redis redisx.Config `yaml:"redis"`
}

// Open builds the configured store. When a persistent backend cannot be
// opened it logs a warning and returns a degraded in-memory store whose
// Degraded() reports true.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) Store {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}

	s, err := open(ctx, backend, cfg, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("backend", backend).
			Str("event", "checkpoint.degraded").
			Msg("checkpoint store unavailable, falling back to in-memory; suspended runs will not survive a restart")
		return Instrument(NewDegradedStore())
	}
	logger.Info().Str("backend", s.Backend()).Msg("checkpoint store ready")
	return Instrument(s)
}

func open(ctx context.Context, backend string, cfg Config, logger zerolog.Logger) (Store, error) {
	dir := cfg.Dir
	if dir == "" && backend != BackendMemory && backend != BackendRedis {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = d
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return OpenSQLiteStore(ctx, filepath.Join(dir, "checkpoints.sqlite"))
	case BackendBadger:
		return OpenBadgerStore(filepath.Join(dir, "badger"))
	case BackendRedis:
		client, err := redisx.Open(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Redis.Prefix(), true), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}

// Instrument records every operation in the checkpoint metrics.
func Instrument(s Store) Store {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{Store: s}
}

type instrumented struct {
	Store
}

func (i *instrumented) record(op string, err error) {
	metrics.RecordCheckpointOp(i.Backend(), op, err)
}

func (i *instrumented) Save(ctx context.Context, cp Checkpoint) error {
	err := i.Store.Save(ctx, cp)
	i.record("save", err)
	return err
}

func (i *instrumented) Load(ctx context.Context, tenant, platform string) (Checkpoint, error) {
	cp, err := i.Store.Load(ctx, tenant, platform)
	i.record("load", err)
	return cp, err
}

func (i *instrumented) Take(ctx context.Context, tenant, platform, token string) (Checkpoint, error) {
	cp, err := i.Store.Take(ctx, tenant, platform, token)
	i.record("take", err)
	return cp, err
}

func (i *instrumented) Delete(ctx context.Context, tenant, platform string) error {
	err := i.Store.Delete(ctx, tenant, platform)
	i.record("delete", err)
	return err
}
