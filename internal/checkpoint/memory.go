// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints for the lifetime of the process.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]Checkpoint
	degraded bool
	now      func() time.Time
}

// NewMemoryStore returns a store used on purpose (tests, dry runs).
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Checkpoint), now: time.Now}
}

// NewDegradedStore returns a memory store standing in for a persistent
// backend that could not be opened.
func NewDegradedStore() *MemoryStore {
	s := NewMemoryStore()
	s.degraded = true
	return s
}

func (s *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key(cp.Tenant, cp.Platform)] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, tenant, platform string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.items[key(tenant, platform)]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	return checkLoad(cp, tenant, s.now())
}

func (s *MemoryStore) Take(_ context.Context, tenant, platform, token string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenant, platform)
	cp, ok := s.items[k]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	remove, err := checkTake(cp, tenant, token, s.now())
	if remove {
		delete(s.items, k)
	}
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, tenant, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key(tenant, platform))
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Checkpoint, 0, len(s.items))
	for _, cp := range s.items {
		out = append(out, cp)
	}
	sortCheckpoints(out)
	return out, nil
}

func (s *MemoryStore) Backend() string { return "memory" }
func (s *MemoryStore) Degraded() bool  { return s.degraded }
func (s *MemoryStore) Close() error    { return nil }

func sortCheckpoints(cps []Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		if cps[i].Tenant != cps[j].Tenant {
			return cps[i].Tenant < cps[j].Tenant
		}
		return cps[i].Platform < cps[j].Platform
	})
}
