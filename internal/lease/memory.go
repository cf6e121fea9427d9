// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lease

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps leases in process. Only useful for a single process.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]Lease
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]Lease), now: time.Now}
}

func (s *MemoryStore) TryAcquire(_ context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if cur, ok := s.leases[key]; ok && cur.Owner != owner && !cur.Expired(now) {
		return cur, false, nil
	}
	l := Lease{Key: key, Owner: owner, ExpiresAt: now.Add(ttl)}
	s.leases[key] = l
	return l, true, nil
}

func (s *MemoryStore) Renew(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	return s.TryAcquire(ctx, key, owner, ttl)
}

func (s *MemoryStore) Release(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[key]; ok && cur.Owner == owner {
		delete(s.leases, key)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[key]
	if !ok || l.Expired(s.now()) {
		return Lease{}, false, nil
	}
	return l, true, nil
}
