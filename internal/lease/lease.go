// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lease gives a single owner exclusive use of a (tenant, platform)
// browser session for a bounded time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/keys"
)

// ErrHeld is returned when another owner holds an unexpired lease.
var ErrHeld = errors.New("lease: held by another owner")

// Lease is a snapshot of an acquired or observed lease.
type Lease struct {
	Key       string    `json:"key"`
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Store persists leases.
//
// TryAcquire grants the lease when it is free, expired, or already owned by
// owner. On contention it returns the current holder and false.
type Store interface {
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error)
	Renew(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error)
	Release(ctx context.Context, key, owner string) error
	Get(ctx context.Context, key string) (Lease, bool, error)
}

// Key builds the lease key of a session.
func Key(tenant, platform string) string {
	return keys.Session(tenant, platform)
}

// HeldError wraps ErrHeld with the current holder.
type HeldError struct {
	Current Lease
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%v: %s owned by %s until %s", ErrHeld, e.Current.Key, e.Current.Owner, e.Current.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *HeldError) Unwrap() error { return ErrHeld }
