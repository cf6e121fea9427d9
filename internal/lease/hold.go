// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// Held is an acquired lease kept alive by a background renewal loop.
type Held struct {
	store Store
	key   string
	owner string
	ttl   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	lost   atomic.Bool
	once   sync.Once
}

// Hold acquires key for owner and renews it every ttl/3 until Release.
// A lease held by someone else yields a *HeldError.
func Hold(ctx context.Context, store Store, key, owner string, ttl time.Duration) (*Held, error) {
	cur, ok, err := store.TryAcquire(ctx, key, owner, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &HeldError{Current: cur}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Held{
		store:  store,
		key:    key,
		owner:  owner,
		ttl:    ttl,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.renew(loopCtx)
	return h, nil
}

// Key returns the held key.
func (h *Held) Key() string { return h.key }

// Owner returns the owner id.
func (h *Held) Owner() string { return h.owner }

// Lost reports whether a renewal found the lease taken by another owner.
func (h *Held) Lost() bool { return h.lost.Load() }

// Release stops renewal and frees the lease. Safe to call more than once.
func (h *Held) Release(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		h.cancel()
		<-h.done
		err = h.store.Release(ctx, h.key, h.owner)
	})
	return err
}

func (h *Held) renew(ctx context.Context) {
	defer close(h.done)
	interval := max(h.ttl/3, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := xglog.WithComponent("lease")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, ok, err := h.store.Renew(ctx, h.key, h.owner, h.ttl)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn().Err(err).Str("key", h.key).Msg("lease renewal failed")
				}
				continue
			}
			if !ok {
				h.lost.Store(true)
				logger.Error().Str("key", h.key).Str("owner", h.owner).Msg("lease lost to another owner")
				return
			}
		}
	}
}
