// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package checkpoint persists suspended event creation runs so they can be
// resumed with their token, keyed by (tenant, platform).
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/keys"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

var (
	ErrNotFound      = errors.New("checkpoint: not found")
	ErrExpired       = errors.New("checkpoint: expired")
	ErrTokenMismatch = errors.New("checkpoint: resume token mismatch")
)

// DefaultTenant is used when a run has no tenant id.
const DefaultTenant = "default"

// Checkpoint is the snapshot of one suspended run.
type Checkpoint struct {
	ID       string      `json:"checkpoint_id"`
	Tenant   string      `json:"tenant_id"`
	Platform string      `json:"platform"`
	State    state.State `json:"current_state"`
	Event    event.Data  `json:"event_data"`

	// Completed lists the steps already confirmed, in order.
	Completed []state.State `json:"completed_states"`
	// StateData carries confirmed form values and captured URLs.
	StateData map[string]string   `json:"state_data,omitempty"`
	Retries   map[state.State]int `json:"retry_counts,omitempty"`

	TaskID    string `json:"task_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	LiveURL   string `json:"live_url,omitempty"`
	Reason    string `json:"reason,omitempty"`

	ResumeToken string    `json:"resume_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// NewID builds the checkpoint id {tenant}_{platform}_{unix}.
func NewID(tenant, platform string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", keys.Tenant(normalizeTenant(tenant)), platform, now.Unix())
}

// NewToken returns a fresh resume token.
func NewToken() string {
	return uuid.NewString()
}

// Expired reports whether the checkpoint lapsed at now. A zero ExpiresAt
// never expires.
func (c Checkpoint) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store is implemented by every backend.
//
// Take loads the checkpoint, verifies token and expiry, and deletes it in one
// step. A token mismatch leaves the checkpoint in place; an expired one is
// removed.
type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, tenant, platform string) (Checkpoint, error)
	Take(ctx context.Context, tenant, platform, token string) (Checkpoint, error)
	Delete(ctx context.Context, tenant, platform string) error
	List(ctx context.Context) ([]Checkpoint, error)

	// Backend names the storage ("file", "memory", ...).
	Backend() string
	// Degraded reports that checkpoints will not survive a restart.
	Degraded() bool
	Close() error
}

// key identifies a checkpoint inside a backend.
func key(tenant, platform string) string {
	return keys.Tenant(normalizeTenant(tenant)) + "_" + strings.ToLower(platform)
}

// normalizeTenant trims the tenant id and defaults it.
func normalizeTenant(tenant string) string {
	if tenant = strings.TrimSpace(tenant); tenant == "" {
		return DefaultTenant
	}
	return tenant
}

// owns reports whether cp was saved for tenant.
func owns(cp Checkpoint, tenant string) bool {
	return normalizeTenant(cp.Tenant) == normalizeTenant(tenant)
}

// checkLoad validates a loaded checkpoint against its tenant and expiry.
func checkLoad(cp Checkpoint, tenant string, now time.Time) (Checkpoint, error) {
	if !owns(cp, tenant) {
		return Checkpoint{}, ErrNotFound
	}
	if cp.Expired(now) {
		return cp, ErrExpired
	}
	return cp, nil
}

// checkTake validates a loaded checkpoint against tenant and token. It
// reports whether the checkpoint must be deleted.
func checkTake(cp Checkpoint, tenant, token string, now time.Time) (remove bool, err error) {
	if !owns(cp, tenant) {
		return false, ErrNotFound
	}
	if token == "" || cp.ResumeToken != token {
		return false, ErrTokenMismatch
	}
	if cp.Expired(now) {
		return true, ErrExpired
	}
	return true, nil
}

func validate(cp Checkpoint) error {
	if cp.Platform == "" {
		return errors.New("checkpoint: platform is required")
	}
	if cp.ResumeToken == "" {
		return errors.New("checkpoint: resume token is required")
	}
	return nil
}
