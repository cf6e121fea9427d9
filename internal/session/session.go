// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session maps (tenant, platform) to a persistent browser identity
// and tracks whether that identity is logged in.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/fsm"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/keys"
)

// AuthState is the authentication state of a browser identity.
type AuthState string

const (
	Cold      AuthState = "COLD"
	Warm      AuthState = "WARM"
	NeedsAuth AuthState = "NEEDS_AUTH"
	Paused2FA AuthState = "PAUSED_2FA"
	Expired   AuthState = "EXPIRED"
)

// Signal drives AuthState transitions.
type Signal string

const (
	SignalAuthenticated Signal = "authenticated"
	SignalAuthLost      Signal = "auth_lost"
	SignalChallenge     Signal = "challenge"
	SignalExpire        Signal = "expire"
)

var (
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidTransition wraps fsm.ErrInvalidTransition for callers that
	// only import this package.
	ErrInvalidTransition = fsm.ErrInvalidTransition
)

// Session is the browser identity of one (tenant, platform).
type Session struct {
	Tenant    string    `json:"tenant_id"`
	Platform  string    `json:"platform"`
	ProfileID string    `json:"profile_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	LiveURL   string    `json:"live_url,omitempty"`
	AuthState AuthState `json:"auth_state"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	LastAuth     time.Time `json:"last_auth,omitzero"`
}

// NeedsHuman reports whether a person has to log in before runs can proceed.
func (s Session) NeedsHuman() bool {
	return s.AuthState == NeedsAuth || s.AuthState == Expired || s.AuthState == Paused2FA
}

// lifecycle is the session state table. There is no edge back to COLD;
// only a human login (SignalAuthenticated) restores WARM.
var lifecycle = fsm.MustTable([]fsm.Transition[AuthState, Signal]{
	{From: Cold, Event: SignalAuthenticated, To: Warm},
	{From: Cold, Event: SignalAuthLost, To: NeedsAuth},
	{From: Cold, Event: SignalChallenge, To: Paused2FA},
	{From: Warm, Event: SignalAuthLost, To: NeedsAuth},
	{From: Warm, Event: SignalChallenge, To: Paused2FA},
	{From: Warm, Event: SignalExpire, To: Expired},
	{From: NeedsAuth, Event: SignalAuthenticated, To: Warm},
	{From: NeedsAuth, Event: SignalChallenge, To: Paused2FA},
	{From: NeedsAuth, Event: SignalExpire, To: Expired},
	{From: Paused2FA, Event: SignalAuthenticated, To: Warm},
	{From: Paused2FA, Event: SignalAuthLost, To: NeedsAuth},
	{From: Paused2FA, Event: SignalExpire, To: Expired},
	{From: Expired, Event: SignalAuthenticated, To: Warm},
	{From: Expired, Event: SignalAuthLost, To: NeedsAuth},
	{From: Expired, Event: SignalChallenge, To: Paused2FA},
})

// signalFor maps a requested target state onto the signal reaching it.
func signalFor(to AuthState) (Signal, bool) {
	switch to {
	case Warm:
		return SignalAuthenticated, true
	case NeedsAuth:
		return SignalAuthLost, true
	case Paused2FA:
		return SignalChallenge, true
	case Expired:
		return SignalExpire, true
	}
	return "", false
}

// Transition validates from → to and returns the new state. Staying in the
// same state is allowed.
func Transition(ctx context.Context, from, to AuthState) (AuthState, error) {
	if from == to {
		return to, nil
	}
	sig, ok := signalFor(to)
	if !ok {
		return from, errors.Join(ErrInvalidTransition, errors.New("session: cannot enter "+string(to)))
	}
	return lifecycle.Apply(ctx, from, sig)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, tenant, platform string) (Session, error)
	Put(ctx context.Context, s Session) error
	List(ctx context.Context) ([]Session, error)
	Close() error
}

func storeKey(tenant, platform string) string {
	return keys.Session(tenant, platform)
}
