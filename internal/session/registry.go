// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/lease"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// Defaults for Config.
const (
	DefaultMaxAge      = 7 * 24 * time.Hour
	DefaultLiveTimeout = 10 * time.Minute
)

// Config configures a Registry.
type Config struct {
	// Profiles maps platform to a pre-provisioned browser profile id. A
	// configured id is always reused.
	Profiles map[string]string
	// MaxAge expires a login this long after it was last confirmed.
	MaxAge time.Duration
	// LiveTimeout bounds how long a run may hold the session lease without
	// renewing, and how long a human has to finish an auth prompt.
	LiveTimeout time.Duration
}

// Registry owns the sessions of all tenants.
type Registry struct {
	store    Store
	leases   lease.Store
	runner   browser.TaskRunner
	profiles browser.ProfileCreator
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger

	mu sync.Mutex
}

// Option customizes a Registry.
type Option func(*Registry)

// WithRunner enables live URL lookups and BeginAuth.
func WithRunner(r browser.TaskRunner) Option {
	return func(reg *Registry) { reg.runner = r }
}

// WithProfileCreator lets GetOrCreate provision a profile when none is
// configured.
func WithProfileCreator(p browser.ProfileCreator) Option {
	return func(reg *Registry) { reg.profiles = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(reg *Registry) { reg.now = now }
}

// NewRegistry builds a registry. A nil lease store uses an in-memory one.
func NewRegistry(store Store, leases lease.Store, cfg Config, opts ...Option) *Registry {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.LiveTimeout <= 0 {
		cfg.LiveTimeout = DefaultLiveTimeout
	}
	if leases == nil {
		leases = lease.NewMemoryStore()
	}
	r := &Registry{
		store:  store,
		leases: leases,
		cfg:    cfg,
		now:    time.Now,
		logger: xglog.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LiveTimeout returns the configured live session timeout.
func (r *Registry) LiveTimeout() time.Duration { return r.cfg.LiveTimeout }

// GetOrCreate returns the session of (tenant, platform), creating it COLD on
// first use. Creation is idempotent: concurrent callers get the same
// session and a configured profile id is never duplicated.
func (r *Registry) GetOrCreate(ctx context.Context, tenant, platform string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.store.Get(ctx, tenant, platform)
	if err == nil {
		if want := r.cfg.Profiles[platform]; want != "" && s.ProfileID != want {
			s.ProfileID = want
			if err := r.store.Put(ctx, s); err != nil {
				return Session{}, err
			}
		}
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	now := r.now()
	s = Session{
		Tenant:       tenant,
		Platform:     platform,
		ProfileID:    r.cfg.Profiles[platform],
		AuthState:    Cold,
		CreatedAt:    now,
		LastActivity: now,
	}
	if s.ProfileID == "" && r.profiles != nil {
		id, err := r.profiles.CreateProfile(ctx, fmt.Sprintf("eventcast-%s-%s", tenant, platform))
		switch {
		case err == nil:
			s.ProfileID = id
		case errors.Is(err, browser.ErrNotImplemented):
		default:
			return Session{}, fmt.Errorf("session: create profile: %w", err)
		}
	}
	if err := r.store.Put(ctx, s); err != nil {
		return Session{}, err
	}
	r.logger.Info().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldTenant, tenant).
		Str(xglog.FieldPlatform, platform).
		Str(xglog.FieldProfileID, s.ProfileID).
		Msg("browser session registered")
	return s, nil
}

// Get returns an existing session.
func (r *Registry) Get(ctx context.Context, tenant, platform string) (Session, error) {
	return r.store.Get(ctx, tenant, platform)
}

// MarkAuthState moves the session to state. Invalid transitions (including
// any regression to COLD) are rejected.
func (r *Registry) MarkAuthState(ctx context.Context, tenant, platform string, to AuthState) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.store.Get(ctx, tenant, platform)
	if err != nil {
		return Session{}, err
	}
	from := s.AuthState
	next, err := Transition(ctx, from, to)
	if err != nil {
		return s, err
	}
	now := r.now()
	s.AuthState = next
	s.LastActivity = now
	if next == Warm && from != Warm {
		s.LastAuth = now
	}
	if err := r.store.Put(ctx, s); err != nil {
		return Session{}, err
	}
	if from != next {
		r.logger.Info().
			Str(xglog.FieldEvent, "session.auth_state").
			Str(xglog.FieldTenant, tenant).
			Str(xglog.FieldPlatform, platform).
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(next)).
			Msg("session auth state changed")
	}
	return s, nil
}

// Touch records the live browser session used by the latest task.
func (r *Registry) Touch(ctx context.Context, tenant, platform, sessionID, liveURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.store.Get(ctx, tenant, platform)
	if err != nil {
		return err
	}
	if sessionID != "" {
		s.SessionID = sessionID
	}
	if liveURL != "" {
		s.LiveURL = liveURL
	}
	s.LastActivity = r.now()
	return r.store.Put(ctx, s)
}

// ResolveLiveURL asks the provider for the current live URL of the session,
// falling back to the last one recorded.
func (r *Registry) ResolveLiveURL(ctx context.Context, tenant, platform string) (string, error) {
	s, err := r.store.Get(ctx, tenant, platform)
	if err != nil {
		return "", err
	}
	if r.runner != nil && s.SessionID != "" {
		live, err := r.runner.LiveURL(ctx, s.SessionID)
		if err == nil && live != "" {
			if live != s.LiveURL {
				_ = r.Touch(ctx, tenant, platform, "", live)
			}
			return live, nil
		}
		if err != nil {
			r.logger.Debug().Err(err).Str(xglog.FieldSessionID, s.SessionID).Msg("live url lookup failed, using stored value")
		}
	}
	return s.LiveURL, nil
}

// Expire moves every logged-in or waiting session whose last confirmed login
// is older than MaxAge to EXPIRED. It returns the number of sessions expired.
func (r *Registry) Expire(ctx context.Context) (int, error) {
	list, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := r.now().Add(-r.cfg.MaxAge)
	n := 0
	for _, s := range list {
		switch s.AuthState {
		case Warm, NeedsAuth, Paused2FA:
		default:
			continue
		}
		ref := s.LastAuth
		if ref.IsZero() {
			ref = s.CreatedAt
		}
		if ref.After(cutoff) {
			continue
		}
		if _, err := r.MarkAuthState(ctx, s.Tenant, s.Platform, Expired); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// List returns all sessions.
func (r *Registry) List(ctx context.Context) ([]Session, error) {
	return r.store.List(ctx)
}

// Acquire gives owner exclusive use of the session until the returned lease
// is released. A second concurrent holder gets lease.ErrHeld.
func (r *Registry) Acquire(ctx context.Context, tenant, platform, owner string) (*lease.Held, error) {
	return lease.Hold(ctx, r.leases, lease.Key(tenant, platform), owner, r.cfg.LiveTimeout)
}

// Holder reports the current lease owner, if any.
func (r *Registry) Holder(ctx context.Context, tenant, platform string) (lease.Lease, bool, error) {
	return r.leases.Get(ctx, lease.Key(tenant, platform))
}

// BeginAuth opens the platform login page in the session's profile so a
// person can log in through the live URL. Credentials are never typed by
// the agent.
func (r *Registry) BeginAuth(ctx context.Context, tenant, platform, loginURL string) (Session, browser.TaskHandle, error) {
	if r.runner == nil {
		return Session{}, browser.TaskHandle{}, errors.New("session: no browser runner configured")
	}
	s, err := r.GetOrCreate(ctx, tenant, platform)
	if err != nil {
		return Session{}, browser.TaskHandle{}, err
	}
	task := fmt.Sprintf("Navigate to %s. Do not type any credentials. Wait for the user to log in manually through the live view, "+
		"then report LOGGED_IN once the account menu or dashboard is visible.", loginURL)
	h, err := r.runner.StartTask(ctx, browser.TaskRequest{
		Task:      task,
		StartURL:  loginURL,
		ProfileID: s.ProfileID,
		MaxSteps:  10,
		Metadata: map[string]string{
			browser.MetaState:    "AUTH_SETUP",
			browser.MetaPlatform: platform,
			browser.MetaTenant:   tenant,
		},
	})
	if err != nil {
		return s, browser.TaskHandle{}, err
	}
	if err := r.Touch(ctx, tenant, platform, h.SessionID, h.LiveURL); err != nil {
		return s, h, err
	}
	if s.AuthState == Warm {
		// Re-login of a warm session: it is no longer trusted until confirmed.
		if s, err = r.MarkAuthState(ctx, tenant, platform, NeedsAuth); err != nil {
			return s, h, err
		}
	}
	s, err = r.store.Get(ctx, tenant, platform)
	return s, h, err
}

// CompleteAuth records that a person finished logging in.
func (r *Registry) CompleteAuth(ctx context.Context, tenant, platform string) (Session, error) {
	if _, err := r.GetOrCreate(ctx, tenant, platform); err != nil {
		return Session{}, err
	}
	return r.MarkAuthState(ctx, tenant, platform, Warm)
}
