// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package machine drives one platform's event creation through the ordered
// states, with per-state retries, auth detection and checkpoint/resume.
package machine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/resolver"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/verify"
)

const tracerName = "eventcast/machine"

// Config tunes polling and retries.
type Config struct {
	// PollInterval separates polls of a running browser task.
	PollInterval time.Duration
	// StepTimeout and StepMaxPolls bound one state's browser task.
	StepTimeout  time.Duration
	StepMaxPolls int
	// TaskTimeout and TaskMaxPolls bound a two-phase run.
	TaskTimeout  time.Duration
	TaskMaxPolls int
	// StepMaxSteps and TaskMaxSteps cap agent actions per task.
	StepMaxSteps int
	TaskMaxSteps int

	CheckDuplicates bool
	CheckpointTTL   time.Duration
	Policies        map[state.State]Policy
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    12 * time.Second,
		StepTimeout:     4 * time.Minute,
		StepMaxPolls:    30,
		TaskTimeout:     15 * time.Minute,
		TaskMaxPolls:    90,
		StepMaxSteps:    25,
		TaskMaxSteps:    80,
		CheckDuplicates: true,
		CheckpointTTL:   24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = d.StepTimeout
	}
	if c.StepMaxPolls <= 0 {
		c.StepMaxPolls = d.StepMaxPolls
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.TaskMaxPolls <= 0 {
		c.TaskMaxPolls = d.TaskMaxPolls
	}
	if c.StepMaxSteps <= 0 {
		c.StepMaxSteps = d.StepMaxSteps
	}
	if c.TaskMaxSteps <= 0 {
		c.TaskMaxSteps = d.TaskMaxSteps
	}
	if c.CheckpointTTL <= 0 {
		c.CheckpointTTL = d.CheckpointTTL
	}
	return c
}

// Machine runs event creation for any platform. It is safe for concurrent
// use; exclusivity per (tenant, platform) comes from session leases.
type Machine struct {
	runner      browser.TaskRunner
	provider    browser.Provider
	sessions    *session.Registry
	checkpoints checkpoint.Store
	adapters    adapter.Config

	cfg   atomic.Pointer[Config]
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	rndMu sync.Mutex
	rnd   *rand.Rand

	resolver *resolver.Resolver
	tasks    *tracker
	logger   zerolog.Logger
}

// Option customizes a Machine.
type Option func(*Machine)

// WithSleep replaces the context-aware sleep used for delays, backoff and
// polling.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) { m.sleep = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithProvider sets the provider identity reported by Start.
func WithProvider(p browser.Provider) Option {
	return func(m *Machine) { m.provider = p }
}

// New wires a machine.
func New(runner browser.TaskRunner, sessions *session.Registry, checkpoints checkpoint.Store, adapters adapter.Config, cfg Config, opts ...Option) *Machine {
	m := &Machine{
		runner:      runner,
		provider:    browser.Hyperbrowser,
		sessions:    sessions,
		checkpoints: checkpoints,
		adapters:    adapters,
		now:         time.Now,
		sleep:       sleepContext,
		rnd:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)), // #nosec G404 -- jitter only
		resolver:    resolver.New(),
		tasks:       newTracker(),
		logger:      xglog.WithComponent("machine"),
	}
	if m.checkpoints == nil {
		m.checkpoints = checkpoint.NewMemoryStore()
	}
	c := cfg.withDefaults()
	m.cfg.Store(&c)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UpdateConfig swaps the tuning used by runs that start afterwards.
func (m *Machine) UpdateConfig(cfg Config) {
	c := cfg.withDefaults()
	m.cfg.Store(&c)
}

func (m *Machine) config() Config { return *m.cfg.Load() }

func (m *Machine) jitter() float64 {
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	return m.rnd.Float64()
}

// Request starts a synchronous run.
type Request struct {
	Platform adapter.Platform
	Tenant   string
	Event    event.Data
	RunID    string
}

// run is the mutable progress of one platform run.
type run struct {
	id        string
	tenant    string
	adapter   *adapter.Adapter
	event     event.Data
	plan      []state.State
	completed []state.State
	visited   []state.State
	retries   map[state.State]int
	data      map[string]string
	profileID string
	sessionID string
	liveURL   string
	taskID    string
	resumed   bool
	started   time.Time
	logger    zerolog.Logger
}

func (r *run) platform() string { return r.adapter.Platform().String() }

func (r *run) enter(s state.State) {
	prev := state.Init
	if n := len(r.visited); n > 0 {
		prev = r.visited[n-1]
	}
	r.visited = append(r.visited, s)
	r.logger.Debug().
		Str(xglog.FieldEvent, "machine.transition").
		Str(xglog.FieldOldState, string(prev)).
		Str(xglog.FieldNewState, string(s)).
		Msg("entering state")
}

func (r *run) complete(s state.State) {
	if !slices.Contains(r.completed, s) {
		r.completed = append(r.completed, s)
	}
}

// submitted reports whether a SUBMIT task has been sent for this run.
func (r *run) submitted() bool {
	return r.retries[state.Submit] > 0 || slices.Contains(r.completed, state.Submit)
}

func tenantOrDefault(t string) string {
	if t = strings.TrimSpace(t); t == "" {
		return checkpoint.DefaultTenant
	}
	return t
}

// prepare resolves the adapter and the sanitized platform variant of the
// event. On failure it returns a FAILED result.
func (m *Machine) prepare(ctx context.Context, p adapter.Platform, tenant, runID string, raw event.Data) (*run, Result, bool) {
	tenant = tenantOrDefault(tenant)
	if runID == "" {
		runID = uuid.NewString()
	}
	base := Result{Platform: p.String(), Tenant: tenant, RunID: runID}

	a, err := adapter.For(p, m.adapters)
	if err != nil {
		return nil, m.finishEarly(base, err), false
	}
	ev, err := event.New(raw.ForPlatform(p.String()))
	if err != nil {
		return nil, m.finishEarly(base, err), false
	}

	r := &run{
		id:      runID,
		tenant:  tenant,
		adapter: a,
		event:   ev,
		plan:    a.Plan(ev, m.config().CheckDuplicates),
		retries: make(map[state.State]int),
		data:    make(map[string]string),
		started: m.now(),
		logger: xglog.WithContext(ctx, xglog.WithComponent("machine")).With().
			Str(xglog.FieldRunID, runID).
			Str(xglog.FieldTenant, tenant).
			Str(xglog.FieldPlatform, p.String()).
			Logger(),
	}
	if m.sessions != nil {
		s, err := m.sessions.GetOrCreate(ctx, tenant, p.String())
		if err != nil {
			return nil, m.finishEarly(base, err), false
		}
		r.profileID = s.ProfileID
	}
	return r, Result{}, true
}

func (m *Machine) finishEarly(res Result, err error) Result {
	res.Status = state.Failed
	res.Err = err
	res.Error = err.Error()
	res.NextAction = NextAction(res)
	metrics.RunFinished(res.Platform, string(res.Status))
	return res
}

// Run executes every planned state in order and returns one terminal (or
// AWAIT_2FA) result. Errors are reported in the result, never returned.
func (m *Machine) Run(ctx context.Context, req Request) Result {
	r, res, ok := m.prepare(ctx, req.Platform, req.Tenant, req.RunID, req.Event)
	if !ok {
		return res
	}

	held, err := m.acquire(ctx, r)
	if err != nil {
		return m.fail(r, state.Init, err)
	}
	defer func() { _ = held.Release(context.WithoutCancel(ctx)) }()

	// A fresh run supersedes a suspended one.
	if _, err := m.checkpoints.Load(ctx, r.tenant, r.platform()); err == nil || errors.Is(err, checkpoint.ErrExpired) {
		r.logger.Warn().Msg("discarding checkpoint of a previously suspended run")
		_ = m.checkpoints.Delete(ctx, r.tenant, r.platform())
	}

	return m.drive(ctx, r, 0)
}

// acquire takes the session lease for r. Without a registry it returns a
// no-op lease.
func (m *Machine) acquire(ctx context.Context, r *run) (releaser, error) {
	if m.sessions == nil {
		return noopRelease{}, nil
	}
	held, err := m.sessions.Acquire(ctx, r.tenant, r.platform(), r.id)
	if err != nil {
		return nil, &StateError{State: string(state.Init), Kind: ErrSessionBusy, Err: err}
	}
	return held, nil
}

type releaser interface {
	Release(ctx context.Context) error
}

type noopRelease struct{}

func (noopRelease) Release(context.Context) error { return nil }

// drive runs r.plan from index from.
func (m *Machine) drive(ctx context.Context, r *run, from int) Result {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "machine.run",
		telemetry.RunAttributes(r.id, r.tenant, r.platform())...)
	metrics.RunStarted(r.platform())
	r.logger.Info().
		Str(xglog.FieldEvent, "machine.run_started").
		Str(xglog.FieldState, string(r.plan[from])).
		Msg("event creation run started")

	res := m.loop(ctx, r, from)

	metrics.RunFinished(r.platform(), string(res.Status))
	var spanErr error
	if res.Status == state.Failed {
		spanErr = res.Err
	}
	telemetry.EndSpan(span, spanErr)

	ev := r.logger.Info()
	if res.Status == state.Failed {
		ev = r.logger.Warn().Str("error", res.Error)
	}
	ev.Str(xglog.FieldEvent, "machine.run_finished").
		Str(xglog.FieldStatus, string(res.Status)).
		Str(xglog.FieldEventURL, res.EventURL).
		Bool("needs_review", res.NeedsReview).
		Dur("duration", res.Duration).
		Msg("event creation run finished")
	return res
}

func (m *Machine) loop(ctx context.Context, r *run, from int) Result {
	for i := from; i < len(r.plan); i++ {
		s := r.plan[i]
		if err := ctx.Err(); err != nil {
			return m.fail(r, s, &StateError{State: string(s), Kind: ErrTimeout, Err: err})
		}
		r.enter(s)
		if s == state.Init {
			r.complete(s)
			continue
		}

		out := m.runState(ctx, r, s)
		switch out.kind {
		case outcomeOK:
			r.complete(s)
			if s == state.AuthCheck {
				m.markWarm(ctx, r)
			}
			if s == state.VerifySuccess {
				return m.done(r, out.url, out.status)
			}
		case outcomeDuplicate:
			r.complete(s)
			return m.duplicate(r, out)
		case outcomeAuth:
			if r.submitted() {
				// Suspending here would replay SUBMIT on resume.
				r.logger.Warn().
					Err(out.err).
					Str(xglog.FieldState, string(s)).
					Msg("auth prompt after submit, settling without a checkpoint")
				return m.unconfirmed(r, out)
			}
			return m.interrupted(ctx, r, s, out)
		case outcomeUnconfirmed:
			return m.unconfirmed(r, out)
		case outcomeFailed:
			switch {
			case s == state.PostSubmit:
				r.logger.Warn().Err(out.err).Msg("post-submit cleanup failed, continuing to verification")
			case s == state.VerifySuccess:
				return m.unconfirmed(r, out)
			case slices.Contains(r.completed, state.Submit):
				return m.unconfirmed(r, out)
			default:
				return m.fail(r, s, out.err)
			}
		}

		if d := r.adapter.Delay(s); d > 0 && i < len(r.plan)-1 {
			if err := m.sleep(ctx, d); err != nil {
				return m.fail(r, s, &StateError{State: string(s), Kind: ErrTimeout, Err: err})
			}
		}
	}
	return m.unconfirmed(r, outcome{})
}

// markWarm records a passed auth check. Only COLD and WARM sessions are
// promoted, plus PAUSED_2FA on a resumed run whose second factor the
// person just entered; NEEDS_AUTH and EXPIRED wait for CompleteAuth.
func (m *Machine) markWarm(ctx context.Context, r *run) {
	if m.sessions == nil {
		return
	}
	cur, err := m.sessions.Get(ctx, r.tenant, r.platform())
	if err != nil {
		r.logger.Debug().Err(err).Msg("session not found for warm mark")
		return
	}
	switch {
	case cur.AuthState == session.Cold, cur.AuthState == session.Warm:
	case cur.AuthState == session.Paused2FA && r.resumed:
	default:
		r.logger.Debug().Str(xglog.FieldOldState, string(cur.AuthState)).Msg("auth check passed, session left for manual confirmation")
		return
	}
	m.markSession(ctx, r, session.Warm)
}

func (m *Machine) markSession(ctx context.Context, r *run, to session.AuthState) {
	if m.sessions == nil {
		return
	}
	if _, err := m.sessions.MarkAuthState(ctx, r.tenant, r.platform(), to); err != nil {
		r.logger.Warn().Err(err).Str(xglog.FieldNewState, string(to)).Msg("session auth state not updated")
	}
}

func (m *Machine) base(r *run, status state.State) Result {
	return Result{
		Platform:  r.platform(),
		Tenant:    r.tenant,
		RunID:     r.id,
		Status:    status,
		ImageURL:  r.event.ImageURL,
		LiveURL:   r.liveURL,
		States:    slices.Clone(r.visited),
		Skipped:   r.adapter.SkippedFeatures(r.event),
		TaskID:    r.taskID,
		SessionID: r.sessionID,
		Duration:  m.now().Sub(r.started),
	}
}

// done settles a run that reached a success URL. The page text is scored
// with the multi-signal check; a weak verdict keeps the URL but flags the
// run for review.
func (m *Machine) done(r *run, url string, st browser.TaskStatus) Result {
	v := verify.Created(st.Output, url, r.event.Title, r.adapter.IsSuccessURL, r.adapter.FormIndicators())
	res := m.base(r, state.Done)
	res.EventURL = url
	res.Confidence = v.Confidence
	if !v.Passed {
		res.NeedsReview = true
		res.Err = &StateError{State: string(state.VerifySuccess), Kind: ErrSuccessUnconfirmed,
			Err: fmt.Errorf("%d of %d success signals", v.SignalCount, len(v.Signals))}
		metrics.RecordNeedsReview(r.platform())
		r.logger.Warn().
			Str(xglog.FieldEventURL, url).
			Float64("confidence", v.Confidence).
			Msg("success URL reached but page signals are weak, flagged for review")
	}
	res.NextAction = NextAction(res)
	return res
}

// unconfirmed settles a submitted run without a verified URL. A success URL
// captured after SUBMIT, or present in the last task, still confirms it.
func (m *Machine) unconfirmed(r *run, out outcome) Result {
	if u := r.data["event_url"]; u != "" {
		return m.done(r, u, out.status)
	}
	if u := successURL(r.adapter, out.status); u != "" {
		return m.done(r, u, out.status)
	}
	res := m.base(r, state.Done)
	res.NeedsReview = true
	res.Err = &StateError{State: string(state.VerifySuccess), Kind: ErrSuccessUnconfirmed, Err: out.err}
	res.NextAction = NextAction(res)
	metrics.RecordNeedsReview(r.platform())
	r.logger.Warn().
		Str(xglog.FieldCurrentURL, out.status.CurrentURL).
		Msg("event submitted but URL not confirmed, flagged for review")
	return res
}

func (m *Machine) duplicate(r *run, out outcome) Result {
	res := m.base(r, state.Duplicate)
	res.EventURL = out.url
	res.Err = &StateError{State: string(state.CheckDuplicate), Kind: ErrDuplicateDetected}
	res.NextAction = NextAction(res)
	return res
}

func (m *Machine) fail(r *run, s state.State, err error) Result {
	res := m.base(r, state.Failed)
	res.Err = err
	res.Error = err.Error()
	res.NextAction = NextAction(res)
	r.logger.Warn().Err(err).Str(xglog.FieldState, string(s)).Msg("run failed")
	return res
}

// interrupted handles an auth signal: 2FA suspends with a checkpoint, a
// login wall ends the run as NEEDS_AUTH.
func (m *Machine) interrupted(ctx context.Context, r *run, s state.State, out outcome) Result {
	if out.auth != authTwoFactor {
		m.markSession(ctx, r, session.NeedsAuth)
		res := m.base(r, state.NeedsAuth)
		res.Err = out.err
		res.Error = out.err.Error()
		res.NextAction = NextAction(res)
		return res
	}

	now := m.now()
	cp := checkpoint.Checkpoint{
		ID:          checkpoint.NewID(r.tenant, r.platform(), now),
		Tenant:      r.tenant,
		Platform:    r.platform(),
		State:       s,
		Event:       r.event,
		Completed:   slices.Clone(r.completed),
		StateData:   r.data,
		Retries:     r.retries,
		TaskID:      r.taskID,
		SessionID:   r.sessionID,
		LiveURL:     r.liveURL,
		Reason:      truncate(out.status.Output, 500),
		ResumeToken: checkpoint.NewToken(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.config().CheckpointTTL),
	}
	if err := m.checkpoints.Save(ctx, cp); err != nil {
		return m.fail(r, s, &StateError{State: string(s), Kind: ErrTwoFactorChallenge, Err: err})
	}
	m.markSession(ctx, r, session.Paused2FA)

	res := m.base(r, state.Await2FA)
	res.ResumeToken = cp.ResumeToken
	res.Err = out.err
	res.NextAction = NextAction(res)
	r.logger.Info().
		Str(xglog.FieldEvent, "machine.suspended").
		Str(xglog.FieldCheckpointID, cp.ID).
		Str(xglog.FieldState, string(s)).
		Str(xglog.FieldLiveURL, r.liveURL).
		Msg("waiting for two-factor verification")
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
