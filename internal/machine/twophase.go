// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/verify"
)

// StartRequest is the two-phase entry contract.
type StartRequest struct {
	Platform    adapter.Platform
	Tenant      string
	Event       event.Data
	Resume      bool
	ResumeToken string
	RunID       string
}

// Handle is returned immediately by Start.
type Handle struct {
	Platform          string  `json:"platform"`
	Status            string  `json:"status"`
	TaskID            string  `json:"task_id"`
	SessionID         string  `json:"session_id"`
	LiveURL           string  `json:"live_url"`
	EventURL          string  `json:"event_url"`
	Error             *string `json:"error"`
	Provider          string  `json:"provider"`
	PollToolName      string  `json:"poll_tool_name"`
	SuccessURLPattern string  `json:"success_url_pattern"`
	RunID             string  `json:"run_id,omitempty"`
	Tenant            string  `json:"tenant_id,omitempty"`
}

// PollRequest identifies a task to poll. Platform and Tenant are needed only
// when the task was started by another process.
type PollRequest struct {
	TaskID   string
	Platform adapter.Platform
	Tenant   string
}

// tracked is a two-phase run started by this process. mu serializes polls
// of the task and guards run and polls.
type tracked struct {
	mu      sync.Mutex
	run     *run
	held    releaser
	started time.Time
	polls   int
}

// settled is the terminal result of a task, replayed to later polls.
type settled struct {
	res Result
	at  time.Time
}

type tracker struct {
	mu      sync.Mutex
	tasks   map[string]*tracked
	settled map[string]settled
}

func newTracker() *tracker {
	return &tracker{tasks: make(map[string]*tracked), settled: make(map[string]settled)}
}

func (t *tracker) put(id string, tr *tracked) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = tr
}

func (t *tracker) get(id string) (*tracked, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.tasks[id]
	return tr, ok
}

func (t *tracker) remove(id string) (*tracked, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.tasks[id]
	delete(t.tasks, id)
	return tr, ok
}

// result returns the terminal result recorded for id.
func (t *tracker) result(id string) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.settled[id]
	return s.res, ok
}

// settle records res as the terminal result of id and stops tracking it.
// It reports whether id was still tracked, so exactly one caller releases
// its lease.
func (t *tracker) settle(id string, res Result, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[id]
	delete(t.tasks, id)
	t.settled[id] = settled{res: res, at: at}
	return ok
}

// prune forgets results settled before cutoff.
func (t *tracker) prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.settled {
		if s.at.Before(cutoff) {
			delete(t.settled, id)
		}
	}
}

func (t *tracker) all() map[string]*tracked {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*tracked, len(t.tasks))
	for k, v := range t.tasks {
		out[k] = v
	}
	return out
}

// Start launches the whole run as one composed browser task and returns
// without waiting. The session lease is held until Poll reports a terminal
// status or the task budget runs out.
func (m *Machine) Start(ctx context.Context, req StartRequest) (Handle, error) {
	m.sweep(ctx)

	var (
		r    *run
		held releaser
		from int
		err  error
	)
	if req.Resume {
		r, held, from, err = m.startResume(ctx, req)
		if err != nil {
			return Handle{}, err
		}
	} else {
		var (
			res Result
			ok  bool
		)
		r, res, ok = m.prepare(ctx, req.Platform, req.Tenant, req.RunID, req.Event)
		if !ok {
			return Handle{}, res.Err
		}
		if held, err = m.acquire(ctx, r); err != nil {
			return Handle{}, err
		}
		_ = m.checkpoints.Delete(ctx, r.tenant, r.platform())
	}

	cfg := m.config()
	steps := r.plan[from:]
	start := r.adapter.CreateURL()
	if len(steps) > 0 && steps[0] == state.CheckDuplicate {
		start = r.adapter.HomeURL()
	}

	h, err := m.runner.StartTask(ctx, browser.TaskRequest{
		Task:      adapter.Compose(r.adapter, steps, r.event),
		StartURL:  start,
		ProfileID: r.profileID,
		SessionID: r.sessionID,
		MaxSteps:  cfg.TaskMaxSteps,
		Metadata:  metadata(r, state.Running),
	})
	if err != nil {
		_ = held.Release(context.WithoutCancel(ctx))
		return Handle{}, err
	}
	r.taskID = h.TaskID
	if h.SessionID != "" {
		r.sessionID = h.SessionID
	}
	if h.LiveURL != "" {
		r.liveURL = h.LiveURL
	}
	r.visited = append(r.visited, steps...)
	if m.sessions != nil {
		_ = m.sessions.Touch(ctx, r.tenant, r.platform(), r.sessionID, r.liveURL)
	}

	m.tasks.put(h.TaskID, &tracked{run: r, held: held, started: m.now()})
	metrics.RunStarted(r.platform())
	r.logger.Info().
		Str(xglog.FieldEvent, "machine.task_started").
		Str(xglog.FieldTaskID, h.TaskID).
		Str(xglog.FieldLiveURL, r.liveURL).
		Msg("event creation task started")

	return Handle{
		Platform:          r.platform(),
		Status:            string(state.Running),
		TaskID:            h.TaskID,
		SessionID:         r.sessionID,
		LiveURL:           r.liveURL,
		Provider:          m.provider.Name,
		PollToolName:      m.provider.PollTool,
		SuccessURLPattern: r.adapter.SuccessPattern(),
		RunID:             r.id,
		Tenant:            r.tenant,
	}, nil
}

// startResume takes the lease, then consumes the checkpoint.
func (m *Machine) startResume(ctx context.Context, req StartRequest) (*run, releaser, int, error) {
	tenant := tenantOrDefault(req.Tenant)
	a, err := adapter.For(req.Platform, m.adapters)
	if err != nil {
		return nil, nil, 0, err
	}
	runID := req.RunID
	if runID == "" {
		runID = checkpoint.NewToken()
	}
	r := &run{
		id:      runID,
		tenant:  tenant,
		adapter: a,
		started: m.now(),
		logger: xglog.WithContext(ctx, xglog.WithComponent("machine")).With().
			Str(xglog.FieldRunID, runID).
			Str(xglog.FieldTenant, tenant).
			Str(xglog.FieldPlatform, a.Platform().String()).
			Logger(),
	}
	held, err := m.acquire(ctx, r)
	if err != nil {
		return nil, nil, 0, err
	}
	cp, err := m.checkpoints.Take(ctx, tenant, a.Platform().String(), req.ResumeToken)
	if err != nil {
		_ = held.Release(context.WithoutCancel(ctx))
		return nil, nil, 0, &StateError{State: string(state.Await2FA), Kind: ErrInvalidResumeToken, Err: err}
	}
	from, err := m.restore(ctx, r, cp)
	if err != nil {
		_ = held.Release(context.WithoutCancel(ctx))
		return nil, nil, 0, &StateError{State: string(cp.State), Kind: ErrInvalidResumeToken, Err: err}
	}
	return r, held, from, nil
}

// Poll reports the status of a two-phase run. While the task runs it
// returns Status "running". Terminal provider statuses are classified in
// order: duplicate marker, success URL, auth signal, finished without a
// URL (needs review), failure. Once a task is terminal every later poll
// returns the same result.
func (m *Machine) Poll(ctx context.Context, req PollRequest) (Result, error) {
	if req.TaskID == "" {
		return Result{}, browser.ErrMissingTaskID
	}
	if res, ok := m.tasks.result(req.TaskID); ok {
		return res, nil
	}
	tr, ok := m.tasks.get(req.TaskID)
	var r *run
	if ok {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		// Settled by a concurrent poll while this one waited.
		if res, done := m.tasks.result(req.TaskID); done {
			return res, nil
		}
		r = tr.run
	} else {
		a, err := adapter.For(req.Platform, m.adapters)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s (platform required for tasks started elsewhere)", ErrUnknownTask, req.TaskID)
		}
		r = &run{
			id:      req.TaskID,
			tenant:  tenantOrDefault(req.Tenant),
			adapter: a,
			taskID:  req.TaskID,
			started: m.now(),
			data:    map[string]string{},
			logger:  m.logger.With().Str(xglog.FieldTaskID, req.TaskID).Logger(),
		}
	}

	st, err := m.runner.PollTask(ctx, req.TaskID)
	if err != nil {
		if browser.Retryable(err) {
			res := m.base(r, state.Running)
			res.Error = err.Error()
			res.NextAction = NextAction(res)
			return res, nil
		}
		return m.finishTask(ctx, r, outcome{kind: outcomeFailed, err: &StateError{State: string(state.Running), Kind: ErrFormInteraction, Err: err}}), nil
	}

	if !st.Status.Terminal() {
		if ok {
			tr.polls++
			cfg := m.config()
			if tr.polls >= cfg.TaskMaxPolls || m.now().Sub(tr.started) >= cfg.TaskTimeout {
				err := fmt.Errorf("%w: task %s still running after %d polls", ErrTimeout, req.TaskID, tr.polls)
				return m.finishTask(ctx, r, outcome{kind: outcomeFailed, status: st, err: &StateError{State: string(state.Running), Kind: ErrTimeout, Err: err}}), nil
			}
		}
		res := m.base(r, state.Running)
		res.NextAction = NextAction(res)
		return res, nil
	}

	return m.finishTask(ctx, r, classifyTask(r.adapter, st)), nil
}

// classifyTask maps a finished composed task onto an outcome. A success URL
// wins over any auth signal. Auth comes only from the explicit markers or
// the current page URL; the free output echoes the event text and is not
// matched against the pattern sets.
func classifyTask(a *adapter.Adapter, st browser.TaskStatus) outcome {
	out := st.Output
	if strings.Contains(out, adapter.MarkerDuplicate) {
		return outcome{kind: outcomeDuplicate, status: st, url: verify.ExtractURL(out, nil)}
	}
	if u := successURL(a, st); u != "" {
		return outcome{kind: outcomeOK, status: st, url: u}
	}
	page := verify.DetectAuth(st.CurrentURL)
	switch {
	case strings.Contains(out, adapter.MarkerTwoFactor) || page == verify.AuthTwoFactor:
		return outcome{kind: outcomeAuth, auth: authTwoFactor, status: st,
			err: &StateError{State: string(state.AuthCheck), Kind: ErrTwoFactorChallenge}}
	case strings.Contains(out, adapter.MarkerAuthRequired) || page == verify.AuthLogin:
		return outcome{kind: outcomeAuth, auth: authLogin, status: st,
			err: &StateError{State: string(state.AuthCheck), Kind: ErrAuthenticationRequired}}
	}
	if st.Status == browser.StatusFinished {
		return outcome{kind: outcomeUnconfirmed, status: st}
	}
	return outcome{kind: outcomeFailed, status: st,
		err: &StateError{State: string(state.Running), Kind: ErrFormInteraction, Err: taskFailure(st)}}
}

// finishTask turns a terminal two-phase outcome into a result, records it
// for later polls and releases the run's lease. Callers polling a tracked
// task hold its mutex.
func (m *Machine) finishTask(ctx context.Context, r *run, out outcome) Result {
	tr, tracked := m.tasks.get(r.taskID)

	var res Result
	switch out.kind {
	case outcomeOK:
		res = m.done(r, out.url, out.status)
	case outcomeDuplicate:
		res = m.duplicate(r, out)
	case outcomeUnconfirmed:
		res = m.unconfirmed(r, out)
	case outcomeAuth:
		res = m.suspendTask(ctx, r, out, tracked)
	default:
		res = m.fail(r, state.Running, out.err)
	}
	if tracked && out.kind != outcomeAuth && out.kind != outcomeFailed {
		m.markWarm(ctx, r)
	}
	if m.tasks.settle(r.taskID, res, m.now()) && tr != nil {
		_ = tr.held.Release(context.WithoutCancel(ctx))
		metrics.RunFinished(r.platform(), string(res.Status))
	}
	return res
}

// suspendTask checkpoints a two-phase run at AUTH_CHECK. Runs started by
// another process have no event data to checkpoint and end as NEEDS_AUTH.
func (m *Machine) suspendTask(ctx context.Context, r *run, out outcome, tracked bool) Result {
	if out.auth != authTwoFactor || !tracked {
		out.auth = authLogin
		return m.interrupted(ctx, r, state.AuthCheck, out)
	}
	// Everything before AUTH_CHECK is done; the rest is replayed on resume.
	idx := slices.Index(r.plan, state.AuthCheck)
	r.completed = nil
	r.visited = nil
	for _, s := range r.plan[:max(idx, 0)] {
		r.complete(s)
		r.visited = append(r.visited, s)
	}
	r.visited = append(r.visited, state.AuthCheck)
	return m.interrupted(ctx, r, state.AuthCheck, out)
}

// Wait polls until the run is no longer running.
func (m *Machine) Wait(ctx context.Context, h Handle) (Result, error) {
	p, err := adapter.ParsePlatform(h.Platform)
	if err != nil {
		return Result{}, err
	}
	req := PollRequest{TaskID: h.TaskID, Platform: p, Tenant: h.Tenant}
	for {
		res, err := m.Poll(ctx, req)
		if err != nil {
			return res, err
		}
		if res.Status != state.Running {
			return res, nil
		}
		if err := m.sleep(ctx, m.config().PollInterval); err != nil {
			return res, err
		}
	}
}

// sweep ends tracked runs whose budget ran out without being polled and
// forgets old terminal results. Runs being polled right now are skipped.
func (m *Machine) sweep(ctx context.Context) {
	cfg := m.config()
	now := m.now()
	m.tasks.prune(now.Add(-cfg.CheckpointTTL))
	for id, tr := range m.tasks.all() {
		if now.Sub(tr.started) < cfg.TaskTimeout || !tr.mu.TryLock() {
			continue
		}
		if _, ok := m.tasks.get(id); ok {
			err := fmt.Errorf("%w: task %s abandoned after %s", ErrTimeout, id, cfg.TaskTimeout)
			m.finishTask(ctx, tr.run, outcome{kind: outcomeFailed, err: &StateError{State: string(state.Running), Kind: ErrTimeout, Err: err}})
		}
		tr.mu.Unlock()
	}
}

// Close releases the leases of every tracked run.
func (m *Machine) Close(ctx context.Context) error {
	var errs []error
	for id := range m.tasks.all() {
		if tr, ok := m.tasks.remove(id); ok {
			errs = append(errs, tr.held.Release(ctx))
		}
	}
	return errors.Join(errs...)
}

// Active lists the task ids of runs started by this process.
func (m *Machine) Active() []string {
	var out []string
	for id := range m.tasks.all() {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
