// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/verify"
)

type outcomeKind int

const (
	outcomeFailed outcomeKind = iota
	outcomeOK
	outcomeDuplicate
	outcomeAuth
	outcomeUnconfirmed
)

type authKind int

const (
	authNone authKind = iota
	authLogin
	authTwoFactor
)

// outcome is the classified result of one state attempt.
type outcome struct {
	kind   outcomeKind
	auth   authKind
	url    string
	status browser.TaskStatus
	err    error
}

// runState executes s until it succeeds, hits an auth wall, or exhausts
// its retry budget. Auth signals do not consume budget, except at SUBMIT:
// a SUBMIT attempt counts once it has been sent.
func (m *Machine) runState(ctx context.Context, r *run, s state.State) outcome {
	pol := m.policy(r.adapter, s)
	start := m.now()
	defer func() { metrics.ObserveStateDuration(r.platform(), string(s), m.now().Sub(start)) }()

	last := outcome{err: &StateError{State: string(s), Kind: ErrFormInteraction, Err: errors.New("retry budget exhausted")}}
	hint := ""
	for {
		attempt := r.retries[s] + 1
		if attempt > pol.Attempts {
			break
		}
		r.retries[s] = attempt
		if s == state.Submit {
			metrics.RecordSubmit(r.platform())
		}

		out := m.attempt(ctx, r, s, attempt, hint)
		switch out.kind {
		case outcomeOK, outcomeDuplicate, outcomeUnconfirmed:
			metrics.RecordStateAttempt(r.platform(), string(s), "success")
			return out
		case outcomeAuth:
			if s != state.Submit {
				r.retries[s]--
			}
			metrics.RecordStateAttempt(r.platform(), string(s), "auth")
			return out
		}

		last = out
		if s == state.Submit || attempt >= pol.Attempts || ctx.Err() != nil {
			metrics.RecordStateAttempt(r.platform(), string(s), "failed")
			break
		}
		metrics.RecordStateAttempt(r.platform(), string(s), "retry")
		hint = m.retryHint(r.adapter, s, out)
		wait := pol.Backoff(attempt, m.jitter)
		r.logger.Info().
			Err(out.err).
			Str(xglog.FieldState, string(s)).
			Int(xglog.FieldAttempt, attempt).
			Dur("backoff", wait).
			Msg("state failed, retrying")
		if err := m.sleep(ctx, wait); err != nil {
			break
		}
	}
	return last
}

// attempt runs one browser task for s and classifies it. A non-empty hint
// is appended to the step prompt.
func (m *Machine) attempt(ctx context.Context, r *run, s state.State, attempt int, hint string) outcome {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "machine.state",
		telemetry.StateAttributes(r.platform(), string(s), attempt)...)

	cfg := m.config()
	task := r.adapter.TaskPrompt(s, r.event)
	if hint != "" {
		task += "\n\n" + hint
	}
	req := browser.TaskRequest{
		Task:      task,
		StartURL:  startURL(r, s),
		ProfileID: r.profileID,
		SessionID: r.sessionID,
		MaxSteps:  cfg.StepMaxSteps,
		Metadata:  metadata(r, s),
	}
	st, err := m.execute(ctx, r, req, cfg.StepTimeout, cfg.StepMaxPolls)
	out := classify(r.adapter, s, attempt, st, err)
	if out.kind == outcomeFailed {
		telemetry.EndSpan(span, out.err)
	} else {
		telemetry.EndSpan(span, nil)
	}

	if out.kind == outcomeOK && s.Before(state.VerifySuccess) && !s.Before(state.Submit) {
		// Fallback for VERIFY_SUCCESS.
		if u := successURL(r.adapter, st); u != "" {
			r.data["event_url"] = u
		}
	}
	return out
}

// retryHint resolves the element a failed attempt reported missing against
// the page text it returned.
func (m *Machine) retryHint(a *adapter.Adapter, s state.State, out outcome) string {
	if !strings.Contains(out.status.Output, adapter.MarkerNotFound) {
		return ""
	}
	t, ok := a.Target(s)
	if !ok {
		return ""
	}
	return m.resolver.Resolve(t, out.status.Output, "").Hint()
}

func startURL(r *run, s state.State) string {
	switch s {
	case state.CheckDuplicate:
		return r.adapter.HomeURL()
	case state.Navigate:
		return r.adapter.CreateURL()
	}
	if r.sessionID == "" {
		return r.adapter.CreateURL()
	}
	return ""
}

func metadata(r *run, s state.State) map[string]string {
	return map[string]string{
		browser.MetaState:    string(s),
		browser.MetaPlatform: r.platform(),
		browser.MetaTenant:   r.tenant,
		browser.MetaRunID:    r.id,
	}
}

// execute starts a task in the run's browser session and polls it to a
// terminal status within the budget.
func (m *Machine) execute(ctx context.Context, r *run, req browser.TaskRequest, budget time.Duration, maxPolls int) (browser.TaskStatus, error) {
	h, err := m.runner.StartTask(ctx, req)
	if err != nil {
		return browser.TaskStatus{}, err
	}
	r.taskID = h.TaskID
	if h.SessionID != "" {
		r.sessionID = h.SessionID
	}
	if h.LiveURL != "" {
		r.liveURL = h.LiveURL
	}
	if m.sessions != nil {
		if err := m.sessions.Touch(ctx, r.tenant, r.platform(), r.sessionID, r.liveURL); err != nil {
			r.logger.Debug().Err(err).Msg("session touch failed")
		}
	}
	return m.pollUntilDone(ctx, h.TaskID, budget, maxPolls)
}

// pollUntilDone polls immediately, then every PollInterval. Retryable
// provider errors are absorbed while budget remains.
func (m *Machine) pollUntilDone(ctx context.Context, taskID string, budget time.Duration, maxPolls int) (browser.TaskStatus, error) {
	deadline := m.now().Add(budget)
	interval := m.config().PollInterval
	var st browser.TaskStatus
	for polls := 1; ; polls++ {
		cur, err := m.runner.PollTask(ctx, taskID)
		switch {
		case err == nil:
			st = cur
			if st.Status.Terminal() {
				return st, nil
			}
		case !browser.Retryable(err):
			return st, err
		}
		if polls >= maxPolls || !m.now().Before(deadline) {
			return st, fmt.Errorf("%w: task %s still %s after %d polls", ErrTimeout, taskID, browser.StatusRunning, polls)
		}
		if err := m.sleep(ctx, interval); err != nil {
			return st, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}
}

// classify maps one finished task onto an outcome. Order: transport error,
// auth signal, duplicate, success verification, task failure, missing
// element marker, validation errors at VERIFY_FORM.
func classify(a *adapter.Adapter, s state.State, attempt int, st browser.TaskStatus, err error) outcome {
	fail := func(kind, cause error) outcome {
		return outcome{kind: outcomeFailed, status: st, err: &StateError{State: string(s), Kind: kind, Attempt: attempt, Err: cause}}
	}
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fail(ErrTimeout, err)
		}
		return fail(ErrFormInteraction, err)
	}

	switch detectAuth(s, st) {
	case authTwoFactor:
		return outcome{kind: outcomeAuth, auth: authTwoFactor, status: st,
			err: &StateError{State: string(s), Kind: ErrTwoFactorChallenge, Attempt: attempt}}
	case authLogin:
		return outcome{kind: outcomeAuth, auth: authLogin, status: st,
			err: &StateError{State: string(s), Kind: ErrAuthenticationRequired, Attempt: attempt}}
	}

	out := st.Output
	if s == state.CheckDuplicate && strings.Contains(out, adapter.MarkerDuplicate) {
		return outcome{kind: outcomeDuplicate, status: st, url: verify.ExtractURL(out, nil)}
	}
	if s == state.VerifySuccess {
		if st.Status != browser.StatusFinished {
			return fail(ErrFormInteraction, taskFailure(st))
		}
		if u := successURL(a, st); u != "" {
			return outcome{kind: outcomeOK, status: st, url: u}
		}
		return outcome{kind: outcomeUnconfirmed, status: st}
	}
	if st.Status != browser.StatusFinished {
		return fail(ErrFormInteraction, taskFailure(st))
	}
	if strings.Contains(out, adapter.MarkerNotFound) {
		return fail(ErrFormInteraction, errors.New(firstLine(out[strings.Index(out, adapter.MarkerNotFound):])))
	}
	if s == state.VerifyForm && !strings.Contains(out, adapter.MarkerStepDone) && verify.HasValidationErrors(out) {
		return fail(ErrFormInteraction, fmt.Errorf("form shows validation errors: %s", truncate(firstLine(out), 200)))
	}
	return outcome{kind: outcomeOK, status: st}
}

// detectAuth looks for the explicit markers on every state; AUTH_CHECK also
// matches the fixed login pattern set against the page text and URL.
func detectAuth(s state.State, st browser.TaskStatus) authKind {
	out := st.Output
	switch {
	case strings.Contains(out, adapter.MarkerTwoFactor):
		return authTwoFactor
	case strings.Contains(out, adapter.MarkerAuthRequired):
		if verify.NeedsTwoFactor(out) {
			return authTwoFactor
		}
		return authLogin
	}
	if s != state.AuthCheck {
		return authNone
	}
	switch verify.DetectAuth(out + "\n" + st.CurrentURL) {
	case verify.AuthTwoFactor:
		return authTwoFactor
	case verify.AuthLogin:
		return authLogin
	}
	return authNone
}

// successURL returns the first URL accepted by the platform predicate: the
// current page, then any URL in the output.
func successURL(a *adapter.Adapter, st browser.TaskStatus) string {
	if a.IsSuccessURL(st.CurrentURL) {
		return st.CurrentURL
	}
	return verify.ExtractURL(st.Output, a.IsSuccessURL)
}

func taskFailure(st browser.TaskStatus) error {
	raw := st.RawStatus
	if raw == "" {
		raw = string(st.Status)
	}
	if msg := strings.TrimSpace(st.Output); msg != "" {
		return fmt.Errorf("task %s: %s", raw, truncate(msg, 300))
	}
	return fmt.Errorf("task %s", raw)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
