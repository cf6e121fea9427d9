// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

// ResumeRequest continues a suspended run.
type ResumeRequest struct {
	Platform adapter.Platform
	Tenant   string
	Token    string
	RunID    string
}

// Resume re-enters a suspended run at the exact state it stopped in. The
// checkpoint is consumed before any browser work, so a second resume with
// the same token fails with ErrInvalidResumeToken.
func (m *Machine) Resume(ctx context.Context, req ResumeRequest) Result {
	tenant := tenantOrDefault(req.Tenant)
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	base := Result{Platform: req.Platform.String(), Tenant: tenant, RunID: runID}

	a, err := adapter.For(req.Platform, m.adapters)
	if err != nil {
		return m.finishEarly(base, err)
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
		return m.finishEarly(base, err)
	}
	defer func() { _ = held.Release(context.WithoutCancel(ctx)) }()

	cp, err := m.checkpoints.Take(ctx, tenant, a.Platform().String(), req.Token)
	if err != nil {
		return m.finishEarly(base, &StateError{State: string(state.Await2FA), Kind: ErrInvalidResumeToken, Err: err})
	}

	from, err := m.restore(ctx, r, cp)
	if err != nil {
		return m.finishEarly(base, &StateError{State: string(cp.State), Kind: ErrInvalidResumeToken, Err: err})
	}
	r.logger.Info().
		Str(xglog.FieldEvent, "machine.resumed").
		Str(xglog.FieldCheckpointID, cp.ID).
		Str(xglog.FieldState, string(cp.State)).
		Msg("resuming suspended run")
	return m.drive(ctx, r, from)
}

// restore loads checkpoint progress into r and returns the plan index of
// the suspended state.
func (m *Machine) restore(ctx context.Context, r *run, cp checkpoint.Checkpoint) (int, error) {
	r.event = cp.Event
	r.plan = r.adapter.Plan(cp.Event, m.config().CheckDuplicates)
	r.completed = slices.Clone(cp.Completed)
	r.visited = slices.Clone(cp.Completed)
	r.retries = maps.Clone(cp.Retries)
	if r.retries == nil {
		r.retries = make(map[state.State]int)
	}
	r.data = maps.Clone(cp.StateData)
	if r.data == nil {
		r.data = make(map[string]string)
	}
	r.sessionID = cp.SessionID
	r.liveURL = cp.LiveURL
	r.taskID = cp.TaskID
	r.resumed = true

	if m.sessions != nil {
		s, err := m.sessions.GetOrCreate(ctx, r.tenant, r.platform())
		if err != nil {
			return 0, err
		}
		r.profileID = s.ProfileID
	}

	from := slices.Index(r.plan, cp.State)
	if from < 0 {
		return 0, fmt.Errorf("state %s is not part of the %s plan", cp.State, r.platform())
	}
	// SUBMIT was sent: never re-enter at or before it.
	if r.submitted() && !state.Submit.Before(cp.State) {
		return 0, fmt.Errorf("checkpoint at %s follows an attempted submit", cp.State)
	}
	return from, nil
}
