// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workflow creates one event on every platform, one platform at a
// time, and then hands the result to social promotion.
package workflow

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
)

const tracerName = "eventcast/workflow"

// Priority decides which platform URL is promoted.
var Priority = []adapter.Platform{adapter.Luma, adapter.Meetup, adapter.Partiful}

// Runner executes one platform run.
type Runner interface {
	Run(ctx context.Context, req machine.Request) machine.Result
}

// Promoter posts the handoff to social platforms.
type Promoter interface {
	Promote(ctx context.Context, req social.Request) social.Report
}

// Request is one full workflow invocation.
type Request struct {
	Event  event.Data
	Tenant string
	RunID  string

	// Platforms defaults to Luma, Meetup, Partiful in that order.
	Platforms []adapter.Platform
	Skip      []adapter.Platform

	// Promote enables the social phase.
	Promote    bool
	SocialSkip []social.Platform
	Copies     map[social.Platform]string
	Targets    social.Targets
}

// Result aggregates the platform results.
type Result struct {
	RunID      string           `json:"run_id"`
	Tenant     string           `json:"tenant_id"`
	Results    []machine.Result `json:"results"`
	PrimaryURL string           `json:"primary_url"`
	ImageURL   string           `json:"image_url"`
	Social     *social.Report   `json:"social,omitempty"`
	Outcome    string           `json:"outcome"`
	Duration   time.Duration    `json:"duration"`
}

// Get returns the result of p.
func (r Result) Get(p adapter.Platform) (machine.Result, bool) {
	for _, res := range r.Results {
		if res.Platform == p.String() {
			return res, true
		}
	}
	return machine.Result{}, false
}

// Handoff is the promotion input derived from the workflow result.
func (r Result) Handoff(ev event.Data) social.Handoff {
	return social.Handoff{
		EventURL:    r.PrimaryURL,
		ImageURL:    r.ImageURL,
		Title:       ev.Title,
		Date:        ev.Date,
		Time:        ev.Time,
		Location:    ev.Location,
		Description: ev.Description,
	}
}

// Orchestrator runs workflows. It never runs two platforms at once.
type Orchestrator struct {
	runner   Runner
	promoter Promoter
	logger   zerolog.Logger
}

// New builds an orchestrator. A nil promoter disables the social phase.
func New(runner Runner, promoter Promoter) *Orchestrator {
	return &Orchestrator{runner: runner, promoter: promoter, logger: xglog.WithComponent("workflow")}
}

// Run creates the event on every requested platform in order. Each
// platform yields exactly one result; a failure never stops the others.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = xglog.ContextWithRunID(ctx, runID)
	ctx, span := telemetry.StartSpan(ctx, tracerName, "workflow.run")
	defer telemetry.EndSpan(span, nil)

	if req.Tenant == "" {
		req.Tenant = checkpoint.DefaultTenant
	}
	logger := o.logger.With().Str(xglog.FieldRunID, runID).Str(xglog.FieldTenant, req.Tenant).Logger()
	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = Priority
	}

	res := Result{RunID: runID, Tenant: req.Tenant}
	for _, p := range platforms {
		if slices.Contains(req.Skip, p) {
			res.Results = append(res.Results, skipped(p, req.Tenant, runID))
			logger.Info().Str(xglog.FieldPlatform, p.String()).Msg("platform skipped")
			continue
		}
		logger.Info().Str(xglog.FieldPlatform, p.String()).Msg("creating event")
		r := o.runner.Run(ctx, machine.Request{Platform: p, Tenant: req.Tenant, Event: req.Event, RunID: runID})
		logger.Info().
			Str(xglog.FieldPlatform, p.String()).
			Str(xglog.FieldStatus, string(r.Status)).
			Str(xglog.FieldEventURL, r.EventURL).
			Msg("platform finished")
		res.Results = append(res.Results, r)
	}

	res.PrimaryURL = PrimaryURL(res.Results)
	res.ImageURL = firstImage(res.Results, req.Event.ImageURL)
	res.Outcome = outcome(res.Results)

	if req.Promote && o.promoter != nil {
		if res.PrimaryURL == "" {
			logger.Warn().Msg("no event URL captured, promoting without a link")
		}
		rep := o.promoter.Promote(ctx, social.Request{
			Handoff: res.Handoff(req.Event),
			Copies:  req.Copies,
			Skip:    req.SocialSkip,
			Targets: req.Targets,
		})
		res.Social = &rep
	}

	res.Duration = time.Since(start)
	metrics.RecordWorkflow(res.Outcome)
	logger.Info().
		Str(xglog.FieldEvent, "workflow.finished").
		Str("outcome", res.Outcome).
		Str("primary_url", res.PrimaryURL).
		Dur("duration", res.Duration).
		Msg("workflow finished")
	return res
}

func skipped(p adapter.Platform, tenant, runID string) machine.Result {
	r := machine.Result{Platform: p.String(), Tenant: tenant, RunID: runID, Status: state.Skipped}
	r.NextAction = machine.NextAction(r)
	return r
}

// PrimaryURL is the first confirmed event URL in Priority order.
func PrimaryURL(results []machine.Result) string {
	for _, p := range Priority {
		for _, r := range results {
			if r.Platform == p.String() && r.Status == state.Done && r.EventURL != "" {
				return r.EventURL
			}
		}
	}
	return ""
}

func firstImage(results []machine.Result, fallback string) string {
	for _, r := range results {
		if r.ImageURL != "" {
			return r.ImageURL
		}
	}
	return fallback
}

// outcome is success when every attempted platform is DONE without review,
// failed when none is, partial otherwise.
func outcome(results []machine.Result) string {
	attempted, ok := 0, 0
	for _, r := range results {
		if r.Status == state.Skipped {
			continue
		}
		attempted++
		if r.Status == state.Done && !r.NeedsReview {
			ok++
		}
	}
	switch {
	case attempted == 0 || ok == attempted:
		return "success"
	case ok == 0:
		return "failed"
	}
	return "partial"
}
