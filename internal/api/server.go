// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the eventcast HTTP API: two-phase platform runs,
// workflows, session authentication and checkpoint administration.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api/middleware"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/health"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/workflow"
)

// Runs is the two-phase run surface of the machine.
type Runs interface {
	Start(ctx context.Context, req machine.StartRequest) (machine.Handle, error)
	Poll(ctx context.Context, req machine.PollRequest) (machine.Result, error)
	Wait(ctx context.Context, h machine.Handle) (machine.Result, error)
	Resume(ctx context.Context, req machine.ResumeRequest) machine.Result
	Active() []string
}

// Workflows runs full multi-platform workflows.
type Workflows interface {
	Run(ctx context.Context, req workflow.Request) workflow.Result
}

// Sessions is the part of the session registry the API exposes.
type Sessions interface {
	List(ctx context.Context) ([]session.Session, error)
	Get(ctx context.Context, tenant, platform string) (session.Session, error)
	BeginAuth(ctx context.Context, tenant, platform, loginURL string) (session.Session, browser.TaskHandle, error)
	CompleteAuth(ctx context.Context, tenant, platform string) (session.Session, error)
}

// Deps are the collaborators behind the routes. Nil Workflows, Sessions or
// Checkpoints disable their routes.
type Deps struct {
	Runs        Runs
	Workflows   Workflows
	Sessions    Sessions
	Checkpoints checkpoint.Store
	Health      *health.Manager
	Adapters    adapter.Config
	// ServeMetrics mounts /metrics on the API listener.
	ServeMetrics bool
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg    config.APIConfig
	deps   Deps
	router chi.Router
	logger zerolog.Logger
}

// New builds the server and its routes.
func New(cfg config.APIConfig, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: xglog.WithComponent("api"),
	}
	if s.deps.Health == nil {
		s.deps.Health = health.NewManager("")
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "eventcast/api",
		EnableLogging:         true,
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problemNotFound(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problemMethodNotAllowed(w, r)
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	if s.deps.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerToken(s.cfg.Token))

		r.Get("/tasks/{taskID}", s.handlePollTask)
		r.Get("/runs", s.handleActiveRuns)
		if s.deps.Sessions != nil {
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{platform}", s.handleGetSession)
		}
		if s.deps.Checkpoints != nil {
			r.Get("/checkpoints", s.handleListCheckpoints)
		}

		// Mutating routes start browser work and share the per-IP budget.
		r.Group(func(r chi.Router) {
			r.Use(middleware.PerMinute(s.cfg.RateLimit))

			r.Post("/events", s.handleCreateEvent)
			r.Post("/runs/{platform}/resume", s.handleResume)
			if s.deps.Workflows != nil {
				r.Post("/workflows", s.handleWorkflow)
			}
			if s.deps.Sessions != nil {
				r.Post("/sessions/{platform}/auth", s.handleBeginAuth)
				r.Post("/sessions/{platform}/auth/complete", s.handleCompleteAuth)
			}
			if s.deps.Checkpoints != nil {
				r.Delete("/checkpoints/{platform}", s.handleAbandonCheckpoint)
			}
		})
	})
	return r
}

// HTTPServer wraps the handler with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
}
