// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
)

// ShutdownHook releases a resource during shutdown. Hooks run LIFO.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP listeners of the daemon.
type Manager interface {
	// Start binds every listener and blocks until ctx ends or a listener fails.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
}

const abortBudget = 30 * time.Second

// listener is one named http.Server bound by Start.
type listener struct {
	name string
	addr string
	srv  *http.Server
}

type manager struct {
	api    config.APIConfig
	deps   Deps
	logger zerolog.Logger

	mu        sync.Mutex
	started   bool
	stopping  bool
	listeners []*listener
	hooks     []namedHook
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager validates deps and applies the default shutdown timeout.
func NewManager(api config.APIConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if api.ShutdownTimeout <= 0 {
		api.ShutdownTimeout = 15 * time.Second
	}
	return &manager{
		api:    api,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}, nil
}

// plan lists the servers to bind: the metrics listener first when it has
// its own address, then the API.
func (m *manager) plan() []*listener {
	var out []*listener
	if m.deps.MetricsHandler != nil && m.deps.MetricsAddr != "" {
		out = append(out, &listener{name: "metrics", addr: m.deps.MetricsAddr, srv: &http.Server{
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: 5 * time.Second,
		}})
	}
	return append(out, &listener{name: "api", addr: m.api.ListenAddr, srv: &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.api.ReadTimeout,
		ReadHeaderTimeout: m.api.ReadTimeout / 2,
		WriteTimeout:      m.api.WriteTimeout,
		IdleTimeout:       m.api.IdleTimeout,
	}})
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("start context is nil")
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.api.ListenAddr).
		Str("metrics_listen", m.deps.MetricsAddr).
		Dur("shutdown_timeout", m.api.ShutdownTimeout).
		Msg("starting listeners")

	planned := m.plan()
	failed := make(chan error, len(planned))
	for _, l := range planned {
		// Bind synchronously so a port conflict is returned from Start.
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			return m.abort(ctx, fmt.Errorf("%s listener %s: %w", l.name, l.addr, err))
		}
		l.srv.Addr = ln.Addr().String()
		m.mu.Lock()
		m.listeners = append(m.listeners, l)
		m.mu.Unlock()
		go m.serve(l, ln, failed)
	}

	select {
	case err := <-failed:
		return m.abort(ctx, err)
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortBudget)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) serve(l *listener, ln net.Listener, failed chan<- error) {
	m.logger.Info().Str("listener", l.name).Str("addr", l.srv.Addr).Msg("listening")
	if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error().Err(err).
			Str("event", l.name+".server.failed").
			Msg("listener failed")
		failed <- fmt.Errorf("%s server: %w", l.name, err)
	}
}

// abort stops what already started and joins err with any shutdown failure.
func (m *manager) abort(ctx context.Context, err error) error {
	m.logger.Error().Err(err).Msg("aborting startup")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortBudget)
	defer cancel()
	if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown context is nil")
	}
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	listeners := append([]*listener(nil), m.listeners...)
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.api.ShutdownTimeout)
	defer cancel()

	var errs []error
	// API first so in-flight runs stop before the metrics listener goes away.
	for i := len(listeners) - 1; i >= 0; i-- {
		l := listeners[i]
		if err := l.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", l.name, err))
			_ = l.srv.Close()
		}
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		err := h.hook(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook finished")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("listeners stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}
