// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires configuration into the run machinery and owns the
// server lifecycle.
package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/health"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/lease"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/redisx"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/ratelimit"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/workflow"
)

// DryRunURLs are reported by the dry-run provider unless overridden.
var DryRunURLs = map[string]string{
	"luma":     "https://lu.ma/dry-run",
	"meetup":   "https://www.meetup.com/dry-run/events/000000000/",
	"partiful": "https://partiful.com/e/dry-run",
}

// Runtime is every long-lived component built from one configuration.
type Runtime struct {
	cfg atomic.Pointer[config.Config]

	Runner      browser.TaskRunner
	Client      *browser.Client // nil for the dry-run provider
	Checkpoints checkpoint.Store
	Sessions    *session.Registry
	Machine     *machine.Machine
	Limiter     *ratelimit.Limiter
	Promoter    *social.Manager // nil when social promotion is disabled
	Workflows   *Workflows
	Health      *health.Manager

	sessionStore session.Store
	closers      []closer
	logger       zerolog.Logger
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Build opens the stores and constructs the machine. On error everything
// opened so far is closed again.
func Build(ctx context.Context, cfg config.Config, version string) (_ *Runtime, err error) {
	rt := &Runtime{logger: xglog.WithComponent("daemon")}
	rt.cfg.Store(&cfg)
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = version
	tp, err := telemetry.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.addCloser("telemetry", tp.Shutdown)

	var (
		machineOpts  []machine.Option
		registryOpts []session.Option
	)
	if cfg.Provider.Name == config.ProviderDryRun {
		urls := maps.Clone(DryRunURLs)
		maps.Copy(urls, cfg.Provider.DryRunURLs)
		rt.Runner = browser.NewFake(browser.DryRun(urls))
		rt.logger.Warn().Str("event", "provider.dry_run").Msg("dry-run provider: no browser work will happen")
	} else {
		client, err := browser.NewClient(cfg.Provider.Browser())
		if err != nil {
			return nil, fmt.Errorf("browser client: %w", err)
		}
		rt.Client = client
		rt.Runner = client
		machineOpts = append(machineOpts, machine.WithProvider(client.Provider()))
		registryOpts = append(registryOpts, session.WithProfileCreator(client))
	}
	registryOpts = append(registryOpts, session.WithRunner(rt.Runner))

	rt.Checkpoints = checkpoint.Open(ctx, cfg.CheckpointConfig(), rt.logger)
	rt.addCloser("checkpoints", func(context.Context) error { return rt.Checkpoints.Close() })

	db, err := rt.openSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	leases, err := rt.openLeaseStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	rt.Sessions = session.NewRegistry(rt.sessionStore, leases, cfg.Sessions.Registry(), registryOpts...)

	mcfg, err := cfg.Machine.Build()
	if err != nil {
		return nil, err
	}
	rt.Machine = machine.New(rt.Runner, rt.Sessions, rt.Checkpoints, cfg.Adapters, mcfg, machineOpts...)
	rt.addCloser("machine", rt.Machine.Close)

	rt.Limiter = ratelimit.New(cfg.Social.Limits())
	var promoter workflow.Promoter
	if cfg.Social.Enabled {
		pub, err := newPublisher(cfg.Social)
		if err != nil {
			return nil, err
		}
		rt.Promoter = social.NewManager(pub, rt.Limiter, cfg.Social.Targets, cfg.Social.Timeout)
		promoter = rt.Promoter
	}
	rt.Workflows = &Workflows{orch: workflow.New(rt.Machine, promoter), rt: rt}

	rt.Health = health.NewManager(version)
	rt.registerChecks(cfg)

	rt.logger.Info().
		Str("provider", cfg.Provider.Name).
		Str("checkpoint_backend", rt.Checkpoints.Backend()).
		Str("session_store", cfg.Sessions.Store).
		Str("lease_backend", cfg.Leases.Backend).
		Bool("social", cfg.Social.Enabled).
		Msg("runtime ready")
	return rt, nil
}

func (rt *Runtime) addCloser(name string, fn func(ctx context.Context) error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// openSessionStore returns the sqlite handle when the store is sqlite so
// leases can share it.
func (rt *Runtime) openSessionStore(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	switch cfg.Sessions.Store {
	case config.StoreMemory:
		rt.sessionStore = session.NewMemoryStore()
		return nil, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SessionStorePath(), sqlite.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		rt.addCloser("session_db", func(context.Context) error { return db.Close() })
		store, err := session.NewSQLiteStore(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		rt.sessionStore = store
		return db, nil
	default:
		store, err := session.NewFileStore(cfg.SessionStorePath())
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		rt.sessionStore = store
		return nil, nil
	}
}

func (rt *Runtime) openLeaseStore(ctx context.Context, cfg config.Config, db *sql.DB) (lease.Store, error) {
	switch cfg.Leases.Backend {
	case config.StoreSQLite:
		if db == nil {
			return nil, errors.New("lease store: sqlite leases need sessions.store: sqlite")
		}
		store, err := lease.NewSQLiteStore(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("lease store: %w", err)
		}
		return store, nil
	case config.StoreRedis:
		client, err := redisx.Open(ctx, cfg.Leases.Redis, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("lease store: %w", err)
		}
		rt.addCloser("lease_redis", func(context.Context) error { return client.Close() })
		return lease.NewRedisStore(client, cfg.Leases.Redis.Prefix()), nil
	default:
		return lease.NewMemoryStore(), nil
	}
}

func newPublisher(cfg config.SocialConfig) (social.Publisher, error) {
	if cfg.WebhookURL == "" {
		return social.NewDryRunPublisher(), nil
	}
	pub, err := social.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookToken, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("social webhook: %w", err)
	}
	return pub, nil
}

func (rt *Runtime) registerChecks(cfg config.Config) {
	rt.Health.RegisterChecker(health.ConfigChecker(func() bool { return rt.cfg.Load() != nil }))
	rt.Health.RegisterChecker(health.NewCheckpointChecker(rt.Checkpoints))
	rt.Health.RegisterChecker(health.WritableDirChecker("data_dir", cfg.DataDir))
	rt.Health.RegisterChecker(health.Informational("session_store", func(ctx context.Context) error {
		_, err := rt.sessionStore.List(ctx)
		return err
	}))
	if rt.Client != nil {
		breaker := rt.Client.Breaker()
		rt.Health.RegisterChecker(health.NewBreakerChecker("provider", func() string {
			return breaker.State().String()
		}))
	}
}

// Config returns the configuration currently applied.
func (rt *Runtime) Config() config.Config {
	return *rt.cfg.Load()
}

// Apply hot-swaps the reload-safe settings: machine tuning, log level and
// social pacing. Targets and skip lists are read per workflow.
func (rt *Runtime) Apply(cfg config.Config) {
	mcfg, err := cfg.Machine.Build()
	if err != nil {
		rt.logger.Error().Err(err).Str("event", "config.apply_failed").Msg("machine config rejected, keeping previous")
	} else {
		rt.Machine.UpdateConfig(mcfg)
	}
	if err := xglog.SetLevel(cfg.Log.Level); err != nil {
		rt.logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level, keeping previous")
	}
	rt.Limiter.Update(cfg.Social.Limits())
	rt.cfg.Store(&cfg)
	rt.logger.Info().Str("event", "config.applied").Msg("runtime configuration applied")
}

// ExpireSessions marks sessions past their max age as expired.
func (rt *Runtime) ExpireSessions(ctx context.Context) {
	n, err := rt.Sessions.Expire(ctx)
	if err != nil {
		rt.logger.Warn().Err(err).Str("event", "session.expire_failed").Msg("session expiry sweep failed")
		return
	}
	if n > 0 {
		rt.logger.Info().Int("expired", n).Str("event", "session.expired").Msg("sessions expired")
	}
}

// APIServer builds the HTTP API over this runtime. /metrics is mounted on
// the API listener unless a separate metrics address is configured.
func (rt *Runtime) APIServer() *api.Server {
	cfg := rt.Config()
	return api.New(cfg.API, api.Deps{
		Runs:         rt.Machine,
		Workflows:    rt.Workflows,
		Sessions:     rt.Sessions,
		Checkpoints:  rt.Checkpoints,
		Health:       rt.Health,
		Adapters:     cfg.Adapters,
		ServeMetrics: cfg.API.MetricsAddr == "",
	})
}

// Close releases everything in reverse build order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	if rt.sessionStore != nil {
		if err := rt.sessionStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
		rt.sessionStore = nil
	}
	return errors.Join(errs...)
}

// Workflows applies configured social defaults to each workflow request.
type Workflows struct {
	orch *workflow.Orchestrator
	rt   *Runtime
}

// Run fills the social skip list and targets from the live config when the
// request leaves them empty. Promotion is dropped when social is disabled.
func (w *Workflows) Run(ctx context.Context, req workflow.Request) workflow.Result {
	cfg := w.rt.Config().Social
	if req.Promote && w.rt.Promoter == nil {
		w.rt.logger.Warn().Str("event", "workflow.promote_disabled").Msg("social promotion requested but disabled in config")
		req.Promote = false
	}
	if len(req.SocialSkip) == 0 {
		req.SocialSkip = cfg.SkipPlatforms()
	}
	if req.Targets.FacebookPageID == "" {
		req.Targets.FacebookPageID = cfg.Targets.FacebookPageID
	}
	if req.Targets.DiscordChannelID == "" {
		req.Targets.DiscordChannelID = cfg.Targets.DiscordChannelID
	}
	return w.orch.Run(ctx, req)
}
