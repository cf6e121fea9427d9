// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
)

// DefaultExpireInterval is how often sessions are checked against their
// max age.
const DefaultExpireInterval = 10 * time.Minute

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// session expiry) and delegates server management to Manager.
type App struct {
	logger         zerolog.Logger
	manager        Manager
	holder         *config.Holder
	runtime        *Runtime
	reloadSignal   os.Signal
	expireInterval time.Duration
}

// NewApp creates a new App orchestrator. holder may be nil when the config
// came from the environment only.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, rt *Runtime) *App {
	return &App{
		logger:         logger,
		manager:        manager,
		holder:         holder,
		runtime:        rt,
		reloadSignal:   syscall.SIGHUP,
		expireInterval: DefaultExpireInterval,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.holder != nil {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		} else {
			defer a.holder.Stop()
		}
	}

	if a.holder != nil && a.runtime != nil {
		applyCh := make(chan config.Config, 1)
		a.holder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.runtime.Apply(cfg)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.holder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.runtime != nil && a.expireInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(a.expireInterval)
			defer ticker.Stop()
			a.runtime.ExpireSessions(ctx)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.runtime.ExpireSessions(ctx)
				}
			}
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
