// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Holder holds the live configuration and reloads it from file. Only
// reload-safe sections change at runtime: machine tuning, log level and the
// social skip list, targets and posting pace. Other changes are logged as
// requiring a restart and otherwise ignored.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	logger  zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	listenMu  sync.RWMutex
	listeners []chan<- Config
}

// NewHolder wraps an already loaded config.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the file again. On any error the current
// config stays in place.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	applied, restart := mergeReloadable(old, next)
	h.current = applied
	h.mu.Unlock()

	for _, section := range restart {
		h.logger.Warn().
			Str("event", "config.restart_required").
			Str("section", section).
			Msg("config change requires a restart to take effect")
	}
	logChanges(h.logger, old, applied)
	h.notify(applied)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

// mergeReloadable copies the reload-safe sections of next onto old and
// names the other sections that differ.
func mergeReloadable(old, next Config) (Config, []string) {
	out := old
	out.Machine = next.Machine
	out.Log.Level = next.Log.Level
	out.Social.Skip = next.Social.Skip
	out.Social.Targets = next.Social.Targets
	out.Social.GlobalRate = next.Social.GlobalRate
	out.Social.DefaultRate = next.Social.DefaultRate
	out.Social.Rates = next.Social.Rates

	var restart []string
	if !reflect.DeepEqual(out, next) {
		sections := map[string][2]any{
			"dataDir":    {out.DataDir, next.DataDir},
			"log":        {out.Log, next.Log},
			"provider":   {out.Provider, next.Provider},
			"adapters":   {out.Adapters, next.Adapters},
			"checkpoint": {out.Checkpoint, next.Checkpoint},
			"sessions":   {out.Sessions, next.Sessions},
			"leases":     {out.Leases, next.Leases},
			"social":     {out.Social, next.Social},
			"api":        {out.API, next.API},
			"telemetry":  {out.Telemetry, next.Telemetry},
		}
		for _, name := range []string{"dataDir", "log", "provider", "adapters", "checkpoint", "sessions", "leases", "social", "api", "telemetry"} {
			pair := sections[name]
			if !reflect.DeepEqual(pair[0], pair[1]) {
				restart = append(restart, name)
			}
		}
	}
	return out, restart
}

func logChanges(logger zerolog.Logger, old, next Config) {
	if old.Log.Level != next.Log.Level {
		logger.Info().Str("old", old.Log.Level).Str("new", next.Log.Level).Msg("config changed: log.level")
	}
	if old.Machine.PollInterval != next.Machine.PollInterval {
		logger.Info().Dur("old", old.Machine.PollInterval).Dur("new", next.Machine.PollInterval).
			Msg("config changed: machine.pollInterval")
	}
	if !reflect.DeepEqual(old.Machine.Policies, next.Machine.Policies) {
		logger.Info().Int("policies", len(next.Machine.Policies)).Msg("config changed: machine.policies")
	}
	if !reflect.DeepEqual(old.Social.Skip, next.Social.Skip) {
		logger.Info().Strs("old", old.Social.Skip).Strs("new", next.Social.Skip).Msg("config changed: social.skip")
	}
}

// RegisterListener receives every successfully applied config. Sends are
// non-blocking; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg Config) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

// StartWatcher reloads on writes to the config file until ctx ends or Stop
// is called. Without a file it is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")
	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	defer close(h.done)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Write and Create cover in-place edits and editors that swap files.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", event.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher and waits for its loop to exit.
func (h *Holder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}
