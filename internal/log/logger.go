// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"cmp"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the process-wide logger. Empty fields fall back to
// EVENTCAST_LOG_LEVEL, EVENTCAST_LOG_SERVICE and EVENTCAST_VERSION.
type Config struct {
	Level   string
	Output  io.Writer // os.Stdout when nil
	Service string
	Version string
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

func parseLevel(v string) (zerolog.Level, bool) {
	if v == "" {
		return zerolog.NoLevel, false
	}
	lvl, err := zerolog.ParseLevel(v)
	return lvl, err == nil
}

// Configure replaces the base logger. It runs once at init with defaults and
// again after the config file is loaded.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if lvl, ok := parseLevel(cmp.Or(cfg.Level, os.Getenv("EVENTCAST_LOG_LEVEL"))); ok {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str(FieldService, cmp.Or(cfg.Service, os.Getenv("EVENTCAST_LOG_SERVICE"), "eventcast")).
		Str(FieldVersion, cmp.Or(cfg.Version, os.Getenv("EVENTCAST_VERSION"))).
		Logger()

	mu.Lock()
	base = l
	mu.Unlock()
}

// SetLevel changes the global level at runtime (config hot reload).
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// WithComponent returns a child of the base logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
