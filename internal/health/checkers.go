// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckpointStore is the part of checkpoint.Store the checker needs.
type CheckpointStore interface {
	Backend() string
	Degraded() bool
}

// CheckpointChecker reports degraded mode. Runs still work in degraded
// mode but suspended runs do not survive a restart.
type CheckpointChecker struct {
	store CheckpointStore
}

func NewCheckpointChecker(store CheckpointStore) *CheckpointChecker {
	return &CheckpointChecker{store: store}
}

func (c *CheckpointChecker) Name() string { return "checkpoint_store" }

func (c *CheckpointChecker) Check(context.Context) CheckResult {
	if c.store.Degraded() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "in-memory fallback; suspended runs are lost on restart",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "backend " + c.store.Backend()}
}

// BreakerChecker maps the provider circuit breaker state: open is
// unhealthy, half-open degraded.
type BreakerChecker struct {
	name  string
	state func() string
}

// NewBreakerChecker reads the breaker state through fn, which returns
// "closed", "open" or "half-open".
func NewBreakerChecker(name string, fn func() string) *BreakerChecker {
	return &BreakerChecker{name: name, state: fn}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch s := c.state(); s {
	case "open":
		return CheckResult{Status: StatusUnhealthy, Message: "circuit breaker open", Error: "provider failing"}
	case "half-open":
		return CheckResult{Status: StatusDegraded, Message: "circuit breaker probing"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "circuit breaker " + s}
	}
}

// FuncChecker adapts a function returning an error.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
	// informational checks report failures as degraded.
	informational bool
}

// NewFuncChecker fails the check with the error returned by fn.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

// Informational wraps fn so its failures degrade instead of failing
// readiness.
func Informational(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, informational: true}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		status := StatusUnhealthy
		if c.informational {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// ConfigChecker is healthy once a configuration has been loaded.
func ConfigChecker(loaded func() bool) *FuncChecker {
	return NewFuncChecker("config", func(context.Context) error {
		if !loaded() {
			return fmt.Errorf("configuration not loaded")
		}
		return nil
	})
}

// WritableDirChecker verifies a directory accepts new files.
func WritableDirChecker(name, dir string) *FuncChecker {
	return Informational(name, func(context.Context) error {
		return checkWritable(dir)
	})
}

func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	f, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
