// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	fail := func() error { return fmt.Errorf("dial: %w", ErrUnavailable) }

	assert.ErrorIs(t, cb.Execute(fail), ErrUnavailable)
	assert.Equal(t, BreakerClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), ErrUnavailable)
	assert.Equal(t, BreakerOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)
	err := cb.Execute(func() error { return ErrUnauthorized })
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("test", 1, 10*time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return ErrProviderError })
	assert.Equal(t, BreakerOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, BreakerClosed, cb.State())

	_ = cb.Execute(func() error { return ErrProviderError })
	now = now.Add(11 * time.Second)
	err := cb.Execute(func() error { return errors.Join(ErrTimeout) })
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, BreakerOpen, cb.State())
}
