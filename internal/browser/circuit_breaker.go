// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"errors"
	"sync"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // requests allowed
	BreakerOpen                         // requests blocked
	BreakerHalfOpen                     // probing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitOpen = errors.New("browser: circuit breaker is open")

// CircuitBreaker stops calling a provider that keeps failing.
type CircuitBreaker struct {
	mu               sync.Mutex
	component        string
	state            BreakerState
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	lastFailure      time.Time
	probing          bool
	now              func() time.Time

	// isFailure filters which errors count; nil counts every error.
	isFailure func(error) bool
}

// NewCircuitBreaker opens after threshold consecutive failures and probes
// again after resetTimeout.
func NewCircuitBreaker(component string, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	cb := &CircuitBreaker{
		component:        component,
		state:            BreakerClosed,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		isFailure:        countsAsFailure,
	}
	metrics.SetCircuitBreakerState(component, cb.state.String())
	return cb
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			return false
		}
		cb.setState(BreakerHalfOpen)
		cb.probing = true
		return true
	default:
		// One probe at a time while half-open.
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.probing = false

	if cb.state == BreakerHalfOpen {
		cb.setState(BreakerOpen)
		metrics.RecordCircuitBreakerTrip(cb.component, "probe_failed")
		return
	}
	if cb.state == BreakerClosed && cb.failures >= cb.failureThreshold {
		cb.setState(BreakerOpen)
		metrics.RecordCircuitBreakerTrip(cb.component, "threshold")
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.setState(BreakerClosed)
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s BreakerState) {
	if cb.state == s {
		return
	}
	cb.state = s
	metrics.SetCircuitBreakerState(cb.component, s.String())
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
