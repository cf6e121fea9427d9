// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized   = errors.New("browser: provider rejected credentials")
	ErrNotFound       = errors.New("browser: task or session not found")
	ErrRateLimited    = errors.New("browser: provider rate limit")
	ErrUnavailable    = errors.New("browser: provider unreachable or transport failure")
	ErrProviderError  = errors.New("browser: provider internal error (5xx)")
	ErrBadResponse    = errors.New("browser: invalid response format or malformed data")
	ErrToolFailed     = errors.New("browser: tool call reported failure")
	ErrTimeout        = errors.New("browser: request timed out")
	ErrMissingTaskID  = errors.New("browser: provider returned no task id")
	ErrNotImplemented = errors.New("browser: operation not supported by provider")
)

// Error wraps a sentinel with the failing operation and HTTP context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("browser: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Retryable reports whether a later identical call may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCircuitOpen)
}

// countsAsFailure decides which errors move the circuit breaker.
func countsAsFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrProviderError) || errors.Is(err, ErrTimeout)
}
