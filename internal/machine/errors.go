// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"errors"
	"fmt"
)

// Error taxonomy of a platform run.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrTwoFactorChallenge     = errors.New("two-factor challenge")
	ErrFormInteraction        = errors.New("form interaction failed")
	ErrSuccessUnconfirmed     = errors.New("submitted but event URL unconfirmed")
	ErrDuplicateDetected      = errors.New("duplicate event detected")
	ErrInvalidResumeToken     = errors.New("invalid resume token")
	ErrTimeout                = errors.New("poll timeout")
	ErrSessionBusy            = errors.New("browser session in use by another run")
	ErrUnknownTask            = errors.New("unknown task")
)

// StateError records which state failed, how, and on which attempt.
// errors.Is matches both Kind and the underlying cause.
type StateError struct {
	State   string
	Kind    error
	Attempt int
	Err     error
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.State, e.Kind)
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StateError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
