// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package state names the steps of an event creation run.
package state

import "fmt"

// State is one step (or outcome) of an event creation run.
type State string

const (
	Init            State = "INIT"
	CheckDuplicate  State = "CHECK_DUPLICATE"
	Navigate        State = "NAVIGATE"
	AuthCheck       State = "AUTH_CHECK"
	FillTitle       State = "FILL_TITLE"
	FillDate        State = "FILL_DATE"
	FillTime        State = "FILL_TIME"
	FillLocation    State = "FILL_LOCATION"
	FillDescription State = "FILL_DESCRIPTION"
	UploadImage     State = "UPLOAD_IMAGE"
	SetTickets      State = "SET_TICKETS"
	AddCoHosts      State = "ADD_COHOSTS"
	SetRecurring    State = "SET_RECURRING"
	SetIntegrations State = "SET_INTEGRATIONS"
	VerifyForm      State = "VERIFY_FORM"
	Submit          State = "SUBMIT"
	PostSubmit      State = "POST_SUBMIT"
	VerifySuccess   State = "VERIFY_SUCCESS"

	// Terminal outcomes.
	Done      State = "DONE"
	Failed    State = "FAILED"
	NeedsAuth State = "NEEDS_AUTH"
	Duplicate State = "DUPLICATE"
	Skipped   State = "SKIPPED"

	// Await2FA suspends a run until it is resumed with its token.
	Await2FA State = "AWAIT_2FA"

	// Running is reported by the two-phase API while a browser task is in flight.
	Running State = "running"
)

// Canonical is the full ordered step list. Feature steps may be filtered out
// per platform and event; the relative order never changes.
var Canonical = []State{
	Init,
	CheckDuplicate,
	Navigate,
	AuthCheck,
	FillTitle,
	FillDate,
	FillTime,
	FillLocation,
	FillDescription,
	UploadImage,
	SetTickets,
	AddCoHosts,
	SetRecurring,
	SetIntegrations,
	VerifyForm,
	Submit,
	PostSubmit,
	VerifySuccess,
}

var index = func() map[State]int {
	m := make(map[State]int, len(Canonical))
	for i, s := range Canonical {
		m[s] = i
	}
	return m
}()

// IsTerminal reports whether s ends a run.
func (s State) IsTerminal() bool {
	switch s {
	case Done, Failed, NeedsAuth, Duplicate, Skipped:
		return true
	}
	return false
}

// IsStep reports whether s is one of the canonical steps.
func (s State) IsStep() bool {
	_, ok := index[s]
	return ok
}

// IsFeature reports whether s is an optional, adapter-declared step.
func (s State) IsFeature() bool {
	switch s {
	case UploadImage, SetTickets, AddCoHosts, SetRecurring, SetIntegrations:
		return true
	}
	return false
}

// IsFill reports whether s writes one form field.
func (s State) IsFill() bool {
	switch s {
	case FillTitle, FillDate, FillTime, FillLocation, FillDescription:
		return true
	}
	return false
}

// Index is the position of s in Canonical, or -1.
func (s State) Index() int {
	if i, ok := index[s]; ok {
		return i
	}
	return -1
}

// Before reports whether s precedes other in canonical order.
func (s State) Before(other State) bool {
	a, b := s.Index(), other.Index()
	return a >= 0 && b >= 0 && a < b
}

// Parse validates a state name.
func Parse(v string) (State, error) {
	s := State(v)
	if s.IsStep() || s.IsTerminal() || s == Await2FA {
		return s, nil
	}
	return "", fmt.Errorf("unknown state %q", v)
}

// IsOrderedSubsequence reports whether seq follows canonical order without
// repeats. Used to check recorded runs.
func IsOrderedSubsequence(seq []State) bool {
	last := -1
	for _, s := range seq {
		i := s.Index()
		if i < 0 || i <= last {
			return false
		}
		last = i
	}
	return true
}
