// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm holds strict transition tables: an event not listed for the
// current state is an error, never a no-op.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is wrapped by every rejected event.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition is one edge. Guard may veto it; Action runs before the state
// changes and aborts the edge on error.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from, to S, event E) error
}

type edge[S ~string, E ~string] struct {
	from  S
	event E
}

// Table is an immutable, validated set of transitions.
type Table[S ~string, E ~string] struct {
	edges map[edge[S, E]]Transition[S, E]
}

// NewTable rejects duplicate (from, event) pairs.
func NewTable[S ~string, E ~string](transitions []Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{edges: make(map[edge[S, E]]Transition[S, E], len(transitions))}
	for _, tr := range transitions {
		k := edge[S, E]{tr.From, tr.Event}
		if _, dup := t.edges[k]; dup {
			return nil, fmt.Errorf("fsm: duplicate transition %s --%s-->", tr.From, tr.Event)
		}
		t.edges[k] = tr
	}
	return t, nil
}

// MustTable is NewTable for package-level tables.
func MustTable[S ~string, E ~string](transitions []Transition[S, E]) *Table[S, E] {
	t, err := NewTable(transitions)
	if err != nil {
		panic(err)
	}
	return t
}

// Target returns where event leads from from.
func (t *Table[S, E]) Target(from S, event E) (S, bool) {
	tr, ok := t.edges[edge[S, E]{from, event}]
	return tr.To, ok
}

// Apply runs the guard and action of (from, event) and returns the new state.
// On any error the returned state is from.
func (t *Table[S, E]) Apply(ctx context.Context, from S, event E) (S, error) {
	tr, ok := t.edges[edge[S, E]{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	if tr.Guard != nil {
		if err := tr.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if tr.Action != nil {
		if err := tr.Action(ctx, from, tr.To, event); err != nil {
			return from, err
		}
	}
	return tr.To, nil
}

// Machine tracks one current state over a Table.
type Machine[S ~string, E ~string] struct {
	table *Table[S, E]

	mu    sync.Mutex
	state S
}

// New builds a table and a machine starting at initial.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	t, err := NewTable(transitions)
	if err != nil {
		return nil, err
	}
	return t.Start(initial), nil
}

// Start returns a machine over t.
func (t *Table[S, E]) Start(initial S) *Machine[S, E] {
	return &Machine[S, E]{table: t, state: initial}
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is accepted from the current state.
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.table.Target(m.State(), event)
	return ok
}

// Target is Table.Target.
func (m *Machine[S, E]) Target(from S, event E) (S, bool) {
	return m.table.Target(from, event)
}

// Fire applies event. Guard and Action run unlocked; if another Fire moved
// the state meanwhile, this one fails and the state is left alone.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	from := m.State()
	to, err := m.table.Apply(ctx, from, event)
	if err != nil {
		return from, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return m.state, fmt.Errorf("fsm: concurrent transition: from=%s cur=%s event=%s", from, m.state, event)
	}
	m.state = to
	return to, nil
}
