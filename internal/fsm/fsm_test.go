// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type st string
type ev string

func TestFireFollowsTable(t *testing.T) {
	var seen []string
	m, err := New[st, ev]("a", []Transition[st, ev]{
		{From: "a", Event: "go", To: "b", Action: func(_ context.Context, from, to st, _ ev) error {
			seen = append(seen, string(from)+">"+string(to))
			return nil
		}},
		{From: "b", Event: "go", To: "c"},
	})
	require.NoError(t, err)

	assert.True(t, m.Can("go"))
	to, err := m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, st("b"), to)

	_, err = m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, st("c"), m.State())
	assert.Equal(t, []string{"a>b"}, seen)

	_, err = m.Fire(context.Background(), "go")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, st("c"), m.State())
}

func TestGuardRejects(t *testing.T) {
	blocked := errors.New("blocked")
	m, err := New[st, ev]("a", []Transition[st, ev]{
		{From: "a", Event: "go", To: "b", Guard: func(context.Context, st, ev) error { return blocked }},
	})
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), "go")
	assert.ErrorIs(t, err, blocked)
	assert.Equal(t, st("a"), m.State())
}

func TestDuplicateTransitionRejected(t *testing.T) {
	_, err := New[st, ev]("a", []Transition[st, ev]{
		{From: "a", Event: "go", To: "b"},
		{From: "a", Event: "go", To: "c"},
	})
	assert.Error(t, err)
}

func TestTarget(t *testing.T) {
	m, err := New[st, ev]("a", []Transition[st, ev]{{From: "a", Event: "go", To: "b"}})
	require.NoError(t, err)
	to, ok := m.Target("a", "go")
	assert.True(t, ok)
	assert.Equal(t, st("b"), to)
	_, ok = m.Target("b", "go")
	assert.False(t, ok)
}

func TestTableApplyIsStateless(t *testing.T) {
	tbl := MustTable([]Transition[st, ev]{
		{From: "cold", Event: "login", To: "warm"},
		{From: "warm", Event: "expire", To: "expired"},
	})

	to, err := tbl.Apply(context.Background(), "cold", "login")
	require.NoError(t, err)
	assert.Equal(t, st("warm"), to)

	to, err = tbl.Apply(context.Background(), "cold", "expire")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, st("cold"), to)

	m := tbl.Start("warm")
	assert.True(t, m.Can("expire"))
	assert.False(t, m.Can("login"))
}

func TestMustTablePanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		MustTable([]Transition[st, ev]{
			{From: "a", Event: "go", To: "b"},
			{From: "a", Event: "go", To: "b"},
		})
	})
}
