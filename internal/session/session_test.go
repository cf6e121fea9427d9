// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/lease"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingCreator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCreator) CreateProfile(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "profile-" + name, nil
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		from, to AuthState
		ok       bool
	}{
		{Cold, Warm, true},
		{Warm, NeedsAuth, true},
		{Warm, Paused2FA, true},
		{Warm, Expired, true},
		{NeedsAuth, Expired, true},
		{Paused2FA, Expired, true},
		{Expired, Warm, true},
		{NeedsAuth, Warm, true},
		{Warm, Warm, true},
		{Warm, Cold, false},
		{Expired, Cold, false},
		{Cold, Expired, false},
	}
	for _, tt := range tests {
		got, err := Transition(ctx, tt.from, tt.to)
		if tt.ok {
			require.NoError(t, err, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.to, got)
		} else {
			require.Error(t, err, "%s -> %s", tt.from, tt.to)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, tt.from, got)
		}
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	creator := &countingCreator{}
	reg := NewRegistry(NewMemoryStore(), nil, Config{}, WithProfileCreator(creator))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.GetOrCreate(ctx, "acme", "luma")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := reg.GetOrCreate(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, Cold, s.AuthState)
	assert.Equal(t, "profile-eventcast-acme-luma", s.ProfileID)
	assert.Equal(t, 1, creator.calls)
}

func TestConfiguredProfileIsReused(t *testing.T) {
	ctx := context.Background()
	creator := &countingCreator{}
	reg := NewRegistry(NewMemoryStore(), nil, Config{Profiles: map[string]string{"meetup": "prof-123"}}, WithProfileCreator(creator))

	s, err := reg.GetOrCreate(ctx, "acme", "meetup")
	require.NoError(t, err)
	assert.Equal(t, "prof-123", s.ProfileID)
	assert.Zero(t, creator.calls)
}

func TestSessionsAreNotSharedAcrossTenants(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), nil, Config{})

	_, err := reg.GetOrCreate(ctx, "a", "luma")
	require.NoError(t, err)
	_, err = reg.GetOrCreate(ctx, "b", "luma")
	require.NoError(t, err)

	_, err = reg.CompleteAuth(ctx, "a", "luma")
	require.NoError(t, err)

	b, err := reg.Get(ctx, "b", "luma")
	require.NoError(t, err)
	assert.Equal(t, Cold, b.AuthState)
}

func TestSimilarTenantIDsStayApart(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), lease.NewMemoryStore(), Config{LiveTimeout: time.Minute})

	_, err := reg.GetOrCreate(ctx, "acme corp", "luma")
	require.NoError(t, err)
	_, err = reg.GetOrCreate(ctx, "acme-corp", "luma")
	require.NoError(t, err)
	_, err = reg.CompleteAuth(ctx, "acme corp", "luma")
	require.NoError(t, err)

	dashed, err := reg.Get(ctx, "acme-corp", "luma")
	require.NoError(t, err)
	assert.Equal(t, Cold, dashed.AuthState)
	assert.Equal(t, "acme-corp", dashed.Tenant)

	h, err := reg.Acquire(ctx, "acme corp", "luma", "run-1")
	require.NoError(t, err)
	other, err := reg.Acquire(ctx, "acme-corp", "luma", "run-2")
	require.NoError(t, err)
	upper, err := reg.Acquire(ctx, "Acme corp", "luma", "run-3")
	require.NoError(t, err)
	for _, held := range []*lease.Held{h, other, upper} {
		require.NoError(t, held.Release(ctx))
	}
}

func TestMarkAuthStateRejectsRegression(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), nil, Config{})
	_, err := reg.GetOrCreate(ctx, "acme", "luma")
	require.NoError(t, err)

	s, err := reg.MarkAuthState(ctx, "acme", "luma", Warm)
	require.NoError(t, err)
	assert.False(t, s.LastAuth.IsZero())

	_, err = reg.MarkAuthState(ctx, "acme", "luma", Cold)
	require.ErrorIs(t, err, ErrInvalidTransition)

	s, err = reg.Get(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, Warm, s.AuthState)
}

func TestExpireSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(NewMemoryStore(), nil, Config{MaxAge: 24 * time.Hour}, WithClock(func() time.Time { return now }))

	for _, p := range []string{"luma", "meetup", "partiful"} {
		_, err := reg.GetOrCreate(ctx, "acme", p)
		require.NoError(t, err)
	}
	_, err := reg.CompleteAuth(ctx, "acme", "luma")
	require.NoError(t, err)
	_, err = reg.CompleteAuth(ctx, "acme", "meetup")
	require.NoError(t, err)

	now = now.Add(12 * time.Hour)
	_, err = reg.CompleteAuth(ctx, "acme", "meetup") // no-op, stays WARM
	require.NoError(t, err)

	now = now.Add(13 * time.Hour)
	n, err := reg.Expire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	luma, _ := reg.Get(ctx, "acme", "luma")
	assert.Equal(t, Expired, luma.AuthState)
	meetup, _ := reg.Get(ctx, "acme", "meetup")
	assert.Equal(t, Expired, meetup.AuthState, "login age counts from the first confirmation")
	partiful, _ := reg.Get(ctx, "acme", "partiful")
	assert.Equal(t, Cold, partiful.AuthState, "cold sessions never expire")
}

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), lease.NewMemoryStore(), Config{LiveTimeout: time.Minute})

	h, err := reg.Acquire(ctx, "acme", "meetup", "run-1")
	require.NoError(t, err)

	_, err = reg.Acquire(ctx, "acme", "meetup", "run-2")
	require.ErrorIs(t, err, lease.ErrHeld)

	cur, ok, err := reg.Holder(ctx, "acme", "meetup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", cur.Owner)

	// Other tenant is independent.
	other, err := reg.Acquire(ctx, "globex", "meetup", "run-3")
	require.NoError(t, err)

	require.NoError(t, h.Release(ctx))
	require.NoError(t, other.Release(ctx))
}

func TestBeginAndCompleteAuth(t *testing.T) {
	ctx := context.Background()
	fake := browser.NewFake(nil)
	reg := NewRegistry(NewMemoryStore(), nil, Config{}, WithRunner(fake))

	s, h, err := reg.BeginAuth(ctx, "acme", "luma", "https://lu.ma/signin")
	require.NoError(t, err)
	assert.NotEmpty(t, h.TaskID)
	assert.Equal(t, h.LiveURL, s.LiveURL)
	assert.Equal(t, Cold, s.AuthState)

	started := fake.Started()
	require.Len(t, started, 1)
	assert.Equal(t, "https://lu.ma/signin", started[0].StartURL)
	assert.Contains(t, started[0].Task, "Do not type any credentials")

	live, err := reg.ResolveLiveURL(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, "https://live.fake/"+h.SessionID, live)

	s, err = reg.CompleteAuth(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, Warm, s.AuthState)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	sq, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)
	file, err := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)

	for name, st := range map[string]Store{"memory": NewMemoryStore(), "sqlite": sq, "file": file} {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(ctx, "acme", "luma")
			require.ErrorIs(t, err, ErrNotFound)

			in := Session{Tenant: "acme", Platform: "luma", ProfileID: "p1", AuthState: Warm, CreatedAt: time.Unix(100, 0).UTC()}
			require.NoError(t, st.Put(ctx, in))
			in.SessionID = "s1"
			require.NoError(t, st.Put(ctx, in))
			require.NoError(t, st.Put(ctx, Session{Tenant: "acme", Platform: "meetup", AuthState: Cold}))

			got, err := st.Get(ctx, "acme", "luma")
			require.NoError(t, err)
			assert.Equal(t, "s1", got.SessionID)
			assert.True(t, in.CreatedAt.Equal(got.CreatedAt))

			list, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "luma", list[0].Platform)
		})
	}
}
