// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/redisx"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

func sample(tenant, platform string) Checkpoint {
	now := time.Now().UTC().Truncate(time.Second)
	return Checkpoint{
		ID:        NewID(tenant, platform, now),
		Tenant:    tenant,
		Platform:  platform,
		State:     state.AuthCheck,
		Event:     event.Data{Title: "Go Meetup", Date: "Jan 5", Time: "6pm EST", Location: "Philly", Description: "Talks"},
		Completed: []state.State{state.Init, state.CheckDuplicate, state.Navigate},
		StateData: map[string]string{"start_url": "https://lu.ma/create"},
		Retries:   map[state.State]int{state.Navigate: 1},
		SessionID: "session-1",
		LiveURL:   "https://live.example/session-1",
		Reason:    "Verification code",

		ResumeToken: NewToken(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	file, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sq, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)

	bg, err := OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bg.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rd := NewRedisStore(client, "test", true)
	t.Cleanup(func() { _ = rd.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sq,
		"badger": bg,
		"redis":  rd,
	}
}

func TestStoreRoundTripAndTake(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cp := sample("Acme Co", "luma")
			require.NoError(t, s.Save(ctx, cp))

			got, err := s.Load(ctx, "Acme Co", "luma")
			require.NoError(t, err)
			if diff := cmp.Diff(cp, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
				t.Fatalf("loaded checkpoint mismatch (-want +got):\n%s", diff)
			}

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)

			// Wrong token keeps the checkpoint.
			_, err = s.Take(ctx, "Acme Co", "luma", "not-the-token")
			require.ErrorIs(t, err, ErrTokenMismatch)
			_, err = s.Load(ctx, "Acme Co", "luma")
			require.NoError(t, err)

			taken, err := s.Take(ctx, "Acme Co", "luma", cp.ResumeToken)
			require.NoError(t, err)
			assert.Equal(t, cp.State, taken.State)

			// Second take with the same token fails.
			_, err = s.Take(ctx, "Acme Co", "luma", cp.ResumeToken)
			require.ErrorIs(t, err, ErrNotFound)
			assert.False(t, s.Degraded())
		})
	}
}

func TestStoreKeysByTenantAndPlatform(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := sample("tenant-a", "luma")
			b := sample("tenant-b", "luma")
			c := sample("tenant-a", "meetup")
			for _, cp := range []Checkpoint{a, b, c} {
				require.NoError(t, s.Save(ctx, cp))
			}

			got, err := s.Load(ctx, "tenant-b", "luma")
			require.NoError(t, err)
			assert.Equal(t, b.ResumeToken, got.ResumeToken)

			require.NoError(t, s.Delete(ctx, "tenant-a", "luma"))
			_, err = s.Load(ctx, "tenant-a", "luma")
			require.ErrorIs(t, err, ErrNotFound)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "tenant-a", list[0].Tenant)
			assert.Equal(t, "meetup", list[0].Platform)
		})
	}
}

func TestStoreKeepsSimilarTenantsApart(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			spaced := sample("acme corp", "luma")
			dashed := sample("acme-corp", "luma")
			upper := sample("Acme-corp", "luma")
			for _, cp := range []Checkpoint{spaced, dashed, upper} {
				require.NoError(t, s.Save(ctx, cp))
			}

			got, err := s.Load(ctx, "acme corp", "luma")
			require.NoError(t, err)
			assert.Equal(t, "acme corp", got.Tenant)
			assert.Equal(t, spaced.ResumeToken, got.ResumeToken)

			_, err = s.Take(ctx, "acme corp", "luma", dashed.ResumeToken)
			require.ErrorIs(t, err, ErrTokenMismatch)
			taken, err := s.Take(ctx, "acme corp", "luma", spaced.ResumeToken)
			require.NoError(t, err)
			assert.Equal(t, "acme corp", taken.Tenant)

			require.NoError(t, s.Delete(ctx, "acme corp", "luma"))
			got, err = s.Load(ctx, "acme-corp", "luma")
			require.NoError(t, err)
			assert.Equal(t, dashed.ResumeToken, got.ResumeToken)
			got, err = s.Load(ctx, "Acme-corp", "luma")
			require.NoError(t, err)
			assert.Equal(t, upper.ResumeToken, got.ResumeToken)
		})
	}
}

func TestLoadRejectsForeignTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cp := sample("acme", "luma")
	// A record filed under another tenant's key is never handed out.
	s.items[key("globex", "luma")] = cp

	_, err := s.Load(ctx, "globex", "luma")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Take(ctx, "globex", "luma", cp.ResumeToken)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, s.items, 1)
}

func TestExpiredCheckpointIsRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cp := sample("acme", "partiful")
	require.NoError(t, s.Save(ctx, cp))

	s.now = func() time.Time { return cp.ExpiresAt.Add(time.Second) }

	_, err := s.Load(ctx, "acme", "partiful")
	require.ErrorIs(t, err, ErrExpired)
	_, err = s.Take(ctx, "acme", "partiful", cp.ResumeToken)
	require.ErrorIs(t, err, ErrExpired)
	_, err = s.Load(ctx, "acme", "partiful")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), sample("Acme/Co", "meetup")))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	path := filepath.Join(dir, "checkpoint_%41cme%2F%43o_meetup.json")
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Garbage files are skipped by List.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint_broken_luma.json"), []byte("{"), 0o600))
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveValidates(t *testing.T) {
	s := NewMemoryStore()
	err := s.Save(context.Background(), Checkpoint{Platform: "luma"})
	assert.Error(t, err)
	err = s.Save(context.Background(), Checkpoint{ResumeToken: "x"})
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	assert.Equal(t, "default_luma_1700000000", NewID("", "luma", at))
	assert.Equal(t, "acme_meetup_1700000000", NewID(" acme ", "meetup", at))
	assert.Equal(t, "acme%20corp_meetup_1700000000", NewID("acme corp", "meetup", at))
	assert.NotEqual(t, NewToken(), NewToken())
}

func TestOpenFallsBackToDegradedMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := Open(context.Background(), Config{Backend: BackendFile, Dir: filepath.Join(blocker, "sub")}, zerolog.Nop())
	assert.True(t, s.Degraded())
	assert.Equal(t, BackendMemory, s.Backend())

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	s = Open(context.Background(), Config{Backend: BackendRedis, Redis: redisx.Config{Addr: addr}}, zerolog.Nop())
	assert.True(t, s.Degraded())

	s = Open(context.Background(), Config{Backend: "floppy"}, zerolog.Nop())
	assert.True(t, s.Degraded())
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendFile, BackendSQLite, BackendBadger, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			s := Open(ctx, Config{Backend: backend, Dir: t.TempDir()}, zerolog.Nop())
			defer func() { _ = s.Close() }()
			assert.False(t, s.Degraded())
			assert.Equal(t, backend, s.Backend())

			cp := sample("acme", "luma")
			require.NoError(t, s.Save(ctx, cp))
			_, err := s.Take(ctx, "acme", "luma", cp.ResumeToken)
			require.NoError(t, err)
		})
	}
}
