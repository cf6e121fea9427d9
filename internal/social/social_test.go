// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/ratelimit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func handoff() Handoff {
	return Handoff{
		EventURL:    "https://lu.ma/abc123",
		ImageURL:    "https://img.example/cover.png",
		Title:       "Coffee & Code",
		Date:        "March 15, 2026",
		Time:        "6:00 PM EST",
		Location:    "Philadelphia, PA",
		Description: "Monthly meetup for developers",
	}
}

func unlimited() *ratelimit.Limiter { return ratelimit.New(ratelimit.Config{}) }

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10, 0))
	assert.Equal(t, "", Truncate("anything", 5, 5))

	long := strings.Repeat("word ", 100)
	got := Truncate(long, 50, 0)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
	assert.True(t, strings.HasSuffix(got, "word..."), got)

	// No space in the second half: hard cut.
	got = Truncate(strings.Repeat("x", 100), 20, 0)
	assert.Equal(t, strings.Repeat("x", 17)+"...", got)

	got = Truncate(long, 100, 30)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 70)
}

func TestFormatLimits(t *testing.T) {
	h := handoff()
	targets := Targets{FacebookPageID: "page-1", DiscordChannelID: "chan-1"}
	long := strings.Repeat("promo ", 20000)

	for _, p := range All {
		t.Run(string(p), func(t *testing.T) {
			post, err := Format(p, long, h, targets)
			require.NoError(t, err)
			n := utf8.RuneCountInString(post.Content)
			if p == Twitter {
				// The URL counts as 23 characters once shortened.
				n = n - utf8.RuneCountInString(h.EventURL) + tcoLength
			}
			assert.LessOrEqual(t, n, Limit(p))
			assert.Contains(t, post.Content, h.EventURL)
		})
	}
}

func TestFormatRequirements(t *testing.T) {
	h := handoff()
	h.ImageURL = ""
	_, err := Format(Instagram, "x", h, Targets{})
	assert.ErrorIs(t, err, ErrMissingRequirement)

	_, err = Format(Facebook, "x", handoff(), Targets{})
	assert.ErrorIs(t, err, ErrMissingRequirement)

	_, err = Format(Discord, "x", handoff(), Targets{})
	assert.ErrorIs(t, err, ErrMissingRequirement)

	post, err := Format(Discord, "hello", handoff(), Targets{DiscordChannelID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", post.Target)
	assert.Equal(t, "hello\n\n**RSVP:** https://lu.ma/abc123\n\nhttps://img.example/cover.png", post.Content)
}

func TestPromoteFansOutAndIsolatesFailures(t *testing.T) {
	pub := NewDryRunPublisher()
	pub.FailOn(LinkedIn, errors.New("token expired"))
	m := NewManager(pub, unlimited(), Targets{DiscordChannelID: "chan-1"}, time.Second)

	rep := m.Promote(context.Background(), Request{
		Handoff: handoff(),
		Copies:  map[Platform]string{Twitter: "Join us!"},
		Skip:    []Platform{Instagram},
	})

	got := map[Platform]Status{}
	for _, r := range rep.Results {
		got[r.Platform] = r.Status
	}
	want := map[Platform]Status{
		Twitter:   StatusSuccess,
		LinkedIn:  StatusFailed,
		Instagram: StatusSkipped,
		Facebook:  StatusSkipped,
		Discord:   StatusSuccess,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, rep.Succeeded())

	li, ok := rep.Get(LinkedIn)
	require.True(t, ok)
	assert.Contains(t, li.Error, "token expired")

	var tweet string
	for _, p := range pub.Posts() {
		if p.Platform == Twitter {
			tweet = p.Content
		}
	}
	assert.Equal(t, "Join us!\n\nhttps://lu.ma/abc123", tweet)
}

func TestPromoteUsesFallbackCopy(t *testing.T) {
	pub := NewDryRunPublisher()
	m := NewManager(pub, unlimited(), Targets{}, time.Second)

	m.Promote(context.Background(), Request{Handoff: handoff(), Skip: []Platform{Twitter, Instagram, Facebook, Discord}})
	posts := pub.Posts()
	require.Len(t, posts, 1)
	assert.True(t, strings.HasPrefix(posts[0].Content, "Coffee & Code\n\nMarch 15, 2026 at 6:00 PM EST"))
}

type slowPublisher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowPublisher) Publish(ctx context.Context, p Post) (Receipt, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
	return Receipt{ID: string(p.Platform)}, nil
}

func TestPromoteBoundedParallelism(t *testing.T) {
	pub := &slowPublisher{}
	m := NewManager(pub, unlimited(), Targets{FacebookPageID: "p", DiscordChannelID: "c"}, time.Second)

	rep := m.Promote(context.Background(), Request{Handoff: handoff()})
	assert.Equal(t, 5, rep.Succeeded())
	assert.LessOrEqual(t, int(pub.peak.Load()), MaxParallel)
	assert.GreaterOrEqual(t, int(pub.peak.Load()), 2)
}

func TestWebhookPublisher(t *testing.T) {
	var got Post
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hooks/discord", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Receipt{ID: "m1", URL: "https://discord.com/channels/g/c/m1"})
	}))
	defer srv.Close()

	pub, err := NewWebhookPublisher(srv.URL+"/hooks/", "s3cret", time.Second)
	require.NoError(t, err)

	rc, err := pub.Publish(context.Background(), Post{Platform: Discord, Content: "hi", Target: "c"})
	require.NoError(t, err)
	assert.Equal(t, "m1", rc.ID)
	assert.Equal(t, "c", got.Target)
	assert.Equal(t, "hi", got.Content)
}

func TestWebhookPublisherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "instagram") {
			http.Error(w, "account is not a business account", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	pub, err := NewWebhookPublisher(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), Post{Platform: Instagram})
	assert.ErrorIs(t, err, ErrMissingRequirement)

	_, err = pub.Publish(context.Background(), Post{Platform: Twitter})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")

	_, err = NewWebhookPublisher("not a url", "", 0)
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Discord ")
	require.NoError(t, err)
	assert.Equal(t, Discord, p)

	_, err = ParsePlatform("myspace")
	assert.Error(t, err)
}
