// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, m *MockServer, provider string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:          m.URL,
		APIKey:           "test-key",
		Provider:         provider,
		Timeout:          5 * time.Second,
		BreakerThreshold: 3,
		BreakerReset:     time.Minute,
	})
	require.NoError(t, err)
	return c
}

func TestClientHyperbrowserRoundTrip(t *testing.T) {
	m := NewMockServer()
	defer m.Close()
	m.RequireAPIKey("test-key")

	c := newTestClient(t, m, "hyperbrowser")
	ctx := context.Background()

	h, err := c.StartTask(ctx, TaskRequest{
		Task:      "Fill the title",
		StartURL:  "https://lu.ma/create",
		ProfileID: "profile-1",
		Metadata:  map[string]string{MetaState: "FILL_TITLE"},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", h.TaskID)
	assert.Equal(t, "session-1", h.SessionID)
	assert.Equal(t, "https://live.mock/session-1", h.LiveURL)

	st, err := c.PollTask(ctx, h.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status)

	st, err = c.PollTask(ctx, h.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, st.Status)
	assert.Equal(t, "STEP_DONE", st.Output)

	calls := m.Calls()
	require.NotEmpty(t, calls)
	start := calls[0]
	assert.Equal(t, Hyperbrowser.StartTool, start.Tool)
	assert.Contains(t, start.Arguments["task"], "https://lu.ma/create")
	opts, ok := start.Arguments["sessionOptions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "profile-1", opts["profile"].(map[string]any)["id"])
}

func TestClientBrowserToolSingleEnvelope(t *testing.T) {
	m := NewMockServer()
	defer m.Close()
	m.SetNested(false)
	m.SetScript(map[string]any{"status": "finished", "current_url": "https://lu.ma/abc", "is_success": true})

	c := newTestClient(t, m, "browser_tool")
	h, err := c.StartTask(context.Background(), TaskRequest{Task: "t", StartURL: "https://lu.ma/create"})
	require.NoError(t, err)

	st, err := c.PollTask(context.Background(), h.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "https://lu.ma/abc", st.CurrentURL)
	assert.True(t, st.IsSuccess)
	assert.Equal(t, 1, m.CallCount(BrowserTool.StartTool))
	assert.Equal(t, "https://lu.ma/create", m.Calls()[0].Arguments["startUrl"])
}

func TestClientUnauthorized(t *testing.T) {
	m := NewMockServer()
	defer m.Close()
	m.RequireAPIKey("other")

	c := newTestClient(t, m, "hyperbrowser")
	_, err := c.StartTask(context.Background(), TaskRequest{Task: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 401, be.Status)
	assert.Equal(t, BreakerClosed, c.Breaker().State())
}

func TestClientBreakerOpensOnProviderErrors(t *testing.T) {
	m := NewMockServer()
	defer m.Close()
	m.SetFailures(Hyperbrowser.PollTool, 10)

	c := newTestClient(t, m, "hyperbrowser")
	for range 3 {
		_, err := c.PollTask(context.Background(), "task-x")
		assert.ErrorIs(t, err, ErrProviderError)
		assert.True(t, Retryable(err))
	}
	_, err := c.PollTask(context.Background(), "task-x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, m.CallCount(Hyperbrowser.PollTool))
}

func TestClientUnknownTask(t *testing.T) {
	m := NewMockServer()
	defer m.Close()

	c := newTestClient(t, m, "hyperbrowser")
	_, err := c.PollTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrToolFailed)

	_, err = c.PollTask(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingTaskID)
}

func TestClientCreateProfile(t *testing.T) {
	m := NewMockServer()
	defer m.Close()

	id, err := newTestClient(t, m, "hyperbrowser").CreateProfile(context.Background(), "eventcast-luma")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = newTestClient(t, m, "browser_tool").CreateProfile(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://localhost:1", Provider: "selenium"})
	assert.Error(t, err)
}

func TestFakeTracksConcurrency(t *testing.T) {
	f := NewFake(nil)
	ctx := context.Background()
	meta := map[string]string{MetaTenant: "acme", MetaState: "SUBMIT", MetaPlatform: "luma"}

	h1, err := f.StartTask(ctx, TaskRequest{Metadata: meta})
	require.NoError(t, err)
	_, err = f.PollTask(ctx, h1.TaskID)
	require.NoError(t, err)
	h2, err := f.StartTask(ctx, TaskRequest{Metadata: meta})
	require.NoError(t, err)
	_, err = f.PollTask(ctx, h2.TaskID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.MaxConcurrent("acme"))
	assert.Equal(t, 2, f.CountState("luma", "SUBMIT"))
	assert.Equal(t, []string{"SUBMIT", "SUBMIT"}, f.StartedStates())
}
