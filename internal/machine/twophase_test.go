// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

func TestStartReturnsHandle(t *testing.T) {
	f := newFixture(t, scripted(finalURLs, nil))
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)
	assert.Equal(t, "luma", h.Platform)
	assert.Equal(t, "running", h.Status)
	assert.NotEmpty(t, h.TaskID)
	assert.NotEmpty(t, h.LiveURL)
	assert.Empty(t, h.EventURL)
	assert.Nil(t, h.Error)
	assert.Equal(t, browser.Hyperbrowser.Name, h.Provider)
	assert.Equal(t, browser.Hyperbrowser.PollTool, h.PollToolName)
	assert.Contains(t, h.SuccessURLPattern, "lu.ma")

	raw, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error":null`)
	assert.Contains(t, string(raw), `"event_url":""`)

	started := f.fake.Started()
	require.Len(t, started, 1)
	assert.Equal(t, "https://lu.ma/home", started[0].StartURL)
	assert.Equal(t, DefaultConfig().TaskMaxSteps, started[0].MaxSteps)
	assert.Contains(t, started[0].Task, "DUPLICATE_FOUND")
	assert.Contains(t, started[0].Task, "Coffee & Code")
	assert.Equal(t, []string{f.m.Active()[0]}, []string{h.TaskID})
}

func TestPollClassifiesFinishedTask(t *testing.T) {
	f := newFixture(t, scripted(finalURLs, nil))
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)

	first, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Running, first.Status)
	assert.Empty(t, first.EventURL)

	second, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Done, second.Status)
	assert.Equal(t, finalURLs["luma"], second.EventURL)
	assert.Empty(t, f.m.Active())

	// The lease is free again.
	_, held, err := f.sessions.Holder(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPollOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		final  browser.TaskStatus
		status state.State
		review bool
		url    string
	}{
		{
			name:   "two factor",
			final:  browser.TaskStatus{Status: browser.StatusFinished, Output: "2FA_REQUIRED"},
			status: state.Await2FA,
		},
		{
			name:   "login wall",
			final:  browser.TaskStatus{Status: browser.StatusFinished, Output: "AUTH_REQUIRED"},
			status: state.NeedsAuth,
		},
		{
			name:   "duplicate",
			final:  browser.TaskStatus{Status: browser.StatusFinished, Output: "DUPLICATE_FOUND https://lu.ma/old"},
			status: state.Duplicate,
			url:    "https://lu.ma/old",
		},
		{
			name:   "success from output",
			final:  browser.TaskStatus{Status: browser.StatusFinished, CurrentURL: "https://lu.ma/create", Output: "EVENT_URL: https://lu.ma/new-one"},
			status: state.Done,
			url:    "https://lu.ma/new-one",
		},
		{
			name:   "finished without url",
			final:  browser.TaskStatus{Status: browser.StatusFinished, CurrentURL: "https://lu.ma/create", Output: "done"},
			status: state.Done,
			review: true,
		},
		{
			name:   "auth words in page text",
			final:  browser.TaskStatus{Status: browser.StatusFinished, CurrentURL: "https://lu.ma/create", Output: "Form sent. Keep your verification code device handy."},
			status: state.Done,
			review: true,
		},
		{
			name:   "second factor page",
			final:  browser.TaskStatus{Status: browser.StatusFinished, CurrentURL: "https://lu.ma/signin/2fa", Output: "stopped"},
			status: state.Await2FA,
		},
		{
			name:   "task failed",
			final:  browser.TaskStatus{Status: browser.StatusFailed, Output: "agent gave up"},
			status: state.Failed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(browser.TaskRequest) []browser.TaskStatus {
				return []browser.TaskStatus{tc.final}
			})
			ctx := context.Background()
			h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Event: testEvent()})
			require.NoError(t, err)

			res, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.review, res.NeedsReview)
			assert.Equal(t, tc.url, res.EventURL)
			assert.NotEmpty(t, res.NextAction)
		})
	}
}

func TestTwoPhaseTwoFactorResume(t *testing.T) {
	var (
		mu        sync.Mutex
		challenge = true
	)
	f := newFixture(t, func(req browser.TaskRequest) []browser.TaskStatus {
		mu.Lock()
		defer mu.Unlock()
		if challenge {
			return []browser.TaskStatus{{Status: browser.StatusFinished, Output: "Enter the verification code. 2FA_REQUIRED"}}
		}
		return browser.DryRun(finalURLs)(req)
	})
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)
	res, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	require.Equal(t, state.Await2FA, res.Status)
	require.NotEmpty(t, res.ResumeToken)

	cp, err := f.checkpoints.Load(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, state.AuthCheck, cp.State)
	assert.NotContains(t, cp.Completed, state.AuthCheck)

	mu.Lock()
	challenge = false
	mu.Unlock()

	rh, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Resume: true, ResumeToken: res.ResumeToken})
	require.NoError(t, err)
	started := f.fake.Started()
	task := started[len(started)-1].Task
	assert.NotContains(t, task, "DUPLICATE_FOUND", "resumed task must not repeat the duplicate check")
	assert.Equal(t, "https://lu.ma/create", started[len(started)-1].StartURL)

	done, err := f.m.Wait(ctx, rh)
	require.NoError(t, err)
	assert.Equal(t, state.Done, done.Status)

	_, err = f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Resume: true, ResumeToken: res.ResumeToken})
	assert.ErrorIs(t, err, ErrInvalidResumeToken)
}

func TestStartHoldsLeaseUntilTerminal(t *testing.T) {
	f := newFixture(t, scripted(finalURLs, nil))
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Meetup, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)

	_, err = f.m.Start(ctx, StartRequest{Platform: adapter.Meetup, Tenant: "acme", Event: testEvent()})
	assert.ErrorIs(t, err, ErrSessionBusy)

	res := f.m.Run(ctx, Request{Platform: adapter.Meetup, Tenant: "acme", Event: testEvent()})
	assert.ErrorIs(t, res.Err, ErrSessionBusy)

	_, err = f.m.Wait(ctx, h)
	require.NoError(t, err)

	_, err = f.m.Start(ctx, StartRequest{Platform: adapter.Meetup, Tenant: "acme", Event: testEvent()})
	assert.NoError(t, err)
}

func TestPollBudget(t *testing.T) {
	f := newFixture(t, func(browser.TaskRequest) []browser.TaskStatus {
		return []browser.TaskStatus{{Status: browser.StatusRunning}}
	}, func(c *Config) { c.TaskMaxPolls = 2 })
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Partiful, Event: testEvent()})
	require.NoError(t, err)

	res, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Running, res.Status)

	res, err = f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Failed, res.Status)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Empty(t, f.m.Active())
}

func TestPollTaskStartedElsewhere(t *testing.T) {
	f := newFixture(t, scripted(finalURLs, nil))
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Event: testEvent()})
	require.NoError(t, err)

	other := New(f.fake, nil, checkpoint.NewMemoryStore(), adapter.Config{}, DefaultConfig())

	_, err = other.Poll(ctx, PollRequest{TaskID: h.TaskID})
	assert.ErrorIs(t, err, ErrUnknownTask)

	var res Result
	for range 3 {
		res, err = other.Poll(ctx, PollRequest{TaskID: h.TaskID, Platform: adapter.Luma})
		require.NoError(t, err)
		if res.Status != state.Running {
			break
		}
	}
	assert.Equal(t, state.Done, res.Status)
	assert.Equal(t, finalURLs["luma"], res.EventURL)
}

func TestPollUnknownTask(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.m.Poll(context.Background(), PollRequest{})
	assert.ErrorIs(t, err, browser.ErrMissingTaskID)

	res, err := f.m.Poll(context.Background(), PollRequest{TaskID: "nope", Platform: adapter.Luma})
	require.NoError(t, err)
	assert.Equal(t, state.Failed, res.Status)
	assert.True(t, strings.Contains(res.Error, "not found"))
}

func TestPollSuccessURLWinsOverAuthWords(t *testing.T) {
	f := newFixture(t, func(browser.TaskRequest) []browser.TaskStatus {
		return finished(finalURLs["luma"],
			"Event created. Bring your verification code device. EVENT_URL: "+finalURLs["luma"])
	})
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)
	res, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Done, res.Status)
	assert.Equal(t, finalURLs["luma"], res.EventURL)
	assert.Empty(t, res.ResumeToken)

	_, err = f.checkpoints.Load(ctx, "acme", "luma")
	assert.True(t, errors.Is(err, checkpoint.ErrNotFound), "got %v", err)

	sess, err := f.sessions.Get(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, session.Warm, sess.AuthState)
}

func TestPollTerminalTaskIsStable(t *testing.T) {
	f := newFixture(t, func(browser.TaskRequest) []browser.TaskStatus {
		return finished("", "Enter the code. 2FA_REQUIRED")
	})
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)

	first, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	require.Equal(t, state.Await2FA, first.Status)
	require.NotEmpty(t, first.ResumeToken)

	second, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
	require.NoError(t, err)
	assert.Equal(t, state.Await2FA, second.Status)
	assert.Equal(t, first.ResumeToken, second.ResumeToken)

	cp, err := f.checkpoints.Load(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, first.ResumeToken, cp.ResumeToken)

	sess, err := f.sessions.Get(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.Equal(t, session.Paused2FA, sess.AuthState)
}

func TestConcurrentPollsSettleOnce(t *testing.T) {
	f := newFixture(t, func(browser.TaskRequest) []browser.TaskStatus {
		return []browser.TaskStatus{
			{Status: browser.StatusRunning},
			{Status: browser.StatusRunning},
			{Status: browser.StatusFinished, CurrentURL: finalURLs["luma"], Output: "Event published. Manage event, Share event.", IsSuccess: true},
		}
	})
	ctx := context.Background()

	h, err := f.m.Start(ctx, StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)

	const pollers = 8
	results := make([]Result, pollers)
	errs := make([]error, pollers)
	var wg sync.WaitGroup
	for i := range pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				res, err := f.m.Poll(ctx, PollRequest{TaskID: h.TaskID})
				results[i], errs[i] = res, err
				if err != nil || res.Status != state.Running {
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := range pollers {
		require.NoError(t, errs[i])
		assert.Equal(t, state.Done, results[i].Status)
		assert.Equal(t, finalURLs["luma"], results[i].EventURL)
	}
	assert.Empty(t, f.m.Active())

	_, held, err := f.sessions.Holder(ctx, "acme", "luma")
	require.NoError(t, err)
	assert.False(t, held)
}
