// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Metadata keys set by the machine on every TaskRequest.
const (
	MetaState    = "state"
	MetaPlatform = "platform"
	MetaTenant   = "tenant"
	MetaRunID    = "run_id"
)

// Responder decides the poll sequence of a started task.
type Responder func(req TaskRequest) []TaskStatus

// Fake is an in-memory TaskRunner. Every poll returns the next status of
// the task's sequence; the last status repeats. It also tracks how many
// tasks are in flight per tenant.
type Fake struct {
	mu        sync.Mutex
	respond   Responder
	startErr  func(req TaskRequest) error
	seq       int
	tasks     map[string]*fakeTask
	started   []TaskRequest
	active    map[string]int
	maxActive map[string]int
}

type fakeTask struct {
	req      TaskRequest
	polls    int
	statuses []TaskStatus
	done     bool
}

// NewFake returns a fake answering with respond. A nil respond finishes
// every task immediately with STEP_DONE at the start URL.
func NewFake(respond Responder) *Fake {
	if respond == nil {
		respond = func(req TaskRequest) []TaskStatus {
			return []TaskStatus{{Status: StatusFinished, CurrentURL: req.StartURL, Output: "STEP_DONE", IsSuccess: true}}
		}
	}
	return &Fake{
		respond:   respond,
		tasks:     make(map[string]*fakeTask),
		active:    make(map[string]int),
		maxActive: make(map[string]int),
	}
}

// FailStart makes StartTask fail when fn returns an error.
func (f *Fake) FailStart(fn func(req TaskRequest) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = fn
}

func (f *Fake) StartTask(ctx context.Context, req TaskRequest) (TaskHandle, error) {
	if err := ctx.Err(); err != nil {
		return TaskHandle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		if err := f.startErr(req); err != nil {
			return TaskHandle{}, err
		}
	}
	f.seq++
	id := fmt.Sprintf("fake-task-%d", f.seq)
	session := req.SessionID
	if session == "" {
		session = fmt.Sprintf("fake-session-%d", f.seq)
	}
	statuses := f.respond(req)
	if len(statuses) == 0 {
		statuses = []TaskStatus{{Status: StatusFinished, Output: "STEP_DONE"}}
	}
	f.tasks[id] = &fakeTask{req: req, statuses: statuses}
	f.started = append(f.started, req)

	tenant := req.Metadata[MetaTenant]
	f.active[tenant]++
	f.maxActive[tenant] = max(f.maxActive[tenant], f.active[tenant])

	return TaskHandle{TaskID: id, SessionID: session, LiveURL: "https://live.fake/" + session}, nil
}

func (f *Fake) PollTask(ctx context.Context, taskID string) (TaskStatus, error) {
	if err := ctx.Err(); err != nil {
		return TaskStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tasks[taskID]
	if !ok {
		return TaskStatus{}, &Error{Sentinel: ErrNotFound, Operation: "poll", Body: taskID}
	}
	st := t.statuses[min(t.polls, len(t.statuses)-1)]
	t.polls++
	if st.Status.Terminal() && !t.done {
		t.done = true
		f.active[t.req.Metadata[MetaTenant]]--
	}
	return st, nil
}

func (f *Fake) LiveURL(_ context.Context, sessionID string) (string, error) {
	return "https://live.fake/" + sessionID, nil
}

// Started returns the requests seen so far.
func (f *Fake) Started() []TaskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TaskRequest, len(f.started))
	copy(out, f.started)
	return out
}

// StartedStates lists Metadata[MetaState] of every started task, in order.
func (f *Fake) StartedStates() []string {
	var out []string
	for _, r := range f.Started() {
		out = append(out, r.Metadata[MetaState])
	}
	return out
}

// CountState counts started tasks for one platform and state. An empty
// platform matches all.
func (f *Fake) CountState(platform, state string) int {
	n := 0
	for _, r := range f.Started() {
		if r.Metadata[MetaState] == state && (platform == "" || r.Metadata[MetaPlatform] == platform) {
			n++
		}
	}
	return n
}

// MaxConcurrent is the highest number of simultaneously unfinished tasks
// seen for tenant.
func (f *Fake) MaxConcurrent(tenant string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive[tenant]
}

// DryRun answers every step with STEP_DONE and the final step with the
// platform URL from urls. Used by the dry-run provider.
func DryRun(urls map[string]string) Responder {
	return func(req TaskRequest) []TaskStatus {
		final := urls[req.Metadata[MetaPlatform]]
		switch req.Metadata[MetaState] {
		case "CHECK_DUPLICATE":
			return []TaskStatus{{Status: StatusFinished, Output: "NO_DUPLICATE"}}
		case "AUTH_CHECK":
			return []TaskStatus{{Status: StatusFinished, CurrentURL: req.StartURL, Output: "Create event form: Event title, Date, Location"}}
		case "VERIFY_SUCCESS", "POST_SUBMIT", "running":
			return []TaskStatus{
				{Status: StatusRunning},
				{Status: StatusFinished, CurrentURL: final, Output: "Event published. Manage event, Share event.\nEVENT_URL: " + final, IsSuccess: true},
			}
		}
		url := req.StartURL
		if strings.TrimSpace(url) == "" {
			url = "about:blank"
		}
		return []TaskStatus{{Status: StatusFinished, CurrentURL: url, Output: "STEP_DONE", IsSuccess: true}}
	}
}
