// SPDX-License-Identifier: MIT
package browser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a configurable tool gateway for tests and local runs.
type MockServer struct {
	*httptest.Server
	mu       sync.Mutex
	apiKey   string
	nested   bool
	seq      int
	script   []map[string]any
	tasks    map[string]*mockTask
	sessions map[string]string
	failures map[string]int
	delay    map[string]time.Duration
	calls    []MockCall
}

// MockCall records one tool invocation.
type MockCall struct {
	Tool      string
	Arguments map[string]any
}

type mockTask struct {
	sessionID string
	polls     int
	statuses  []map[string]any
}

// NewMockServer starts a gateway that answers both provider tool families.
// By default every task reports "running" once and then "completed".
func NewMockServer() *MockServer {
	m := &MockServer{
		nested:   true,
		tasks:    make(map[string]*mockTask),
		sessions: make(map[string]string),
		failures: make(map[string]int),
		delay:    make(map[string]time.Duration),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/execute/{tool}", m.handleExecute)
	m.Server = httptest.NewServer(mux)
	return m
}

// RequireAPIKey makes the server reject calls without the given x-api-key.
func (m *MockServer) RequireAPIKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
}

// SetNested toggles the double {"data":{"data":...}} envelope.
func (m *MockServer) SetNested(nested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nested = nested
}

// SetScript sets the poll responses of tasks started afterwards. The last
// entry repeats.
func (m *MockServer) SetScript(statuses ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = statuses
}

// SetFailures makes the next count calls to tool answer 503.
func (m *MockServer) SetFailures(tool string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[tool] = count
}

// SetDelay delays every answer of tool.
func (m *MockServer) SetDelay(tool string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[tool] = d
}

// Calls returns the recorded calls.
func (m *MockServer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount counts calls to tool.
func (m *MockServer) CallCount(tool string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Tool == tool {
			n++
		}
	}
	return n
}

func (m *MockServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("tool")

	var body struct {
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Tool: tool, Arguments: body.Arguments})
	if m.apiKey != "" && r.Header.Get("x-api-key") != m.apiKey {
		m.mu.Unlock()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if n := m.failures[tool]; n > 0 {
		m.failures[tool] = n - 1
		m.mu.Unlock()
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	delay := m.delay[tool]
	data, status := m.dispatchLocked(tool, body.Arguments)
	nested := m.nested
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	var resp map[string]any
	if status != http.StatusOK {
		resp = map[string]any{"successful": false, "error": data["error"], "data": map[string]any{}}
	} else if nested {
		resp = map[string]any{"successful": true, "error": nil, "data": map[string]any{"data": data}}
	} else {
		resp = map[string]any{"data": data}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// dispatchLocked must be called with mu held.
func (m *MockServer) dispatchLocked(tool string, args map[string]any) (map[string]any, int) {
	switch tool {
	case Hyperbrowser.StartTool, BrowserTool.StartTool:
		m.seq++
		taskID := fmt.Sprintf("task-%d", m.seq)
		sessionID, _ := args["sessionId"].(string)
		if sessionID == "" {
			sessionID = fmt.Sprintf("session-%d", m.seq)
		}
		m.sessions[sessionID] = "https://live.mock/" + sessionID
		m.tasks[taskID] = &mockTask{sessionID: sessionID, statuses: m.scriptLocked()}
		if tool == BrowserTool.StartTool {
			return map[string]any{"watch_task_id": taskID, "browser_session_id": sessionID}, http.StatusOK
		}
		return map[string]any{"jobId": taskID, "sessionId": sessionID}, http.StatusOK

	case Hyperbrowser.PollTool, BrowserTool.PollTool:
		id, _ := args["task_id"].(string)
		if id == "" {
			id, _ = args["taskId"].(string)
		}
		t, ok := m.tasks[id]
		if !ok {
			return map[string]any{"error": "task not found: " + id}, http.StatusNotFound
		}
		i := min(t.polls, len(t.statuses)-1)
		t.polls++
		return t.statuses[i], http.StatusOK

	case Hyperbrowser.SessionTool, BrowserTool.SessionTool:
		id, _ := args["id"].(string)
		if id == "" {
			id, _ = args["sessionId"].(string)
		}
		live, ok := m.sessions[id]
		if !ok {
			return map[string]any{"error": "session not found"}, http.StatusNotFound
		}
		return map[string]any{"id": id, "liveUrl": live}, http.StatusOK

	case Hyperbrowser.ProfileTool:
		m.seq++
		name, _ := args["name"].(string)
		return map[string]any{"id": fmt.Sprintf("profile-%d", m.seq), "name": name}, http.StatusOK
	}
	return map[string]any{"error": "unknown tool " + strings.ToLower(tool)}, http.StatusNotFound
}

func (m *MockServer) scriptLocked() []map[string]any {
	if len(m.script) > 0 {
		out := make([]map[string]any, len(m.script))
		copy(out, m.script)
		return out
	}
	return []map[string]any{
		{"status": "running"},
		{"status": "completed", "output": "STEP_DONE"},
	}
}
