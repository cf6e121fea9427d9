// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package browser speaks the browser-task protocol: start a natural-language
// task, poll it, and look up the live viewing URL of its session.
package browser

import (
	"context"
	"fmt"
	"strings"
)

// Status is the normalized task status.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// Terminal reports whether polling can stop.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusStopped
}

// NormalizeStatus maps the provider vocabularies onto Status. Unknown values
// are treated as still running; poll loops are bounded elsewhere.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "finished", "success", "succeeded", "done":
		return StatusFinished
	case "failed", "error", "errored":
		return StatusFailed
	case "stopped", "cancelled", "canceled", "aborted":
		return StatusStopped
	default:
		return StatusRunning
	}
}

// TaskRequest starts one browser task.
type TaskRequest struct {
	Task      string
	StartURL  string
	ProfileID string
	SessionID string
	MaxSteps  int

	// Metadata is not sent to the provider; it labels logs, spans and fakes.
	Metadata map[string]string
}

// TaskHandle identifies a started task.
type TaskHandle struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
	LiveURL   string `json:"live_url"`
}

// TaskStatus is one poll result.
type TaskStatus struct {
	Status     Status `json:"status"`
	RawStatus  string `json:"raw_status,omitempty"`
	CurrentURL string `json:"current_url,omitempty"`
	Output     string `json:"output,omitempty"`
	IsSuccess  bool   `json:"is_success"`
}

// TaskRunner is the uniform protocol consumed by the machine.
type TaskRunner interface {
	StartTask(ctx context.Context, req TaskRequest) (TaskHandle, error)
	PollTask(ctx context.Context, taskID string) (TaskStatus, error)
	LiveURL(ctx context.Context, sessionID string) (string, error)
}

// ProfileCreator is implemented by providers with persistent browser profiles.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, name string) (string, error)
}

// Provider names a tool family on the gateway.
type Provider struct {
	Name        string `json:"provider"`
	StartTool   string `json:"start_tool"`
	PollTool    string `json:"poll_tool_name"`
	SessionTool string `json:"session_tool"`
	ProfileTool string `json:"profile_tool,omitempty"`
}

var (
	Hyperbrowser = Provider{
		Name:        "hyperbrowser",
		StartTool:   "HYPERBROWSER_START_BROWSER_USE_TASK",
		PollTool:    "HYPERBROWSER_GET_BROWSER_USE_TASK_STATUS",
		SessionTool: "HYPERBROWSER_GET_SESSION_DETAILS",
		ProfileTool: "HYPERBROWSER_CREATE_PROFILE",
	}
	BrowserTool = Provider{
		Name:        "browser_tool",
		StartTool:   "BROWSER_TOOL_CREATE_TASK",
		PollTool:    "BROWSER_TOOL_WATCH_TASK",
		SessionTool: "BROWSER_TOOL_GET_SESSION",
	}
)

// ProviderByName resolves a configured provider name.
func ProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Hyperbrowser.Name:
		return Hyperbrowser, nil
	case BrowserTool.Name:
		return BrowserTool, nil
	}
	return Provider{}, fmt.Errorf("browser: unknown provider %q", name)
}

// startArgs builds the provider-specific start arguments.
func (p Provider) startArgs(req TaskRequest, defaultSteps int) map[string]any {
	steps := req.MaxSteps
	if steps <= 0 {
		steps = defaultSteps
	}
	if p.Name == BrowserTool.Name {
		args := map[string]any{"task": req.Task}
		if req.StartURL != "" {
			args["startUrl"] = req.StartURL
		}
		if req.SessionID != "" {
			args["sessionId"] = req.SessionID
		}
		return args
	}

	task := req.Task
	if req.StartURL != "" && !strings.Contains(task, req.StartURL) {
		task = "Start at " + req.StartURL + ". " + task
	}
	args := map[string]any{
		"task":     task,
		"maxSteps": steps,
	}
	opts := map[string]any{}
	if req.ProfileID != "" {
		opts["profile"] = map[string]any{"id": req.ProfileID, "persistChanges": true}
	}
	if len(opts) > 0 {
		opts["useStealth"] = true
		opts["acceptCookies"] = true
		args["sessionOptions"] = opts
	}
	if req.SessionID != "" {
		args["sessionId"] = req.SessionID
		args["keepBrowserOpen"] = true
	}
	return args
}

func (p Provider) pollArgs(taskID string) map[string]any {
	if p.Name == BrowserTool.Name {
		return map[string]any{"taskId": taskID}
	}
	return map[string]any{"task_id": taskID}
}

func (p Provider) sessionArgs(sessionID string) map[string]any {
	if p.Name == BrowserTool.Name {
		return map[string]any{"sessionId": sessionID}
	}
	return map[string]any{"id": sessionID}
}
