// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/verify"
)

// Result is the outcome of one platform run, or the current status of a
// two-phase run while Status is "running".
type Result struct {
	Platform    string        `json:"platform"`
	Tenant      string        `json:"tenant_id"`
	RunID       string        `json:"run_id,omitempty"`
	Status      state.State   `json:"status"`
	EventURL    string        `json:"event_url"`
	ImageURL    string        `json:"image_url,omitempty"`
	Error       string        `json:"error,omitempty"`
	LiveURL     string        `json:"live_url,omitempty"`
	NextAction  string        `json:"next_action,omitempty"`
	NeedsReview bool          `json:"needs_review,omitempty"`
	Confidence  float64       `json:"confidence"`
	States      []state.State `json:"states_visited,omitempty"`
	Skipped     []state.State `json:"skipped_features,omitempty"`
	ResumeToken string        `json:"resume_token,omitempty"`
	TaskID      string        `json:"task_id,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`

	// Err is the typed cause behind Status; nil on confirmed success.
	Err error `json:"-"`
}

// Terminal reports whether the run has ended.
func (r Result) Terminal() bool {
	return r.Status.IsTerminal()
}

// Succeeded reports a DONE run, confirmed or not.
func (r Result) Succeeded() bool {
	return r.Status == state.Done
}

// NextAction is the human-actionable follow-up for a result.
func NextAction(r Result) string {
	live := ""
	if r.LiveURL != "" {
		live = " Live view: " + r.LiveURL
	}
	switch r.Status {
	case state.Done:
		if r.NeedsReview && r.EventURL != "" {
			return "The event page at " + r.EventURL + " did not clearly confirm the new event. " +
				"Open it and check the details before sharing." + live
		}
		if r.NeedsReview {
			return "The form was submitted but the event URL could not be confirmed. " +
				"Check the platform for the new event before running again to avoid a duplicate." + live
		}
		return "Event published at " + r.EventURL + "."
	case state.Duplicate:
		if r.EventURL != "" {
			return "An equivalent event already exists at " + r.EventURL + "; nothing was created."
		}
		return "An equivalent event already exists; nothing was created."
	case state.NeedsAuth:
		return verify.AuthPrompt(verify.AuthLogin) + live
	case state.Await2FA:
		return verify.AuthPrompt(verify.AuthTwoFactor) + live +
			fmt.Sprintf(" Resume with token %s.", r.ResumeToken)
	case state.Skipped:
		return "Platform skipped by request."
	case state.Failed:
		switch {
		case errors.Is(r.Err, ErrInvalidResumeToken):
			return "The resume token is invalid or expired. Start a new run."
		case errors.Is(r.Err, ErrSessionBusy):
			return "Another run is using this browser session. Wait for it to finish and try again."
		}
		return "Fix the cause and run again. Last error: " + r.Error
	case state.Running:
		return "Poll again in a few seconds." + live
	}
	return ""
}
