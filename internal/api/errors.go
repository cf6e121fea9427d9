// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api/problem"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
)

// errorMapping maps a sentinel to its HTTP status and problem code. Order
// matters: the first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{event.ErrInvalid, http.StatusBadRequest, "invalid_event"},
	{adapter.ErrUnknownPlatform, http.StatusBadRequest, "unknown_platform"},
	{machine.ErrUnknownTask, http.StatusNotFound, "unknown_task"},
	{checkpoint.ErrExpired, http.StatusGone, "checkpoint_expired"},
	{machine.ErrInvalidResumeToken, http.StatusConflict, "invalid_resume_token"},
	{checkpoint.ErrTokenMismatch, http.StatusConflict, "invalid_resume_token"},
	{checkpoint.ErrNotFound, http.StatusNotFound, "checkpoint_not_found"},
	{machine.ErrSessionBusy, http.StatusConflict, "session_busy"},
	{machine.ErrDuplicateDetected, http.StatusConflict, "duplicate_event"},
	{session.ErrNotFound, http.StatusNotFound, "session_not_found"},
	{session.ErrInvalidTransition, http.StatusConflict, "invalid_auth_transition"},
	{browser.ErrCircuitOpen, http.StatusServiceUnavailable, "provider_unavailable"},
	{browser.ErrUnavailable, http.StatusBadGateway, "provider_unavailable"},
	{browser.ErrRateLimited, http.StatusServiceUnavailable, "provider_rate_limited"},
	{browser.ErrUnauthorized, http.StatusBadGateway, "provider_unauthorized"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// writeError maps err onto a problem response. Unknown errors are logged
// and reported as 500 without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			problem.Respond(w, r, m.status, m.code, "", err.Error())
			return
		}
	}
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).Str("event", "api.internal_error").Str("path", r.URL.Path).Msg("request failed")
	problem.Respond(w, r, http.StatusInternalServerError, "internal_error", "", "internal server error")
}

func badRequest(w http.ResponseWriter, r *http.Request, code, detail string) {
	problem.Respond(w, r, http.StatusBadRequest, code, "", detail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := xglog.WithComponent("api")
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func problemNotFound(w http.ResponseWriter, r *http.Request) {
	problem.Respond(w, r, http.StatusNotFound, "not_found", "", "no route for "+r.Method+" "+r.URL.Path)
}

func problemMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem.Respond(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "", r.Method+" is not allowed on "+r.URL.Path)
}
