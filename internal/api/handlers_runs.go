// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api/problem"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
)

// createEventRequest is the event fields plus run routing.
type createEventRequest struct {
	event.Data
	Platform    string `json:"platform"`
	Tenant      string `json:"tenant_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Resume      bool   `json:"resume,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`
	// Wait blocks until the run ends instead of answering 202.
	Wait bool `json:"wait,omitempty"`
}

type resumeRequest struct {
	Tenant      string `json:"tenant_id,omitempty"`
	ResumeToken string `json:"resume_token"`
	RunID       string `json:"run_id,omitempty"`
	// Detach returns a task handle instead of waiting for the run.
	Detach bool `json:"detach,omitempty"`
}

// handleCreateEvent starts a two-phase platform run.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid_request", err.Error())
		return
	}
	p, err := adapter.ParsePlatform(req.Platform)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Resume {
		if _, err := event.New(req.Data); err != nil {
			writeError(w, r, err)
			return
		}
	}

	ctx := xglog.ContextWithTenant(r.Context(), tenantOrDefault(req.Tenant))
	h, err := s.deps.Runs.Start(ctx, machine.StartRequest{
		Platform:    p,
		Tenant:      req.Tenant,
		Event:       req.Data,
		Resume:      req.Resume,
		ResumeToken: req.ResumeToken,
		RunID:       req.RunID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Wait {
		res, err := s.deps.Runs.Wait(ctx, h)
		if err != nil && !res.Terminal() {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	w.Header().Set("Location", taskLocation(h))
	writeJSON(w, http.StatusAccepted, h)
}

// handlePollTask reports the current status of a task. Tasks started by
// another process need the platform query parameter.
func (s *Server) handlePollTask(w http.ResponseWriter, r *http.Request) {
	req := machine.PollRequest{
		TaskID: chi.URLParam(r, "taskID"),
		Tenant: r.URL.Query().Get("tenant"),
	}
	if name := r.URL.Query().Get("platform"); name != "" {
		p, err := adapter.ParsePlatform(name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Platform = p
	}
	res, err := s.deps.Runs.Poll(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResume continues a run suspended by a 2FA challenge.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	p, err := adapter.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req resumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ResumeToken) == "" {
		pd := problem.New(http.StatusBadRequest, "invalid_request", "", "resume_token is required")
		pd.Fields = []string{"resume_token"}
		problem.Write(w, r, pd)
		return
	}

	ctx := xglog.ContextWithTenant(r.Context(), tenantOrDefault(req.Tenant))
	if req.Detach {
		h, err := s.deps.Runs.Start(ctx, machine.StartRequest{
			Platform:    p,
			Tenant:      req.Tenant,
			Resume:      true,
			ResumeToken: req.ResumeToken,
			RunID:       req.RunID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Location", taskLocation(h))
		writeJSON(w, http.StatusAccepted, h)
		return
	}

	res := s.deps.Runs.Resume(ctx, machine.ResumeRequest{
		Platform: p,
		Tenant:   req.Tenant,
		Token:    req.ResumeToken,
		RunID:    req.RunID,
	})
	// A rejected token never reached the browser; report it as a client error.
	if res.Err != nil && errors.Is(res.Err, machine.ErrInvalidResumeToken) {
		writeError(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActiveRuns(w http.ResponseWriter, _ *http.Request) {
	active := s.deps.Runs.Active()
	if active == nil {
		active = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": active})
}

func taskLocation(h machine.Handle) string {
	q := url.Values{}
	q.Set("platform", h.Platform)
	if h.Tenant != "" {
		q.Set("tenant", h.Tenant)
	}
	return "/api/v1/tasks/" + url.PathEscape(h.TaskID) + "?" + q.Encode()
}

func tenantOrDefault(t string) string {
	if t = strings.TrimSpace(t); t == "" {
		return checkpoint.DefaultTenant
	}
	return t
}
