// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
)

type authRequest struct {
	Tenant string `json:"tenant_id,omitempty"`
	// LoginURL overrides the platform's login page.
	LoginURL string `json:"login_url,omitempty"`
}

type beginAuthResponse struct {
	Session    session.Session    `json:"session"`
	Task       browser.TaskHandle `json:"task"`
	LiveURL    string             `json:"live_url,omitempty"`
	NextAction string             `json:"next_action"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Sessions.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tenant := r.URL.Query().Get("tenant"); tenant != "" {
		list = slices.DeleteFunc(list, func(x session.Session) bool { return x.Tenant != tenant })
	}
	slices.SortFunc(list, func(a, b session.Session) int {
		return cmp.Or(cmp.Compare(a.Tenant, b.Tenant), cmp.Compare(a.Platform, b.Platform))
	})
	if list == nil {
		list = []session.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p, err := adapter.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.deps.Sessions.Get(r.Context(), tenantOrDefault(r.URL.Query().Get("tenant")), p.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleBeginAuth opens the login page in the session's browser profile.
// The caller logs in through the returned live URL and then calls
// .../auth/complete.
func (s *Server) handleBeginAuth(w http.ResponseWriter, r *http.Request) {
	p, err := adapter.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req authRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "invalid_request", err.Error())
			return
		}
	}
	loginURL := req.LoginURL
	if loginURL == "" {
		a, err := adapter.For(p, s.deps.Adapters)
		if err != nil {
			writeError(w, r, err)
			return
		}
		loginURL = a.LoginURL()
	}

	sess, h, err := s.deps.Sessions.BeginAuth(r.Context(), tenantOrDefault(req.Tenant), p.String(), loginURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, beginAuthResponse{
		Session:    sess,
		Task:       h,
		LiveURL:    h.LiveURL,
		NextAction: "Log in to " + p.String() + " through the live view, then POST /api/v1/sessions/" + p.String() + "/auth/complete.",
	})
}

func (s *Server) handleCompleteAuth(w http.ResponseWriter, r *http.Request) {
	p, err := adapter.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req authRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "invalid_request", err.Error())
			return
		}
	}
	sess, err := s.deps.Sessions.CompleteAuth(r.Context(), tenantOrDefault(req.Tenant), p.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
