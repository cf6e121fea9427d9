// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/workflow"
)

type workflowRequest struct {
	event.Data
	Tenant     string            `json:"tenant_id,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	Platforms  []string          `json:"platforms,omitempty"`
	Skip       []string          `json:"skip_platforms,omitempty"`
	Promote    bool              `json:"promote,omitempty"`
	SocialSkip []string          `json:"social_skip,omitempty"`
	Copies     map[string]string `json:"social_copies,omitempty"`
	Targets    social.Targets    `json:"social_targets,omitzero"`
}

// toWorkflow validates names and converts the body.
func (req workflowRequest) toWorkflow() (workflow.Request, string, error) {
	out := workflow.Request{
		Event:   req.Data,
		Tenant:  req.Tenant,
		RunID:   req.RunID,
		Promote: req.Promote,
		Targets: req.Targets,
	}
	for _, name := range req.Platforms {
		p, err := adapter.ParsePlatform(name)
		if err != nil {
			return workflow.Request{}, "platforms", err
		}
		out.Platforms = append(out.Platforms, p)
	}
	for _, name := range req.Skip {
		p, err := adapter.ParsePlatform(name)
		if err != nil {
			return workflow.Request{}, "skip_platforms", err
		}
		out.Skip = append(out.Skip, p)
	}
	for _, name := range req.SocialSkip {
		p, err := social.ParsePlatform(name)
		if err != nil {
			return workflow.Request{}, "social_skip", err
		}
		out.SocialSkip = append(out.SocialSkip, p)
	}
	if len(req.Copies) > 0 {
		out.Copies = make(map[social.Platform]string, len(req.Copies))
		for name, text := range req.Copies {
			p, err := social.ParsePlatform(name)
			if err != nil {
				return workflow.Request{}, "social_copies", err
			}
			out.Copies[p] = text
		}
	}
	return out, "", nil
}

// handleWorkflow runs every requested platform and the optional social
// phase, answering when all of them are done.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var body workflowRequest
	if err := decodeJSON(w, r, &body); err != nil {
		badRequest(w, r, "invalid_request", err.Error())
		return
	}
	if _, err := event.New(body.Data); err != nil {
		writeError(w, r, err)
		return
	}
	req, field, err := body.toWorkflow()
	if err != nil {
		badRequest(w, r, "unknown_platform", field+": "+err.Error())
		return
	}

	ctx := xglog.ContextWithTenant(r.Context(), tenantOrDefault(req.Tenant))
	res := s.deps.Workflows.Run(ctx, req)
	writeJSON(w, http.StatusOK, res)
}
