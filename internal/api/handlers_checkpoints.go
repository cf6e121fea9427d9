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
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
)

// handleListCheckpoints lists suspended runs. Resume tokens are withheld;
// they are only handed out by the run that suspended.
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Checkpoints.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tenant := r.URL.Query().Get("tenant")
	out := make([]checkpoint.Checkpoint, 0, len(list))
	for _, cp := range list {
		if tenant != "" && cp.Tenant != tenant {
			continue
		}
		cp.ResumeToken = ""
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b checkpoint.Checkpoint) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":     s.deps.Checkpoints.Backend(),
		"degraded":    s.deps.Checkpoints.Degraded(),
		"checkpoints": out,
	})
}

// handleAbandonCheckpoint drops a suspended run so its platform can start
// fresh.
func (s *Server) handleAbandonCheckpoint(w http.ResponseWriter, r *http.Request) {
	p, err := adapter.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	tenant := tenantOrDefault(r.URL.Query().Get("tenant"))
	if _, err := s.deps.Checkpoints.Load(r.Context(), tenant, p.String()); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Checkpoints.Delete(r.Context(), tenant, p.String()); err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info().
		Str("event", "checkpoint.abandoned").
		Str("tenant", tenant).
		Str("platform", p.String()).
		Msg("checkpoint abandoned via API")
	w.WriteHeader(http.StatusNoContent)
}
