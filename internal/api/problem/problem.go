// SPDX-License-Identifier: MIT

// Package problem writes RFC 7807 problem+json error bodies.
package problem

import (
	"encoding/json"
	"net/http"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// ContentType is the media type of every error response.
const ContentType = "application/problem+json"

// Details is the problem document. Code is a stable machine-readable key.
type Details struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Status    int      `json:"status"`
	Code      string   `json:"code"`
	Detail    string   `json:"detail,omitempty"`
	Instance  string   `json:"instance,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}

// New builds a Details with the type derived from code.
func New(status int, code, title, detail string) Details {
	if title == "" {
		title = http.StatusText(status)
	}
	return Details{
		Type:   "/problems/" + code,
		Title:  title,
		Status: status,
		Code:   code,
		Detail: detail,
	}
}

// Write sends p, filling instance and request id from r.
func Write(w http.ResponseWriter, r *http.Request, p Details) {
	if r != nil {
		if p.Instance == "" {
			p.Instance = r.URL.Path
		}
		if p.RequestID == "" {
			p.RequestID = xglog.RequestIDFromContext(r.Context())
		}
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		logger := xglog.WithComponent("api")
		logger.Warn().Err(err).Int("status", p.Status).Msg("failed to encode problem response")
	}
}

// Respond is New followed by Write.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, title, detail string) {
	Write(w, r, New(status, code, title, detail))
}
