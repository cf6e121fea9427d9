// SPDX-License-Identifier: MIT

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

func TestRespondWritesProblemJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t-1", nil)
	req = req.WithContext(xglog.ContextWithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()

	Respond(rec, req, http.StatusNotFound, "unknown_task", "", "no such task")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var got Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "/problems/unknown_task", got.Type)
	assert.Equal(t, "Not Found", got.Title)
	assert.Equal(t, "unknown_task", got.Code)
	assert.Equal(t, "no such task", got.Detail)
	assert.Equal(t, "/api/v1/tasks/t-1", got.Instance)
	assert.Equal(t, "req-42", got.RequestID)
}

func TestWriteKeepsExplicitFields(t *testing.T) {
	rec := httptest.NewRecorder()
	p := New(http.StatusBadRequest, "invalid_event", "Invalid event", "")
	p.Fields = []string{"event_title"}
	p.Instance = "/custom"

	Write(rec, nil, p)

	var got Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "/custom", got.Instance)
	assert.Equal(t, []string{"event_title"}, got.Fields)
	assert.Empty(t, got.RequestID)
}
