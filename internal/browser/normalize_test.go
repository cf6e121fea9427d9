// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]Status{
		"running":   StatusRunning,
		"pending":   StatusRunning,
		"":          StatusRunning,
		"completed": StatusFinished,
		"FINISHED":  StatusFinished,
		"failed":    StatusFailed,
		"error":     StatusFailed,
		"stopped":   StatusStopped,
		"cancelled": StatusStopped,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeStatus(raw), raw)
	}
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusStopped.Terminal())
}

func TestUnwrapEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", `{"jobId":"j1","sessionId":"s1"}`},
		{"single", `{"data":{"jobId":"j1","sessionId":"s1"}}`},
		{"double", `{"successful":true,"error":null,"data":{"data":{"jobId":"j1","sessionId":"s1"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := unwrap([]byte(tt.body))
			require.NoError(t, err)
			h, err := decodeHandle(p)
			require.NoError(t, err)
			assert.Equal(t, TaskHandle{TaskID: "j1", SessionID: "s1"}, h)
		})
	}
}

func TestUnwrapKeepsPayloadData(t *testing.T) {
	body := `{"data":{"status":"completed","data":{"finalResult":"EVENT_URL: https://lu.ma/x1"}}}`
	p, err := unwrap([]byte(body))
	require.NoError(t, err)
	st := decodeStatus(p)
	assert.Equal(t, StatusFinished, st.Status)
	assert.Equal(t, "EVENT_URL: https://lu.ma/x1", st.Output)
}

func TestUnwrapBrowserToolStatus(t *testing.T) {
	body := `{"data":{"data":{"status":"finished","current_url":"https://lu.ma/abc","output":"done","is_success":true}}}`
	p, err := unwrap([]byte(body))
	require.NoError(t, err)
	st := decodeStatus(p)
	assert.Equal(t, TaskStatus{
		Status:     StatusFinished,
		RawStatus:  "finished",
		CurrentURL: "https://lu.ma/abc",
		Output:     "done",
		IsSuccess:  true,
	}, st)
}

func TestUnwrapErrors(t *testing.T) {
	_, err := unwrap([]byte(`{"successful":false,"error":"quota exceeded","data":{}}`))
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = unwrap([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadResponse)

	p, err := unwrap(nil)
	require.NoError(t, err)
	_, err = decodeHandle(p)
	assert.ErrorIs(t, err, ErrMissingTaskID)
}

func TestAlternateKeys(t *testing.T) {
	p, err := unwrap([]byte(`{"data":{"watch_task_id":"bt1","browser_session_id":"bs1"}}`))
	require.NoError(t, err)
	h, err := decodeHandle(p)
	require.NoError(t, err)
	assert.Equal(t, "bt1", h.TaskID)
	assert.Equal(t, "bs1", h.SessionID)
}
