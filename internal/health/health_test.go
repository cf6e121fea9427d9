// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
)

type fakeStore struct{ degraded bool }

func (f fakeStore) Backend() string { return "file" }
func (f fakeStore) Degraded() bool  { return f.degraded }

func TestHealthAlwaysAlive(t *testing.T) {
	m := NewManager("v1.2.3")
	m.RegisterChecker(NewFuncChecker("broken", func(context.Context) error { return errors.New("boom") }))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "boom", resp.Checks["broken"].Error)

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyAggregatesStatus(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		want      Status
		wantCode  int
	}{
		{"no checkers", nil, true, StatusHealthy, http.StatusOK},
		{"degraded checkpoint store", []Checker{NewCheckpointChecker(fakeStore{degraded: true})}, true, StatusDegraded, http.StatusOK},
		{"open breaker", []Checker{
			NewCheckpointChecker(fakeStore{}),
			NewBreakerChecker("provider", func() string { return "open" }),
		}, false, StatusUnhealthy, http.StatusServiceUnavailable},
		{"half-open breaker", []Checker{NewBreakerChecker("provider", func() string { return "half-open" })}, true, StatusDegraded, http.StatusOK},
		{"config not loaded", []Checker{ConfigChecker(func() bool { return false })}, false, StatusUnhealthy, http.StatusServiceUnavailable},
		{"informational failure", []Checker{Informational("disk", func(context.Context) error { return errors.New("full") })}, true, StatusDegraded, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)

			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
		})
	}
}

func TestWritableDirChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, WritableDirChecker("data", dir).Check(context.Background()).Status)

	missing := filepath.Join(dir, "missing")
	assert.Equal(t, StatusDegraded, WritableDirChecker("data", missing).Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")
}

func TestNames(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(NewBreakerChecker("provider", func() string { return "closed" }))
	m.RegisterChecker(NewCheckpointChecker(fakeStore{}))
	assert.Equal(t, []string{"checkpoint_store", "provider"}, m.Names())
}

func TestStartupChecks(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.DataDir)

	cfg.API.ListenAddr = "localhost"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.API.ListenAddr = ":99999"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}
