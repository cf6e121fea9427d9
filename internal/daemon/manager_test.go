// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func waitListening(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func apiConfig(addr string, shutdown time.Duration) config.APIConfig {
	return config.APIConfig{
		ListenAddr:      addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     10 * time.Second,
		ShutdownTimeout: shutdown,
	}
}

func startManager(t *testing.T, mgr Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
		return nil
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{name: "ok", deps: Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()}},
		{name: "disabled_logger", deps: Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()}, want: ErrMissingLogger},
		{name: "no_handler", deps: Deps{Logger: log.WithComponent("test")}, want: ErrMissingAPIHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, err := NewManager(config.APIConfig{ListenAddr: "127.0.0.1:0"}, tt.deps)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, mgr)
		})
	}
}

func TestManagerServesAPIAndMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	apiAddr, metricsAddr := freeAddr(t), freeAddr(t)
	mgr, err := NewManager(apiConfig(apiAddr, 2*time.Second), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "runs")
		}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# HELP eventcast_runs_total\n")
		}),
		MetricsAddr: metricsAddr,
	})
	require.NoError(t, err)

	cancel, done := startManager(t, mgr)
	waitListening(t, apiAddr)
	waitListening(t, metricsAddr)

	assert.Equal(t, "runs", getBody(t, "http://"+apiAddr+"/api/v1/runs"))
	assert.Contains(t, getBody(t, "http://"+metricsAddr+"/metrics"), "eventcast_runs_total")

	cancel()
	assert.NoError(t, waitDone(t, done))
}

func TestManagerShutdownTimesOutOnStuckRequest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	release := make(chan struct{})
	addr := freeAddr(t)
	mgr, err := NewManager(apiConfig(addr, 100*time.Millisecond), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			close(started)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}),
	})
	require.NoError(t, err)

	cancel, done := startManager(t, mgr)
	waitListening(t, addr)

	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://"+addr+"/api/v1/workflows", nil)
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	err = waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server shutdown")

	close(release)
	select {
	case <-reqDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stuck request did not finish after shutdown")
	}
}

func TestManagerShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(config.APIConfig{ListenAddr: "127.0.0.1:0"}, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManagerReportsPortConflict(t *testing.T) {
	taken := httptest.NewServer(http.NotFoundHandler())
	defer taken.Close()

	mgr, err := NewManager(apiConfig(taken.Listener.Addr().String(), time.Second), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	var closed bool
	mgr.RegisterShutdownHook("runtime", func(context.Context) error {
		closed = true
		return nil
	})

	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api listener")
	assert.True(t, closed, "hooks run when startup aborts")
}

func TestManagerShutdownHooksRunLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := freeAddr(t)
	mgr, err := NewManager(apiConfig(addr, time.Second), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	var order []string
	mgr.RegisterShutdownHook("runtime", func(context.Context) error {
		order = append(order, "runtime")
		return nil
	})
	mgr.RegisterShutdownHook("telemetry", func(context.Context) error {
		order = append(order, "telemetry")
		return errors.New("flush failed")
	})

	cancel, done := startManager(t, mgr)
	waitListening(t, addr)
	cancel()

	err = waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook telemetry")
	assert.Equal(t, "telemetry,runtime", strings.Join(order, ","))

	assert.NoError(t, mgr.Shutdown(context.Background()), "second shutdown is a no-op")
}
