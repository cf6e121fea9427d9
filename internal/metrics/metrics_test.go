// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("test-provider", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test-provider", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test-provider", "closed")))

	SetCircuitBreakerState("test-provider", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test-provider", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("test-provider", "closed")))
}

func TestRunCounters(t *testing.T) {
	RunStarted("test-luma")
	assert.Equal(t, 1.0, testutil.ToFloat64(runsActive.WithLabelValues("test-luma")))

	RunFinished("test-luma", "DONE")
	assert.Equal(t, 0.0, testutil.ToFloat64(runsActive.WithLabelValues("test-luma")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("test-luma", "DONE")))
}

func TestRecordCheckpointOpOutcome(t *testing.T) {
	RecordCheckpointOp("test", "save", nil)
	RecordCheckpointOp("test", "save", errors.New("disk full"))
	RecordCheckpointOp("test", "save", errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(checkpointOps.WithLabelValues("test", "save", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(checkpointOps.WithLabelValues("test", "save", "error")))
}

func TestObserveProviderCall(t *testing.T) {
	ObserveProviderCall("test", "TOOL", 20*time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(providerCalls.WithLabelValues("test", "TOOL", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(providerLatency, "eventcast_provider_call_duration_seconds"))
}

func TestWorkflowAndSocialCounters(t *testing.T) {
	RecordWorkflow("partial")
	assert.Equal(t, 1.0, testutil.ToFloat64(workflowsTotal.WithLabelValues("partial")))

	RecordSocialPost("test-discord", "success")
	RecordSocialPost("test-discord", "skipped")
	assert.Equal(t, 1.0, testutil.ToFloat64(socialPosts.WithLabelValues("test-discord", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(socialPosts.WithLabelValues("test-discord", "skipped")))
}
