// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_runs_total",
		Help: "Event creation runs by platform and terminal status",
	}, []string{"platform", "status"})

	runsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventcast_runs_active",
		Help: "Event creation runs currently in progress",
	}, []string{"platform"})

	stateAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_state_attempts_total",
		Help: "State executions by outcome",
	}, []string{"platform", "state", "outcome"}) // outcome=success|retry|failed|auth|skipped

	stateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventcast_state_duration_seconds",
		Help:    "Wall time spent in one state including retries",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"platform", "state"})

	submitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_submits_total",
		Help: "Form submissions sent to a platform",
	}, []string{"platform"})

	needsReviewTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_needs_review_total",
		Help: "Runs that finished without a confirmed event URL",
	}, []string{"platform"})

	checkpointOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_checkpoint_operations_total",
		Help: "Checkpoint store operations by backend and outcome",
	}, []string{"backend", "op", "outcome"})

	workflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_workflows_total",
		Help: "Workflow invocations by outcome",
	}, []string{"outcome"}) // outcome=success|partial|failed
)

// RunStarted marks a run as active.
func RunStarted(platform string) {
	runsActive.WithLabelValues(platform).Inc()
}

// RunFinished records the terminal status of a run.
func RunFinished(platform, status string) {
	runsActive.WithLabelValues(platform).Dec()
	runsTotal.WithLabelValues(platform, status).Inc()
}

// RecordStateAttempt counts one execution of a state.
func RecordStateAttempt(platform, state, outcome string) {
	stateAttempts.WithLabelValues(platform, state, outcome).Inc()
}

// ObserveStateDuration records the time spent in a state.
func ObserveStateDuration(platform, state string, d time.Duration) {
	stateDuration.WithLabelValues(platform, state).Observe(d.Seconds())
}

// RecordSubmit counts a form submission.
func RecordSubmit(platform string) {
	submitsTotal.WithLabelValues(platform).Inc()
}

// RecordNeedsReview counts an unconfirmed success.
func RecordNeedsReview(platform string) {
	needsReviewTotal.WithLabelValues(platform).Inc()
}

// RecordCheckpointOp counts one checkpoint store call.
func RecordCheckpointOp(backend, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	checkpointOps.WithLabelValues(backend, op, outcome).Inc()
}

// RecordWorkflow counts a finished workflow.
func RecordWorkflow(outcome string) {
	workflowsTotal.WithLabelValues(outcome).Inc()
}
