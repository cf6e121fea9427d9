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
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_provider_calls_total",
		Help: "Browser provider tool calls by outcome",
	}, []string{"provider", "tool", "outcome"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventcast_provider_call_duration_seconds",
		Help:    "Latency of browser provider tool calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "tool"})

	taskPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcast_task_polls_total",
		Help: "Browser task polls by normalized status",
	}, []string{"provider", "status"})
)

// ObserveProviderCall records one provider round trip.
func ObserveProviderCall(provider, tool string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerCalls.WithLabelValues(provider, tool, outcome).Inc()
	providerLatency.WithLabelValues(provider, tool).Observe(d.Seconds())
}

// RecordTaskPoll counts a poll result.
func RecordTaskPoll(provider, status string) {
	taskPolls.WithLabelValues(provider, status).Inc()
}
