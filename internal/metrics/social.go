// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var socialPosts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventcast_social_posts_total",
	Help: "Social promotion posts by platform and outcome",
}, []string{"platform", "outcome"}) // outcome=success|failed|skipped

// RecordSocialPost counts one social post attempt.
func RecordSocialPost(platform, outcome string) {
	socialPosts.WithLabelValues(platform, outcome).Inc()
}
