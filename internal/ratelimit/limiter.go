// SPDX-License-Identifier: MIT

// Package ratelimit paces outbound calls with a global bucket and one
// bucket per key (for example per social platform).
package ratelimit

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitWaits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "eventcast",
		Name:      "ratelimit_delayed_total",
		Help:      "Calls that had to wait for a rate limit token",
	},
	[]string{"limit_type", "key"},
)

// Config holds rate limiting configuration
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // calls per second
	GlobalBurst int

	// Per-key limits; keys without an entry use DefaultRate/DefaultBurst.
	KeyRates     map[string]rate.Limit
	KeyBurst     map[string]int
	DefaultRate  rate.Limit
	DefaultBurst int
}

// DefaultConfig paces social posting: one post per second per platform,
// five in flight overall.
func DefaultConfig() Config {
	return Config{
		GlobalRate:   5,
		GlobalBurst:  5,
		DefaultRate:  1,
		DefaultBurst: 1,
		KeyRates: map[string]rate.Limit{
			"twitter": 0.5,
		},
		KeyBurst: map[string]int{
			"twitter": 1,
		},
	}
}

// Limiter manages the buckets.
type Limiter struct {
	config Config

	global *rate.Limiter
	perKey map[string]*rate.Limiter
	mu     sync.Mutex
}

// New creates a limiter. A zero rate means unlimited.
func New(config Config) *Limiter {
	return &Limiter{
		config: config,
		global: newBucket(config.GlobalRate, config.GlobalBurst),
		perKey: make(map[string]*rate.Limiter),
	}
}

func newBucket(r rate.Limit, burst int) *rate.Limiter {
	if r <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(r, max(burst, 1))
}

// Allow reports whether a call for key may happen now, consuming tokens if so.
func (l *Limiter) Allow(key string) bool {
	if !l.globalBucket().Allow() {
		return false
	}
	return l.bucket(key).Allow()
}

// Wait blocks until both the global and the key bucket grant a token or ctx
// ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if err := wait(ctx, l.globalBucket(), "global", key); err != nil {
		return err
	}
	return wait(ctx, l.bucket(key), "per_key", key)
}

func wait(ctx context.Context, b *rate.Limiter, kind, key string) error {
	if b.Allow() {
		return nil
	}
	rateLimitWaits.WithLabelValues(kind, key).Inc()
	return b.Wait(ctx)
}

// Update swaps the configuration. Existing buckets are dropped, so the new
// rates apply from the next call.
func (l *Limiter) Update(config Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config = config
	l.global = newBucket(config.GlobalRate, config.GlobalBurst)
	l.perKey = make(map[string]*rate.Limiter)
}

func (l *Limiter) globalBucket() *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global
}

// bucket returns the limiter for a specific key
func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.perKey[key]
	if !ok {
		r, burst := l.config.DefaultRate, l.config.DefaultBurst
		if kr, found := l.config.KeyRates[key]; found {
			r = kr
			if kb, ok := l.config.KeyBurst[key]; ok {
				burst = kb
			}
		}
		b = newBucket(r, burst)
		l.perKey[key] = b
	}
	return b
}
