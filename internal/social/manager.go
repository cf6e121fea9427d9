// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package social

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/ratelimit"
)

// MaxParallel is the width of the posting pool.
const MaxParallel = 5

// Request is one promotion.
type Request struct {
	Handoff Handoff
	// Copies overrides the text per platform; missing entries use FallbackCopy.
	Copies  map[Platform]string
	Skip    []Platform
	Targets Targets
}

// Report holds one result per platform, in All order.
type Report struct {
	Results  []Result      `json:"results"`
	ImageURL string        `json:"image_url,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded counts successful posts.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Get returns the result of p.
func (r Report) Get(p Platform) (Result, bool) {
	for _, res := range r.Results {
		if res.Platform == p {
			return res, true
		}
	}
	return Result{}, false
}

// Manager posts to every platform through one Publisher.
type Manager struct {
	pub     Publisher
	limiter *ratelimit.Limiter
	targets Targets
	timeout time.Duration
	logger  zerolog.Logger
}

// NewManager builds a manager. A nil limiter uses ratelimit.DefaultConfig.
// Default targets fill in whatever a Request leaves empty.
func NewManager(pub Publisher, limiter *ratelimit.Limiter, targets Targets, timeout time.Duration) *Manager {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		pub:     pub,
		limiter: limiter,
		targets: targets,
		timeout: timeout,
		logger:  xglog.WithComponent("social"),
	}
}

// Promote posts to every non-skipped platform with at most MaxParallel in
// flight. A failing platform never affects the others.
func (m *Manager) Promote(ctx context.Context, req Request) Report {
	start := time.Now()
	t := req.Targets
	if t.FacebookPageID == "" {
		t.FacebookPageID = m.targets.FacebookPageID
	}
	if t.DiscordChannelID == "" {
		t.DiscordChannelID = m.targets.DiscordChannelID
	}

	var (
		mu      sync.Mutex
		results = make(map[Platform]Result, len(All))
	)
	record := func(r Result) {
		mu.Lock()
		results[r.Platform] = r
		mu.Unlock()
		metrics.RecordSocialPost(string(r.Platform), strings.ToLower(string(r.Status)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallel)
	for _, p := range All {
		if slices.Contains(req.Skip, p) {
			record(Result{Platform: p, Status: StatusSkipped, Message: "Skipped by request"})
			continue
		}
		text := req.Copies[p]
		if strings.TrimSpace(text) == "" {
			text = FallbackCopy(p, req.Handoff)
		}
		post, err := Format(p, text, req.Handoff, t)
		if err != nil {
			record(Result{Platform: p, Status: StatusSkipped, Message: err.Error()})
			continue
		}
		g.Go(func() error {
			record(m.publish(gctx, post))
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{ImageURL: req.Handoff.ImageURL, Duration: time.Since(start)}
	for _, p := range All {
		rep.Results = append(rep.Results, results[p])
	}
	m.logger.Info().
		Str(xglog.FieldEvent, "social.promoted").
		Int("succeeded", rep.Succeeded()).
		Int("platforms", len(rep.Results)).
		Msg("social promotion finished")
	return rep
}

func (m *Manager) publish(ctx context.Context, post Post) Result {
	res := Result{Platform: post.Platform}
	if err := m.limiter.Wait(ctx, string(post.Platform)); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	rc, err := m.pub.Publish(ctx, post)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		if errors.Is(err, ErrMissingRequirement) {
			res.Status = StatusSkipped
		}
		m.logger.Warn().Err(err).Str("social_platform", string(post.Platform)).Msg("post failed")
		return res
	}
	res.Status = StatusSuccess
	res.PostID = rc.ID
	res.PostURL = rc.URL
	res.Message = "Posted to " + string(post.Platform)
	return res
}
