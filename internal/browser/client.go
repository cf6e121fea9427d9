// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/metrics"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/httpx"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
)

const (
	tracerName      = "eventcast/browser"
	maxErrorBody    = 512
	maxResponseBody = 4 << 20
)

// Config configures the tool gateway client.
type Config struct {
	BaseURL  string
	APIKey   string
	Provider string
	Timeout  time.Duration

	// DefaultMaxSteps applies when a request leaves MaxSteps at zero.
	DefaultMaxSteps int

	// RatePerSecond limits provider calls; zero disables limiting.
	RatePerSecond float64
	Burst         int

	BreakerThreshold int
	BreakerReset     time.Duration
}

// Client implements TaskRunner against a tool gateway that exposes
// POST {base}/tools/execute/{TOOL} with {"arguments":{...}}.
type Client struct {
	base     string
	apiKey   string
	provider Provider
	steps    int
	http     *http.Client
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
	liveURLs singleflight.Group
	logger   zerolog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("browser: base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("browser: invalid base URL: %w", err)
	}
	p, err := ProviderByName(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = 25
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 30 * time.Second
	}

	c := &Client{
		base:     base,
		apiKey:   cfg.APIKey,
		provider: p,
		steps:    cfg.DefaultMaxSteps,
		http:     httpx.NewTracedClient(cfg.Timeout, "browser."+p.Name),
		breaker:  NewCircuitBreaker("browser_"+p.Name, cfg.BreakerThreshold, cfg.BreakerReset),
		logger:   xglog.WithComponent("browser").With().Str(xglog.FieldProvider, p.Name).Logger(),
	}
	if cfg.RatePerSecond > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c, nil
}

// Provider returns the tool family in use.
func (c *Client) Provider() Provider { return c.provider }

// Breaker exposes the circuit breaker for health checks.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// StartTask starts a browser task and resolves its live URL on a best-effort basis.
func (c *Client) StartTask(ctx context.Context, req TaskRequest) (TaskHandle, error) {
	p, err := c.execute(ctx, c.provider.StartTool, "", c.provider.startArgs(req, c.steps))
	if err != nil {
		return TaskHandle{}, err
	}
	h, err := decodeHandle(p)
	if err != nil {
		return TaskHandle{}, &Error{Sentinel: ErrBadResponse, Operation: c.provider.StartTool, Err: err}
	}
	if h.SessionID == "" {
		h.SessionID = req.SessionID
	}
	if h.LiveURL == "" && h.SessionID != "" {
		if live, err := c.LiveURL(ctx, h.SessionID); err == nil {
			h.LiveURL = live
		} else {
			c.logger.Debug().Err(err).Str(xglog.FieldSessionID, h.SessionID).Msg("live url lookup failed")
		}
	}

	c.logger.Info().
		Str(xglog.FieldEvent, "browser.task_started").
		Str(xglog.FieldTaskID, h.TaskID).
		Str(xglog.FieldSessionID, h.SessionID).
		Str(xglog.FieldState, req.Metadata["state"]).
		Msg("browser task started")
	return h, nil
}

// PollTask fetches the normalized status of a task.
func (c *Client) PollTask(ctx context.Context, taskID string) (TaskStatus, error) {
	if taskID == "" {
		return TaskStatus{}, ErrMissingTaskID
	}
	p, err := c.execute(ctx, c.provider.PollTool, taskID, c.provider.pollArgs(taskID))
	if err != nil {
		return TaskStatus{}, err
	}
	st := decodeStatus(p)
	metrics.RecordTaskPoll(c.provider.Name, string(st.Status))
	return st, nil
}

// LiveURL looks up the live viewing URL of a session. Concurrent lookups of
// the same session share one call.
func (c *Client) LiveURL(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	v, err, _ := c.liveURLs.Do(sessionID, func() (any, error) {
		p, err := c.execute(ctx, c.provider.SessionTool, "", c.provider.sessionArgs(sessionID))
		if err != nil {
			return "", err
		}
		return decodeLiveURL(p), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CreateProfile creates a persistent browser profile.
func (c *Client) CreateProfile(ctx context.Context, name string) (string, error) {
	if c.provider.ProfileTool == "" {
		return "", ErrNotImplemented
	}
	p, err := c.execute(ctx, c.provider.ProfileTool, "", map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	id := p.str("id", "profileId", "profile_id")
	if id == "" {
		return "", &Error{Sentinel: ErrBadResponse, Operation: c.provider.ProfileTool, Body: "missing profile id"}
	}
	return id, nil
}

func (c *Client) execute(ctx context.Context, tool, taskID string, args map[string]any) (payload, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "browser."+tool,
		telemetry.ProviderAttributes(c.provider.Name, tool, taskID)...)
	start := time.Now()

	var out payload
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.do(ctx, tool, args)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = &Error{Sentinel: ErrCircuitOpen, Operation: tool}
	}

	metrics.ObserveProviderCall(c.provider.Name, tool, time.Since(start), err)
	telemetry.EndSpan(span, err)
	if err != nil {
		c.logger.Warn().Err(err).
			Str(xglog.FieldTool, tool).
			Interface("args", xglog.Redact(args)).
			Msg("provider call failed")
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, tool string, args map[string]any) (payload, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Sentinel: ErrTimeout, Operation: tool, Err: err}
		}
	}

	body, err := json.Marshal(map[string]any{"arguments": args})
	if err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Operation: tool, Err: err}
	}
	endpoint := c.base + "/tools/execute/" + url.PathEscape(tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Operation: tool, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &Error{Sentinel: ErrTimeout, Operation: tool, Err: err}
		}
		return nil, &Error{Sentinel: ErrUnavailable, Operation: tool, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Operation: tool, Status: res.StatusCode, Err: err}
	}
	if res.StatusCode >= 300 {
		return nil, &Error{
			Sentinel:  sentinelForStatus(res.StatusCode),
			Operation: tool,
			Status:    res.StatusCode,
			Body:      xglog.RedactString(truncate(string(raw), maxErrorBody)),
		}
	}

	p, err := unwrap(raw)
	if err != nil {
		var sentinel error = ErrBadResponse
		if errors.Is(err, ErrToolFailed) {
			sentinel = ErrToolFailed
		}
		return nil, &Error{Sentinel: sentinel, Operation: tool, Status: res.StatusCode, Err: err}
	}
	return p, nil
}

func sentinelForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrProviderError
	default:
		return ErrBadResponse
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
