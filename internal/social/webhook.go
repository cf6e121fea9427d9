// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package social

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
	"sync"
	"time"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/httpx"
	pnet "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/net"
)

// WebhookPublisher posts each message as JSON to {base}/{platform}. The
// receiving service owns the platform credentials.
type WebhookPublisher struct {
	base   string
	token  string
	client *http.Client
}

// NewWebhookPublisher validates base and builds a publisher.
func NewWebhookPublisher(base, token string, timeout time.Duration) (*WebhookPublisher, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if _, ok := pnet.ParseHTTPURL(base); !ok {
		return nil, fmt.Errorf("social: invalid webhook URL %q", pnet.SanitizeURL(base))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookPublisher{base: base, token: token, client: httpx.NewTracedClient(timeout, "social.webhook")}, nil
}

func (w *WebhookPublisher) Publish(ctx context.Context, p Post) (Receipt, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/"+url.PathEscape(string(p.Platform)), bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	res, err := w.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("social: %s: %w", p.Platform, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("social: %s: read response: %w", p.Platform, err)
	}
	if res.StatusCode == http.StatusUnprocessableEntity {
		return Receipt{}, fmt.Errorf("%w: %s", ErrMissingRequirement, xglog.RedactString(strings.TrimSpace(string(raw))))
	}
	if res.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("social: %s: HTTP %d: %s", p.Platform, res.StatusCode, xglog.RedactString(strings.TrimSpace(string(raw))))
	}

	var rc Receipt
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &rc); err != nil {
			return Receipt{}, fmt.Errorf("social: %s: decode response: %w", p.Platform, err)
		}
	}
	return rc, nil
}

// DryRunPublisher records posts instead of sending them.
type DryRunPublisher struct {
	mu    sync.Mutex
	posts []Post
	fail  map[Platform]error
}

// NewDryRunPublisher returns an empty recorder.
func NewDryRunPublisher() *DryRunPublisher {
	return &DryRunPublisher{fail: make(map[Platform]error)}
}

// FailOn makes every post to p fail with err.
func (d *DryRunPublisher) FailOn(p Platform, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = errors.New("dry-run failure")
	}
	d.fail[p] = err
}

func (d *DryRunPublisher) Publish(ctx context.Context, p Post) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[p.Platform]; err != nil {
		return Receipt{}, err
	}
	d.posts = append(d.posts, p)
	id := fmt.Sprintf("dry-%s-%d", p.Platform, len(d.posts))
	return Receipt{ID: id, URL: "https://dry-run.invalid/" + string(p.Platform) + "/" + id}, nil
}

// Posts returns the recorded posts.
func (d *DryRunPublisher) Posts() []Post {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Post, len(d.posts))
	copy(out, d.posts)
	return out
}
