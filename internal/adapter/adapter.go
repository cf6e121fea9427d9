// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package adapter declares everything that differs between the event
// platforms. Adapters never touch a browser; the machine turns their
// prompts into browser tasks.
package adapter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	pnet "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/net"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/resolver"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

// Platform is the closed set of event platforms.
type Platform string

const (
	Luma     Platform = "luma"
	Meetup   Platform = "meetup"
	Partiful Platform = "partiful"
)

// All lists the platforms in workflow and primary-URL priority order.
var All = []Platform{Luma, Meetup, Partiful}

// ErrUnknownPlatform is returned for names outside the closed set.
var ErrUnknownPlatform = errors.New("adapter: unknown platform")

// ParsePlatform validates a platform name (case-insensitive).
func ParsePlatform(v string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(v)))
	switch p {
	case Luma, Meetup, Partiful:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, v)
}

func (p Platform) String() string { return string(p) }

// Feature is an optional capability a platform may or may not offer.
type Feature string

const (
	FeatureImage        Feature = "image_upload"
	FeatureTickets      Feature = "tickets"
	FeatureCoHosts      Feature = "cohosts"
	FeatureRecurring    Feature = "recurring"
	FeatureIntegrations Feature = "integrations"
)

// FeatureFor maps a feature step to its feature.
func FeatureFor(s state.State) (Feature, bool) {
	switch s {
	case state.UploadImage:
		return FeatureImage, true
	case state.SetTickets:
		return FeatureTickets, true
	case state.AddCoHosts:
		return FeatureCoHosts, true
	case state.SetRecurring:
		return FeatureRecurring, true
	case state.SetIntegrations:
		return FeatureIntegrations, true
	}
	return "", false
}

// Output markers the browser agent is told to emit.
const (
	MarkerAuthRequired = "AUTH_REQUIRED"
	MarkerTwoFactor    = "2FA_REQUIRED"
	MarkerNotFound     = "ELEMENT_NOT_FOUND"
	MarkerDuplicate    = "DUPLICATE_FOUND"
	MarkerNoDuplicate  = "NO_DUPLICATE"
	MarkerStepDone     = "STEP_DONE"
	MarkerEventURL     = "EVENT_URL:"
)

// Config carries the URL overrides. The zero value uses the public defaults.
type Config struct {
	LumaCreateURL     string `yaml:"luma_create_url,omitempty"`
	PartifulCreateURL string `yaml:"partiful_create_url,omitempty"`
	MeetupGroupURL    string `yaml:"meetup_group_url,omitempty"`
}

// profile is the static declaration of one platform.
type profile struct {
	platform Platform
	name     string

	createURL string
	homeURL   string
	loginURL  string

	baseDelay time.Duration
	delays    map[state.State]time.Duration

	unsupported map[Feature]string

	targets map[state.State]resolver.Target
	notes   map[state.State]string
	global  string

	postSubmit string
	indicators []string

	successPattern string
	isSuccess      func(lowerURL string) bool

	attempts map[state.State]int
}

// Adapter is the resolved contract for one platform.
type Adapter struct {
	p   profile
	cfg Config
}

// For resolves the adapter of p.
func For(p Platform, cfg Config) (*Adapter, error) {
	var prof profile
	switch p {
	case Luma:
		prof = lumaProfile()
	case Meetup:
		prof = meetupProfile()
	case Partiful:
		prof = partifulProfile()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, string(p))
	}
	return &Adapter{p: prof, cfg: cfg}, nil
}

func (a *Adapter) Platform() Platform { return a.p.platform }
func (a *Adapter) Name() string       { return a.p.name }
func (a *Adapter) HomeURL() string    { return a.p.homeURL }
func (a *Adapter) LoginURL() string   { return a.p.loginURL }

// CreateURL resolves the event creation page.
func (a *Adapter) CreateURL() string {
	switch a.p.platform {
	case Luma:
		if a.cfg.LumaCreateURL != "" {
			return a.cfg.LumaCreateURL
		}
	case Partiful:
		if a.cfg.PartifulCreateURL != "" {
			return a.cfg.PartifulCreateURL
		}
	case Meetup:
		if g := strings.TrimRight(strings.TrimSpace(a.cfg.MeetupGroupURL), "/"); g != "" {
			return g + "/events/create/"
		}
	}
	return a.p.createURL
}

// Delay is the pause after s completes.
func (a *Adapter) Delay(s state.State) time.Duration {
	if d, ok := a.p.delays[s]; ok {
		return d
	}
	return a.p.baseDelay
}

// IsSuccessURL reports whether u looks like a created event page. Hosts are
// compared in canonical form, so "LU.MA." and "lu.ma:443" match too.
func (a *Adapter) IsSuccessURL(u string) bool {
	u = pnet.CanonicalURL(u)
	if u == "" {
		return false
	}
	return a.p.isSuccess(u)
}

// SuccessPattern is a readable form of IsSuccessURL.
func (a *Adapter) SuccessPattern() string { return a.p.successPattern }

// Supports reports whether the platform offers f.
func (a *Adapter) Supports(f Feature) bool {
	_, no := a.p.unsupported[f]
	return !no
}

// Unsupported explains why f is missing, "" if supported.
func (a *Adapter) Unsupported(f Feature) string {
	return a.p.unsupported[f]
}

// PostSubmit is the cleanup instruction run after SUBMIT.
func (a *Adapter) PostSubmit() string { return a.p.postSubmit }

// FormIndicators are texts visible only on the create form.
func (a *Adapter) FormIndicators() []string {
	out := make([]string, len(a.p.indicators))
	copy(out, a.p.indicators)
	return out
}

// MaxAttempts returns a platform override for the attempts of s.
func (a *Adapter) MaxAttempts(s state.State) (int, bool) {
	n, ok := a.p.attempts[s]
	return n, ok
}

// Target returns the element target for s.
func (a *Adapter) Target(s state.State) (resolver.Target, bool) {
	t, ok := a.p.targets[s]
	return t, ok
}

// Wants reports whether the event asks for the feature behind s.
func Wants(s state.State, ev event.Data) bool {
	switch s {
	case state.UploadImage:
		return ev.ImageURL != ""
	case state.SetTickets:
		return ev.Features.Tickets.NeedsSetup()
	case state.AddCoHosts:
		return len(ev.Features.CoHosts) > 0
	case state.SetRecurring:
		return ev.Features.Recurring.IsRecurring()
	case state.SetIntegrations:
		return ev.Features.Integrations.Any()
	}
	return true
}

// Plan is the feature-filtered step list for ev, in canonical order.
// Feature steps the platform lacks or the event does not request are left
// out; CHECK_DUPLICATE is dropped when checkDuplicates is false.
func (a *Adapter) Plan(ev event.Data, checkDuplicates bool) []state.State {
	plan := make([]state.State, 0, len(state.Canonical))
	for _, s := range state.Canonical {
		if s == state.CheckDuplicate && !checkDuplicates {
			continue
		}
		if f, ok := FeatureFor(s); ok && (!a.Supports(f) || !Wants(s, ev)) {
			continue
		}
		plan = append(plan, s)
	}
	return plan
}

// SkippedFeatures lists feature steps the event asked for but the platform
// cannot do.
func (a *Adapter) SkippedFeatures(ev event.Data) []state.State {
	var out []state.State
	for _, s := range state.Canonical {
		if f, ok := FeatureFor(s); ok && Wants(s, ev) && !a.Supports(f) {
			out = append(out, s)
		}
	}
	return out
}
