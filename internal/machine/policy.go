// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package machine

import (
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

const (
	backoffMultiplier = 2
	jitterFraction    = 0.2
)

// Policy is the retry budget of one state. Attempts counts executions, so
// 1 means no retry.
type Policy struct {
	Attempts int           `yaml:"attempts"`
	Base     time.Duration `yaml:"base"`
	Max      time.Duration `yaml:"max"`
}

func fill() Policy { return Policy{Attempts: 2, Base: 750 * time.Millisecond, Max: 8 * time.Second} }

func feature() Policy { return Policy{Attempts: 2, Base: time.Second, Max: 8 * time.Second} }

var defaultPolicies = map[state.State]Policy{
	state.CheckDuplicate:  {Attempts: 1, Base: 500 * time.Millisecond, Max: 8 * time.Second},
	state.Navigate:        {Attempts: 2, Base: time.Second, Max: 8 * time.Second},
	state.AuthCheck:       {Attempts: 1, Base: 500 * time.Millisecond, Max: 8 * time.Second},
	state.FillTitle:       fill(),
	state.FillDate:        fill(),
	state.FillTime:        fill(),
	state.FillLocation:    fill(),
	state.FillDescription: fill(),
	state.UploadImage:     {Attempts: 2, Base: 1500 * time.Millisecond, Max: 10 * time.Second},
	state.SetTickets:      feature(),
	state.AddCoHosts:      feature(),
	state.SetRecurring:    feature(),
	state.SetIntegrations: feature(),
	state.VerifyForm:      {Attempts: 2, Base: time.Second, Max: 8 * time.Second},
	state.Submit:          {Attempts: 1, Base: time.Second, Max: 8 * time.Second},
	state.PostSubmit:      {Attempts: 1, Base: time.Second, Max: 8 * time.Second},
	state.VerifySuccess:   {Attempts: 3, Base: 1500 * time.Millisecond, Max: 12 * time.Second},
}

// DefaultPolicy returns the built-in policy of s.
func DefaultPolicy(s state.State) Policy {
	if p, ok := defaultPolicies[s]; ok {
		return p
	}
	return Policy{Attempts: 1, Base: time.Second, Max: 8 * time.Second}
}

// Backoff is the pause after the given failed attempt (1-based):
// base * 2^(attempt-1), capped at Max, then jittered by ±20%.
// rnd returns a value in [0, 1).
func (p Policy) Backoff(attempt int, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.Base
	for i := 1; i < attempt && wait < p.Max; i++ {
		wait *= backoffMultiplier
	}
	if p.Max > 0 && wait > p.Max {
		wait = p.Max
	}
	if rnd != nil {
		factor := 1 + (rnd()*2-1)*jitterFraction
		wait = time.Duration(float64(wait) * factor)
	}
	return wait
}

// policy resolves the effective policy: built-in, then configured
// overrides, then the adapter's attempt override. SUBMIT always runs once.
func (m *Machine) policy(a *adapter.Adapter, s state.State) Policy {
	p := DefaultPolicy(s)
	if o, ok := m.config().Policies[s]; ok {
		if o.Attempts > 0 {
			p.Attempts = o.Attempts
		}
		if o.Base > 0 {
			p.Base = o.Base
		}
		if o.Max > 0 {
			p.Max = o.Max
		}
	}
	if n, ok := a.MaxAttempts(s); ok && n > 0 {
		p.Attempts = n
	}
	if s == state.Submit {
		p.Attempts = 1
	}
	return p
}
