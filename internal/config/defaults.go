// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/browser"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/ratelimit"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
)

// Default returns the built-in configuration. Every layer (file, env)
// starts from here.
func Default() Config {
	m := machine.DefaultConfig()
	check := m.CheckDuplicates
	return Config{
		DataDir: defaultDataDir(),
		Log:     LogConfig{Level: "info", Service: "eventcast"},
		Provider: ProviderConfig{
			Name:             ProviderHyperbrowser,
			Timeout:          60 * time.Second,
			MaxSteps:         25,
			RatePerSecond:    2,
			Burst:            4,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Machine: MachineConfig{
			PollInterval:    m.PollInterval,
			StepTimeout:     m.StepTimeout,
			StepMaxPolls:    m.StepMaxPolls,
			TaskTimeout:     m.TaskTimeout,
			TaskMaxPolls:    m.TaskMaxPolls,
			StepMaxSteps:    m.StepMaxSteps,
			TaskMaxSteps:    m.TaskMaxSteps,
			CheckDuplicates: &check,
			CheckpointTTL:   m.CheckpointTTL,
		},
		Checkpoint: checkpoint.Config{Backend: checkpoint.BackendFile},
		Sessions: SessionsConfig{
			Store:       StoreFile,
			MaxAge:      session.DefaultMaxAge,
			LiveTimeout: session.DefaultLiveTimeout,
		},
		Leases: LeaseConfig{Backend: StoreMemory},
		Social: SocialConfig{
			Timeout:     30 * time.Second,
			GlobalRate:  5,
			DefaultRate: 1,
			Rates:       map[string]float64{string(social.Twitter): 0.5},
		},
		API: APIConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       60,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// defaultDataDir is $XDG_CONFIG_HOME/eventcast, falling back to the
// working directory when no config dir is known.
func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "eventcast-data"
	}
	return filepath.Join(dir, "eventcast")
}

// Build converts the tuning section into machine.Config.
func (m MachineConfig) Build() (machine.Config, error) {
	out := machine.Config{
		PollInterval:    m.PollInterval,
		StepTimeout:     m.StepTimeout,
		StepMaxPolls:    m.StepMaxPolls,
		TaskTimeout:     m.TaskTimeout,
		TaskMaxPolls:    m.TaskMaxPolls,
		StepMaxSteps:    m.StepMaxSteps,
		TaskMaxSteps:    m.TaskMaxSteps,
		CheckDuplicates: m.CheckDuplicates == nil || *m.CheckDuplicates,
		CheckpointTTL:   m.CheckpointTTL,
	}
	if len(m.Policies) > 0 {
		out.Policies = make(map[state.State]machine.Policy, len(m.Policies))
		for name, p := range m.Policies {
			s, err := state.Parse(name)
			if err != nil {
				return machine.Config{}, fmt.Errorf("machine.policies: %w", err)
			}
			out.Policies[s] = p
		}
	}
	return out, nil
}

// Browser converts the provider section into browser.Config.
func (p ProviderConfig) Browser() browser.Config {
	return browser.Config{
		BaseURL:          p.BaseURL,
		APIKey:           p.APIKey,
		Provider:         p.Name,
		Timeout:          p.Timeout,
		DefaultMaxSteps:  p.MaxSteps,
		RatePerSecond:    p.RatePerSecond,
		Burst:            p.Burst,
		BreakerThreshold: p.BreakerThreshold,
		BreakerReset:     p.BreakerReset,
	}
}

// Registry converts the sessions section into session.Config.
func (s SessionsConfig) Registry() session.Config {
	return session.Config{
		Profiles:    s.Profiles,
		MaxAge:      s.MaxAge,
		LiveTimeout: s.LiveTimeout,
	}
}

// SessionStorePath resolves the session file or database location.
func (c Config) SessionStorePath() string {
	if c.Sessions.Path != "" {
		return c.Sessions.Path
	}
	if c.Sessions.Store == StoreSQLite {
		return filepath.Join(c.DataDir, "sessions.db")
	}
	return filepath.Join(c.DataDir, "sessions.json")
}

// CheckpointConfig fills the checkpoint directory from DataDir when the
// backend needs one and none is set.
func (c Config) CheckpointConfig() checkpoint.Config {
	cp := c.Checkpoint
	if cp.Dir == "" && cp.Backend != checkpoint.BackendFile {
		cp.Dir = c.DataDir
	}
	return cp
}

// Limits converts the posting pace into ratelimit.Config.
func (s SocialConfig) Limits() ratelimit.Config {
	cfg := ratelimit.Config{
		GlobalRate:   rate.Limit(s.GlobalRate),
		GlobalBurst:  max(1, int(s.GlobalRate)),
		DefaultRate:  rate.Limit(s.DefaultRate),
		DefaultBurst: 1,
		KeyRates:     make(map[string]rate.Limit, len(s.Rates)),
		KeyBurst:     make(map[string]int, len(s.Rates)),
	}
	for k, v := range s.Rates {
		cfg.KeyRates[k] = rate.Limit(v)
		cfg.KeyBurst[k] = 1
	}
	return cfg
}

// SkipPlatforms parses Skip; unknown names were rejected by Validate.
func (s SocialConfig) SkipPlatforms() []social.Platform {
	var out []social.Platform
	for _, name := range s.Skip {
		if p, err := social.ParsePlatform(name); err == nil {
			out = append(out, p)
		}
	}
	return out
}
