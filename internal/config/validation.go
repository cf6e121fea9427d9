// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/validate"
)

var webSchemes = []string{"http", "https"}

// Validate checks every section and reports all failures at once.
func Validate(cfg Config) error {
	v := validate.New()

	v.NotEmpty("dataDir", cfg.DataDir)
	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", "must be one of "+strings.Join(validate.LogLevels, ", "), cfg.Log.Level)
	}

	p := v.Section("provider")
	p.OneOf("name", cfg.Provider.Name, []string{ProviderHyperbrowser, ProviderBrowserTool, ProviderDryRun})
	if cfg.Provider.Name != ProviderDryRun {
		p.URL("baseURL", cfg.Provider.BaseURL, webSchemes)
	}
	p.DurationRange("timeout", cfg.Provider.Timeout, time.Second, 10*time.Minute)
	p.Range("maxSteps", cfg.Provider.MaxSteps, 1, 500)
	p.FloatRange("ratePerSecond", cfg.Provider.RatePerSecond, 0, 100)
	p.NonNegative("burst", cfg.Provider.Burst)
	p.NonNegative("breakerThreshold", cfg.Provider.BreakerThreshold)
	for name := range cfg.Provider.DryRunURLs {
		if _, err := adapter.ParsePlatform(name); err != nil {
			p.AddError("dryRunURLs", err.Error(), name)
		}
	}

	m := v.Section("machine")
	m.DurationRange("pollInterval", cfg.Machine.PollInterval, 10*time.Millisecond, 5*time.Minute)
	m.DurationRange("stepTimeout", cfg.Machine.StepTimeout, time.Second, time.Hour)
	m.Positive("stepMaxPolls", cfg.Machine.StepMaxPolls)
	m.DurationRange("taskTimeout", cfg.Machine.TaskTimeout, time.Second, 6*time.Hour)
	m.Positive("taskMaxPolls", cfg.Machine.TaskMaxPolls)
	m.Positive("stepMaxSteps", cfg.Machine.StepMaxSteps)
	m.Positive("taskMaxSteps", cfg.Machine.TaskMaxSteps)
	m.DurationRange("checkpointTTL", cfg.Machine.CheckpointTTL, time.Minute, 30*24*time.Hour)
	for name, pol := range cfg.Machine.Policies {
		s, err := state.Parse(name)
		if err != nil || !s.IsStep() {
			m.AddError("policies", "unknown step state", name)
			continue
		}
		m.Range("policies."+name+".attempts", pol.Attempts, 0, 10)
		if pol.Max > 0 && pol.Base > pol.Max {
			m.AddError("policies."+name, "base must not exceed max", pol.Base.String())
		}
	}

	a := v.Section("adapters")
	a.OptionalURL("luma_create_url", cfg.Adapters.LumaCreateURL, webSchemes)
	a.OptionalURL("partiful_create_url", cfg.Adapters.PartifulCreateURL, webSchemes)
	a.OptionalURL("meetup_group_url", cfg.Adapters.MeetupGroupURL, webSchemes)

	c := v.Section("checkpoint")
	c.OneOf("backend", cfg.Checkpoint.Backend, []string{
		checkpoint.BackendFile, checkpoint.BackendMemory, checkpoint.BackendSQLite,
		checkpoint.BackendBadger, checkpoint.BackendRedis,
	})
	if cfg.Checkpoint.Backend == checkpoint.BackendRedis {
		c.NotEmpty("redis.addr", cfg.Checkpoint.Redis.Addr)
	}

	s := v.Section("sessions")
	s.OneOf("store", cfg.Sessions.Store, []string{StoreMemory, StoreFile, StoreSQLite})
	s.DurationRange("maxAge", cfg.Sessions.MaxAge, time.Minute, 365*24*time.Hour)
	s.DurationRange("liveTimeout", cfg.Sessions.LiveTimeout, 10*time.Second, 24*time.Hour)
	for name := range cfg.Sessions.Profiles {
		if _, err := adapter.ParsePlatform(name); err != nil {
			s.AddError("profiles", err.Error(), name)
		}
	}

	l := v.Section("leases")
	l.OneOf("backend", cfg.Leases.Backend, []string{StoreMemory, StoreSQLite, StoreRedis})
	if cfg.Leases.Backend == StoreRedis {
		l.NotEmpty("redis.addr", cfg.Leases.Redis.Addr)
	}
	if cfg.Leases.Backend == StoreSQLite && cfg.Sessions.Store != StoreSQLite {
		l.AddError("backend", "sqlite leases share the session database; set sessions.store: sqlite", cfg.Leases.Backend)
	}

	so := v.Section("social")
	so.OptionalURL("webhookURL", cfg.Social.WebhookURL, webSchemes)
	so.DurationRange("timeout", cfg.Social.Timeout, time.Second, 10*time.Minute)
	so.FloatRange("globalRate", cfg.Social.GlobalRate, 0, 100)
	so.FloatRange("defaultRate", cfg.Social.DefaultRate, 0, 100)
	for _, name := range cfg.Social.Skip {
		if _, err := social.ParsePlatform(name); err != nil {
			so.AddError("skip", err.Error(), name)
		}
	}
	for name, r := range cfg.Social.Rates {
		if _, err := social.ParsePlatform(name); err != nil {
			so.AddError("rates", err.Error(), name)
			continue
		}
		so.FloatRange("rates."+name, r, 0, 100)
	}

	api := v.Section("api")
	api.NotEmpty("listenAddr", cfg.API.ListenAddr)
	api.NonNegative("rateLimit", cfg.API.RateLimit)
	api.DurationRange("shutdownTimeout", cfg.API.ShutdownTimeout, time.Second, 5*time.Minute)

	t := v.Section("telemetry")
	if cfg.Telemetry.Enabled {
		t.OneOf("exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		t.NotEmpty("endpoint", cfg.Telemetry.Endpoint)
	}
	t.FloatRange("sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)

	return v.Err()
}
