// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "EVENTCAST_"

func envLogger() zerolog.Logger { return xglog.WithComponent("config") }

// lookup returns the value of key when it is set and non-empty.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(v) == "" {
		logger.Debug().Str("key", key).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return v, true
}

// ParseString reads a string from the environment or returns defaultValue.
// Sensitive keys are logged without their value.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if xglog.IsSensitiveKey(key) {
		ev.Bool("sensitive", true)
	} else {
		ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

// ParseInt reads an integer; invalid values fall back to defaultValue with a
// warning.
func ParseInt(key string, defaultValue int) int {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a Go duration such as "12s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		logger.Debug().Str("key", key).Bool("value", true).Str("source", "environment").Msg("using environment variable")
		return true
	case "false", "0", "no":
		logger.Debug().Str("key", key).Bool("value", false).Str("source", "environment").Msg("using environment variable")
		return false
	}
	logger.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	return f
}

// ParseList reads a comma separated list, dropping empty items.
func ParseList(key string, defaultValue []string) []string {
	logger := envLogger()
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	logger.Debug().Str("key", key).Strs("value", out).Str("source", "environment").Msg("using environment variable")
	return out
}

// ParseMap reads "k=v,k2=v2" pairs. Malformed pairs are skipped with a
// warning.
func ParseMap(key string, defaultValue map[string]string) map[string]string {
	items := ParseList(key, nil)
	if items == nil {
		return defaultValue
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(k) == "" {
			logger := envLogger()
			logger.Warn().Str("key", key).Str("item", item).Msg("ignoring malformed map entry")
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// applyEnv overlays EVENTCAST_* variables on cfg.
func applyEnv(cfg *Config) {
	e := func(name string) string { return EnvPrefix + name }

	cfg.DataDir = ParseString(e("DATA_DIR"), cfg.DataDir)
	cfg.Log.Level = ParseString(e("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Service = ParseString(e("LOG_SERVICE"), cfg.Log.Service)

	p := &cfg.Provider
	p.Name = ParseString(e("PROVIDER"), p.Name)
	p.BaseURL = ParseString(e("PROVIDER_BASE_URL"), p.BaseURL)
	p.APIKey = ParseString(e("PROVIDER_API_KEY"), p.APIKey)
	p.Timeout = ParseDuration(e("PROVIDER_TIMEOUT"), p.Timeout)
	p.MaxSteps = ParseInt(e("PROVIDER_MAX_STEPS"), p.MaxSteps)
	p.RatePerSecond = ParseFloat(e("PROVIDER_RATE"), p.RatePerSecond)
	p.Burst = ParseInt(e("PROVIDER_BURST"), p.Burst)
	p.BreakerThreshold = ParseInt(e("PROVIDER_BREAKER_THRESHOLD"), p.BreakerThreshold)
	p.BreakerReset = ParseDuration(e("PROVIDER_BREAKER_RESET"), p.BreakerReset)
	p.DryRunURLs = ParseMap(e("DRY_RUN_URLS"), p.DryRunURLs)

	m := &cfg.Machine
	m.PollInterval = ParseDuration(e("POLL_INTERVAL"), m.PollInterval)
	m.StepTimeout = ParseDuration(e("STEP_TIMEOUT"), m.StepTimeout)
	m.StepMaxPolls = ParseInt(e("STEP_MAX_POLLS"), m.StepMaxPolls)
	m.TaskTimeout = ParseDuration(e("TASK_TIMEOUT"), m.TaskTimeout)
	m.TaskMaxPolls = ParseInt(e("TASK_MAX_POLLS"), m.TaskMaxPolls)
	m.CheckpointTTL = ParseDuration(e("CHECKPOINT_TTL"), m.CheckpointTTL)
	if _, ok := os.LookupEnv(e("CHECK_DUPLICATES")); ok {
		check := ParseBool(e("CHECK_DUPLICATES"), m.CheckDuplicates == nil || *m.CheckDuplicates)
		m.CheckDuplicates = &check
	}

	cfg.Adapters.LumaCreateURL = ParseString(e("LUMA_CREATE_URL"), cfg.Adapters.LumaCreateURL)
	cfg.Adapters.PartifulCreateURL = ParseString(e("PARTIFUL_CREATE_URL"), cfg.Adapters.PartifulCreateURL)
	cfg.Adapters.MeetupGroupURL = ParseString(e("MEETUP_GROUP_URL"), cfg.Adapters.MeetupGroupURL)

	cfg.Checkpoint.Backend = ParseString(e("CHECKPOINT_BACKEND"), cfg.Checkpoint.Backend)
	cfg.Checkpoint.Dir = ParseString(e("CHECKPOINT_DIR"), cfg.Checkpoint.Dir)
	cfg.Checkpoint.Redis.Addr = ParseString(e("REDIS_ADDR"), cfg.Checkpoint.Redis.Addr)
	cfg.Checkpoint.Redis.Password = ParseString(e("REDIS_PASSWORD"), cfg.Checkpoint.Redis.Password)

	cfg.Sessions.Store = ParseString(e("SESSION_STORE"), cfg.Sessions.Store)
	cfg.Sessions.Path = ParseString(e("SESSION_PATH"), cfg.Sessions.Path)
	cfg.Sessions.MaxAge = ParseDuration(e("SESSION_MAX_AGE"), cfg.Sessions.MaxAge)
	cfg.Sessions.LiveTimeout = ParseDuration(e("SESSION_LIVE_TIMEOUT"), cfg.Sessions.LiveTimeout)
	cfg.Sessions.Profiles = ParseMap(e("PROFILES"), cfg.Sessions.Profiles)

	cfg.Leases.Backend = ParseString(e("LEASE_BACKEND"), cfg.Leases.Backend)

	s := &cfg.Social
	s.Enabled = ParseBool(e("SOCIAL_ENABLED"), s.Enabled)
	s.WebhookURL = ParseString(e("SOCIAL_WEBHOOK_URL"), s.WebhookURL)
	s.WebhookToken = ParseString(e("SOCIAL_WEBHOOK_TOKEN"), s.WebhookToken)
	s.Timeout = ParseDuration(e("SOCIAL_TIMEOUT"), s.Timeout)
	s.Skip = ParseList(e("SOCIAL_SKIP"), s.Skip)
	s.Targets.FacebookPageID = ParseString(e("FACEBOOK_PAGE_ID"), s.Targets.FacebookPageID)
	s.Targets.DiscordChannelID = ParseString(e("DISCORD_CHANNEL_ID"), s.Targets.DiscordChannelID)

	a := &cfg.API
	a.ListenAddr = ParseString(e("LISTEN_ADDR"), a.ListenAddr)
	a.MetricsAddr = ParseString(e("METRICS_ADDR"), a.MetricsAddr)
	a.RateLimit = ParseInt(e("API_RATE_LIMIT"), a.RateLimit)
	a.Token = ParseString(e("API_TOKEN"), a.Token)
	a.ShutdownTimeout = ParseDuration(e("SHUTDOWN_TIMEOUT"), a.ShutdownTimeout)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(e("TELEMETRY_ENABLED"), t.Enabled)
	t.ExporterType = ParseString(e("TELEMETRY_EXPORTER"), t.ExporterType)
	t.Endpoint = ParseString(e("TELEMETRY_ENDPOINT"), t.Endpoint)
	t.SamplingRate = ParseFloat(e("TELEMETRY_SAMPLING_RATE"), t.SamplingRate)
}
