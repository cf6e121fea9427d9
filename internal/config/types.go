// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/redisx"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/telemetry"
)

// Config is the complete daemon and CLI configuration.
type Config struct {
	// DataDir holds the sqlite/badger databases and the session file.
	DataDir string `yaml:"dataDir,omitempty"`

	Log        LogConfig         `yaml:"log"`
	Provider   ProviderConfig    `yaml:"provider"`
	Machine    MachineConfig     `yaml:"machine"`
	Adapters   adapter.Config    `yaml:"adapters"`
	Checkpoint checkpoint.Config `yaml:"checkpoint"`
	Sessions   SessionsConfig    `yaml:"sessions"`
	Leases     LeaseConfig       `yaml:"leases"`
	Social     SocialConfig      `yaml:"social"`
	API        APIConfig         `yaml:"api"`
	Telemetry  telemetry.Config  `yaml:"telemetry"`
}

// LogConfig configures the global zerolog logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service,omitempty"`
}

// Provider names accepted in ProviderConfig.Name. dry-run answers from an
// in-process fake and needs no gateway.
const (
	ProviderHyperbrowser = "hyperbrowser"
	ProviderBrowserTool  = "browser_tool"
	ProviderDryRun       = "dry-run"
)

// ProviderConfig points at the browser tool gateway.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey,omitempty"`
	Timeout time.Duration `yaml:"timeout"`

	MaxSteps      int     `yaml:"maxSteps"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`

	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`

	// DryRunURLs is the event URL the dry-run provider reports per platform.
	DryRunURLs map[string]string `yaml:"dryRunURLs,omitempty"`
}

// MachineConfig tunes polling, retries and duplicate checks. Policies are
// keyed by state name, e.g. FILL_DATE.
type MachineConfig struct {
	PollInterval    time.Duration             `yaml:"pollInterval"`
	StepTimeout     time.Duration             `yaml:"stepTimeout"`
	StepMaxPolls    int                       `yaml:"stepMaxPolls"`
	TaskTimeout     time.Duration             `yaml:"taskTimeout"`
	TaskMaxPolls    int                       `yaml:"taskMaxPolls"`
	StepMaxSteps    int                       `yaml:"stepMaxSteps"`
	TaskMaxSteps    int                       `yaml:"taskMaxSteps"`
	CheckDuplicates *bool                     `yaml:"checkDuplicates,omitempty"`
	CheckpointTTL   time.Duration             `yaml:"checkpointTTL"`
	Policies        map[string]machine.Policy `yaml:"policies,omitempty"`
}

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// SessionsConfig configures the session registry.
type SessionsConfig struct {
	Store string `yaml:"store"`
	// Path overrides the file or sqlite location under DataDir.
	Path string `yaml:"path,omitempty"`
	// Profiles maps platform to a pre-provisioned browser profile id.
	Profiles    map[string]string `yaml:"profiles,omitempty"`
	MaxAge      time.Duration     `yaml:"maxAge"`
	LiveTimeout time.Duration     `yaml:"liveTimeout"`
}

// LeaseConfig selects where session leases live. sqlite shares the session
// database; redis serves multi-process deployments.
type LeaseConfig struct {
	Backend string        `yaml:"backend"`
	Redis   redisx.Config `yaml:"redis,omitempty"`
}

// SocialConfig configures the promotion phase of workflows.
type SocialConfig struct {
	Enabled bool `yaml:"enabled"`
	// WebhookURL receives one POST per platform; empty uses the dry-run
	// publisher.
	WebhookURL   string         `yaml:"webhookURL,omitempty"`
	WebhookToken string         `yaml:"webhookToken,omitempty"`
	Timeout      time.Duration  `yaml:"timeout"`
	Targets      social.Targets `yaml:"targets,omitempty"`
	Skip         []string       `yaml:"skip,omitempty"`

	// Posting pace: GlobalRate posts per second overall, Rates per platform.
	GlobalRate  float64            `yaml:"globalRate"`
	DefaultRate float64            `yaml:"defaultRate"`
	Rates       map[string]float64 `yaml:"rates,omitempty"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per minute per client IP on mutating routes;
	// zero disables it.
	RateLimit int `yaml:"rateLimit"`
	// Token, when set, is required as a Bearer token on /api routes.
	Token string `yaml:"token,omitempty"`
	// MetricsAddr serves /metrics on a separate listener when set.
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}
