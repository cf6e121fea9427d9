// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/workflow"
)

func dryRunConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Provider.Name = config.ProviderDryRun
	cfg.Checkpoint.Backend = checkpoint.BackendMemory
	cfg.Sessions.Store = config.StoreMemory
	cfg.Machine.PollInterval = 10 * time.Millisecond
	cfg.Social.Enabled = true
	cfg.Social.GlobalRate = 0
	cfg.Social.DefaultRate = 0
	cfg.Social.Rates = nil
	cfg.Social.Targets = social.Targets{DiscordChannelID: "123"}
	return cfg
}

func buildRuntime(t *testing.T, cfg config.Config) *Runtime {
	t.Helper()
	rt, err := Build(context.Background(), cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func testEvent() event.Data {
	return event.Data{
		Title:       "Coffee & Code",
		Date:        "March 15, 2026",
		Time:        "6:00 PM EST",
		Location:    "Philadelphia, PA",
		Description: "Monthly meetup for developers",
	}
}

func TestBuildDryRunWorkflow(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Provider.DryRunURLs = map[string]string{"luma": "https://lu.ma/custom"}
	rt := buildRuntime(t, cfg)

	assert.Nil(t, rt.Client)
	res := rt.Workflows.Run(context.Background(), workflow.Request{Event: testEvent(), Tenant: "acme", Promote: true})

	assert.Equal(t, "https://lu.ma/custom", res.PrimaryURL)
	require.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Equal(t, state.Done, r.Status, r.Platform)
	}
	assert.Equal(t, DryRunURLs["meetup"], res.Results[1].EventURL)
	require.NotNil(t, res.Social)
}

func TestWorkflowsDropPromotionWhenDisabled(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Social.Enabled = false
	rt := buildRuntime(t, cfg)

	res := rt.Workflows.Run(context.Background(), workflow.Request{
		Event:     testEvent(),
		Platforms: []adapter.Platform{adapter.Partiful},
		Promote:   true,
	})
	assert.Nil(t, res.Social)
	assert.Nil(t, rt.Promoter)
}

func TestApplyUpdatesMachineAndLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	rt := buildRuntime(t, dryRunConfig(t))

	next := rt.Config()
	next.Log.Level = "debug"
	next.Machine.StepMaxPolls = 7
	next.Social.Skip = []string{"twitter"}
	rt.Apply(next)

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Equal(t, 7, rt.Config().Machine.StepMaxPolls)
	assert.Equal(t, []social.Platform{social.Twitter}, rt.Config().Social.SkipPlatforms())
}

func TestBuildSQLiteSessionsAndLeases(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Sessions.Store = config.StoreSQLite
	cfg.Leases.Backend = config.StoreSQLite
	cfg.Checkpoint.Backend = checkpoint.BackendSQLite
	rt := buildRuntime(t, cfg)

	assert.Equal(t, checkpoint.BackendSQLite, rt.Checkpoints.Backend())
	h, err := rt.Machine.Start(context.Background(), machine.StartRequest{Platform: adapter.Luma, Tenant: "acme", Event: testEvent()})
	require.NoError(t, err)
	res, err := rt.Machine.Wait(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, state.Done, res.Status)

	list, err := rt.Sessions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "luma", list[0].Platform)
}

func TestBuildRejectsSQLiteLeasesWithoutSQLiteSessions(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Leases.Backend = config.StoreSQLite

	_, err := Build(context.Background(), cfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions.store: sqlite")
}

func TestBuildProviderClient(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Provider.Name = config.ProviderHyperbrowser
	cfg.Provider.BaseURL = "http://127.0.0.1:1"
	rt := buildRuntime(t, cfg)

	require.NotNil(t, rt.Client)
	assert.Contains(t, rt.Health.Names(), "provider")
}

func TestAPIServerServesProbes(t *testing.T) {
	rt := buildRuntime(t, dryRunConfig(t))
	h := rt.APIServer().Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
