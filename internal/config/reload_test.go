// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	path := writeConfig(t, body)
	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestReloadAppliesSafeSections(t *testing.T) {
	h, path := newHolder(t, minimalYAML)
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+`
log:
  level: debug
machine:
  pollInterval: 2s
api:
  listenAddr: ":9999"
`), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	got := h.Get()
	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, 2*time.Second, got.Machine.PollInterval)
	assert.Equal(t, ":8088", got.API.ListenAddr, "listen address needs a restart")

	select {
	case cfg := <-ch:
		assert.Equal(t, 2*time.Second, cfg.Machine.PollInterval)
	default:
		t.Fatal("listener not notified")
	}
}

func TestReloadKeepsConfigOnError(t *testing.T) {
	h, path := newHolder(t, minimalYAML)
	require.NoError(t, os.WriteFile(path, []byte("machine:\n  pollIntervall: 1s\n"), 0o600))

	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 12*time.Second, h.Get().Machine.PollInterval)
}

func TestMergeReloadableNamesRestartSections(t *testing.T) {
	old := Default()
	next := Default()
	next.Provider.Name = ProviderBrowserTool
	next.Machine.StepMaxPolls = 3

	out, restart := mergeReloadable(old, next)
	assert.Equal(t, 3, out.Machine.StepMaxPolls)
	assert.Equal(t, ProviderHyperbrowser, out.Provider.Name)
	assert.Equal(t, []string{"provider"}, restart)

	_, restart = mergeReloadable(old, old)
	assert.Empty(t, restart)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	h, path := newHolder(t, minimalYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"machine:\n  pollInterval: 7s\n"), 0o600))
	assert.Eventually(t, func() bool {
		return h.Get().Machine.PollInterval == 7*time.Second
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(Default(), NewLoader(""))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
