// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// Problems that only reduce durability are logged as warnings.
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ensureDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkListenAddr(cfg.API.ListenAddr); err != nil {
		return err
	}
	if cfg.API.MetricsAddr != "" {
		if err := checkListenAddr(cfg.API.MetricsAddr); err != nil {
			return err
		}
	}

	if cfg.Provider.Name == config.ProviderDryRun {
		logger.Warn().Msg("dry-run provider: no browser tasks will reach a real gateway")
	} else if cfg.Provider.APIKey == "" {
		logger.Warn().Msg("provider api key is empty; the gateway must not require one")
	}
	if cfg.Checkpoint.Backend == "memory" {
		logger.Warn().Msg("checkpoint backend is memory; suspended runs are lost on restart")
	}
	if cfg.Social.Enabled && cfg.Social.WebhookURL == "" {
		logger.Warn().Msg("social promotion enabled without webhookURL; posts go to the dry-run publisher")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().Str("data_dir", cfg.DataDir).Msg("data directory is under temp; sessions may be lost on reboot")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func ensureDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}
	if err := checkWritable(path); err != nil {
		return err
	}
	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}
