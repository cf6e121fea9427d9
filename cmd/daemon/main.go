// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command eventcast publishes one event to Luma, Meetup and Partiful through
// a remote browser agent and optionally promotes it on social media.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/daemon"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/health"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
	pnet "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/net"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// Exit codes shared by every subcommand.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	// exitAction means the run is waiting on a human (login or 2FA).
	exitAction = 3
)

type command func(ctx context.Context, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"serve":       runServe,
	"create":      runCreate,
	"poll":        runPoll,
	"resume":      runResume,
	"workflow":    runWorkflow,
	"auth":        runAuthCLI,
	"checkpoints": runCheckpointsCLI,
	"config":      runConfigCLI,
	"healthcheck": runHealthcheckCLI,
	"storage":     runStorageCLI,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return runServe(ctx, nil, stdout, stderr)
	}
	switch args[0] {
	case "-version", "--version", "version":
		_, _ = fmt.Fprintf(stdout, "%s (commit: %s, built: %s)\n", version, commit, buildDate)
		return exitOK
	case "-h", "--help", "help":
		printUsage(stdout)
		return exitOK
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd(ctx, args[1:], stdout, stderr)
	}
	if args[0] != "" && args[0][0] == '-' {
		// Bare flags belong to serve, e.g. `eventcast -config x.yaml`.
		return runServe(ctx, args, stdout, stderr)
	}
	_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
	printUsage(stderr)
	return exitUsage
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  eventcast [serve] [-config FILE]")
	_, _ = fmt.Fprintln(w, "  eventcast create -platform luma|meetup|partiful [event flags] [-detach]")
	_, _ = fmt.Fprintln(w, "  eventcast poll -task ID [-platform P] [-tenant T]")
	_, _ = fmt.Fprintln(w, "  eventcast resume -platform P -token TOKEN [-tenant T] [-detach]")
	_, _ = fmt.Fprintln(w, "  eventcast workflow [event flags] [-platforms luma,meetup] [-skip P] [-promote]")
	_, _ = fmt.Fprintln(w, "  eventcast auth begin|complete|status -platform P [-tenant T]")
	_, _ = fmt.Fprintln(w, "  eventcast checkpoints list|abandon [-platform P] [-tenant T]")
	_, _ = fmt.Fprintln(w, "  eventcast config validate|dump [-file FILE]")
	_, _ = fmt.Fprintln(w, "  eventcast healthcheck [-mode ready|live] [-addr HOST:PORT]")
	_, _ = fmt.Fprintln(w, "  eventcast storage verify [-path PATH | -all] [-mode quick|full]")
	_, _ = fmt.Fprintln(w, "  eventcast -version")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Event flags: -title -date -time -location -description -image-url, or -event FILE (json|yaml)")
}

func runServe(ctx context.Context, args []string, _, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "eventcast", Version: version})
	logger := xglog.WithComponent("daemon")

	path := resolveConfigPath(*configPath)
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return exitFailure
	}

	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: version})
	logger = xglog.WithComponent("daemon")
	if path != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", path).Msg("loaded configuration from file")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return exitFailure
	}

	rt, err := daemon.Build(ctx, cfg, version)
	if err != nil {
		logger.Error().Err(err).Str("event", "runtime.build_failed").Msg("failed to build runtime")
		return exitFailure
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting eventcast")
	logger.Info().Msgf("→ Provider: %s %s", cfg.Provider.Name, pnet.SanitizeURL(cfg.Provider.BaseURL))
	logger.Info().Msgf("→ Checkpoints: %s (degraded: %v)", rt.Checkpoints.Backend(), rt.Checkpoints.Degraded())
	logger.Info().Msgf("→ Sessions: %s, leases: %s", cfg.Sessions.Store, cfg.Leases.Backend)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.API.Token == "" {
		logger.Warn().Str("security", "weak").
			Msg("→ API token: NOT configured (auth disabled). Set EVENTCAST_API_TOKEN for security.")
	}

	mgr, err := daemon.NewManager(cfg.API, daemon.Deps{
		Logger:         logger,
		APIHandler:     rt.APIServer().Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.API.MetricsAddr,
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		logger.Error().Err(err).Str("event", "manager.creation.failed").Msg("failed to create daemon manager")
		return exitFailure
	}
	mgr.RegisterShutdownHook("runtime", rt.Close)

	app := daemon.NewApp(logger, mgr, config.NewHolder(cfg, loader), rt)
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "manager.failed").Msg("daemon app failed")
		return exitFailure
	}
	logger.Info().Msg("server exiting")
	return exitOK
}
