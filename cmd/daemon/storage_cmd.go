// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/persistence/sqlite"
)

func runStorageCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return exitOK
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(ctx, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return exitUsage
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  eventcast storage verify [--path PATH | --all] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string    Path to a specific SQLite database file")
	_, _ = fmt.Fprintln(w, "  --all            Verify the session and checkpoint databases of the config")
	_, _ = fmt.Fprintln(w, "  --config string  Config file used by --all")
	_, _ = fmt.Fprintln(w, "  --mode string    Verification mode: quick (default) or full")
}

// knownDatabases lists the sqlite files the configuration would use.
func knownDatabases(cfg config.Config) []string {
	var out []string
	if cfg.Sessions.Store == config.StoreSQLite {
		out = append(out, cfg.SessionStorePath())
	}
	cp := cfg.CheckpointConfig()
	if cp.Dir != "" {
		out = append(out, filepath.Join(cp.Dir, "checkpoints.sqlite"))
	}
	return out
}

func runStorageVerify(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var path, mode, configPath string
	var all bool
	fs.StringVar(&path, "path", "", "Path to the SQLite database file")
	fs.StringVar(&mode, "mode", "quick", "Verification mode: quick or full")
	fs.BoolVar(&all, "all", false, "Verify every database of the configuration")
	fs.StringVar(&configPath, "config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if !all && path == "" {
		return usageError(stderr, "--path or --all is required")
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "quick" && mode != "full" {
		return usageError(stderr, "invalid mode %q. Use 'quick' or 'full'.", mode)
	}
	if !all {
		return doVerify(ctx, path, mode, stdout, stderr)
	}

	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	dbs := knownDatabases(cfg)
	exitCode, checked := exitOK, 0
	for _, db := range dbs {
		if _, err := os.Stat(db); os.IsNotExist(err) {
			continue
		}
		checked++
		if code := doVerify(ctx, db, mode, stdout, stderr); code != exitOK {
			exitCode = code
		}
	}
	if checked == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: no SQLite databases found")
		if len(dbs) > 0 {
			_, _ = fmt.Fprintf(stderr, "Expected at least one of: %s\n", strings.Join(dbs, ", "))
		}
		return exitUsage
	}
	return exitCode
}

func doVerify(ctx context.Context, path, mode string, stdout, stderr io.Writer) int {
	_, _ = fmt.Fprintf(stderr, "🔍 Verifying integrity of %s (mode: %s)...\n", path, mode)

	issues, err := sqlite.VerifyIntegrity(ctx, path, mode)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ Verification interrupted by system error: %v\n", err)
		return exitFailure
	}
	if issues != nil {
		_, _ = fmt.Fprintln(stderr, "🚨 CORRUPTION DETECTED!")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return exitFailure
	}

	_, _ = fmt.Fprintf(stdout, "✅ Integrity Verified: %s ok\n", path)
	return exitOK
}
