// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
)

func runConfigCLI(_ context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stdout)
		return exitOK
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return exitUsage
	}
}

func printConfigUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  eventcast config validate [--file|-f config.yaml]")
	_, _ = fmt.Fprintln(w, "  eventcast config dump [--file|-f config.yaml] [--format=yaml|json]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "dump prints the effective configuration (defaults + file + env) with secrets masked.")
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := resolveConfigPath(file)
	if _, err := config.Load(path); err != nil {
		source := path
		if source == "" {
			source = "environment"
		}
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return exitFailure
	}
	if path == "" {
		_, _ = fmt.Fprintln(stdout, "✓ environment configuration is valid")
		return exitOK
	}
	_, _ = fmt.Fprintf(stdout, "✓ %s is valid\n", path)
	return exitOK
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := resolveConfigPath(file)
	cfg, err := config.Load(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return exitFailure
	}
	masked, err := config.Dump(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to encode configuration: %v\n", err)
		return exitFailure
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		_, _ = stdout.Write(masked)
		return exitOK
	case "json":
		var tree map[string]any
		if err := yaml.Unmarshal(masked, &tree); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return exitFailure
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tree); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return exitFailure
		}
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return exitUsage
	}
}
