// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

func runCheckpointsCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printCheckpointsUsage(stdout)
		return exitOK
	}
	switch args[0] {
	case "list":
		return runCheckpointsList(ctx, args[1:], stdout, stderr)
	case "abandon":
		return runCheckpointsAbandon(ctx, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printCheckpointsUsage(stderr)
		return exitUsage
	}
}

func printCheckpointsUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  eventcast checkpoints list [-tenant T] [-show-tokens]")
	_, _ = fmt.Fprintln(w, "  eventcast checkpoints abandon -platform P [-tenant T]")
}

// checkpointView is the listing row. The resume token is only shown on
// request since it is the credential for resuming the run.
type checkpointView struct {
	Tenant      string      `json:"tenant_id"`
	Platform    string      `json:"platform"`
	State       state.State `json:"current_state"`
	Title       string      `json:"event_title"`
	Reason      string      `json:"reason,omitempty"`
	LiveURL     string      `json:"live_url,omitempty"`
	ResumeToken string      `json:"resume_token,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at,omitzero"`
	Expired     bool        `json:"expired"`
}

type checkpointListing struct {
	Backend     string           `json:"backend"`
	Degraded    bool             `json:"degraded"`
	Checkpoints []checkpointView `json:"checkpoints"`
}

func listCheckpoints(ctx context.Context, store checkpoint.Store, tenant string, showTokens bool, now time.Time) (checkpointListing, error) {
	all, err := store.List(ctx)
	if err != nil {
		return checkpointListing{}, err
	}
	out := checkpointListing{Backend: store.Backend(), Degraded: store.Degraded(), Checkpoints: []checkpointView{}}
	for _, cp := range all {
		if tenant != "" && cp.Tenant != tenant {
			continue
		}
		v := checkpointView{
			Tenant:    cp.Tenant,
			Platform:  cp.Platform,
			State:     cp.State,
			Title:     cp.Event.Title,
			Reason:    cp.Reason,
			LiveURL:   cp.LiveURL,
			CreatedAt: cp.CreatedAt,
			ExpiresAt: cp.ExpiresAt,
			Expired:   cp.Expired(now),
		}
		if showTokens {
			v.ResumeToken = cp.ResumeToken
		}
		out.Checkpoints = append(out.Checkpoints, v)
	}
	slices.SortFunc(out.Checkpoints, func(a, b checkpointView) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func runCheckpointsList(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast checkpoints list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	tenant := fs.String("tenant", "", "only list this tenant")
	showTokens := fs.Bool("show-tokens", false, "include resume tokens")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	out, err := listCheckpoints(ctx, rt.Checkpoints, *tenant, *showTokens, time.Now())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if out.Degraded {
		_, _ = fmt.Fprintln(stderr, "Warning: checkpoint store is in-memory; suspended runs do not survive this process")
	}
	if err := printJSON(stdout, out); err != nil {
		return exitFailure
	}
	return exitOK
}

func runCheckpointsAbandon(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast checkpoints abandon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	platform := fs.String("platform", "", "platform of the suspended run")
	tenant := fs.String("tenant", checkpoint.DefaultTenant, "tenant id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	p, err := adapter.ParsePlatform(*platform)
	if err != nil {
		return usageError(stderr, "%v", err)
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	if _, err := rt.Checkpoints.Load(ctx, *tenant, p.String()); err != nil && !errors.Is(err, checkpoint.ErrExpired) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return exitUsage
		}
		return exitFailure
	}
	if err := rt.Checkpoints.Delete(ctx, *tenant, p.String()); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	_, _ = fmt.Fprintf(stdout, "abandoned %s checkpoint for tenant %s\n", p, *tenant)
	return exitOK
}
