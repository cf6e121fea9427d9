// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/checkpoint"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/session"
)

func runAuthCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printAuthUsage(stdout)
		return exitOK
	}
	switch args[0] {
	case "begin", "complete", "status":
		return runAuth(ctx, args[0], args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printAuthUsage(stderr)
		return exitUsage
	}
}

func printAuthUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  eventcast auth begin -platform P [-tenant T] [-login-url URL]")
	_, _ = fmt.Fprintln(w, "  eventcast auth complete -platform P [-tenant T]")
	_, _ = fmt.Fprintln(w, "  eventcast auth status [-platform P] [-tenant T]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "begin opens the platform login page in a browser session; log in through")
	_, _ = fmt.Fprintln(w, "the printed live URL, then run complete to mark the session ready.")
}

func runAuth(ctx context.Context, sub string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast auth "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	platform := fs.String("platform", "", "luma, meetup or partiful")
	tenant := fs.String("tenant", "", "tenant id")
	loginURL := fs.String("login-url", "", "override the platform login URL (begin only)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var p adapter.Platform
	if *platform != "" || sub != "status" {
		parsed, err := adapter.ParsePlatform(*platform)
		if err != nil {
			return usageError(stderr, "%v", err)
		}
		p = parsed
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	tenantID := *tenant
	if sub != "status" && strings.TrimSpace(tenantID) == "" {
		tenantID = checkpoint.DefaultTenant
	}

	switch sub {
	case "begin":
		url := *loginURL
		if url == "" {
			a, err := adapter.For(p, rt.Config().Adapters)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitFailure
			}
			url = a.LoginURL()
		}
		sess, task, err := rt.Sessions.BeginAuth(ctx, tenantID, p.String(), url)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		out := struct {
			Session session.Session `json:"session"`
			TaskID  string          `json:"task_id"`
			LiveURL string          `json:"live_url"`
		}{sess, task.TaskID, task.LiveURL}
		if err := printJSON(stdout, out); err != nil {
			return exitFailure
		}
		_, _ = fmt.Fprintf(stderr, "Log in at %s, then run: eventcast auth complete -platform %s\n", task.LiveURL, p)
		return exitOK

	case "complete":
		sess, err := rt.Sessions.CompleteAuth(ctx, tenantID, p.String())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		if err := printJSON(stdout, sess); err != nil {
			return exitFailure
		}
		return exitOK

	default:
		all, err := rt.Sessions.List(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		out := filterSessions(all, *tenant, p)
		if err := printJSON(stdout, out); err != nil {
			return exitFailure
		}
		for _, s := range out {
			if s.NeedsHuman() {
				return exitAction
			}
		}
		return exitOK
	}
}

func filterSessions(all []session.Session, tenant string, p adapter.Platform) []session.Session {
	out := make([]session.Session, 0, len(all))
	for _, s := range all {
		if tenant != "" && s.Tenant != tenant {
			continue
		}
		if p != "" && s.Platform != p.String() {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b session.Session) int {
		if c := strings.Compare(a.Tenant, b.Tenant); c != 0 {
			return c
		}
		return strings.Compare(a.Platform, b.Platform)
	})
	return out
}
