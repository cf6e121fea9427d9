// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/machine"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/social"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/workflow"
)

// resultExit maps a run status to the process exit code.
func resultExit(s state.State) int {
	switch s {
	case state.Failed:
		return exitFailure
	case state.NeedsAuth, state.Await2FA:
		return exitAction
	default:
		return exitOK
	}
}

// printResult writes the result and, for anything a human must act on, the
// next action to stderr.
func printResult(stdout, stderr io.Writer, res machine.Result) int {
	if res.NextAction == "" {
		res.NextAction = machine.NextAction(res)
	}
	if err := printJSON(stdout, res); err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to encode result: %v\n", err)
		return exitFailure
	}
	if code := resultExit(res.Status); code != exitOK || res.NeedsReview {
		_, _ = fmt.Fprintln(stderr, res.NextAction)
		return code
	}
	return exitOK
}

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var ev eventFlags
	ev.register(fs)
	configPath := fs.String("config", "", "path to config file (YAML)")
	platform := fs.String("platform", "", "luma, meetup or partiful")
	tenant := fs.String("tenant", "", "tenant id")
	runID := fs.String("run-id", "", "correlation id for logs")
	detach := fs.Bool("detach", false, "print the task handle and return without waiting")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	p, err := adapter.ParsePlatform(*platform)
	if err != nil {
		return usageError(stderr, "%v", err)
	}
	data, err := ev.data()
	if err != nil {
		return usageError(stderr, "%v", err)
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	h, err := rt.Machine.Start(ctx, machine.StartRequest{Platform: p, Tenant: *tenant, Event: data, RunID: *runID})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if *detach {
		if err := printJSON(stdout, h); err != nil {
			return exitFailure
		}
		_, _ = fmt.Fprintf(stderr, "Poll with: eventcast poll -task %s -platform %s -tenant %s\n", h.TaskID, h.Platform, h.Tenant)
		return exitOK
	}

	if h.LiveURL != "" {
		_, _ = fmt.Fprintf(stderr, "Watching task %s. Live view: %s\n", h.TaskID, h.LiveURL)
	}
	res, err := rt.Machine.Wait(ctx, h)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return printResult(stdout, stderr, res)
}

func runPoll(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast poll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	taskID := fs.String("task", "", "task id returned by create -detach")
	platform := fs.String("platform", "", "platform the task was started for")
	tenant := fs.String("tenant", "", "tenant id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if strings.TrimSpace(*taskID) == "" {
		return usageError(stderr, "-task is required")
	}
	var p adapter.Platform
	if *platform != "" {
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

	res, err := rt.Machine.Poll(ctx, machine.PollRequest{TaskID: *taskID, Platform: p, Tenant: *tenant})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, machine.ErrUnknownTask) {
			return exitUsage
		}
		return exitFailure
	}
	return printResult(stdout, stderr, res)
}

func runResume(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast resume", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	platform := fs.String("platform", "", "platform of the suspended run")
	tenant := fs.String("tenant", "", "tenant id")
	token := fs.String("token", "", "resume token printed when the run suspended")
	runID := fs.String("run-id", "", "correlation id for logs")
	detach := fs.Bool("detach", false, "resume as one background task and print its handle")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	p, err := adapter.ParsePlatform(*platform)
	if err != nil {
		return usageError(stderr, "%v", err)
	}
	if strings.TrimSpace(*token) == "" {
		return usageError(stderr, "-token is required")
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	if *detach {
		h, err := rt.Machine.Start(ctx, machine.StartRequest{
			Platform: p, Tenant: *tenant, Resume: true, ResumeToken: *token, RunID: *runID,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		if err := printJSON(stdout, h); err != nil {
			return exitFailure
		}
		return exitOK
	}

	res := rt.Machine.Resume(ctx, machine.ResumeRequest{Platform: p, Tenant: *tenant, Token: *token, RunID: *runID})
	return printResult(stdout, stderr, res)
}

func runWorkflow(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventcast workflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var ev eventFlags
	ev.register(fs)
	configPath := fs.String("config", "", "path to config file (YAML)")
	tenant := fs.String("tenant", "", "tenant id")
	runID := fs.String("run-id", "", "correlation id for logs")
	platforms := fs.String("platforms", "", "comma separated platforms (default luma,meetup,partiful)")
	skip := fs.String("skip", "", "comma separated platforms to skip")
	promote := fs.Bool("promote", false, "promote the primary URL on social media")
	socialSkip := fs.String("social-skip", "", "comma separated social platforms to skip")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	data, err := ev.data()
	if err != nil {
		return usageError(stderr, "%v", err)
	}
	req := workflow.Request{Event: data, Tenant: *tenant, RunID: *runID, Promote: *promote}
	if req.Platforms, err = parsePlatforms(*platforms); err != nil {
		return usageError(stderr, "-platforms: %v", err)
	}
	if req.Skip, err = parsePlatforms(*skip); err != nil {
		return usageError(stderr, "-skip: %v", err)
	}
	for item := range strings.SplitSeq(*socialSkip, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		sp, err := social.ParsePlatform(item)
		if err != nil {
			return usageError(stderr, "-social-skip: %v", err)
		}
		req.SocialSkip = append(req.SocialSkip, sp)
	}

	rt, err := openRuntime(ctx, *configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	res := rt.Workflows.Run(ctx, req)
	if err := printJSON(stdout, res); err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to encode result: %v\n", err)
		return exitFailure
	}
	for _, r := range res.Results {
		if code := resultExit(r.Status); code != exitOK {
			_, _ = fmt.Fprintf(stderr, "%s: %s\n", r.Platform, machine.NextAction(r))
		}
	}
	switch res.Outcome {
	case "success":
		return exitOK
	case "partial":
		return exitAction
	default:
		return exitFailure
	}
}
