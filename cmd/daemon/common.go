// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/adapter"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/config"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/daemon"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// resolveConfigPath picks the config file: the explicit flag, then
// EVENTCAST_CONFIG, then config.yaml in the data dir when it exists.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG")); p != "" {
		return p
	}
	dataDir := config.ParseString(config.EnvPrefix+"DATA_DIR", config.Default().DataDir)
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

// openRuntime loads the config and builds the runtime for one CLI command.
// Logs go to stderr so stdout stays machine readable.
func openRuntime(ctx context.Context, configPath string, stderr io.Writer) (*daemon.Runtime, error) {
	path := resolveConfigPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	level := cfg.Log.Level
	if level == "info" {
		level = "warn"
	}
	xglog.Configure(xglog.Config{Level: level, Output: stderr, Service: cfg.Log.Service, Version: version})
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	return daemon.Build(ctx, cfg, version)
}

// eventFlags binds the event fields shared by create and workflow.
type eventFlags struct {
	file        string
	title       string
	date        string
	time        string
	location    string
	description string
	imageURL    string
}

func (e *eventFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&e.file, "event", "", "read the event from a JSON or YAML file")
	fs.StringVar(&e.title, "title", "", "event title")
	fs.StringVar(&e.date, "date", "", "event date, e.g. \"March 15, 2026\"")
	fs.StringVar(&e.time, "time", "", "event time, e.g. \"6:00 PM EST\"")
	fs.StringVar(&e.location, "location", "", "event location")
	fs.StringVar(&e.description, "description", "", "event description")
	fs.StringVar(&e.imageURL, "image-url", "", "cover image URL")
}

// data builds the event. Flags override fields read from -event.
func (e *eventFlags) data() (event.Data, error) {
	var d event.Data
	if e.file != "" {
		loaded, err := readEventFile(e.file)
		if err != nil {
			return event.Data{}, err
		}
		d = loaded
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&d.Title, e.title)
	set(&d.Date, e.date)
	set(&d.Time, e.time)
	set(&d.Location, e.location)
	set(&d.Description, e.description)
	set(&d.ImageURL, e.imageURL)
	return d, nil
}

func readEventFile(path string) (event.Data, error) {
	// #nosec G304 -- event files are chosen by the operator
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return event.Data{}, fmt.Errorf("read event file: %w", err)
	}
	var d event.Data
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &d)
	default:
		err = json.Unmarshal(raw, &d)
	}
	if err != nil {
		return event.Data{}, fmt.Errorf("parse event file %s: %w", path, err)
	}
	return d, nil
}

// parsePlatforms splits a comma separated platform list.
func parsePlatforms(v string) ([]adapter.Platform, error) {
	var out []adapter.Platform
	var errs []error
	for item := range strings.SplitSeq(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		p, err := adapter.ParsePlatform(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(stderr io.Writer, format string, args ...any) int {
	_, _ = fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return exitUsage
}
