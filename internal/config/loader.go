// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from defaults, an optional file and the
// environment.
type Loader struct {
	path string
}

// NewLoader returns a loader for path. An empty path skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string { return l.path }

// Load runs every layer and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	if l.path != "" {
		if err := l.loadFile(l.path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes path on top of cfg with STRICT parsing. Unknown fields
// fail the load so typos never silently fall back to defaults.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// normalize fills derived values after all layers ran.
func normalize(cfg *Config) {
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	cfg.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend))
	cfg.Sessions.Store = strings.ToLower(strings.TrimSpace(cfg.Sessions.Store))
	cfg.Leases.Backend = strings.ToLower(strings.TrimSpace(cfg.Leases.Backend))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Leases.Backend == StoreRedis && cfg.Leases.Redis.Addr == "" {
		cfg.Leases.Redis = cfg.Checkpoint.Redis
	}
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
}

// Load is a shortcut for NewLoader(path).Load().
func Load(path string) (Config, error) {
	return NewLoader(path).Load()
}
