// SPDX-License-Identifier: MIT
package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeConfig(t, dir)
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("provider:\n  nmae: dry-run\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("provider:\n  name: dry-run\nsessions:\n  store: floppy\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		file         string
		wantCode     int
		wantContains string
	}{
		{name: "valid", file: good, wantCode: exitOK, wantContains: "is valid"},
		{name: "unknown_field", file: bad, wantCode: exitFailure, wantContains: "nmae"},
		{name: "invalid_value", file: invalid, wantCode: exitFailure, wantContains: "sessions.store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "config", "validate", "-f", tt.file)
			if res.code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", res.code, tt.wantCode, res.stderr)
			}
			if !strings.Contains(res.stdout+res.stderr, tt.wantContains) {
				t.Errorf("output does not contain %q:\nstdout: %s\nstderr: %s", tt.wantContains, res.stdout, res.stderr)
			}
		})
	}
}

func TestConfigDumpMasksSecrets(t *testing.T) {
	path := writeConfig(t, t.TempDir())

	res := runCLI(t, "config", "dump", "-f", path)
	if res.code != exitOK {
		t.Fatalf("dump failed: %s", res.stderr)
	}
	if strings.Contains(res.stdout, "super-secret-key") {
		t.Fatalf("yaml dump leaked the api key:\n%s", res.stdout)
	}
	if !strings.Contains(res.stdout, "dry-run") {
		t.Errorf("yaml dump is missing the provider name:\n%s", res.stdout)
	}

	res = runCLI(t, "config", "dump", "-f", path, "--format=json")
	if res.code != exitOK {
		t.Fatalf("json dump failed: %s", res.stderr)
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &tree); err != nil {
		t.Fatalf("json dump is not valid JSON: %v", err)
	}
	provider, ok := tree["provider"].(map[string]any)
	if !ok {
		t.Fatalf("provider section missing: %v", tree)
	}
	if provider["apiKey"] == "super-secret-key" {
		t.Error("json dump leaked the api key")
	}
}

func TestConfigDumpRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, t.TempDir())
	res := runCLI(t, "config", "dump", "-f", path, "--format=toml")
	if res.code != exitUsage {
		t.Fatalf("exit code = %d, want %d", res.code, exitUsage)
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVENTCAST_CONFIG", "")
	t.Setenv("EVENTCAST_DATA_DIR", dir)

	if got := resolveConfigPath(""); got != "" {
		t.Fatalf("resolveConfigPath with no file = %q, want empty", got)
	}

	auto := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(auto, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := resolveConfigPath(""); got != auto {
		t.Errorf("resolveConfigPath auto = %q, want %q", got, auto)
	}

	t.Setenv("EVENTCAST_CONFIG", "/etc/eventcast.yaml")
	if got := resolveConfigPath(""); got != "/etc/eventcast.yaml" {
		t.Errorf("resolveConfigPath env = %q", got)
	}
	if got := resolveConfigPath(" explicit.yaml "); got != "explicit.yaml" {
		t.Errorf("resolveConfigPath explicit = %q", got)
	}
}
