// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads eventcast configuration in three layers: built-in
// defaults, a strict YAML file, then EVENTCAST_* environment overrides. The
// result is validated once and passed down explicitly; nothing below cmd/
// reads the environment.
package config
