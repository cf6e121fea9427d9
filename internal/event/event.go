// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package event holds the immutable event description shared by every
// platform run and the promotion handoff.
package event

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Field length limits applied during sanitization.
const (
	MaxTitleLen       = 200
	MaxDateLen        = 100
	MaxTimeLen        = 100
	MaxLocationLen    = 500
	MaxDescriptionLen = 5000
)

// ErrInvalid is returned when required event fields are missing.
var ErrInvalid = errors.New("event: invalid event data")

// Data is the caller-supplied event. Treat it as a value: platform variants
// are produced with ForPlatform, never by editing a shared instance.
type Data struct {
	Title       string `json:"event_title" yaml:"title"`
	Date        string `json:"event_date" yaml:"date"`
	Time        string `json:"event_time" yaml:"time"`
	Location    string `json:"event_location" yaml:"location"`
	Description string `json:"event_description" yaml:"description"`
	ImageURL    string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	// PlatformDescriptions overrides Description for a single platform.
	PlatformDescriptions map[string]string `json:"platform_descriptions,omitempty" yaml:"platform_descriptions,omitempty"`

	Features Features `json:"features,omitzero" yaml:"features,omitempty"`
}

// New sanitizes the raw fields and validates that the required ones are present.
func New(raw Data) (Data, error) {
	d := Sanitize(raw)
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Validate checks required fields.
func (d Data) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "event_title")
	}
	if strings.TrimSpace(d.Date) == "" {
		missing = append(missing, "event_date")
	}
	if strings.TrimSpace(d.Time) == "" {
		missing = append(missing, "event_time")
	}
	if strings.TrimSpace(d.Location) == "" {
		missing = append(missing, "event_location")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "event_description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// ForPlatform returns a derived copy whose Description honours the
// per-platform override, if one exists.
func (d Data) ForPlatform(platform string) Data {
	out := d.Clone()
	if override, ok := d.PlatformDescriptions[platform]; ok && strings.TrimSpace(override) != "" {
		out.Description = override
	}
	return out
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	out := d
	out.PlatformDescriptions = maps.Clone(d.PlatformDescriptions)
	out.Features = d.Features.Clone()
	return out
}
