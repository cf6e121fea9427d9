// SPDX-License-Identifier: MIT

// Package validate accumulates field-level validation errors for config and
// request payloads.
package validate

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Error is one failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects errors; call Err at the end.
type Validator struct {
	errors []Error
}

// ValidationError bundles every failed field.
type ValidationError struct {
	errors []Error
}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Section returns a validator whose field names are prefixed with name. It
// shares the error list with v.
func (v *Validator) Section(name string) *Section {
	return &Section{v: v, prefix: name}
}

// AddError records a failure.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether nothing failed so far.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns the failures so far.
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields lists the failed field names in order.
func (e ValidationError) Fields() []string {
	out := make([]string, len(e.errors))
	for i, err := range e.errors {
		out[i] = err.Field
	}
	return out
}

// URL requires an absolute URL with a host and one of the allowed schemes.
func (v *Validator) URL(field, value string, allowedSchemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" {
		v.AddError(field, "URL must have a host", value)
		return
	}
	if len(allowedSchemes) > 0 && !slices.Contains(allowedSchemes, u.Scheme) {
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, allowedSchemes), value)
	}
}

// OptionalURL validates value only when it is set.
func (v *Validator) OptionalURL(field, value string, allowedSchemes []string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	v.URL(field, value, allowedSchemes)
}

// Range requires minVal <= value <= maxVal.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value), value)
	}
}

// FloatRange requires minVal <= value <= maxVal.
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", minVal, maxVal, value), value)
	}
}

// DurationRange requires minVal <= value <= maxVal.
func (v *Validator) DurationRange(field string, value, minVal, maxVal time.Duration) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("duration must be between %s and %s, got %s", minVal, maxVal, value), value)
	}
}

// NotEmpty rejects empty or whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf requires value to be one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if slices.Contains(allowed, value) {
		return
	}
	v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
}

// Positive requires value > 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

// NonNegative requires value >= 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %d", value), value)
	}
}

// Custom records the error returned by fn, if any.
func (v *Validator) Custom(field string, value any, fn func(any) error) {
	if err := fn(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}

// Section is a field-name scope of a Validator.
type Section struct {
	v      *Validator
	prefix string
}

func (s *Section) name(field string) string { return s.prefix + "." + field }

func (s *Section) AddError(field, message string, value any) {
	s.v.AddError(s.name(field), message, value)
}
func (s *Section) URL(field, value string, schemes []string) { s.v.URL(s.name(field), value, schemes) }
func (s *Section) OptionalURL(field, value string, schemes []string) {
	s.v.OptionalURL(s.name(field), value, schemes)
}
func (s *Section) Range(field string, value, minVal, maxVal int) {
	s.v.Range(s.name(field), value, minVal, maxVal)
}
func (s *Section) FloatRange(field string, value, minVal, maxVal float64) {
	s.v.FloatRange(s.name(field), value, minVal, maxVal)
}
func (s *Section) DurationRange(field string, value, minVal, maxVal time.Duration) {
	s.v.DurationRange(s.name(field), value, minVal, maxVal)
}
func (s *Section) NotEmpty(field, value string) { s.v.NotEmpty(s.name(field), value) }
func (s *Section) OneOf(field, value string, allowed []string) {
	s.v.OneOf(s.name(field), value, allowed)
}
func (s *Section) Positive(field string, value int)    { s.v.Positive(s.name(field), value) }
func (s *Section) NonNegative(field string, value int) { s.v.NonNegative(s.name(field), value) }
