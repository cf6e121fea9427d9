// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	runIDKey     ctxKey = "run_id"
	tenantKey    ctxKey = "tenant"
)

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithRunID stores the state machine run ID in the context.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// ContextWithTenant stores the tenant ID in the context.
func ContextWithTenant(ctx context.Context, tenant string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantKey, tenant)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// RunIDFromContext extracts the run ID from context if present.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// TenantFromContext extracts the tenant from context if present.
func TenantFromContext(ctx context.Context) string {
	return stringValue(ctx, tenantKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithContext adds the request, run and tenant ids found in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	fields := map[string]string{
		FieldRequestID: RequestIDFromContext(ctx),
		FieldRunID:     RunIDFromContext(ctx),
		FieldTenant:    TenantFromContext(ctx),
	}
	b := logger.With()
	n := 0
	for _, k := range []string{FieldRequestID, FieldRunID, FieldTenant} {
		if v := fields[k]; v != "" {
			b = b.Str(k, v)
			n++
		}
	}
	if n == 0 {
		return logger
	}
	return b.Logger()
}

// WithComponentFromContext is WithContext over WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
