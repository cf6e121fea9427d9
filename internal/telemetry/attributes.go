// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	RunIDKey    = "run.id"
	TenantKey   = "run.tenant"
	PlatformKey = "run.platform"
	StateKey    = "run.state"
	AttemptKey  = "run.attempt"
	OutcomeKey  = "run.outcome"

	ProviderKey = "browser.provider"
	ToolKey     = "browser.tool"
	TaskIDKey   = "browser.task_id"

	SocialPlatformKey = "social.platform"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RunAttributes identifies a run. Empty values are omitted.
func RunAttributes(runID, tenant, platform string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if runID != "" {
		attrs = append(attrs, attribute.String(RunIDKey, runID))
	}
	if tenant != "" {
		attrs = append(attrs, attribute.String(TenantKey, tenant))
	}
	if platform != "" {
		attrs = append(attrs, attribute.String(PlatformKey, platform))
	}
	return attrs
}

// StateAttributes describes one state execution.
func StateAttributes(platform, state string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlatformKey, platform),
		attribute.String(StateKey, state),
		attribute.Int(AttemptKey, attempt),
	}
}

// ProviderAttributes describes a browser provider call.
func ProviderAttributes(provider, tool, taskID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(ProviderKey, provider),
		attribute.String(ToolKey, tool),
	}
	if taskID != "" {
		attrs = append(attrs, attribute.String(TaskIDKey, taskID))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a classified type.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
