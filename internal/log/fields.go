// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldRunID         = "run_id"
	FieldTenant        = "tenant"
	FieldPlatform      = "platform"
	FieldProfileID     = "profile_id"
	FieldSessionID     = "session_id"
	FieldTaskID        = "task_id"
	FieldCheckpointID  = "checkpoint_id"

	// Process fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldProvider  = "provider"
	FieldTool      = "tool"

	// State fields
	FieldState    = "state"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldSignal   = "signal"
	FieldAttempt  = "attempt"
	FieldStatus   = "status"

	// URL fields
	FieldStartURL   = "start_url"
	FieldCurrentURL = "current_url"
	FieldLiveURL    = "live_url"
	FieldEventURL   = "event_url"
)
