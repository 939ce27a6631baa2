// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldGeneration = "generation"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Stream fields
	FieldSourceKind  = "source_kind"
	FieldSourceRef   = "source_ref"
	FieldDestination = "destination"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"

	// Transfer fields
	FieldAttempt = "attempt"
	FieldBytes   = "bytes"
)
