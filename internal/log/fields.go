// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldLeadID    = "lead_id"
	FieldRequestID = "request_id"
	FieldNoticeID  = "notice_id"

	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOp        = "op"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldOutcome  = "outcome"
	FieldReason   = "reason"

	// Timer / recording fields
	FieldElapsed    = "elapsed_seconds"
	FieldDurationMs = "duration_ms"
	FieldURI        = "uri"
	FieldMIME       = "mime_type"

	// Storage fields
	FieldKey     = "key"
	FieldBackend = "backend"
	FieldPath    = "path"
)
