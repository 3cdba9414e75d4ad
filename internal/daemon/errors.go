// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

// Wiring and lifecycle errors.
var (
	ErrMissingLogger     = errors.New("daemon: a configured logger is required")
	ErrMissingAPIHandler = errors.New("daemon: control API handler is required")
	ErrMissingManager    = errors.New("daemon: app has no lifecycle manager")
	ErrManagerNotStarted = errors.New("daemon: shutdown requested before start")
)
