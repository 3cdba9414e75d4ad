// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package timer derives the displayed meeting timer from persisted pause bookkeeping.
//
// Nothing in this package keeps a running counter. Every tick recomputes the
// elapsed time from the full session state, so a value shown after a restart
// or a long background period is exactly what the bookkeeping implies.
package timer

import (
	"fmt"
	"time"
)

// State is the pause bookkeeping needed to derive elapsed time.
type State struct {
	StartedAt         time.Time
	PausedAccumulated time.Duration // completed pauses only
	Paused            bool
	PauseStartedAt    time.Time // zero unless Paused
}

// ElapsedSeconds returns whole seconds of active (non-paused) meeting time at now.
// The result is never negative: clock skew or a server start time in the future clamps to zero.
func ElapsedSeconds(now time.Time, s State) int64 {
	if s.StartedAt.IsZero() {
		return 0
	}
	paused := s.PausedAccumulated
	if s.Paused && !s.PauseStartedAt.IsZero() {
		if inProgress := now.Sub(s.PauseStartedAt); inProgress > 0 {
			paused += inProgress
		}
	}
	active := now.Sub(s.StartedAt) - paused
	if active < 0 {
		return 0
	}
	return int64(active / time.Second)
}

// FormatHMS renders seconds as HH:MM:SS. Hours are not wrapped at 24 or 99.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
