// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	"github.com/ManuGH/fieldvisit/internal/recording"
)

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	Phase             Phase
	LeadID            string
	StartedAt         time.Time
	Paused            bool
	PausedAccumulated time.Duration
	PauseStartedAt    *time.Time
	ElapsedSeconds    int64
	Timer             string
	Recording         recording.Status
	HeldRecording     bool
	Draft             *model.Draft
}

// Active reports whether a meeting is live (including while it is ending).
func (s Snapshot) Active() bool {
	return s.Phase == PhaseActive || s.Phase == PhaseEnding
}

// Snapshot returns the current state; it never blocks on a running operation.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{Phase: m.phase, Timer: timer.FormatHMS(0)}
	if m.opts.Recorder != nil {
		snap.Recording = m.opts.Recorder.Status()
	}
	if m.session == nil {
		return snap
	}

	s := *m.session
	snap.LeadID = s.LeadID
	snap.StartedAt = s.StartedAt
	snap.Paused = s.Paused
	snap.PausedAccumulated = s.PausedAccumulated
	if s.PauseStartedAt != nil {
		at := *s.PauseStartedAt
		snap.PauseStartedAt = &at
	}
	if snap.Active() {
		snap.ElapsedSeconds = timer.ElapsedSeconds(m.clock.Now(), s.TimerState())
		snap.Timer = timer.FormatHMS(snap.ElapsedSeconds)
	}
	snap.HeldRecording = snap.Recording.State == recording.StateStopped
	d := m.draft
	snap.Draft = &d
	return snap
}
