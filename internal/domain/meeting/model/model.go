// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package model defines the persisted meeting records and their versioned envelope encoding.
package model

import (
	"errors"
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
)

// Session is the single live meeting, persisted under SessionKey.
type Session struct {
	LeadID            string
	StartedAt         time.Time // server-issued
	Active            bool
	Paused            bool
	PausedAccumulated time.Duration // completed pauses only
	PauseStartedAt    *time.Time    // set iff Paused
}

// ErrInvalidRecord marks a persisted record that is structurally unusable.
var ErrInvalidRecord = errors.New("model: invalid record")

// Validate checks the required fields and the pause invariant.
func (s Session) Validate() error {
	switch {
	case s.LeadID == "":
		return wrapInvalid("missing lead id")
	case s.StartedAt.IsZero():
		return wrapInvalid("missing start time")
	case s.Paused != (s.PauseStartedAt != nil):
		return wrapInvalid("pause flag and pause start disagree")
	case s.PausedAccumulated < 0:
		return wrapInvalid("negative paused duration")
	}
	return nil
}

// TimerState projects the session onto the elapsed-time calculator input.
func (s Session) TimerState() timer.State {
	st := timer.State{
		StartedAt:         s.StartedAt,
		PausedAccumulated: s.PausedAccumulated,
		Paused:            s.Paused,
	}
	if s.PauseStartedAt != nil {
		st.PauseStartedAt = *s.PauseStartedAt
	}
	return st
}

// Pause starts a pause at now. It reports false if already paused.
func (s *Session) Pause(now time.Time) bool {
	if s.Paused {
		return false
	}
	at := now
	s.Paused = true
	s.PauseStartedAt = &at
	return true
}

// Resume folds the in-progress pause into PausedAccumulated. It reports false if not paused.
func (s *Session) Resume(now time.Time) bool {
	if !s.Paused {
		return false
	}
	if s.PauseStartedAt != nil {
		if d := now.Sub(*s.PauseStartedAt); d > 0 {
			s.PausedAccumulated += d
		}
	}
	s.Paused = false
	s.PauseStartedAt = nil
	return true
}

// PauseSnapshot copies the pause bookkeeping into a draft.
func (s Session) PauseSnapshot() PauseSnapshot {
	ps := PauseSnapshot{Paused: s.Paused, PausedAccumulated: s.PausedAccumulated}
	if s.PauseStartedAt != nil {
		at := *s.PauseStartedAt
		ps.PauseStartedAt = &at
	}
	return ps
}

// PauseSnapshot is the pause bookkeeping carried by a draft.
type PauseSnapshot struct {
	Paused            bool
	PausedAccumulated time.Duration
	PauseStartedAt    *time.Time
}

// Draft is the autosaved, not yet submitted meeting outcome for one lead.
type Draft struct {
	LeadID       string
	Status       string // lead status id chosen as the meeting outcome
	Plan         string
	Notes        string
	NextFollowUp string // YYYY-MM-DD, empty when unset
	Pause        PauseSnapshot
	UpdatedAt    time.Time
}

// DraftPatch carries a partial draft edit; nil fields are left unchanged.
type DraftPatch struct {
	Status       *string
	Plan         *string
	Notes        *string
	NextFollowUp *string
}

// Apply merges the patch into d.
func (p DraftPatch) Apply(d *Draft) {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Plan != nil {
		d.Plan = *p.Plan
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.NextFollowUp != nil {
		d.NextFollowUp = *p.NextFollowUp
	}
}

// Empty reports whether the patch changes nothing.
func (p DraftPatch) Empty() bool {
	return p.Status == nil && p.Plan == nil && p.Notes == nil && p.NextFollowUp == nil
}
