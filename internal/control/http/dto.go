// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package http

import (
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
)

type recordingDTO struct {
	State      string `json:"state"`
	DurationMs int64  `json:"durationMs"`
	Held       bool   `json:"held"`
}

type draftDTO struct {
	Status           string `json:"status,omitempty"`
	Plan             string `json:"plan,omitempty"`
	Notes            string `json:"notes,omitempty"`
	NextFollowUpDate string `json:"nextFollowUpDate,omitempty"`
}

type snapshotDTO struct {
	Phase             string       `json:"phase"`
	Active            bool         `json:"active"`
	LeadID            string       `json:"leadId,omitempty"`
	StartedAt         *time.Time   `json:"startedAt,omitempty"`
	Paused            bool         `json:"paused"`
	PausedAccumulated int64        `json:"pausedAccumulatedSeconds"`
	PauseStartedAt    *time.Time   `json:"pauseStartedAt,omitempty"`
	ElapsedSeconds    int64        `json:"elapsedSeconds"`
	Timer             string       `json:"timer"`
	Recording         recordingDTO `json:"recording"`
	Draft             *draftDTO    `json:"draft,omitempty"`
	Message           string       `json:"message,omitempty"`
}

func toSnapshotDTO(s manager.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		Phase:             string(s.Phase),
		Active:            s.Active(),
		LeadID:            s.LeadID,
		Paused:            s.Paused,
		PausedAccumulated: int64(s.PausedAccumulated / time.Second),
		PauseStartedAt:    s.PauseStartedAt,
		ElapsedSeconds:    s.ElapsedSeconds,
		Timer:             s.Timer,
		Recording: recordingDTO{
			State:      string(s.Recording.State),
			DurationMs: s.Recording.Duration.Milliseconds(),
			Held:       s.HeldRecording,
		},
	}
	if !s.StartedAt.IsZero() {
		at := s.StartedAt
		dto.StartedAt = &at
	}
	if s.Draft != nil {
		dto.Draft = &draftDTO{
			Status:           s.Draft.Status,
			Plan:             s.Draft.Plan,
			Notes:            s.Draft.Notes,
			NextFollowUpDate: s.Draft.NextFollowUp,
		}
	}
	return dto
}

// draftPatchDTO is the PATCH body; absent keys leave the draft unchanged.
type draftPatchDTO struct {
	Status           *string `json:"status"`
	Plan             *string `json:"plan"`
	Notes            *string `json:"notes"`
	NextFollowUpDate *string `json:"nextFollowUpDate"`
}

func (d draftPatchDTO) patch() model.DraftPatch {
	return model.DraftPatch{
		Status:       d.Status,
		Plan:         d.Plan,
		Notes:        d.Notes,
		NextFollowUp: d.NextFollowUpDate,
	}
}

type reconcileDTO struct {
	Outcome string      `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
	Path    []string    `json:"path"`
	Meeting snapshotDTO `json:"meeting"`
}

func toReconcileDTO(out reconcile.Outcome, snap manager.Snapshot) reconcileDTO {
	path := make([]string, 0, len(out.Path))
	for _, st := range out.Path {
		path = append(path, string(st))
	}
	return reconcileDTO{
		Outcome: string(out.State),
		Reason:  string(out.Reason),
		Path:    path,
		Meeting: toSnapshotDTO(snap),
	}
}
