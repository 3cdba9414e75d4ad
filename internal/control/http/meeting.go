// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotDTO(s.opts.Meetings.Snapshot()))
}

// handleStart checks in: multipart lead_id, selfie, latitude, longitude.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	leadID := strings.TrimSpace(r.FormValue("lead_id"))
	fp, err := s.parseProof(r)
	if err != nil {
		s.badInput(w, r, err.Error())
		return
	}
	defer fp.cleanup()

	ctx := xglog.ContextWithLeadID(r.Context(), leadID)
	snap, err := s.opts.Meetings.Start(ctx, leadID, fp.proof)
	dto := toSnapshotDTO(snap)
	if err != nil {
		s.respondError(w, r, err, &dto)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r)(s.opts.Meetings.Pause(r.Context()))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r)(s.opts.Meetings.Resume(r.Context()))
}

// handleDraft autosaves outcome edits; absent JSON keys are left unchanged.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var body draftPatchDTO
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.badInput(w, r, "invalid draft body: "+err.Error())
		return
	}
	s.respondSnapshot(w, r)(s.opts.Meetings.UpdateDraft(r.Context(), body.patch()))
}

// handleEnd checks out. An optional lead_status_id form field sets the
// outcome before the end attempt.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	fp, err := s.parseProof(r)
	if err != nil {
		s.badInput(w, r, err.Error())
		return
	}
	defer fp.cleanup()

	if status := strings.TrimSpace(r.FormValue("lead_status_id")); status != "" {
		if snap, err := s.opts.Meetings.UpdateDraft(r.Context(), model.DraftPatch{Status: &status}); err != nil {
			dto := toSnapshotDTO(snap)
			s.respondError(w, r, err, &dto)
			return
		}
	}

	snap, msg, err := s.opts.Meetings.End(r.Context(), fp.proof)
	dto := toSnapshotDTO(snap)
	if err != nil {
		s.respondError(w, r, err, &dto)
		return
	}
	dto.Message = msg
	writeJSON(w, http.StatusOK, dto)
}

// handleReconcile re-checks the persisted meeting against the server; the UI
// calls it whenever the meeting screen regains focus.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	out := s.opts.Meetings.Restore(r.Context())
	writeJSON(w, http.StatusOK, toReconcileDTO(out, s.opts.Meetings.Snapshot()))
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request) func(manager.Snapshot, error) {
	return func(snap manager.Snapshot, err error) {
		dto := toSnapshotDTO(snap)
		if err != nil {
			s.respondError(w, r, err, &dto)
			return
		}
		writeJSON(w, http.StatusOK, dto)
	}
}

// parseForm parses a bounded multipart form and writes a problem on failure.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, r, http.StatusRequestEntityTooLarge, "system/too_large", "Request Entity Too Large", "TOO_LARGE", "upload exceeds the size limit", nil)
			return false
		}
		s.badInput(w, r, "expected a multipart form: "+err.Error())
		return false
	}
	return true
}
