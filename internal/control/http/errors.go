// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/fieldvisit/internal/control/http/problem"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/remote"
)

// apiError is the problem mapping of one error category.
type apiError struct {
	Status int
	Type   string
	Title  string
	Code   string
}

var (
	errValidation = apiError{http.StatusUnprocessableEntity, "meeting/validation", "Unprocessable Entity", "VALIDATION_FAILED"}
	errInProgress = apiError{http.StatusConflict, "meeting/in_progress", "Conflict", "MEETING_IN_PROGRESS"}
	errNotActive  = apiError{http.StatusConflict, "meeting/not_active", "Conflict", "NOT_ACTIVE"}
	errShutdown   = apiError{http.StatusServiceUnavailable, "system/shutting_down", "Service Unavailable", "SHUTTING_DOWN"}
	errPermission = apiError{http.StatusForbidden, "meeting/permission_denied", "Forbidden", "PERMISSION_DENIED"}
	errCapture    = apiError{http.StatusUnprocessableEntity, "meeting/capture_failed", "Unprocessable Entity", "CAPTURE_FAILED"}
	errLogin      = apiError{http.StatusUnauthorized, "remote/unauthorized", "Unauthorized", "LOGIN_REQUIRED"}
	errNetwork    = apiError{http.StatusServiceUnavailable, "remote/unavailable", "Service Unavailable", "NETWORK_UNAVAILABLE"}
	errUpstream   = apiError{http.StatusBadGateway, "remote/rejected", "Bad Gateway", "UPSTREAM_REJECTED"}
	errRecording  = apiError{http.StatusInternalServerError, "recording/engine", "Internal Server Error", "RECORDING_ENGINE"}
	errInternal   = apiError{http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL"}
	errBadInput   = apiError{http.StatusBadRequest, "system/invalid_input", "Bad Request", "INVALID_INPUT"}
)

// classify maps an orchestrator error to its problem category. Order matters:
// remote errors also unwrap to the generic network/server sentinels.
func classify(err error) apiError {
	switch {
	case errors.Is(err, manager.ErrDisposed):
		return errShutdown
	case errors.Is(err, meeting.ErrValidation):
		return errValidation
	case errors.Is(err, meeting.ErrMeetingInProgress):
		return errInProgress
	case errors.Is(err, meeting.ErrNotActive):
		return errNotActive
	case errors.Is(err, meeting.ErrPermissionDenied):
		return errPermission
	case errors.Is(err, meeting.ErrCaptureFailed):
		return errCapture
	case errors.Is(err, remote.ErrUnauthorized):
		return errLogin
	case errors.Is(err, meeting.ErrNetwork):
		return errNetwork
	case errors.Is(err, meeting.ErrServer):
		return errUpstream
	case errors.Is(err, meeting.ErrRecordingEngine):
		return errRecording
	default:
		return errInternal
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := xglog.WithComponent("api")
		logger.Error().Err(err).Int("status", code).Msg("failed to encode JSON response")
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	problem.Write(w, r, status, problemType, title, code, detail, extra)
}

// respondError writes err as a problem. The current snapshot rides along so
// the UI can re-render without a second request.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, snap *snapshotDTO) {
	e := classify(err)
	logger := xglog.WithContext(r.Context(), s.logger)
	evt := logger.Info()
	if e.Status >= http.StatusInternalServerError {
		evt = logger.Warn()
	}
	evt.Err(err).Str("code", e.Code).Msg("meeting operation failed")

	var extra map[string]any
	if snap != nil {
		extra = map[string]any{"meeting": snap}
	}
	writeProblem(w, r, e.Status, e.Type, e.Title, e.Code, meeting.UserMessage(err), extra)
}

func (s *Server) badInput(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, errBadInput.Status, errBadInput.Type, errBadInput.Title, errBadInput.Code, detail, nil)
}
