// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

const (
	// HeaderRequestID is the canonical header for request correlation.
	HeaderRequestID = "X-Request-ID"
	// JSONKeyRequestID is the canonical JSON key for request correlation.
	JSONKeyRequestID = "requestId"
)

// Write writes an RFC 7807 problem details response.
//
//   - type: machine identifier (e.g. "meeting/not_active")
//   - title: human-readable short label
//   - code: stable machine-readable short code (e.g. "NOT_ACTIVE")
//   - detail: explanation of this occurrence, safe to show to the user
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	logger := xglog.WithComponent("problem")

	instance := ""
	reqID := ""
	if r != nil {
		instance = r.URL.EscapedPath()
		reqID = xglog.RequestIDFromContext(r.Context())
	} else {
		logger.Error().Str("type", problemType).Int("status", status).Msg("problem.Write called with nil request")
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
		"code":   code,
	}
	if reqID != "" {
		res[JSONKeyRequestID] = reqID
		w.Header().Set(HeaderRequestID, reqID)
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance != "" {
		res["instance"] = instance
	}

	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", JSONKeyRequestID:
			logger.Warn().Str("key", k).Str("problem_type", problemType).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger.Error().Err(err).Str("type", problemType).Int("status", status).Msg("failed to encode problem response")
	}
}
