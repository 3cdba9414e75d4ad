// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

// AccessLog writes one structured line per request once the handler returns.
// Server errors log at warn, everything else at debug.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			logger := xglog.WithComponentFromContext(r.Context(), "api")
			evt := logger.Debug()
			if status >= http.StatusInternalServerError {
				evt = logger.Warn()
			}
			evt.
				Str(xglog.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Int64(xglog.FieldDurationMs, time.Since(start).Milliseconds()).
				Msg("request served")
		})
	}
}
