// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

// handleTimer streams the elapsed time as server-sent events, one "tick"
// event per second while running and one per change while paused. The stream
// ends when the meeting is no longer active or the client goes away.
func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Server write timeouts would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeErr error
	ticker := &timer.Ticker{Clock: s.opts.Clock, Interval: s.opts.TickInterval}
	err := ticker.Run(ctx, s.opts.Meetings, func(seconds int64) {
		if writeErr != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: tick\nid: %d\ndata: %s\n\n", seconds, timer.FormatHMS(seconds)); err != nil {
			writeErr = err
			cancel()
			return
		}
		if err := rc.Flush(); err != nil {
			writeErr = err
			cancel()
		}
	})

	logger := xglog.WithContext(r.Context(), s.logger)
	switch {
	case writeErr != nil:
		logger.Debug().Err(writeErr).Msg("timer stream write failed")
	case err == nil:
		_, _ = fmt.Fprint(w, "event: end\ndata: inactive\n\n")
		_ = rc.Flush()
	case !errors.Is(err, context.Canceled):
		logger.Warn().Err(err).Msg("timer stream stopped")
	}
}
