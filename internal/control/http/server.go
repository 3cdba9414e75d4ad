// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package http serves the local control API the field UI drives the meeting
// lifecycle through.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/fieldvisit/internal/control/middleware"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	"github.com/ManuGH/fieldvisit/internal/health"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

const (
	// maxUploadBytes bounds a start/end form including the selfie.
	maxUploadBytes = 16 << 20
	// maxFormMemory is kept in memory before multipart parts spill to disk.
	maxFormMemory = 4 << 20
	// maxJSONBytes bounds draft patches.
	maxJSONBytes = 64 << 10
)

// Meetings is the orchestrator surface the API drives.
type Meetings interface {
	timer.Source
	Snapshot() manager.Snapshot
	Start(ctx context.Context, leadID string, proof manager.Proof) (manager.Snapshot, error)
	Pause(ctx context.Context) (manager.Snapshot, error)
	Resume(ctx context.Context) (manager.Snapshot, error)
	UpdateDraft(ctx context.Context, patch model.DraftPatch) (manager.Snapshot, error)
	End(ctx context.Context, proof manager.Proof) (manager.Snapshot, string, error)
	Restore(ctx context.Context) reconcile.Outcome
}

var _ Meetings = (*manager.Manager)(nil)

// Options configures the control API.
type Options struct {
	Meetings Meetings
	Clock    timer.Clock

	// UploadDir receives selfies posted by the UI for the duration of a request.
	UploadDir string
	// ControlToken protects /api/v1; empty disables the check.
	ControlToken string
	// RateLimit is the per-client request budget per minute; zero disables it.
	RateLimit int
	// TickInterval overrides the timer stream cadence (tests).
	TickInterval time.Duration
	// Metrics serves /metrics; defaults to the Prometheus default registry.
	Metrics http.Handler
	// Health serves /healthz and /readyz; nil means no component checks.
	Health *health.Manager
}

// Server holds the handler dependencies.
type Server struct {
	opts   Options
	logger zerolog.Logger
}

// NewServer returns a Server for opts.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timer.SystemClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.Health == nil {
		opts.Health = health.NewManager("")
	}
	return &Server{opts: opts, logger: xglog.WithComponent("api")}
}

// Router builds the chi router with the ingress stack applied.
func (s *Server) Router() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics: true,
		EnableLogging: true,
		RateLimit:     s.opts.RateLimit,
		RateWindow:    time.Minute,
	})

	r.Get("/healthz", s.opts.Health.ServeHealth)
	r.Get("/readyz", s.opts.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	r.Route("/api/v1/meeting", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.opts.ControlToken))
		r.Get("/", s.handleSnapshot)
		r.Post("/start", s.handleStart)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Patch("/draft", s.handleDraft)
		r.Post("/end", s.handleEnd)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/timer", s.handleTimer)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", "", nil)
	})
	return r
}
