// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package recording owns the single audio capture that runs alongside a meeting.
//
// The Controller serializes every operation. Engine faults after a capture has
// started are logged and swallowed so that ending a meeting is never blocked by
// the recorder; only a failure to start is reported to the caller.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/metrics"
	"github.com/ManuGH/fieldvisit/internal/notify"
	"github.com/rs/zerolog"
)

// State of the recording slot.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// ErrDisposed is returned by Start after Dispose.
var ErrDisposed = errors.New("recording: controller disposed")

// Status is the observable state of the slot. Idle doubles as the "no session" answer.
type Status struct {
	State    State
	Duration time.Duration
}

// NoSession reports whether no capture is running.
func (s Status) NoSession() bool { return s.State == StateIdle }

// Artifact is a finalized recording.
type Artifact struct {
	URI               string
	DurationMillis    int64
	MIMEType          string
	SuggestedFileName string
}

// Empty reports whether there is no file to upload.
func (a Artifact) Empty() bool { return a.URI == "" }

type session struct {
	leadID    string
	capture   Capture
	state     State
	startedAt time.Time
	paused    time.Duration // completed pauses
	pausedAt  time.Time
}

func (s *session) duration(now time.Time) time.Duration {
	paused := s.paused
	if s.state == StatePaused {
		paused += now.Sub(s.pausedAt)
	}
	d := now.Sub(s.startedAt) - paused
	if d < 0 {
		return 0
	}
	return d
}

// Options configures a Controller. Zero values get safe defaults.
type Options struct {
	Engine     Engine
	Permission Permission
	Notifier   notify.Notifier
	Clock      timer.Clock
	Logger     *zerolog.Logger
}

// Controller owns at most one RecordingSession, or the finalized artifact of
// one whose upload has not succeeded yet.
type Controller struct {
	mu       sync.Mutex
	engine   Engine
	perm     Permission
	notifier notify.Notifier
	clock    timer.Clock
	logger   zerolog.Logger

	sess     *session
	held     *heldArtifact
	disposed bool
}

type heldArtifact struct {
	leadID   string
	artifact Artifact
}

// NewController builds a Controller around an engine.
func NewController(opts Options) *Controller {
	c := &Controller{
		engine:   opts.Engine,
		perm:     opts.Permission,
		notifier: opts.Notifier,
		clock:    opts.Clock,
	}
	if c.perm == nil {
		c.perm = StaticPermission(true)
	}
	if c.notifier == nil {
		c.notifier = notify.Noop{}
	}
	if c.clock == nil {
		c.clock = timer.SystemClock{}
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	} else {
		c.logger = xglog.WithComponent("recording")
	}
	return c
}

func (c *Controller) statusLocked() Status {
	if c.sess == nil {
		if c.held != nil {
			return Status{State: StateStopped, Duration: time.Duration(c.held.artifact.DurationMillis) * time.Millisecond}
		}
		return Status{State: StateIdle}
	}
	return Status{State: c.sess.state, Duration: c.sess.duration(c.clock.Now())}
}

// Status returns the current state without side effects.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Start begins a capture for leadID. It is a no-op success while one is already
// running. A held artifact is discarded.
func (c *Controller) Start(ctx context.Context, leadID string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return Status{State: StateIdle}, meeting.Wrap(meeting.ErrRecordingEngine, "recording start", ErrDisposed)
	}
	if c.sess != nil {
		return c.statusLocked(), nil
	}
	if c.engine == nil {
		return Status{State: StateIdle}, meeting.Wrap(meeting.ErrRecordingEngine, "recording start", errors.New("no engine configured"))
	}

	logger := c.loggerFor(ctx, leadID)
	c.discardHeldLocked(ctx)

	granted, err := c.perm.RequestMicrophone(ctx)
	if err != nil || !granted {
		metrics.RecordingStartsTotal.WithLabelValues("permission_denied").Inc()
		return Status{State: StateIdle}, meeting.Wrap(meeting.ErrPermissionDenied, "recording start", err)
	}

	capture, err := c.engine.Begin(ctx)
	if err != nil {
		metrics.RecordingStartsTotal.WithLabelValues("engine_fault").Inc()
		metrics.RecordingFaultsTotal.WithLabelValues("start").Inc()
		logger.Error().Err(err).Str(xglog.FieldEvent, "recording.start_failed").Msg("recording engine failed to start")
		return Status{State: StateIdle}, meeting.Wrap(meeting.ErrRecordingEngine, "recording start", err)
	}

	c.sess = &session{
		leadID:    leadID,
		capture:   capture,
		state:     StateRecording,
		startedAt: c.clock.Now(),
	}
	metrics.RecordingStartsTotal.WithLabelValues("ok").Inc()

	notice := notify.Notice{
		ID:     notify.RecordingNoticeID,
		Title:  "Recording in progress",
		Body:   fmt.Sprintf("Meeting audio for lead %s is being recorded", leadID),
		Sticky: true,
	}
	if err := c.notifier.Show(ctx, notice); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "recording.notice_failed").Msg("could not show recording notice")
	}

	logger.Info().
		Str(xglog.FieldEvent, "recording.started").
		Msg("recording started")
	return c.statusLocked(), nil
}

// Pause pauses the capture. Already paused is a no-op; no session yields an Idle status.
func (c *Controller) Pause(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.sess.state != StateRecording {
		return c.statusLocked()
	}
	if err := c.sess.capture.Pause(); err != nil {
		c.fault(ctx, "pause", err)
	}
	c.sess.state = StatePaused
	c.sess.pausedAt = c.clock.Now()
	return c.statusLocked()
}

// Resume resumes a paused capture. Already recording is a no-op; no session yields an Idle status.
func (c *Controller) Resume(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.sess.state != StatePaused {
		return c.statusLocked()
	}
	if err := c.sess.capture.Resume(); err != nil {
		c.fault(ctx, "resume", err)
	}
	if d := c.clock.Now().Sub(c.sess.pausedAt); d > 0 {
		c.sess.paused += d
	}
	c.sess.state = StateRecording
	c.sess.pausedAt = time.Time{}
	return c.statusLocked()
}

// Stop finalizes the capture and clears the slot. With no session it returns an empty artifact.
// An engine failure while finalizing yields an empty artifact as well.
func (c *Controller) Stop(ctx context.Context) Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return Artifact{}
	}
	sess := c.sess
	now := c.clock.Now()
	duration := sess.duration(now)
	sess.state = StateStopped
	c.sess = nil
	defer c.dismiss(ctx)

	uri, err := sess.capture.Finish()
	if err != nil {
		c.fault(ctx, "stop", err)
		if aerr := sess.capture.Abort(); aerr != nil {
			c.logger.Debug().Err(aerr).Msg("abort after failed finish")
		}
		return Artifact{}
	}
	if uri == "" {
		return Artifact{}
	}

	art := Artifact{
		URI:               uri,
		DurationMillis:    duration.Milliseconds(),
		MIMEType:          MIMEForURI(uri),
		SuggestedFileName: SuggestedFileName(sess.leadID, uri, now),
	}
	logger := c.loggerFor(ctx, sess.leadID)
	logger.Info().
		Str(xglog.FieldEvent, "recording.stopped").
		Str(xglog.FieldURI, art.URI).
		Str(xglog.FieldMIME, art.MIMEType).
		Int64(xglog.FieldDurationMs, art.DurationMillis).
		Msg("recording finalized")
	return art
}

// Hold keeps a stopped artifact whose upload failed. Status reports Stopped and
// a sticky notice stays visible until Release or Cancel. An empty artifact is
// held too, so the slot stays Stopped either way.
func (c *Controller) Hold(ctx context.Context, leadID string, art Artifact) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return c.statusLocked()
	}
	c.held = &heldArtifact{leadID: leadID, artifact: art}

	notice := notify.Notice{
		ID:     notify.RecordingNoticeID,
		Title:  "Check-out pending",
		Body:   fmt.Sprintf("Meeting with lead %s is not checked out yet, retry ending it", leadID),
		Sticky: true,
	}
	logger := c.loggerFor(ctx, leadID)
	if err := c.notifier.Show(ctx, notice); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "recording.notice_failed").Msg("could not show recording notice")
	}
	logger.Info().
		Str(xglog.FieldEvent, "recording.held").
		Str(xglog.FieldURI, art.URI).
		Msg("recording held for retry")
	return c.statusLocked()
}

// Held returns the held artifact, if any.
func (c *Controller) Held() (Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		return Artifact{}, false
	}
	return c.held.artifact, true
}

// Release forgets the held artifact after a successful upload and dismisses the notice.
func (c *Controller) Release(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = nil
	c.dismiss(ctx)
}

// Cancel discards the capture or the held artifact and deletes its file. Safe with no session.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(ctx)
}

func (c *Controller) cancelLocked(ctx context.Context) {
	if c.held != nil {
		c.discardHeldLocked(ctx)
		c.dismiss(ctx)
	}
	if c.sess == nil {
		return
	}
	sess := c.sess
	c.sess = nil
	defer c.dismiss(ctx)

	if err := sess.capture.Abort(); err != nil {
		c.fault(ctx, "cancel", err)
	}
	logger := c.loggerFor(ctx, sess.leadID)
	logger.Info().
		Str(xglog.FieldEvent, "recording.cancelled").
		Msg("recording discarded")
}

func (c *Controller) discardHeldLocked(ctx context.Context) {
	if c.held == nil {
		return
	}
	held := c.held
	c.held = nil
	logger := c.loggerFor(ctx, held.leadID)
	if uri := held.artifact.URI; uri != "" {
		if err := os.Remove(uri); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str(xglog.FieldURI, uri).Msg("could not delete held recording")
		}
	}
	logger.Info().
		Str(xglog.FieldEvent, "recording.discarded").
		Str(xglog.FieldURI, held.artifact.URI).
		Msg("held recording discarded")
}

// loggerFor adds leadID unless ctx already carries a lead.
func (c *Controller) loggerFor(ctx context.Context, leadID string) zerolog.Logger {
	if leadID != "" && xglog.LeadIDFromContext(ctx) == "" {
		ctx = xglog.ContextWithLeadID(ctx, leadID)
	}
	return xglog.WithContext(ctx, c.logger)
}

// DismissNotice removes the recording notice without touching the capture.
func (c *Controller) DismissNotice(ctx context.Context) {
	c.dismiss(ctx)
}

// Dispose cancels any capture, deletes a held artifact and refuses further starts.
func (c *Controller) Dispose(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(ctx)
	c.disposed = true
}

func (c *Controller) dismiss(ctx context.Context) {
	if err := c.notifier.Dismiss(ctx, notify.RecordingNoticeID); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "recording.notice_dismiss_failed").Msg("could not dismiss recording notice")
	}
}

func (c *Controller) fault(ctx context.Context, op string, err error) {
	metrics.RecordingFaultsTotal.WithLabelValues(op).Inc()
	logger := xglog.WithContext(ctx, c.logger)
	logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "recording.engine_fault").
		Str(xglog.FieldOp, op).
		Msg("recording engine fault ignored")
}
