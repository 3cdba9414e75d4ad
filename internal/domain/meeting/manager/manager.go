// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager is the meeting session orchestrator. It owns the single live
// meeting of the process, drives the recorder in lockstep with the timer
// bookkeeping and keeps the persisted session and draft in sync.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/fieldvisit/internal/capture"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/store"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/metrics"
	"github.com/ManuGH/fieldvisit/internal/recording"
	"github.com/ManuGH/fieldvisit/internal/remote"
)

// Phase of the meeting lifecycle.
type Phase string

const (
	PhaseNoMeeting Phase = "no_meeting"
	PhaseStarting  Phase = "starting"
	PhaseActive    Phase = "active"
	PhaseEnding    Phase = "ending"
)

// DefaultCommitTimeout bounds Start, End and Restore once they run detached
// from the caller.
const DefaultCommitTimeout = 2 * time.Minute

// ErrDisposed is returned by Start after Dispose.
var ErrDisposed = errors.New("manager: disposed")

var (
	errNoCamera        = errors.New("no camera available")
	errNoSelfie        = errors.New("selfie cancelled or denied")
	errNoLocation      = errors.New("location unavailable")
	errCheckoutPending = errors.New("check-out pending")
)

// Options configures a Manager.
type Options struct {
	Store      *store.Repository
	Remote     Remote
	Recorder   Recorder
	Reconciler Reconciler
	Clock      timer.Clock

	LocationFastTimeout     time.Duration
	LocationFallbackTimeout time.Duration
	CommitTimeout           time.Duration
}

// Manager serializes every lifecycle operation; Snapshot and TimerState only
// take the state lock, so the display keeps ticking during network calls.
type Manager struct {
	opts   Options
	clock  timer.Clock
	logger zerolog.Logger

	op sync.Mutex // serializes operations

	mu       sync.RWMutex
	phase    Phase
	session  *model.Session
	draft    model.Draft
	changed  chan struct{}
	disposed bool
}

// New builds a Manager in PhaseNoMeeting. Call Restore to pick up a persisted meeting.
func New(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = timer.SystemClock{}
	}
	if opts.LocationFastTimeout <= 0 {
		opts.LocationFastTimeout = capture.DefaultFastTimeout
	}
	if opts.LocationFallbackTimeout <= 0 {
		opts.LocationFallbackTimeout = capture.DefaultFallbackTimeout
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}
	return &Manager{
		opts:    opts,
		clock:   clock,
		logger:  xglog.WithComponent("meeting"),
		phase:   PhaseNoMeeting,
		changed: make(chan struct{}),
	}
}

// Changed returns a channel closed on the next state change.
func (m *Manager) Changed() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changed
}

// TimerState implements timer.Source.
func (m *Manager) TimerState() (bool, timer.State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil || (m.phase != PhaseActive && m.phase != PhaseEnding) {
		return false, timer.State{}
	}
	return true, m.session.TimerState()
}

// setPhaseLocked updates the phase and wakes watchers. Caller holds m.mu.
func (m *Manager) setPhaseLocked(p Phase) {
	if m.phase != p {
		m.logger.Debug().
			Str(xglog.FieldOldState, string(m.phase)).
			Str(xglog.FieldNewState, string(p)).
			Msg("meeting phase changed")
	}
	m.phase = p
	m.signalLocked()
}

func (m *Manager) signalLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPhaseLocked(p)
}

// detach keeps ctx values but drops its cancellation: once a server call may
// have committed, a vanished caller must not abort the local half.
func (m *Manager) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.opts.CommitTimeout)
}

// Start checks in at leadID. Selfie and location are captured concurrently; the
// server issues the start time and the recorder must start before the meeting
// becomes Active. Caller cancellation does not abort it.
func (m *Manager) Start(ctx context.Context, leadID string, proof Proof) (Snapshot, error) {
	const op = "start meeting"
	m.op.Lock()
	defer m.op.Unlock()

	ctx, cancel := m.detach(xglog.ContextWithLeadID(ctx, leadID))
	defer cancel()
	logger := xglog.WithContext(ctx, m.logger)

	m.mu.Lock()
	switch {
	case m.disposed:
		m.mu.Unlock()
		return m.Snapshot(), meeting.Wrap(meeting.ErrNotActive, op, ErrDisposed)
	case m.phase != PhaseNoMeeting:
		m.mu.Unlock()
		metrics.MeetingStartsTotal.WithLabelValues("in_progress").Inc()
		return m.Snapshot(), meeting.Wrap(meeting.ErrMeetingInProgress, op, nil)
	case leadID == "":
		m.mu.Unlock()
		return m.Snapshot(), meeting.Validation(op, "select a lead")
	}
	m.setPhaseLocked(PhaseStarting)
	m.mu.Unlock()

	selfie, loc, err := m.collectProof(ctx, op, proof)
	if err != nil {
		m.setPhase(PhaseNoMeeting)
		metrics.MeetingStartsTotal.WithLabelValues("capture_failed").Inc()
		logger.Warn().Err(err).Str(xglog.FieldEvent, "meeting.start_capture_failed").Msg("check-in evidence missing")
		return m.Snapshot(), err
	}

	resp, err := m.opts.Remote.StartMeeting(ctx, remote.StartRequest{
		LeadID:    leadID,
		SelfieURI: selfie,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	})
	if err != nil {
		m.setPhase(PhaseNoMeeting)
		metrics.MeetingStartsTotal.WithLabelValues("remote_error").Inc()
		logger.Warn().Err(err).Str(xglog.FieldEvent, "meeting.start_rejected").Msg("server did not start meeting")
		return m.Snapshot(), fmt.Errorf("%s: %w", op, err)
	}

	// The server-side meeting stays open on a recorder failure; the next
	// reconciliation decides its fate.
	if _, err := m.opts.Recorder.Start(ctx, leadID); err != nil {
		m.setPhase(PhaseNoMeeting)
		metrics.MeetingStartsTotal.WithLabelValues("recording_failed").Inc()
		logger.Error().Err(err).Str(xglog.FieldEvent, "meeting.start_recording_failed").Msg("recorder did not start")
		return m.Snapshot(), err
	}

	sess := model.Session{LeadID: leadID, StartedAt: resp.StartedAt, Active: true}
	if err := m.opts.Store.SaveSession(ctx, sess); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "meeting.persist_failed").Msg("could not persist session")
	}
	draft := model.Draft{LeadID: leadID}
	if d, ok, err := m.opts.Store.LoadDraft(ctx, leadID); err == nil && ok {
		draft = d
	}
	draft.Pause = sess.PauseSnapshot()

	m.mu.Lock()
	m.session = &sess
	m.draft = draft
	m.setPhaseLocked(PhaseActive)
	m.mu.Unlock()

	metrics.MeetingStartsTotal.WithLabelValues("ok").Inc()
	metrics.SetMeetingActive(true)
	logger.Info().
		Str(xglog.FieldEvent, "meeting.started").
		Time("started_at", resp.StartedAt).
		Msg("meeting started")
	return m.Snapshot(), nil
}

// Pause freezes the timer and pauses the recorder. Pausing twice is a no-op.
func (m *Manager) Pause(ctx context.Context) (Snapshot, error) {
	return m.togglePause(ctx, "pause meeting", true)
}

// Resume restarts the timer and the recorder. Resuming a running meeting is a no-op.
func (m *Manager) Resume(ctx context.Context) (Snapshot, error) {
	return m.togglePause(ctx, "resume meeting", false)
}

func (m *Manager) togglePause(ctx context.Context, op string, pause bool) (Snapshot, error) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.phase != PhaseActive || m.session == nil {
		m.mu.Unlock()
		return m.Snapshot(), meeting.Wrap(meeting.ErrNotActive, op, nil)
	}
	if !pause && m.checkoutPending() {
		m.mu.Unlock()
		return m.Snapshot(), &meeting.Error{
			Sentinel: meeting.ErrValidation,
			Op:       op,
			Detail:   "check-out is pending, retry ending the meeting",
			Err:      errCheckoutPending,
		}
	}
	now := m.clock.Now()
	var changed bool
	if pause {
		changed = m.session.Pause(now)
	} else {
		changed = m.session.Resume(now)
	}
	if !changed {
		m.mu.Unlock()
		return m.Snapshot(), nil
	}
	sess := *m.session
	m.draft.Pause = sess.PauseSnapshot()
	m.draft.UpdatedAt = now
	draft := m.draft
	m.signalLocked()
	m.mu.Unlock()

	if pause {
		m.opts.Recorder.Pause(ctx)
	} else {
		m.opts.Recorder.Resume(ctx)
	}
	m.persist(ctx, sess, draft)

	event := "meeting.resumed"
	if pause {
		event = "meeting.paused"
	}
	logger := xglog.WithContext(xglog.ContextWithLeadID(ctx, sess.LeadID), m.logger)
	logger.Info().
		Str(xglog.FieldEvent, event).
		Int64(xglog.FieldElapsed, timer.ElapsedSeconds(now, sess.TimerState())).
		Msg(op)
	return m.Snapshot(), nil
}

// UpdateDraft merges patch into the draft and persists it. Last write wins;
// persistence failures are logged only.
func (m *Manager) UpdateDraft(ctx context.Context, patch model.DraftPatch) (Snapshot, error) {
	const op = "update draft"
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.phase != PhaseActive || m.session == nil {
		m.mu.Unlock()
		return m.Snapshot(), meeting.Wrap(meeting.ErrNotActive, op, nil)
	}
	if patch.Empty() {
		m.mu.Unlock()
		return m.Snapshot(), nil
	}
	patch.Apply(&m.draft)
	m.draft.Pause = m.session.PauseSnapshot()
	m.draft.UpdatedAt = m.clock.Now()
	draft := m.draft
	m.signalLocked()
	m.mu.Unlock()

	if err := m.opts.Store.SaveDraft(ctx, draft); err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldLeadID, draft.LeadID).Str(xglog.FieldEvent, "meeting.draft_persist_failed").Msg("could not persist draft")
	}
	return m.Snapshot(), nil
}

// End checks out. A missing outcome status is rejected before anything else
// happens. The recording is stopped before the server call and held for retry
// if the call fails; the meeting then stays Active with its timer paused, and
// Resume is refused until an end succeeds. Caller cancellation does not abort it.
func (m *Manager) End(ctx context.Context, proof Proof) (Snapshot, string, error) {
	const op = "end meeting"
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.phase != PhaseActive || m.session == nil {
		m.mu.Unlock()
		return m.Snapshot(), "", meeting.Wrap(meeting.ErrNotActive, op, nil)
	}
	if m.draft.Status == "" {
		m.mu.Unlock()
		metrics.MeetingEndsTotal.WithLabelValues("validation").Inc()
		return m.Snapshot(), "", meeting.Validation(op, "select a meeting outcome")
	}
	sess := *m.session
	draft := m.draft
	m.setPhaseLocked(PhaseEnding)
	m.mu.Unlock()

	ctx, cancel := m.detach(xglog.ContextWithLeadID(ctx, sess.LeadID))
	defer cancel()
	logger := xglog.WithContext(ctx, m.logger)

	selfie, loc, err := m.collectProof(ctx, op, proof)
	if err != nil {
		m.setPhase(PhaseActive)
		metrics.MeetingEndsTotal.WithLabelValues("capture_failed").Inc()
		logger.Warn().Err(err).Str(xglog.FieldEvent, "meeting.end_capture_failed").Msg("check-out evidence missing")
		return m.Snapshot(), "", err
	}

	art := m.takeArtifact(ctx)
	req := remote.EndRequest{
		LeadID:           sess.LeadID,
		SelfieURI:        selfie,
		Latitude:         loc.Latitude,
		Longitude:        loc.Longitude,
		LeadStatusID:     draft.Status,
		PlanInterest:     draft.Plan,
		Notes:            draft.Notes,
		NextFollowUpDate: draft.NextFollowUp,
	}
	if art != nil {
		req.Recording = &remote.Attachment{URI: art.URI, MIMEType: art.MIMEType, FileName: art.SuggestedFileName}
	}

	msg, err := m.opts.Remote.EndMeeting(ctx, req)
	if err != nil {
		m.holdForRetry(ctx, sess.LeadID, art)
		metrics.MeetingEndsTotal.WithLabelValues("remote_error").Inc()
		logger.Warn().Err(err).Str(xglog.FieldEvent, "meeting.end_rejected").Msg("server did not end meeting, state kept for retry")
		return m.Snapshot(), "", fmt.Errorf("%s: %w", op, err)
	}

	if err := m.opts.Store.ClearSession(ctx); err != nil {
		logger.Warn().Err(err).Msg("clear persisted session")
	}
	if err := m.opts.Store.ClearDraft(ctx, sess.LeadID); err != nil {
		logger.Warn().Err(err).Msg("clear persisted draft")
	}
	m.opts.Recorder.Release(ctx)

	m.mu.Lock()
	m.session = nil
	m.draft = model.Draft{}
	m.setPhaseLocked(PhaseNoMeeting)
	m.mu.Unlock()

	metrics.MeetingEndsTotal.WithLabelValues("ok").Inc()
	metrics.SetMeetingActive(false)
	logger.Info().
		Str(xglog.FieldEvent, "meeting.ended").
		Int64(xglog.FieldElapsed, timer.ElapsedSeconds(m.clock.Now(), sess.TimerState())).
		Bool("with_recording", art != nil).
		Msg("meeting ended")
	return m.Snapshot(), msg, nil
}

// takeArtifact returns the held artifact from a failed attempt or stops the recorder.
func (m *Manager) takeArtifact(ctx context.Context) *recording.Artifact {
	art, ok := m.opts.Recorder.Held()
	if !ok {
		art = m.opts.Recorder.Stop(ctx)
	}
	if art.Empty() {
		return nil
	}
	return &art
}

// holdForRetry keeps the stopped recording and freezes the timer with it, so
// recorder and timer stay in lockstep until the end is retried.
func (m *Manager) holdForRetry(ctx context.Context, leadID string, art *recording.Artifact) {
	held := recording.Artifact{}
	if art != nil {
		held = *art
	}
	m.opts.Recorder.Hold(ctx, leadID, held)

	m.mu.Lock()
	var (
		sess    model.Session
		draft   model.Draft
		changed bool
	)
	if m.session != nil {
		now := m.clock.Now()
		changed = m.session.Pause(now)
		m.draft.Pause = m.session.PauseSnapshot()
		m.draft.UpdatedAt = now
		sess, draft = *m.session, m.draft
	}
	m.setPhaseLocked(PhaseActive)
	m.mu.Unlock()

	if changed {
		m.persist(ctx, sess, draft)
	}
}

// checkoutPending reports whether a failed end left a stopped recording behind.
func (m *Manager) checkoutPending() bool {
	return m.opts.Recorder.Status().State == recording.StateStopped
}

// Restore runs reconciliation and adopts its result in memory. Used at launch
// and whenever the meeting screen regains focus.
func (m *Manager) Restore(ctx context.Context) reconcile.Outcome {
	m.op.Lock()
	defer m.op.Unlock()

	if m.opts.Reconciler == nil {
		return reconcile.Outcome{State: reconcile.StateNoMeeting}
	}
	ctx, cancel := m.detach(ctx)
	defer cancel()
	out := m.opts.Reconciler.Run(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case out.Session != nil:
		sess := *out.Session
		if m.session != nil && m.session.LeadID == sess.LeadID {
			// The in-memory pause bookkeeping is at least as new as the persisted copy.
			m.session.StartedAt = sess.StartedAt
			m.session.Active = true
		} else {
			if m.session != nil {
				m.opts.Recorder.Cancel(ctx)
			}
			m.session = &sess
			m.draft = model.Draft{LeadID: sess.LeadID}
			if out.Draft != nil {
				m.draft = *out.Draft
			}
		}
		if m.phase == PhaseNoMeeting {
			// A restored meeting has no live capture; the notice from a previous process is stale.
			m.opts.Recorder.DismissNotice(ctx)
		}
		metrics.SetMeetingActive(true)
		m.setPhaseLocked(PhaseActive)

	case out.State == reconcile.StateNoMeeting && out.Reason == reconcile.ReasonLoadFailed:
		// Store unreadable: keep whatever is in memory.

	default:
		// Drops a live capture as well as an artifact held after a failed end.
		m.opts.Recorder.Cancel(ctx)
		m.session = nil
		m.draft = model.Draft{}
		metrics.SetMeetingActive(false)
		m.setPhaseLocked(PhaseNoMeeting)
	}
	return out
}

// Dispose abandons any live capture and refuses new meetings. The persisted
// session is kept for the next launch.
func (m *Manager) Dispose(ctx context.Context) {
	m.op.Lock()
	defer m.op.Unlock()

	m.opts.Recorder.Dispose(ctx)
	m.mu.Lock()
	m.disposed = true
	m.signalLocked()
	m.mu.Unlock()
}

func (m *Manager) persist(ctx context.Context, sess model.Session, draft model.Draft) {
	if err := m.opts.Store.SaveSession(ctx, sess); err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldLeadID, sess.LeadID).Str(xglog.FieldEvent, "meeting.persist_failed").Msg("could not persist session")
	}
	if err := m.opts.Store.SaveDraft(ctx, draft); err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldLeadID, draft.LeadID).Str(xglog.FieldEvent, "meeting.draft_persist_failed").Msg("could not persist draft")
	}
}

// collectProof takes the selfie and the location concurrently.
func (m *Manager) collectProof(ctx context.Context, op string, proof Proof) (string, capture.Location, error) {
	if proof.Camera == nil {
		return "", capture.Location{}, meeting.Wrap(meeting.ErrCaptureFailed, op, errNoCamera)
	}
	strategy := &capture.LocationStrategy{
		Locator:         proof.Locator,
		FastTimeout:     m.opts.LocationFastTimeout,
		FallbackTimeout: m.opts.LocationFallbackTimeout,
	}

	var (
		selfie string
		loc    *capture.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uri, err := proof.Camera.TakeSelfie(gctx)
		if err != nil {
			if errors.Is(err, meeting.ErrPermissionDenied) {
				return err
			}
			return meeting.Wrap(meeting.ErrCaptureFailed, op, err)
		}
		if uri == "" {
			return meeting.Wrap(meeting.ErrCaptureFailed, op, errNoSelfie)
		}
		selfie = uri
		return nil
	})
	g.Go(func() error {
		loc = strategy.CaptureLocation(gctx)
		if loc == nil {
			return meeting.Wrap(meeting.ErrCaptureFailed, op, errNoLocation)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", capture.Location{}, err
	}
	return selfie, *loc, nil
}
