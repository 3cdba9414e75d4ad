// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package reconcile decides, at launch and on focus, whether a locally
// persisted meeting is still live on the server.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/store"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/metrics"
	"github.com/ManuGH/fieldvisit/internal/notify"
	"github.com/ManuGH/fieldvisit/internal/remote"
)

// DefaultStaleAfter bounds how long a meeting may legitimately run.
const DefaultStaleAfter = 24 * time.Hour

// DefaultRunTimeout bounds one reconciliation run.
const DefaultRunTimeout = 30 * time.Second

// ErrIllegalTransition is reported when a step emits an event the table does not allow.
var ErrIllegalTransition = errors.New("reconcile: illegal transition")

// CredentialChecker reports whether the user is logged in.
type CredentialChecker interface {
	Present(ctx context.Context) (bool, error)
}

// StatusChecker asks the server whether a meeting is still open.
type StatusChecker interface {
	MeetingStatus(ctx context.Context, leadID string) (remote.Status, error)
}

// Options configures a Service.
type Options struct {
	Store       *store.Repository
	Credentials CredentialChecker
	Remote      StatusChecker
	Notifier    notify.Notifier
	Clock       timer.Clock
	StaleAfter  time.Duration
	RunTimeout  time.Duration
	// KeepOnCheckError keeps the local session when the server check fails
	// instead of clearing it.
	KeepOnCheckError bool
}

// Outcome is the terminal result of a run. Errors never escape a run; the
// cause, if any, is carried in Err for logging.
type Outcome struct {
	State   State
	Reason  Reason
	Session *model.Session // set for StateAdopted and StateKept
	Draft   *model.Draft   // draft of the adopted lead, if any
	Path    []State
	Err     error
}

// Label is the metrics label for the outcome.
func (o Outcome) Label() string {
	if o.Reason == ReasonNone {
		return string(o.State)
	}
	return string(o.State) + "_" + string(o.Reason)
}

// Service runs the reconciliation state machine.
type Service struct {
	opts   Options
	group  singleflight.Group
	logger zerolog.Logger
}

// New returns a Service. Store and Credentials are required.
func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = timer.SystemClock{}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	return &Service{opts: opts, logger: xglog.WithComponent("reconcile")}
}

// Run reconciles once. Concurrent callers share a single in-flight run, which
// is detached from every caller's cancellation and bounded by RunTimeout.
func (s *Service) Run(ctx context.Context) Outcome {
	v, _, _ := s.group.Do("reconcile", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RunTimeout)
		defer cancel()
		return s.run(runCtx), nil
	})
	return v.(Outcome)
}

// run carries the record between steps.
type run struct {
	session model.Session
	loadErr error
	cause   error
	status  remote.Status
}

func (s *Service) run(ctx context.Context) Outcome {
	logger := xglog.WithContext(ctx, s.logger)
	start := s.opts.Clock.Now()

	var r run
	state := StateCheckCredential
	out := Outcome{Path: []State{state}}

	for !state.Terminal() {
		ev := s.step(ctx, state, &r)
		tr, ok := TransitionFor(state, ev)
		if !ok {
			logger.Error().
				Str(xglog.FieldOldState, string(state)).
				Str(xglog.FieldEvent, string(ev)).
				Msg("illegal reconcile transition")
			out.State, out.Err = StateNoMeeting, fmt.Errorf("%w: %s + %s", ErrIllegalTransition, state, ev)
			break
		}
		logger.Debug().
			Str(xglog.FieldOldState, string(tr.From)).
			Str(xglog.FieldNewState, string(tr.To)).
			Str(xglog.FieldEvent, string(ev)).
			Msg("reconcile transition")
		if tr.Clear {
			s.clear(ctx)
		}
		state = tr.To
		out.State, out.Reason = tr.To, tr.Reason
		out.Path = append(out.Path, state)
	}
	if out.Err == nil {
		out.Err = r.cause
	}

	switch out.State {
	case StateAdopted:
		s.adopt(ctx, &r, &out)
	case StateKept:
		sess := r.session
		sess.Active = true
		out.Session = &sess
		out.Draft = s.draft(ctx, sess.LeadID)
	}

	metrics.ReconcileOutcomesTotal.WithLabelValues(out.Label()).Inc()
	ev := logger.Info()
	if out.Err != nil {
		ev = logger.Warn().Err(out.Err)
	}
	if r.session.LeadID != "" && xglog.LeadIDFromContext(ctx) == "" {
		ev = ev.Str(xglog.FieldLeadID, r.session.LeadID)
	}
	ev.Str(xglog.FieldEvent, "reconcile.done").
		Str(xglog.FieldOutcome, out.Label()).
		Int64(xglog.FieldDurationMs, s.opts.Clock.Now().Sub(start).Milliseconds()).
		Msg("reconciliation finished")
	return out
}

func (s *Service) step(ctx context.Context, state State, r *run) Event {
	switch state {
	case StateCheckCredential:
		ok, err := s.opts.Credentials.Present(ctx)
		if err != nil {
			// The server will reject a missing credential; an unreadable one is not a logout.
			r.cause = err
			return EvCredentialPresent
		}
		if !ok {
			return EvNoCredential
		}
		return EvCredentialPresent

	case StateLoadRecord:
		sess, ok, err := s.opts.Store.LoadSession(ctx)
		if err != nil && !errors.Is(err, model.ErrInvalidRecord) && !errors.Is(err, model.ErrBadTimestamp) {
			r.cause = err
			return EvLoadFailed
		}
		if !ok {
			return EvNoRecord
		}
		r.session, r.loadErr = sess, err
		return EvRecordFound

	case StateValidateRecord:
		if errors.Is(r.loadErr, model.ErrInvalidRecord) {
			r.cause = r.loadErr
			return EvRecordInvalid
		}
		return EvRecordValid

	case StateCheckAge:
		if errors.Is(r.loadErr, model.ErrBadTimestamp) {
			r.cause = r.loadErr
			return EvStale
		}
		if s.opts.Clock.Now().Sub(r.session.StartedAt) > s.opts.StaleAfter {
			return EvStale
		}
		return EvFresh

	case StateVerifyRemote:
		if s.opts.Remote == nil {
			r.cause = errors.New("reconcile: no remote configured")
			return s.checkFailed()
		}
		st, err := s.opts.Remote.MeetingStatus(ctx, r.session.LeadID)
		if err != nil {
			r.cause = err
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return EvCheckAborted
			}
			return s.checkFailed()
		}
		if !st.Open {
			return EvRemoteClosed
		}
		r.status = st
		return EvRemoteOpen
	}
	return ""
}

func (s *Service) checkFailed() Event {
	if s.opts.KeepOnCheckError {
		return EvCheckDeferred
	}
	return EvCheckFailed
}

// adopt takes the server start time and keeps the local pause bookkeeping.
func (s *Service) adopt(ctx context.Context, r *run, out *Outcome) {
	sess := r.session
	if !r.status.StartedAt.IsZero() {
		sess.StartedAt = r.status.StartedAt
	}
	sess.Active = true
	if err := s.opts.Store.SaveSession(ctx, sess); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldLeadID, sess.LeadID).Msg("persist adopted session")
	}
	out.Session = &sess
	out.Draft = s.draft(ctx, sess.LeadID)
}

func (s *Service) draft(ctx context.Context, leadID string) *model.Draft {
	d, ok, err := s.opts.Store.LoadDraft(ctx, leadID)
	if err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldLeadID, leadID).Msg("load draft")
		return nil
	}
	if !ok {
		return nil
	}
	return &d
}

func (s *Service) clear(ctx context.Context) {
	if err := s.opts.Store.ClearSession(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clear persisted session")
	}
	if err := s.opts.Notifier.Dismiss(ctx, notify.RecordingNoticeID); err != nil {
		s.logger.Warn().Err(err).Msg("dismiss recording notice")
	}
}
