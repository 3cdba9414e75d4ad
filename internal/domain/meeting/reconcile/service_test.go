package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/store"
	"github.com/ManuGH/fieldvisit/internal/kv"
	"github.com/ManuGH/fieldvisit/internal/metrics"
	"github.com/ManuGH/fieldvisit/internal/notify"
	"github.com/ManuGH/fieldvisit/internal/remote"
	"github.com/ManuGH/fieldvisit/internal/testutil"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeCredentials struct {
	present bool
	err     error
}

func (f fakeCredentials) Present(context.Context) (bool, error) { return f.present, f.err }

type fakeRemote struct {
	calls   atomic.Int32
	status  remote.Status
	err     error
	release chan struct{}
}

func (f *fakeRemote) MeetingStatus(ctx context.Context, _ string) (remote.Status, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return remote.Status{}, &remote.Error{Sentinel: remote.ErrUnavailable, Operation: "meeting_status", Err: err}
	}
	return f.status, f.err
}

type fixture struct {
	kv       *kv.MemoryStore
	repo     *store.Repository
	remote   *fakeRemote
	notifier *notify.LogNotifier
	clock    *testutil.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := kv.NewMemoryStore()
	return &fixture{
		kv:       mem,
		repo:     store.New(mem),
		remote:   &fakeRemote{},
		notifier: notify.NewLogNotifier(zerolog.Nop()),
		clock:    testutil.NewManualClock(t0),
	}
}

func (f *fixture) service(creds CredentialChecker, keep bool) *Service {
	return New(Options{
		Store:            f.repo,
		Credentials:      creds,
		Remote:           f.remote,
		Notifier:         f.notifier,
		Clock:            f.clock,
		KeepOnCheckError: keep,
	})
}

func (f *fixture) persist(t *testing.T, s model.Session) {
	t.Helper()
	require.NoError(t, f.repo.SaveSession(context.Background(), s))
	require.NoError(t, f.notifier.Show(context.Background(), notify.Notice{ID: notify.RecordingNoticeID, Sticky: true}))
}

func (f *fixture) sessionStored(t *testing.T) bool {
	t.Helper()
	_, ok, err := f.kv.Get(context.Background(), store.SessionKey)
	require.NoError(t, err)
	return ok
}

func session(startedAt time.Time) model.Session {
	return model.Session{LeadID: "42", StartedAt: startedAt, Active: true}
}

func TestRun_NoCredentialLogsOut(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))

	out := f.service(fakeCredentials{present: false}, false).Run(context.Background())
	assert.Equal(t, StateLoggedOut, out.State)
	assert.False(t, f.sessionStored(t))
	assert.Empty(t, f.notifier.Active())
	assert.Zero(t, f.remote.calls.Load())
}

func TestRun_NoRecord(t *testing.T) {
	f := newFixture(t)
	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateNoMeeting, out.State)
	assert.Equal(t, []State{StateCheckCredential, StateLoadRecord, StateNoMeeting}, out.Path)
	assert.Zero(t, f.remote.calls.Load())
}

func TestRun_InvalidRecordCleared(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Set(context.Background(), store.SessionKey, `{"schema":2,"kind":"meeting_session","data":{"started_at":"2026-03-02T09:00:00Z"}}`))

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonInvalid, out.Reason)
	assert.ErrorIs(t, out.Err, model.ErrInvalidRecord)
	assert.False(t, f.sessionStored(t))
	assert.Zero(t, f.remote.calls.Load())
}

func TestRun_StaleRecordClearedWithoutRemoteCall(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-25*time.Hour)))
	before := metrics.CounterValue(metrics.ReconcileOutcomesTotal, "cleared_stale")

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonStale, out.Reason)
	assert.Zero(t, f.remote.calls.Load())
	assert.False(t, f.sessionStored(t))
	assert.Empty(t, f.notifier.Active())
	assert.Equal(t, before+1, metrics.CounterValue(metrics.ReconcileOutcomesTotal, "cleared_stale"))
}

func TestRun_UnparsableStartIsStale(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Set(context.Background(), store.SessionKey, `{"schema":2,"kind":"meeting_session","data":{"lead_id":"42","started_at":"not-a-time","active":true}}`))

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonStale, out.Reason)
	assert.Zero(t, f.remote.calls.Load())
}

func TestRun_FutureStartIsNotStale(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(10*time.Minute)))
	f.remote.status = remote.Status{Open: true}

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateAdopted, out.State)
}

func TestRun_CheckErrorClearsConservatively(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.err = &remote.Error{Sentinel: remote.ErrUnavailable, Operation: "meeting_status"}

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonCheckFailed, out.Reason)
	assert.ErrorIs(t, out.Err, remote.ErrUnavailable)
	assert.False(t, f.sessionStored(t))
	assert.Equal(t, int32(1), f.remote.calls.Load())
}

func TestRun_CheckErrorKeptWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.err = errors.New("boom")

	out := f.service(fakeCredentials{present: true}, true).Run(context.Background())
	assert.Equal(t, StateKept, out.State)
	require.NotNil(t, out.Session)
	assert.Equal(t, "42", out.Session.LeadID)
	assert.True(t, f.sessionStored(t))
}

func TestRun_ClosedOnServer(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	require.NoError(t, f.repo.SaveDraft(context.Background(), model.Draft{LeadID: "42", Notes: "keep me"}))
	f.remote.status = remote.Status{Open: false}

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonClosed, out.Reason)
	assert.False(t, f.sessionStored(t))

	_, ok, err := f.repo.LoadDraft(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok, "drafts survive reconciliation")
}

func TestRun_AdoptsServerStartAndKeepsPauses(t *testing.T) {
	f := newFixture(t)
	pausedAt := t0.Add(-10 * time.Minute)
	local := model.Session{
		LeadID:            "42",
		StartedAt:         t0.Add(-time.Hour),
		Active:            true,
		Paused:            true,
		PausedAccumulated: 5 * time.Minute,
		PauseStartedAt:    &pausedAt,
	}
	f.persist(t, local)
	require.NoError(t, f.repo.SaveDraft(context.Background(), model.Draft{LeadID: "42", Status: "hot", Notes: "n"}))
	serverStart := t0.Add(-55 * time.Minute)
	f.remote.status = remote.Status{Open: true, StartedAt: serverStart}

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	require.Equal(t, StateAdopted, out.State)
	require.NotNil(t, out.Session)
	assert.True(t, out.Session.StartedAt.Equal(serverStart))
	assert.True(t, out.Session.Paused)
	assert.Equal(t, 5*time.Minute, out.Session.PausedAccumulated)
	require.NotNil(t, out.Draft)
	assert.Equal(t, "hot", out.Draft.Status)

	stored, ok, err := f.repo.LoadSession(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.StartedAt.Equal(serverStart))
}

func TestRun_CredentialReadErrorContinues(t *testing.T) {
	f := newFixture(t)
	out := f.service(fakeCredentials{err: errors.New("disk")}, false).Run(context.Background())
	assert.Equal(t, StateNoMeeting, out.State)
	assert.Error(t, out.Err)
}

func TestRun_ConcurrentTriggersShareOneRun(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.status = remote.Status{Open: true}
	f.remote.release = make(chan struct{})
	svc := f.service(fakeCredentials{present: true}, false)

	var wg sync.WaitGroup
	outs := make([]Outcome, 2)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = svc.Run(context.Background())
		}(i)
	}
	require.Eventually(t, func() bool { return f.remote.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the second caller time to join the in-flight run.
	time.Sleep(20 * time.Millisecond)
	close(f.remote.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.remote.calls.Load())
	assert.Equal(t, StateAdopted, outs[0].State)
	assert.Equal(t, StateAdopted, outs[1].State)
}

func TestRun_CallerCancellationIsNotAVerdict(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.status = remote.Status{Open: true}
	f.remote.release = make(chan struct{})
	svc := f.service(fakeCredentials{present: true}, false)

	ctx, cancel := context.WithCancel(context.Background())
	outs := make(chan Outcome, 2)
	go func() { outs <- svc.Run(ctx) }()
	require.Eventually(t, func() bool { return f.remote.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	go func() { outs <- svc.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	// The first caller goes away while the shared check is in flight.
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(f.remote.release)

	for range 2 {
		out := <-outs
		assert.Equal(t, StateAdopted, out.State)
	}
	assert.True(t, f.sessionStored(t))
	assert.Equal(t, []string{notify.RecordingNoticeID}, f.notifier.Active())
}

func TestRun_CancelledCheckKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.err = &remote.Error{Sentinel: remote.ErrUnavailable, Operation: "meeting_status", Err: context.Canceled}

	out := f.service(fakeCredentials{present: true}, false).Run(context.Background())
	assert.Equal(t, StateKept, out.State)
	assert.Equal(t, ReasonAborted, out.Reason)
	assert.Equal(t, "kept_aborted", out.Label())
	require.NotNil(t, out.Session)
	assert.True(t, f.sessionStored(t))
	assert.Equal(t, []string{notify.RecordingNoticeID}, f.notifier.Active())
}

func TestRun_TimeoutIsACheckFailure(t *testing.T) {
	f := newFixture(t)
	f.persist(t, session(t0.Add(-time.Hour)))
	f.remote.release = make(chan struct{})
	svc := New(Options{
		Store:       f.repo,
		Credentials: fakeCredentials{present: true},
		Remote:      f.remote,
		Notifier:    f.notifier,
		Clock:       f.clock,
		RunTimeout:  30 * time.Millisecond,
	})

	out := svc.Run(context.Background())
	assert.Equal(t, StateCleared, out.State)
	assert.Equal(t, ReasonCheckFailed, out.Reason)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}
