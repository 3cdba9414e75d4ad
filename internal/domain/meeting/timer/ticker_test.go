// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/fieldvisit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSource struct {
	mu      sync.Mutex
	active  bool
	st      State
	changed chan struct{}
}

func newFakeSource(active bool, st State) *fakeSource {
	return &fakeSource{active: active, st: st, changed: make(chan struct{})}
}

func (f *fakeSource) TimerState() (bool, State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.st
}

func (f *fakeSource) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeSource) update(active bool, st State) {
	f.mu.Lock()
	f.active = active
	f.st = st
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	values []int64
	notify chan int64
}

func newRecorder() *recorder { return &recorder{notify: make(chan int64, 64)} }

func (r *recorder) emit(v int64) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	select {
	case r.notify <- v:
	default:
	}
}

func (r *recorder) next(t *testing.T) int64 {
	t.Helper()
	select {
	case v := <-r.notify:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func TestTicker_InactiveEmitsZeroAndReturns(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := newRecorder()
	tk := NewTicker(testutil.NewManualClock(t0))
	err := tk.Run(context.Background(), newFakeSource(false, State{}), rec.emit)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, rec.values)
}

func TestTicker_RunningTicksAndStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := testutil.NewManualClock(t0.Add(10 * time.Second))
	src := newFakeSource(true, State{StartedAt: t0})
	tk := &Ticker{Clock: clock, Interval: 5 * time.Millisecond}
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx, src, rec.emit) }()

	assert.Equal(t, int64(10), rec.next(t))
	clock.Advance(time.Second)
	// A tick may already be in flight with the old time; wait for the new value.
	for v := rec.next(t); v != 11; v = rec.next(t) {
		require.Equal(t, int64(10), v)
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop after cancel")
	}
}

func TestTicker_PausedFreezesUntilChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := testutil.NewManualClock(t0.Add(time.Minute))
	paused := State{StartedAt: t0, Paused: true, PauseStartedAt: t0.Add(30 * time.Second)}
	src := newFakeSource(true, paused)
	tk := &Ticker{Clock: clock, Interval: time.Millisecond}
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx, src, rec.emit) }()

	assert.Equal(t, int64(30), rec.next(t))
	clock.Advance(time.Hour)

	select {
	case v := <-rec.notify:
		t.Fatalf("paused ticker emitted %d", v)
	case <-time.After(30 * time.Millisecond):
	}

	// Meeting ends: the ticker shows zero and exits on its own.
	src.update(false, State{})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not return after meeting ended")
	}
	assert.Equal(t, int64(0), rec.next(t))
}
