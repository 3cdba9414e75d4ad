// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package timer

import (
	"context"
	"time"
)

// DefaultInterval is the display cadence while a meeting is running.
const DefaultInterval = time.Second

// Source exposes the state a Ticker renders.
type Source interface {
	// TimerState reports whether a meeting is active and its pause bookkeeping.
	TimerState() (active bool, st State)
	// Changed returns a channel that is closed on the next state change.
	Changed() <-chan struct{}
}

// Ticker emits the elapsed seconds of a Source at a fixed cadence.
// It never keeps its own counter; each emission is recomputed from the Source.
type Ticker struct {
	Clock    Clock
	Interval time.Duration
}

// NewTicker returns a Ticker with the default 1 Hz cadence.
func NewTicker(clock Clock) *Ticker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ticker{Clock: clock, Interval: DefaultInterval}
}

// Run blocks in the caller's goroutine and calls emit with the current elapsed seconds.
//
//   - running: emits every Interval and immediately on state changes
//   - paused: emits once, then waits for a state change (the display is frozen)
//   - inactive: emits 0 and returns nil
//
// Run returns ctx.Err() once the context is cancelled, which is how an owning view stops it.
func (t *Ticker) Run(ctx context.Context, src Source, emit func(seconds int64)) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := t.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		// Grab the change signal before reading state so an update between the two is not lost.
		changed := src.Changed()
		active, st := src.TimerState()
		if !active {
			emit(0)
			return nil
		}
		emit(ElapsedSeconds(clock.Now(), st))

		if st.Paused {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-changed:
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-timer.C:
		}
	}
}
