// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capture holds the selfie and location collaborators used at check-in and check-out.
package capture

import (
	"context"
	"errors"
	"time"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

const (
	DefaultFastTimeout     = 5 * time.Second
	DefaultFallbackTimeout = 3 * time.Second
)

// Location is a WGS84 fix.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Accuracy selects how hard a Locator tries.
type Accuracy string

const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
)

// Camera takes a selfie and returns a local file URI. An empty URI means the
// user cancelled or the camera permission was refused.
type Camera interface {
	TakeSelfie(ctx context.Context) (string, error)
}

// Locator returns a single fix. Implementations honour ctx cancellation.
type Locator interface {
	Locate(ctx context.Context, accuracy Accuracy) (Location, error)
}

// LocationStrategy tries a high-accuracy fix first and falls back to a
// balanced fix when that times out or fails.
type LocationStrategy struct {
	Locator         Locator
	FastTimeout     time.Duration
	FallbackTimeout time.Duration
}

// NewLocationStrategy uses the default 5s fast and 3s fallback budgets.
func NewLocationStrategy(l Locator) *LocationStrategy {
	return &LocationStrategy{Locator: l, FastTimeout: DefaultFastTimeout, FallbackTimeout: DefaultFallbackTimeout}
}

// CaptureLocation returns nil when both attempts fail.
func (s *LocationStrategy) CaptureLocation(ctx context.Context) *Location {
	logger := xglog.WithComponentFromContext(ctx, "capture")

	loc, err := s.attempt(ctx, AccuracyHigh, s.FastTimeout, DefaultFastTimeout)
	if err == nil {
		return &loc
	}
	logger.Debug().Err(err).Str(xglog.FieldEvent, "capture.location_fast_failed").Msg("high accuracy fix failed, falling back")
	if ctx.Err() != nil {
		return nil
	}

	loc, err = s.attempt(ctx, AccuracyBalanced, s.FallbackTimeout, DefaultFallbackTimeout)
	if err == nil {
		return &loc
	}
	logger.Warn().Err(err).Str(xglog.FieldEvent, "capture.location_failed").Msg("no location fix")
	return nil
}

func (s *LocationStrategy) attempt(ctx context.Context, acc Accuracy, timeout, fallback time.Duration) (Location, error) {
	if s.Locator == nil {
		return Location{}, ErrNoLocator
	}
	if timeout <= 0 {
		timeout = fallback
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Locator.Locate(ctx, acc)
}

// ErrNoLocator is returned when no location source is configured.
var ErrNoLocator = errors.New("capture: no locator configured")
