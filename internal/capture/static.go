// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
)

// ErrNoFix is returned by StaticLocator when the UI sent no coordinates.
var ErrNoFix = errors.New("capture: no location fix supplied")

// StaticCamera returns a selfie the UI has already taken.
type StaticCamera string

func (c StaticCamera) TakeSelfie(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(c), nil
}

// StaticLocator returns coordinates the UI has already resolved. Without a
// Fix it reports ErrNoFix.
type StaticLocator struct {
	Fix *Location
}

func (l StaticLocator) Locate(ctx context.Context, _ Accuracy) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	if l.Fix == nil {
		return Location{}, ErrNoFix
	}
	return *l.Fix, nil
}
