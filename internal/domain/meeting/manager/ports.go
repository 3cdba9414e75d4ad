// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"

	"github.com/ManuGH/fieldvisit/internal/capture"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/recording"
	"github.com/ManuGH/fieldvisit/internal/remote"
)

// Remote is the subset of the meeting API the orchestrator drives.
type Remote interface {
	StartMeeting(ctx context.Context, req remote.StartRequest) (remote.StartResponse, error)
	EndMeeting(ctx context.Context, req remote.EndRequest) (string, error)
}

// Recorder is the recording session controller owned by the orchestrator.
type Recorder interface {
	Start(ctx context.Context, leadID string) (recording.Status, error)
	Pause(ctx context.Context) recording.Status
	Resume(ctx context.Context) recording.Status
	Stop(ctx context.Context) recording.Artifact
	Hold(ctx context.Context, leadID string, art recording.Artifact) recording.Status
	Held() (recording.Artifact, bool)
	Release(ctx context.Context)
	Cancel(ctx context.Context)
	Status() recording.Status
	DismissNotice(ctx context.Context)
	Dispose(ctx context.Context)
}

// Reconciler runs launch and focus reconciliation.
type Reconciler interface {
	Run(ctx context.Context) reconcile.Outcome
}

// Proof is the selfie and location evidence required at check-in and check-out.
type Proof struct {
	Camera  capture.Camera
	Locator capture.Locator
}

var _ Recorder = (*recording.Controller)(nil)
