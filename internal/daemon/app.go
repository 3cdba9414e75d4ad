// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

// App owns the runtime lifecycle: launch reconciliation, then the API server
// until shutdown.
type App struct {
	logger     zerolog.Logger
	manager    Manager
	components *Components
}

// NewApp creates a new App and registers the component teardown as the first
// (and therefore last executed) shutdown hook.
func NewApp(logger zerolog.Logger, manager Manager, components *Components) *App {
	a := &App{logger: logger, manager: manager, components: components}
	if manager != nil && components != nil {
		manager.RegisterShutdownHook("components", components.Close)
	}
	return a
}

// Run restores the persisted meeting, then blocks serving until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	if a.components != nil && a.components.Meetings != nil {
		out := a.components.Meetings.Restore(ctx)
		evt := a.logger.Info()
		if out.Err != nil {
			evt = a.logger.Warn().Err(out.Err)
		}
		evt.
			Str(xglog.FieldEvent, "launch.reconciled").
			Str(xglog.FieldOutcome, out.Label()).
			Msg("launch reconciliation finished")
	}

	return a.manager.Start(ctx)
}
