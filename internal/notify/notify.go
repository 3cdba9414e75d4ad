// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package notify is the sticky user-notice surface used while a recording runs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/rs/zerolog"
)

// RecordingNoticeID identifies the "recording in progress" notice.
const RecordingNoticeID = "recording-in-progress"

// Notice is a user-visible notification.
type Notice struct {
	ID     string
	Title  string
	Body   string
	Sticky bool // must not be dismissible by the user
}

// Notifier shows and dismisses notices. Dismissing an unknown id is not an error.
type Notifier interface {
	Show(ctx context.Context, n Notice) error
	Dismiss(ctx context.Context, id string) error
}

// Kinds accepted by New.
const (
	KindLog  = "log"
	KindNone = "none"
)

// New returns the notifier for kind. Empty means log.
func New(kind string) (Notifier, error) {
	switch kind {
	case "", KindLog:
		return NewLogNotifier(xglog.WithComponent("notify")), nil
	case KindNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q (supported: log, none)", kind)
	}
}

// Noop is used on platforms without a foreground-service indicator requirement.
type Noop struct{}

func (Noop) Show(context.Context, Notice) error    { return nil }
func (Noop) Dismiss(context.Context, string) error { return nil }

// LogNotifier records visible notices and logs every change.
type LogNotifier struct {
	logger zerolog.Logger
	mu     sync.Mutex
	active map[string]Notice
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger, active: make(map[string]Notice)}
}

func (l *LogNotifier) Show(ctx context.Context, n Notice) error {
	if n.ID == "" {
		return errors.New("notify: notice without id")
	}
	l.mu.Lock()
	l.active[n.ID] = n
	l.mu.Unlock()

	logger := xglog.WithContext(ctx, l.logger)
	logger.Info().
		Str(xglog.FieldEvent, "notice.shown").
		Str(xglog.FieldNoticeID, n.ID).
		Str("title", n.Title).
		Bool("sticky", n.Sticky).
		Msg(n.Body)
	return nil
}

func (l *LogNotifier) Dismiss(ctx context.Context, id string) error {
	l.mu.Lock()
	_, ok := l.active[id]
	delete(l.active, id)
	l.mu.Unlock()

	if ok {
		logger := xglog.WithContext(ctx, l.logger)
		logger.Info().
			Str(xglog.FieldEvent, "notice.dismissed").
			Str(xglog.FieldNoticeID, id).
			Msg("notice dismissed")
	}
	return nil
}

// Active returns the ids of visible notices, sorted.
func (l *LogNotifier) Active() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
