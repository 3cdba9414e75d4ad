// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package remote

import (
	"errors"
	"fmt"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized = errors.New("remote: credential missing or rejected")
	ErrUnavailable  = errors.New("remote: host unreachable or transport failure")
	ErrServer       = errors.New("remote: internal error (5xx)")
	ErrRejected     = errors.New("remote: request rejected (4xx)")
	ErrBadResponse  = errors.New("remote: invalid response format or malformed data")
)

// Error wraps a remote sentinel with the failing operation and HTTP context.
// Besides the sentinel it also unwraps to meeting.ErrNetwork or meeting.ErrServer,
// so the orchestrator can classify it without knowing about HTTP.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("remote: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Sentinel, e.category()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) category() error {
	if e.Sentinel == ErrUnavailable {
		return meeting.ErrNetwork
	}
	return meeting.ErrServer
}

// classifyStatus maps a non-2xx status onto a sentinel.
func classifyStatus(code int) error {
	switch {
	case code == 401:
		return ErrUnauthorized
	case code >= 500:
		return ErrServer
	default:
		return ErrRejected
	}
}
