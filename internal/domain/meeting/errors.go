// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package meeting holds the error taxonomy shared by the meeting lifecycle packages.
package meeting

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrPermissionDenied  = errors.New("meeting: permission denied")
	ErrCaptureFailed     = errors.New("meeting: capture failed")
	ErrValidation        = errors.New("meeting: validation failed")
	ErrNetwork           = errors.New("meeting: network unreachable")
	ErrServer            = errors.New("meeting: server rejected request")
	ErrRecordingEngine   = errors.New("meeting: recording engine fault")
	ErrNoActiveSession   = errors.New("meeting: no active recording session")
	ErrNotActive         = errors.New("meeting: no active meeting")
	ErrMeetingInProgress = errors.New("meeting: another meeting is in progress")
	ErrStaleState        = errors.New("meeting: persisted state is stale")
)

// Error wraps a sentinel with the failing operation and the lower-level cause.
type Error struct {
	Sentinel error
	Op       string
	Detail   string // user-facing message, may be empty
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Wrap builds an *Error for op. A nil cause is allowed.
func Wrap(sentinel error, op string, cause error) error {
	return &Error{Sentinel: sentinel, Op: op, Err: cause}
}

// Validation returns an ErrValidation carrying a user-facing message.
func Validation(op, detail string) error {
	return &Error{Sentinel: ErrValidation, Op: op, Detail: detail}
}

// UserMessage returns the message suitable for showing to the field user.
func UserMessage(err error) string {
	var me *Error
	if errors.As(err, &me) && me.Detail != "" {
		return me.Detail
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrCaptureFailed):
		return "could not capture selfie or location"
	case errors.Is(err, ErrNetwork):
		return "network unavailable, please try again"
	case errors.Is(err, ErrServer):
		return "the server rejected the request"
	case errors.Is(err, ErrRecordingEngine):
		return "could not start the audio recording"
	case errors.Is(err, ErrNotActive):
		return "no meeting is in progress"
	case errors.Is(err, ErrMeetingInProgress):
		return "another meeting is already in progress"
	case err == nil:
		return ""
	default:
		return "something went wrong"
	}
}
