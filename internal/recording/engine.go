// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import "context"

// Engine starts audio captures.
type Engine interface {
	Begin(ctx context.Context) (Capture, error)
}

// Capture is one running audio capture.
type Capture interface {
	Pause() error
	Resume() error
	// Finish finalizes the file and returns its URI.
	Finish() (uri string, err error)
	// Abort stops the capture and deletes the partial file.
	Abort() error
}

// Permission asks the platform for microphone access.
type Permission interface {
	RequestMicrophone(ctx context.Context) (granted bool, err error)
}

// StaticPermission always answers with its own value.
type StaticPermission bool

func (p StaticPermission) RequestMicrophone(context.Context) (bool, error) { return bool(p), nil }
