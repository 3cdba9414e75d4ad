// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !unix

package ffmpeg

import "syscall"

// Pause/resume are unavailable here; procgroup.Signal reports ErrUnsupported
// and the recording controller treats that as a swallowed engine fault.
const (
	sigPause  = syscall.Signal(-1)
	sigResume = syscall.Signal(-2)
)
