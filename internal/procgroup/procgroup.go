// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns helper processes in their own process group so the
// whole tree can be signalled (paused, interrupted, killed) at once.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// ErrUnsupported is returned where process-group signalling is unavailable.
var ErrUnsupported = errors.New("procgroup: process group signals not supported on this platform")

// Set configures the command to start in a new process group.
// Mandatory for Signal to reach the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Signal sends sig to the process group of cmd.
// A nil command or an already exited process is not an error.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return signal(cmd.Process.Pid, sig)
}
