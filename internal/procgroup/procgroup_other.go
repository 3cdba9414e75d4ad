// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !unix

package procgroup

import (
	"os/exec"
	"syscall"
)

func set(*exec.Cmd) {}

func signal(int, syscall.Signal) error { return ErrUnsupported }
