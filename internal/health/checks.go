// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ManuGH/fieldvisit/internal/kv"
)

// probeKey is written and removed by StoreChecker.
const probeKey = "health.probe"

// FuncChecker adapts a function to Checker.
type FuncChecker struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

func (c FuncChecker) Name() string                          { return c.CheckName }
func (c FuncChecker) Check(ctx context.Context) CheckResult { return c.Fn(ctx) }

// StoreChecker round-trips a probe key through the durable store.
type StoreChecker struct {
	Store kv.Store
}

func (StoreChecker) Name() string { return "store" }

func (c StoreChecker) Check(ctx context.Context) CheckResult {
	if c.Store == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "store not configured"}
	}
	if err := c.Store.Set(ctx, probeKey, "ok"); err != nil {
		return unhealthy("write", err)
	}
	v, ok, err := c.Store.Get(ctx, probeKey)
	if err != nil {
		return unhealthy("read", err)
	}
	if !ok || v != "ok" {
		return CheckResult{Status: StatusUnhealthy, Error: "probe value not read back"}
	}
	if err := c.Store.Remove(ctx, probeKey); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "probe key left behind", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker requires a writable directory.
type DirChecker struct {
	CheckName string
	Path      string
}

func (c DirChecker) Name() string { return c.CheckName }

func (c DirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.Path)
	if err != nil {
		return unhealthy("stat", err)
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: c.Path}
	}
	f, err := os.CreateTemp(c.Path, ".write_test-*")
	if err != nil {
		return unhealthy("not writable", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return CheckResult{Status: StatusHealthy, Message: c.Path}
}

// BinaryChecker looks an executable up on PATH. A missing binary only
// degrades the daemon: meetings start without a recording.
type BinaryChecker struct {
	Bin string
}

func (c BinaryChecker) Name() string { return "recording_engine" }

func (c BinaryChecker) Check(context.Context) CheckResult {
	path, err := exec.LookPath(c.Bin)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return CheckResult{Status: StatusDegraded, Message: c.Bin + " not found on PATH"}
		}
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// RemoteChecker reports whether a meeting API is configured. Offline mode is
// degraded rather than unhealthy so the timer of an adopted meeting keeps working.
type RemoteChecker struct {
	BaseURL string
}

func (RemoteChecker) Name() string { return "remote" }

func (c RemoteChecker) Check(context.Context) CheckResult {
	if c.BaseURL == "" {
		return CheckResult{Status: StatusDegraded, Message: "offline: api.baseUrl not set"}
	}
	return CheckResult{Status: StatusHealthy, Message: "configured"}
}

func unhealthy(what string, err error) CheckResult {
	return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("%s: %v", what, err)}
}
