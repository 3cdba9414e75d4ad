// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg records meeting audio by driving an ffmpeg child process.
//
// Pause and resume stop and continue the process group (SIGSTOP/SIGCONT); finishing
// sends SIGINT so ffmpeg writes the container trailer before exiting.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/procgroup"
	"github.com/ManuGH/fieldvisit/internal/recording"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultStartupGrace  = 300 * time.Millisecond
	defaultFinishTimeout = 5 * time.Second
)

// Config describes how to launch ffmpeg.
type Config struct {
	Bin         string // ffmpeg binary, defaults to "ffmpeg"
	InputFormat string // e.g. "pulse", "alsa", "avfoundation"
	InputDevice string // e.g. "default"
	Dir         string // output directory for captures
	Bitrate     string // AAC bitrate, defaults to 64k

	StartupGrace  time.Duration // how long ffmpeg must survive to count as started
	FinishTimeout time.Duration // how long to wait for the trailer after SIGINT
}

// Engine implements recording.Engine.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// New validates cfg and creates the output directory.
func New(cfg Config) (*Engine, error) {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		return nil, errors.New("ffmpeg: input format is required")
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "64k"
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = defaultStartupGrace
	}
	if cfg.FinishTimeout <= 0 {
		cfg.FinishTimeout = defaultFinishTimeout
	}
	if cfg.Dir == "" {
		return nil, errors.New("ffmpeg: output directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("ffmpeg: create output dir: %w", err)
	}
	return &Engine{cfg: cfg, logger: xglog.WithComponent("ffmpeg")}, nil
}

// Args returns the ffmpeg command line (without the binary) for output path out.
func (e *Engine) Args(out string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", e.cfg.InputFormat,
		"-i", e.cfg.InputDevice,
		"-vn",
		"-c:a", "aac",
		"-b:a", e.cfg.Bitrate,
		"-movflags", "+faststart",
		"-y",
		out,
	}
}

// Begin launches ffmpeg. The process is not tied to ctx: it must outlive the request that started it.
func (e *Engine) Begin(ctx context.Context) (recording.Capture, error) {
	out := filepath.Join(e.cfg.Dir, fmt.Sprintf("capture_%s.m4a", uuid.NewString()))

	// #nosec G204 -- binary and device come from operator configuration
	cmd := exec.Command(e.cfg.Bin, e.Args(out)...)
	procgroup.Set(cmd)
	tail := newTail(20)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	c := &capture{
		cmd:     cmd,
		out:     out,
		tail:    tail,
		done:    make(chan struct{}),
		timeout: e.cfg.FinishTimeout,
		logger:  xglog.WithContext(ctx, e.logger),
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()

	select {
	case <-c.done:
		_ = os.Remove(out)
		return nil, fmt.Errorf("ffmpeg: exited during startup: %v: %s", c.waitErr, strings.Join(tail.Lines(), "; "))
	case <-time.After(e.cfg.StartupGrace):
	case <-ctx.Done():
		c.kill()
		_ = os.Remove(out)
		return nil, ctx.Err()
	}

	c.logger.Debug().
		Int("pid", cmd.Process.Pid).
		Str(xglog.FieldPath, out).
		Msg("ffmpeg capture started")
	return c, nil
}

type capture struct {
	cmd     *exec.Cmd
	out     string
	tail    *tail
	done    chan struct{}
	waitErr error
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

func (c *capture) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *capture) Pause() error {
	if c.exited() {
		return fmt.Errorf("ffmpeg: process exited: %v", c.waitErr)
	}
	return procgroup.Signal(c.cmd, sigPause)
}

func (c *capture) Resume() error {
	if c.exited() {
		return fmt.Errorf("ffmpeg: process exited: %v", c.waitErr)
	}
	return procgroup.Signal(c.cmd, sigResume)
}

func (c *capture) Finish() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return "", errors.New("ffmpeg: capture already stopped")
	}
	c.stopped = true

	if !c.exited() {
		// A stopped process cannot handle SIGINT; continue it first.
		_ = procgroup.Signal(c.cmd, sigResume)
		if err := procgroup.Signal(c.cmd, syscall.SIGINT); err != nil {
			c.logger.Warn().Err(err).Msg("ffmpeg interrupt failed")
		}
		select {
		case <-c.done:
		case <-time.After(c.timeout):
			c.kill()
			return "", fmt.Errorf("ffmpeg: no clean exit within %s", c.timeout)
		}
	}

	info, err := os.Stat(c.out)
	if err != nil {
		return "", fmt.Errorf("ffmpeg: output missing: %w (%s)", err, strings.Join(c.tail.Lines(), "; "))
	}
	if info.Size() == 0 {
		return "", errors.New("ffmpeg: output is empty")
	}
	return c.out, nil
}

func (c *capture) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.kill()
	if err := os.Remove(c.out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ffmpeg: remove partial file: %w", err)
	}
	return nil
}

func (c *capture) kill() {
	if c.exited() {
		return
	}
	_ = procgroup.Signal(c.cmd, sigResume)
	if err := procgroup.Signal(c.cmd, syscall.SIGKILL); err != nil {
		_ = c.cmd.Process.Kill()
	}
	select {
	case <-c.done:
	case <-time.After(c.timeout):
		c.logger.Error().Int("pid", c.cmd.Process.Pid).Msg("ffmpeg did not exit after SIGKILL")
	}
}

// tail keeps the last lines written to it.
type tail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTail(max int) *tail { return &tail{max: max} }

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		t.lines = append(t.lines, line)
		if len(t.lines) > t.max {
			t.lines = t.lines[len(t.lines)-t.max:]
		}
	}
	return len(p), nil
}

func (t *tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
