// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// MemoryEngine is an Engine without real audio. With Dir set it writes an empty
// placeholder file per capture; otherwise it returns memory:// URIs. Silent
// captures finish without any file, so nothing is uploaded.
// Fields ending in Err inject faults.
type MemoryEngine struct {
	Dir    string
	Ext    string // defaults to m4a
	Silent bool

	BeginErr  error
	PauseErr  error
	ResumeErr error
	FinishErr error
	AbortErr  error

	mu       sync.Mutex
	begun    int
	captures []*MemoryCapture
}

// Begin starts a fake capture.
func (e *MemoryEngine) Begin(context.Context) (Capture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.BeginErr != nil {
		return nil, e.BeginErr
	}
	e.begun++
	ext := e.Ext
	if ext == "" {
		ext = defaultExt
	}
	name := fmt.Sprintf("capture_%s.%s", uuid.NewString(), ext)
	c := &MemoryCapture{engine: e, uri: "memory://" + name}
	if e.Dir != "" {
		c.uri = filepath.Join(e.Dir, name)
	}
	e.captures = append(e.captures, c)
	return c, nil
}

// Begun returns how many captures were started.
func (e *MemoryEngine) Begun() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.begun
}

// Last returns the most recent capture, or nil.
func (e *MemoryEngine) Last() *MemoryCapture {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.captures) == 0 {
		return nil
	}
	return e.captures[len(e.captures)-1]
}

// MemoryCapture records the calls made on it.
type MemoryCapture struct {
	engine *MemoryEngine
	uri    string

	mu       sync.Mutex
	Pauses   int
	Resumes  int
	Finished bool
	Aborted  bool
}

func (c *MemoryCapture) Pause() error {
	c.mu.Lock()
	c.Pauses++
	c.mu.Unlock()
	return c.engine.PauseErr
}

func (c *MemoryCapture) Resume() error {
	c.mu.Lock()
	c.Resumes++
	c.mu.Unlock()
	return c.engine.ResumeErr
}

func (c *MemoryCapture) Finish() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine.FinishErr != nil {
		return "", c.engine.FinishErr
	}
	c.Finished = true
	if c.engine.Silent {
		return "", nil
	}
	if c.engine.Dir != "" {
		if err := os.WriteFile(c.uri, nil, 0o600); err != nil {
			return "", err
		}
	}
	return c.uri, nil
}

func (c *MemoryCapture) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Aborted = true
	if c.engine.Dir != "" {
		_ = os.Remove(c.uri)
	}
	return c.engine.AbortErr
}

// URI returns the capture's target URI.
func (c *MemoryCapture) URI() string { return c.uri }

// Counts returns pause and resume call counts.
func (c *MemoryCapture) Counts() (pauses, resumes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Pauses, c.Resumes
}
