// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package kv provides the local durable string key/value store that survives process restarts.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Store is a durable string key/value store.
// A successful Set is visible to a Get in a later process.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by NewStore.
const (
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string // data directory for sqlite, file and badger

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewStore creates a store based on the backend. Empty backend means sqlite;
// sqlite without a directory degrades to memory.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendSqlite
	}

	needsDir := backend == BackendFile || backend == BackendBadger || (backend == BackendSqlite && opts.Dir != "")
	if needsDir {
		if opts.Dir == "" {
			return nil, fmt.Errorf("kv: %s backend requires a data directory", backend)
		}
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("kv: create data dir: %w", err)
		}
	}

	switch backend {
	case BackendSqlite:
		if opts.Dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(opts.Dir, "fieldvisit.sqlite"))
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(filepath.Join(opts.Dir, "kv"))
	case BackendBadger:
		return NewBadgerStore(filepath.Join(opts.Dir, "badger"))
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown kv store backend: %s (supported: sqlite, memory, file, redis, badger)", backend)
	}
}
