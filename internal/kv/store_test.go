// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "active_meeting")
	require.NoError(t, err)
	assert.False(t, ok, "fresh store must be empty")

	require.NoError(t, s.Set(ctx, "active_meeting", `{"schema":2}`))
	v, ok, err := s.Get(ctx, "active_meeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"schema":2}`, v)

	// Last write wins.
	require.NoError(t, s.Set(ctx, "active_meeting", `{"schema":2,"kind":"x"}`))
	v, _, err = s.Get(ctx, "active_meeting")
	require.NoError(t, err)
	assert.Equal(t, `{"schema":2,"kind":"x"}`, v)

	// Keys with path-hostile characters stay isolated.
	require.NoError(t, s.Set(ctx, "meeting_draft_../../etc", "d1"))
	require.NoError(t, s.Set(ctx, "meeting_draft_a/b", "d2"))
	v, _, err = s.Get(ctx, "meeting_draft_../../etc")
	require.NoError(t, err)
	assert.Equal(t, "d1", v)

	// Empty values are values, not absence.
	require.NoError(t, s.Set(ctx, "empty", ""))
	v, ok, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	require.NoError(t, s.Remove(ctx, "active_meeting"))
	_, ok, err = s.Get(ctx, "active_meeting")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing a missing key is not an error.
	require.NoError(t, s.Remove(ctx, "never_set"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSqliteStore(t *testing.T) {
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "kv.sqlite"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set(context.Background(), "k", "v"), ErrClosed)
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	// Keys are namespaced on the server.
	require.NoError(t, s.Set(context.Background(), "active_meeting", "x"))
	assert.True(t, mr.Exists("fieldvisit:active_meeting"))
	require.NoError(t, s.HealthCheck(context.Background()))
}

func TestRedisStore_UnreachableFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}

// Durability: a value written by one store instance is visible to the next one.
func TestDurableBackends_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendSqlite, BackendFile, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			s1, err := NewStore(ctx, Options{Backend: backend, Dir: dir})
			require.NoError(t, err)
			require.NoError(t, s1.Set(ctx, "active_meeting", "persisted"))
			require.NoError(t, s1.Close())

			s2, err := NewStore(ctx, Options{Backend: backend, Dir: dir})
			require.NoError(t, err)
			defer s2.Close()
			v, ok, err := s2.Get(ctx, "active_meeting")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "persisted", v)
		})
	}
}
