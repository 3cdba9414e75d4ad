// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/kv"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func TestRepository_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := New(kv.NewMemoryStore())

	_, ok, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	in := model.Session{LeadID: "L1", StartedAt: t0, Active: true}
	require.NoError(t, repo.SaveSession(ctx, in))

	out, ok, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.ClearSession(ctx))
	_, ok, err = repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

// A draft written by one process is read back identically by the next one.
func TestRepository_DraftRoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.sqlite")

	pauseAt := t0.Add(30 * time.Minute)
	in := model.Draft{
		LeadID:       "lead-77",
		Status:       "5",
		Plan:         "gold",
		Notes:        "wants a demo",
		NextFollowUp: "2026-07-08",
		Pause: model.PauseSnapshot{
			Paused:            true,
			PausedAccumulated: 2 * time.Minute,
			PauseStartedAt:    &pauseAt,
		},
		UpdatedAt: t0.Add(31 * time.Minute),
	}

	s1, err := kv.NewSqliteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, New(s1).SaveDraft(ctx, in))
	require.NoError(t, s1.Close())

	s2, err := kv.NewSqliteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	out, ok, err := New(s2).LoadDraft(ctx, "lead-77")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
}

func TestRepository_DraftsAreKeyedPerLead(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	repo := New(mem)

	require.NoError(t, repo.SaveDraft(ctx, model.Draft{LeadID: "a", Notes: "A"}))
	require.NoError(t, repo.SaveDraft(ctx, model.Draft{LeadID: "b", Notes: "B"}))

	_, ok, err := mem.Get(ctx, "meeting_draft_a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ClearDraft(ctx, "a"))
	_, ok, err = repo.LoadDraft(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	d, ok, err := repo.LoadDraft(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", d.Notes)
}

func TestRepository_SaveDraftRequiresLead(t *testing.T) {
	err := New(kv.NewMemoryStore()).SaveDraft(context.Background(), model.Draft{})
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
}

func TestRepository_CorruptSessionSurfacesDecodeError(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, SessionKey, "garbage"))

	_, ok, err := New(mem).LoadSession(ctx)
	assert.True(t, ok)
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
}
