// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store persists meeting sessions and drafts on top of the key/value store.
package store

import (
	"context"
	"fmt"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/kv"
)

// SessionKey holds the single live meeting.
const SessionKey = "active_meeting"

const draftKeyPrefix = "meeting_draft_"

// DraftKey returns the key of the draft for leadID.
func DraftKey(leadID string) string {
	return draftKeyPrefix + leadID
}

// Repository reads and writes typed meeting records.
type Repository struct {
	kv kv.Store
}

// New wraps a key/value store.
func New(s kv.Store) *Repository {
	return &Repository{kv: s}
}

// LoadSession returns the persisted session. ok is false when nothing is stored.
// Decode failures are returned with whatever could be read (see model.DecodeSession).
func (r *Repository) LoadSession(ctx context.Context) (model.Session, bool, error) {
	raw, ok, err := r.kv.Get(ctx, SessionKey)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return model.Session{}, false, nil
	}
	s, err := model.DecodeSession(raw)
	return s, true, err
}

// SaveSession replaces the persisted session.
func (r *Repository) SaveSession(ctx context.Context, s model.Session) error {
	raw, err := model.EncodeSession(s)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession removes the persisted session.
func (r *Repository) ClearSession(ctx context.Context) error {
	if err := r.kv.Remove(ctx, SessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// LoadDraft returns the draft for leadID. ok is false when none is stored.
func (r *Repository) LoadDraft(ctx context.Context, leadID string) (model.Draft, bool, error) {
	raw, ok, err := r.kv.Get(ctx, DraftKey(leadID))
	if err != nil {
		return model.Draft{}, false, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return model.Draft{}, false, nil
	}
	d, err := model.DecodeDraft(raw)
	if err != nil {
		return model.Draft{}, true, err
	}
	if d.LeadID == "" {
		d.LeadID = leadID
	}
	return d, true, nil
}

// SaveDraft replaces the draft for d.LeadID.
func (r *Repository) SaveDraft(ctx context.Context, d model.Draft) error {
	if d.LeadID == "" {
		return fmt.Errorf("save draft: %w: missing lead id", model.ErrInvalidRecord)
	}
	raw, err := model.EncodeDraft(d)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, DraftKey(d.LeadID), raw); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// ClearDraft removes the draft for leadID.
func (r *Repository) ClearDraft(ctx context.Context, leadID string) error {
	if err := r.kv.Remove(ctx, DraftKey(leadID)); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
