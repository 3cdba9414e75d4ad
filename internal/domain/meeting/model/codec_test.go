// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 4, 8, 30, 0, 123_000_000, time.UTC)

func TestSession_EncodeDecode(t *testing.T) {
	pauseAt := start.Add(20 * time.Minute)
	in := Session{
		LeadID:            "lead-17",
		StartedAt:         start,
		Active:            true,
		Paused:            true,
		PausedAccumulated: 90 * time.Second,
		PauseStartedAt:    &pauseAt,
	}

	raw, err := EncodeSession(in)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.EqualValues(t, CurrentSchema, env["schema"])
	assert.Equal(t, KindSession, env["kind"])

	out, err := DecodeSession(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("session round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDraft_EncodeDecode(t *testing.T) {
	pauseAt := start.Add(time.Hour)
	in := Draft{
		LeadID:       "lead-17",
		Status:       "4",
		Plan:         "premium",
		Notes:        "call back after lunch",
		NextFollowUp: "2026-05-11",
		Pause: PauseSnapshot{
			Paused:            true,
			PausedAccumulated: 3 * time.Minute,
			PauseStartedAt:    &pauseAt,
		},
		UpdatedAt: start.Add(2 * time.Hour),
	}

	raw, err := EncodeDraft(in)
	require.NoError(t, err)
	out, err := DecodeDraft(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("draft round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSession_MigratesLegacyBlob(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Session
	}{
		{
			name: "rfc3339 strings",
			raw:  `{"leadId":"L1","startTime":"2026-05-04T08:30:00Z","isPaused":false,"pausedDuration":1500,"pauseStartTime":null}`,
			want: Session{
				LeadID:            "L1",
				StartedAt:         time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC),
				Active:            true,
				PausedAccumulated: 1500 * time.Millisecond,
			},
		},
		{
			name: "numeric id and epoch millis while paused",
			raw:  `{"leadId":42,"startTime":1777883400000,"isPaused":true,"pausedDuration":0,"pauseStartTime":1777884000000}`,
			want: func() Session {
				p := time.UnixMilli(1777884000000).UTC()
				return Session{
					LeadID:         "42",
					StartedAt:      time.UnixMilli(1777883400000).UTC(),
					Active:         true,
					Paused:         true,
					PauseStartedAt: &p,
				}
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSession(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("legacy migration mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSession_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "{{"},
		{"json array", "[1,2]"},
		{"future schema", `{"schema":3,"kind":"meeting_session","data":{}}`},
		{"zero schema", `{"schema":0,"kind":"meeting_session","data":{}}`},
		{"wrong kind", `{"schema":2,"kind":"meeting_draft","data":{"lead_id":"x","started_at":"2026-05-04T08:30:00Z"}}`},
		{"missing data", `{"schema":2,"kind":"meeting_session"}`},
		{"missing lead", `{"schema":2,"kind":"meeting_session","data":{"started_at":"2026-05-04T08:30:00Z"}}`},
		{"missing start", `{"schema":2,"kind":"meeting_session","data":{"lead_id":"x"}}`},
		{"paused without pause start", `{"schema":2,"kind":"meeting_session","data":{"lead_id":"x","started_at":"2026-05-04T08:30:00Z","paused":true}}`},
		{"legacy missing start", `{"leadId":"x"}`},
		{"legacy empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSession(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.NotErrorIs(t, err, ErrBadTimestamp)
		})
	}
}

func TestDecodeSession_FutureSchemaIsUnsupported(t *testing.T) {
	_, err := DecodeSession(`{"schema":99,"kind":"meeting_session","data":{}}`)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestDecodeSession_UnparsableStartIsBadTimestamp(t *testing.T) {
	for _, raw := range []string{
		`{"schema":2,"kind":"meeting_session","data":{"lead_id":"x","started_at":"yesterday"}}`,
		`{"leadId":"x","startTime":"not a date"}`,
	} {
		s, err := DecodeSession(raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadTimestamp)
		assert.NotErrorIs(t, err, ErrInvalidRecord)
		assert.Equal(t, "x", s.LeadID)
	}
}

func TestDecodeDraft_MigratesLegacyBlob(t *testing.T) {
	raw := `{"leadId":"L9","status":3,"plan":"basic","notes":"n","nextFollowUpDate":"2026-06-01","isPaused":false,"pausedDuration":2000}`
	got, err := DecodeDraft(raw)
	require.NoError(t, err)
	want := Draft{
		LeadID:       "L9",
		Status:       "3",
		Plan:         "basic",
		Notes:        "n",
		NextFollowUp: "2026-06-01",
		Pause:        PauseSnapshot{PausedAccumulated: 2 * time.Second},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("legacy draft mismatch (-want +got):\n%s", diff)
	}
}
