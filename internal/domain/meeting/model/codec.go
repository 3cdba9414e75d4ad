// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CurrentSchema is written by Encode*. Schema 1 is the legacy unversioned camelCase blob.
const CurrentSchema = 2

// Record kinds stored in the envelope.
const (
	KindSession = "meeting_session"
	KindDraft   = "meeting_draft"
)

var (
	// ErrUnsupportedSchema is returned for envelopes written by a newer build.
	ErrUnsupportedSchema = fmt.Errorf("%w: unsupported schema", ErrInvalidRecord)
	// ErrBadTimestamp marks a present but unparsable start time. Callers treat it as stale, not invalid.
	ErrBadTimestamp = errors.New("model: unparsable timestamp")
)

func wrapInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, reason)
}

type envelope struct {
	Schema int             `json:"schema"`
	Kind   string          `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

type sessionV2 struct {
	LeadID              string `json:"lead_id"`
	StartedAt           string `json:"started_at"`
	Active              bool   `json:"active"`
	Paused              bool   `json:"paused"`
	PausedAccumulatedMs int64  `json:"paused_accumulated_ms"`
	PauseStartedAt      string `json:"pause_started_at,omitempty"`
}

type pauseV2 struct {
	Paused              bool   `json:"paused"`
	PausedAccumulatedMs int64  `json:"paused_accumulated_ms"`
	PauseStartedAt      string `json:"pause_started_at,omitempty"`
}

type draftV2 struct {
	LeadID       string  `json:"lead_id"`
	Status       string  `json:"status,omitempty"`
	Plan         string  `json:"plan,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	NextFollowUp string  `json:"next_follow_up_date,omitempty"`
	Pause        pauseV2 `json:"pause"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// sessionV1 is the pre-envelope record. Times are RFC 3339 strings or epoch milliseconds.
type sessionV1 struct {
	LeadID         json.RawMessage `json:"leadId"`
	StartTime      json.RawMessage `json:"startTime"`
	IsPaused       bool            `json:"isPaused"`
	PausedDuration float64         `json:"pausedDuration"`
	PauseStartTime json.RawMessage `json:"pauseStartTime"`
}

// draftV1 is the pre-envelope draft blob.
type draftV1 struct {
	LeadID         json.RawMessage `json:"leadId"`
	Status         json.RawMessage `json:"status"`
	Plan           string          `json:"plan"`
	Notes          string          `json:"notes"`
	NextFollowUp   string          `json:"nextFollowUpDate"`
	IsPaused       bool            `json:"isPaused"`
	PausedDuration float64         `json:"pausedDuration"`
	PauseStartTime json.RawMessage `json:"pauseStartTime"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return t, nil
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseLegacyTime accepts a JSON string (RFC 3339) or number (epoch ms). Absent or null yields zero.
func parseLegacyTime(raw json.RawMessage) (time.Time, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return time.Time{}, false, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true, nil
		}
		return time.Time{}, true, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return time.UnixMilli(int64(n)).UTC(), true, nil
	}
	return time.Time{}, true, fmt.Errorf("%w: %s", ErrBadTimestamp, string(raw))
}

// legacyID accepts a string or numeric lead id.
func legacyID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

func encode(kind string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("model: marshal %s: %w", kind, err)
	}
	out, err := json.Marshal(envelope{Schema: CurrentSchema, Kind: kind, Data: payload})
	if err != nil {
		return "", fmt.Errorf("model: marshal envelope: %w", err)
	}
	return string(out), nil
}

// open parses raw into an envelope. Legacy blobs without a schema key come back as schema 1
// with the whole document as data.
func open(raw, kind string) (envelope, error) {
	if strings.TrimSpace(raw) == "" {
		return envelope{}, wrapInvalid("empty record")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if _, ok := probe["schema"]; !ok {
		return envelope{Schema: 1, Kind: kind, Data: json.RawMessage(raw)}, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if env.Schema < 1 {
		return envelope{}, wrapInvalid(fmt.Sprintf("schema %d", env.Schema))
	}
	if env.Schema > CurrentSchema {
		return envelope{}, fmt.Errorf("%w %d", ErrUnsupportedSchema, env.Schema)
	}
	if env.Kind != "" && env.Kind != kind {
		return envelope{}, wrapInvalid(fmt.Sprintf("kind %q, want %q", env.Kind, kind))
	}
	if len(env.Data) == 0 {
		return envelope{}, wrapInvalid("missing data")
	}
	return env, nil
}

// EncodeSession serializes s into a current-schema envelope.
func EncodeSession(s Session) (string, error) {
	return encode(KindSession, sessionV2{
		LeadID:              s.LeadID,
		StartedAt:           formatTime(s.StartedAt),
		Active:              s.Active,
		Paused:              s.Paused,
		PausedAccumulatedMs: s.PausedAccumulated.Milliseconds(),
		PauseStartedAt:      formatTimePtr(s.PauseStartedAt),
	})
}

// DecodeSession parses a persisted session of any supported schema.
//
// Errors wrap ErrInvalidRecord for structural problems and ErrBadTimestamp when the
// start time is present but unparsable; in the latter case the returned Session still
// carries the lead id.
func DecodeSession(raw string) (Session, error) {
	env, err := open(raw, KindSession)
	if err != nil {
		return Session{}, err
	}
	if env.Schema == 1 {
		return decodeSessionV1(env.Data)
	}

	var w sessionV2
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	s := Session{
		LeadID:            w.LeadID,
		Active:            w.Active,
		Paused:            w.Paused,
		PausedAccumulated: time.Duration(w.PausedAccumulatedMs) * time.Millisecond,
	}
	if w.LeadID == "" {
		return s, wrapInvalid("missing lead id")
	}
	if w.StartedAt == "" {
		return s, wrapInvalid("missing start time")
	}
	if s.StartedAt, err = parseTime(w.StartedAt); err != nil {
		return s, err
	}
	if s.PauseStartedAt, err = parseTimePtr(w.PauseStartedAt); err != nil {
		return s, fmt.Errorf("%w: pause start: %v", ErrInvalidRecord, err)
	}
	return s, s.Validate()
}

func decodeSessionV1(data json.RawMessage) (Session, error) {
	var w sessionV1
	if err := json.Unmarshal(data, &w); err != nil {
		return Session{}, fmt.Errorf("%w: legacy: %v", ErrInvalidRecord, err)
	}
	s := Session{
		LeadID:            legacyID(w.LeadID),
		Active:            true,
		Paused:            w.IsPaused,
		PausedAccumulated: time.Duration(w.PausedDuration) * time.Millisecond,
	}
	if s.LeadID == "" {
		return s, wrapInvalid("missing lead id")
	}
	start, present, err := parseLegacyTime(w.StartTime)
	if !present {
		return s, wrapInvalid("missing start time")
	}
	if err != nil {
		return s, err
	}
	s.StartedAt = start

	pauseAt, present, err := parseLegacyTime(w.PauseStartTime)
	if err != nil {
		return s, fmt.Errorf("%w: pause start: %v", ErrInvalidRecord, err)
	}
	if present {
		s.PauseStartedAt = &pauseAt
	}
	return s, s.Validate()
}

// EncodeDraft serializes d into a current-schema envelope.
func EncodeDraft(d Draft) (string, error) {
	return encode(KindDraft, draftV2{
		LeadID:       d.LeadID,
		Status:       d.Status,
		Plan:         d.Plan,
		Notes:        d.Notes,
		NextFollowUp: d.NextFollowUp,
		Pause: pauseV2{
			Paused:              d.Pause.Paused,
			PausedAccumulatedMs: d.Pause.PausedAccumulated.Milliseconds(),
			PauseStartedAt:      formatTimePtr(d.Pause.PauseStartedAt),
		},
		UpdatedAt: formatTime(d.UpdatedAt),
	})
}

// DecodeDraft parses a persisted draft of any supported schema.
func DecodeDraft(raw string) (Draft, error) {
	env, err := open(raw, KindDraft)
	if err != nil {
		return Draft{}, err
	}
	if env.Schema == 1 {
		return decodeDraftV1(env.Data)
	}

	var w draftV2
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	d := Draft{
		LeadID:       w.LeadID,
		Status:       w.Status,
		Plan:         w.Plan,
		Notes:        w.Notes,
		NextFollowUp: w.NextFollowUp,
		Pause: PauseSnapshot{
			Paused:            w.Pause.Paused,
			PausedAccumulated: time.Duration(w.Pause.PausedAccumulatedMs) * time.Millisecond,
		},
	}
	if d.Pause.PauseStartedAt, err = parseTimePtr(w.Pause.PauseStartedAt); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if w.UpdatedAt != "" {
		if d.UpdatedAt, err = parseTime(w.UpdatedAt); err != nil {
			return Draft{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return d, nil
}

func decodeDraftV1(data json.RawMessage) (Draft, error) {
	var w draftV1
	if err := json.Unmarshal(data, &w); err != nil {
		return Draft{}, fmt.Errorf("%w: legacy draft: %v", ErrInvalidRecord, err)
	}
	d := Draft{
		LeadID:       legacyID(w.LeadID),
		Status:       legacyID(w.Status),
		Plan:         w.Plan,
		Notes:        w.Notes,
		NextFollowUp: w.NextFollowUp,
		Pause: PauseSnapshot{
			Paused:            w.IsPaused,
			PausedAccumulated: time.Duration(w.PausedDuration) * time.Millisecond,
		},
	}
	at, present, err := parseLegacyTime(w.PauseStartTime)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: legacy draft pause start: %v", ErrInvalidRecord, err)
	}
	if present {
		d.Pause.PauseStartedAt = &at
	}
	return d, nil
}
