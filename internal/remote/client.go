// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package remote is the client for the field-sales meeting API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/ManuGH/fieldvisit/internal/auth"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/metrics"
	"github.com/ManuGH/fieldvisit/internal/platform/httpx"
)

const (
	pathStart  = "/meetings/start"
	pathEnd    = "/meetings/end"
	pathStatus = "/meetings/status"

	maxResponseBytes = 1 << 20
	maxErrorBody     = 256

	requestIDHeader = "X-Request-ID"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Credentials supplies the bearer token for every request. Nil sends no Authorization header.
	Credentials oauth2.TokenSource
	// OnUnauthorized runs after a 401 or a missing credential; the caller's logout flow.
	OnUnauthorized func(ctx context.Context)
	// WonStatusID is the terminal "won" outcome; next_follow_up_date is never sent with it.
	WonStatusID string
}

// Client talks to the meeting endpoints of the remote API.
type Client struct {
	base           *url.URL
	http           *http.Client
	onUnauthorized func(ctx context.Context)
	wonStatusID    string
}

// New builds a Client on the hardened httpx transport, instrumented with otelhttp
// and authenticated through an oauth2 transport.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: base url %q must be http or https", cfg.BaseURL)
	}

	var rt http.RoundTripper = otelhttp.NewTransport(httpx.NewTransport(cfg.Timeout))
	if cfg.Credentials != nil {
		rt = &oauth2.Transport{Source: cfg.Credentials, Base: rt}
	}

	return &Client{
		base:           base,
		http:           httpx.NewClient(cfg.Timeout, rt),
		onUnauthorized: cfg.OnUnauthorized,
		wonStatusID:    cfg.WonStatusID,
	}, nil
}

// StartRequest is the check-in submission.
type StartRequest struct {
	LeadID    string
	SelfieURI string
	Latitude  float64
	Longitude float64
}

// StartResponse carries the server-issued start instant.
type StartResponse struct {
	StartedAt time.Time
}

// StartMeeting posts the check-in and returns the authoritative start time.
func (c *Client) StartMeeting(ctx context.Context, req StartRequest) (StartResponse, error) {
	const op = "start_meeting"
	form := newForm()
	form.field("lead_id", req.LeadID)
	form.file("selfie", req.SelfieURI, "")
	form.coordinates(req.Latitude, req.Longitude)
	body, contentType, err := form.finish()
	if err != nil {
		return StartResponse{}, meeting.Wrap(meeting.ErrCaptureFailed, op, err)
	}

	var out struct {
		StartedAt string `json:"started_at"`
	}
	if err := c.do(ctx, op, pathStart, body, contentType, &out); err != nil {
		return StartResponse{}, err
	}
	startedAt, err := time.Parse(time.RFC3339Nano, out.StartedAt)
	if err != nil {
		return StartResponse{}, &Error{Sentinel: ErrBadResponse, Operation: op, Status: http.StatusOK, Err: err}
	}
	return StartResponse{StartedAt: startedAt}, nil
}

// Attachment is an optional file part such as the meeting recording.
type Attachment struct {
	URI      string
	MIMEType string
	FileName string
}

// EndRequest is the check-out submission.
type EndRequest struct {
	LeadID           string
	SelfieURI        string
	Latitude         float64
	Longitude        float64
	LeadStatusID     string
	Recording        *Attachment
	PlanInterest     string
	Notes            string
	NextFollowUpDate string
}

// EndMeeting posts the check-out. The multipart field order is fixed:
// lead_id, selfie, latitude, longitude, lead_status_id, recording, plan_interest,
// notes, next_follow_up_date.
func (c *Client) EndMeeting(ctx context.Context, req EndRequest) (string, error) {
	const op = "end_meeting"
	form := newForm()
	form.field("lead_id", req.LeadID)
	form.file("selfie", req.SelfieURI, "")
	form.coordinates(req.Latitude, req.Longitude)
	form.field("lead_status_id", req.LeadStatusID)
	if req.Recording != nil && req.Recording.URI != "" {
		form.namedFile("recording", req.Recording.URI, req.Recording.FileName, req.Recording.MIMEType)
	}
	if req.PlanInterest != "" {
		form.field("plan_interest", req.PlanInterest)
	}
	form.field("notes", req.Notes)
	if req.NextFollowUpDate != "" && req.LeadStatusID != c.wonStatusID {
		form.field("next_follow_up_date", req.NextFollowUpDate)
	}
	body, contentType, err := form.finish()
	if err != nil {
		return "", meeting.Wrap(meeting.ErrCaptureFailed, op, err)
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, op, pathEnd, body, contentType, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Status is the server view of a lead's meeting.
type Status struct {
	Open      bool
	StartedAt time.Time // zero when the server omitted it
}

// MeetingStatus asks whether the server still has an open meeting for leadID.
// A 404 is reported as a closed meeting.
func (c *Client) MeetingStatus(ctx context.Context, leadID string) (Status, error) {
	const op = "meeting_status"
	payload, err := json.Marshal(map[string]string{"lead_id": leadID})
	if err != nil {
		return Status{}, &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}

	var out struct {
		Exists    bool    `json:"exists"`
		StartedAt *string `json:"started_at"`
	}
	err = c.do(ctx, op, pathStatus, bytes.NewReader(payload), "application/json", &out)
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Status == http.StatusNotFound {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{Open: out.Exists}
	if out.StartedAt != nil && *out.StartedAt != "" {
		ts, perr := time.Parse(time.RFC3339Nano, *out.StartedAt)
		if perr != nil {
			return Status{}, &Error{Sentinel: ErrBadResponse, Operation: op, Status: http.StatusOK, Err: perr}
		}
		st.StartedAt = ts
	}
	return st, nil
}

func (c *Client) do(ctx context.Context, op, path string, body io.Reader, contentType string, out any) error {
	logger := xglog.WithComponentFromContext(ctx, "remote")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), body)
	if err != nil {
		return &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	requestID := xglog.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(op, metrics.StatusClass(0)).Inc()
		if errors.Is(err, auth.ErrNoCredential) {
			c.unauthorized(ctx)
			return &Error{Sentinel: ErrUnauthorized, Operation: op, Err: err}
		}
		logger.Warn().Err(err).
			Str(xglog.FieldOp, op).
			Str(xglog.FieldRequestID, requestID).
			Str(xglog.FieldEvent, "remote.transport_error").
			Msg("remote request failed")
		return &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RemoteRequestsTotal.WithLabelValues(op, metrics.StatusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Sentinel: ErrUnavailable, Operation: op, Status: resp.StatusCode, Err: err}
	}

	logger.Debug().
		Str(xglog.FieldOp, op).
		Str(xglog.FieldRequestID, requestID).
		Int("status", resp.StatusCode).
		Int64(xglog.FieldDurationMs, time.Since(start).Milliseconds()).
		Str(xglog.FieldEvent, "remote.response").
		Msg("remote response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sentinel := classifyStatus(resp.StatusCode)
		if sentinel == ErrUnauthorized {
			c.unauthorized(ctx)
		}
		return &Error{Sentinel: sentinel, Operation: op, Status: resp.StatusCode, Body: snippet(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) unauthorized(ctx context.Context) {
	logger := xglog.WithComponentFromContext(ctx, "remote")
	logger.Warn().
		Str(xglog.FieldEvent, "remote.unauthorized").
		Msg("remote api rejected credential")
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
