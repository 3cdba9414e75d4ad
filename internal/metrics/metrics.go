// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for the fieldvisit daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// No lead IDs or request IDs in labels.

var (
	// MeetingStartsTotal counts start attempts by outcome.
	MeetingStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_meeting_starts_total",
		Help: "Total number of meeting start attempts, by outcome.",
	}, []string{"outcome"})

	// MeetingEndsTotal counts end attempts by outcome.
	MeetingEndsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_meeting_ends_total",
		Help: "Total number of meeting end attempts, by outcome.",
	}, []string{"outcome"})

	// MeetingActive is 1 while a meeting is in progress.
	MeetingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldvisit_meeting_active",
		Help: "Whether a meeting is currently active (0/1).",
	})

	// ReconcileOutcomesTotal counts reconciliation runs by terminal outcome.
	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_reconcile_outcomes_total",
		Help: "Total number of reconciliation runs, by outcome.",
	}, []string{"outcome"})

	// RecordingStartsTotal counts recorder starts by result.
	RecordingStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_recording_starts_total",
		Help: "Total number of recording start attempts, by result.",
	}, []string{"result"})

	// RecordingFaultsTotal counts swallowed engine faults by operation.
	RecordingFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_recording_faults_total",
		Help: "Total number of recording engine faults, by operation.",
	}, []string{"op"})

	// StoreOpsTotal counts key/value store operations.
	StoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_store_ops_total",
		Help: "Total number of durable store operations, by backend, op and result.",
	}, []string{"backend", "op", "result"})

	// StoreOpDuration observes store operation latency.
	StoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldvisit_store_op_duration_seconds",
		Help:    "Durable store operation latency, by backend and op.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"backend", "op"})

	// RemoteRequestsTotal counts remote API calls by endpoint and status class.
	RemoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvisit_remote_requests_total",
		Help: "Total number of remote API requests, by endpoint and status class.",
	}, []string{"endpoint", "status"})
)

// SetMeetingActive updates the active gauge.
func SetMeetingActive(active bool) {
	if active {
		MeetingActive.Set(1)
		return
	}
	MeetingActive.Set(0)
}

// GetMeetingActive returns the current value of the gauge (for testing).
func GetMeetingActive() float64 {
	var m dto.Metric
	if err := MeetingActive.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// CounterValue reads a labelled counter (for testing and the status command).
func CounterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// StatusClass buckets an HTTP status code into "2xx", "4xx", ... or "error" for transport failures.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
