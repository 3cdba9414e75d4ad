// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kv

import (
	"context"
	"time"

	"github.com/ManuGH/fieldvisit/internal/metrics"
)

// Instrumented wraps a Store with Prometheus counters and latency histograms.
type Instrumented struct {
	Store
	backend string
}

// Instrument wraps s, labelling its metrics with backend.
func Instrument(s Store, backend string) *Instrumented {
	if backend == "" {
		backend = BackendSqlite
	}
	return &Instrumented{Store: s, backend: backend}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(i.backend, op, result).Inc()
	metrics.StoreOpDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.Store.Get(ctx, key)
	i.observe("get", start, err)
	return v, ok, err
}

func (i *Instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, value)
	i.observe("set", start, err)
	return err
}

func (i *Instrumented) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Remove(ctx, key)
	i.observe("remove", start, err)
	return err
}
