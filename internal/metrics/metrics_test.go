// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetMeetingActive(t *testing.T) {
	SetMeetingActive(true)
	assert.Equal(t, 1.0, GetMeetingActive())
	SetMeetingActive(false)
	assert.Equal(t, 0.0, GetMeetingActive())
}

func TestCounterValue(t *testing.T) {
	before := CounterValue(ReconcileOutcomesTotal, "adopted")
	ReconcileOutcomesTotal.WithLabelValues("adopted").Inc()
	assert.Equal(t, before+1, CounterValue(ReconcileOutcomesTotal, "adopted"))

	// Wrong label arity reads as zero instead of panicking.
	assert.Equal(t, 0.0, CounterValue(ReconcileOutcomesTotal, "a", "b"))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 200: "2xx", 204: "2xx", 302: "3xx", 401: "4xx", 503: "5xx"}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code), "code %d", code)
	}
}
