// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier_ShowDismiss(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))
	ctx := context.Background()

	require.NoError(t, n.Show(ctx, Notice{ID: RecordingNoticeID, Title: "Recording", Body: "in progress", Sticky: true}))
	assert.Equal(t, []string{RecordingNoticeID}, n.Active())
	assert.Contains(t, buf.String(), `"event":"notice.shown"`)

	require.NoError(t, n.Dismiss(ctx, RecordingNoticeID))
	assert.Empty(t, n.Active())
	assert.Contains(t, buf.String(), `"event":"notice.dismissed"`)

	// Unknown ids are fine.
	require.NoError(t, n.Dismiss(ctx, "nope"))
	require.Error(t, n.Show(ctx, Notice{}))
}

func TestNew(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New(KindNone)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, n)

	_, err = New("toast")
	require.Error(t, err)
}
