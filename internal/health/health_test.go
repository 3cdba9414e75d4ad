package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/fieldvisit/internal/kv"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_VerboseAggregates(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []Status
		wantReady bool
		want      Status
	}{
		{name: "no checkers", wantReady: true, want: StatusHealthy},
		{name: "degraded is ready", statuses: []Status{StatusHealthy, StatusDegraded}, wantReady: true, want: StatusDegraded},
		{name: "unhealthy is not ready", statuses: []Status{StatusDegraded, StatusUnhealthy}, wantReady: false, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("")
			for i, s := range tt.statuses {
				m.RegisterChecker(&mockChecker{name: string(rune('a' + i)), status: s})
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestServeReady_StatusCodes(t *testing.T) {
	m := NewManager("")
	m.RegisterChecker(&mockChecker{name: "store", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["store"].Status)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager("")
	m.timeout = 0
	m.RegisterChecker(FuncChecker{CheckName: "slow", Fn: func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline")
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestStoreChecker(t *testing.T) {
	store := kv.NewMemoryStore()
	res := StoreChecker{Store: store}.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	_, ok, err := store.Get(context.Background(), probeKey)
	require.NoError(t, err)
	assert.False(t, ok, "probe key must be removed")

	res = StoreChecker{Store: failingStore{Store: store}}.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "disk full")

	assert.Equal(t, StatusUnhealthy, StoreChecker{}.Check(context.Background()).Status)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, DirChecker{CheckName: "data", Path: dir}.Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Equal(t, StatusUnhealthy, DirChecker{CheckName: "data", Path: file}.Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, DirChecker{CheckName: "data", Path: filepath.Join(dir, "missing")}.Check(context.Background()).Status)
}

func TestBinaryAndRemoteCheckers(t *testing.T) {
	res := BinaryChecker{Bin: "definitely-not-a-real-binary-xyz"}.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)

	assert.Equal(t, StatusDegraded, RemoteChecker{}.Check(context.Background()).Status)
	assert.Equal(t, StatusHealthy, RemoteChecker{BaseURL: "https://crm.example.com"}.Check(context.Background()).Status)
}
