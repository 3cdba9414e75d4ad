package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/fieldvisit/internal/config"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/model"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/kv"
	"github.com/ManuGH/fieldvisit/internal/recording"
	"github.com/ManuGH/fieldvisit/internal/testutil"
)

// crmServer is a minimal stand-in for the remote meeting API.
type crmServer struct {
	mu        sync.Mutex
	startedAt time.Time
	open      bool
	endFields map[string]string
	endFiles  []string
	auth      []string
}

func (s *crmServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/meetings/start", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.open = true
		started := s.startedAt
		s.mu.Unlock()
		if _, _, err := r.FormFile("selfie"); err != nil {
			http.Error(w, "selfie required", http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"started_at": started.Format(time.RFC3339)})
	})
	mux.HandleFunc("/meetings/end", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.endFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			s.endFields[k] = v[0]
		}
		for k := range r.MultipartForm.File {
			s.endFiles = append(s.endFiles, k)
		}
		s.open = false
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Meeting ended"})
	})
	mux.HandleFunc("/meetings/status", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"exists":     s.open,
			"started_at": s.startedAt.Format(time.RFC3339),
		})
	})
	return mux
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.API.BaseURL = baseURL
	cfg.API.Token = "field-token"
	cfg.Store.Backend = kv.BackendMemory
	cfg.Recording.Engine = EngineNone
	cfg.Recording.Dir = t.TempDir()
	cfg.Notifications = "none"
	cfg.Server.RateLimit = 0
	return cfg
}

func postForm(t *testing.T, h http.Handler, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("selfie", "selfie.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_MeetingRoundTripThroughAPI(t *testing.T) {
	clock := testutil.NewManualClock(time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC))
	crm := &crmServer{startedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	srv := httptest.NewServer(crm.handler())
	defer srv.Close()

	c, err := Build(context.Background(), testConfig(t, srv.URL), BuildOptions{Clock: clock})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()
	h := c.API.Router()

	rec := postForm(t, h, "/api/v1/meeting/start", map[string]string{
		"lead_id": "L-100", "latitude": "48.1", "longitude": "11.5",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	crm.mu.Lock()
	assert.Equal(t, []string{"Bearer field-token"}, crm.auth)
	crm.mu.Unlock()
	assert.Equal(t, recording.StateRecording, c.Recorder.Status().State)

	sess, ok, err := c.Store.LoadSession(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L-100", sess.LeadID)

	clock.Advance(90 * time.Second)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/meeting/draft", bytes.NewBufferString(`{"status":"won","notes":"signed"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "00:01:30", snap["timer"])

	rec = postForm(t, h, "/api/v1/meeting/end", map[string]string{"latitude": "48.1", "longitude": "11.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	crm.mu.Lock()
	assert.Equal(t, "L-100", crm.endFields["lead_id"])
	assert.Equal(t, "won", crm.endFields["lead_status_id"])
	assert.Equal(t, "signed", crm.endFields["notes"])
	assert.NotContains(t, crm.endFields, "next_follow_up_date")
	assert.Equal(t, []string{"selfie"}, crm.endFiles, "engine none records no audio to upload")
	crm.mu.Unlock()

	_, ok, err = c.Store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Store.LoadDraft(context.Background(), "L-100")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_UploadsRecordingFromEngine(t *testing.T) {
	crm := &crmServer{startedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	srv := httptest.NewServer(crm.handler())
	defer srv.Close()

	c, err := Build(context.Background(), testConfig(t, srv.URL), BuildOptions{Engine: &recording.MemoryEngine{Dir: t.TempDir()}})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()
	h := c.API.Router()

	rec := postForm(t, h, "/api/v1/meeting/start", map[string]string{"lead_id": "L-5", "latitude": "1", "longitude": "2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = postForm(t, h, "/api/v1/meeting/end", map[string]string{"lead_status_id": "won", "latitude": "1", "longitude": "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	crm.mu.Lock()
	defer crm.mu.Unlock()
	assert.ElementsMatch(t, []string{"selfie", "recording"}, crm.endFiles)
}

func TestBuild_AbandonedReconcileRequestKeepsMeeting(t *testing.T) {
	crm := &crmServer{startedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	srv := httptest.NewServer(crm.handler())
	defer srv.Close()

	clock := testutil.NewManualClock(time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC))
	c, err := Build(context.Background(), testConfig(t, srv.URL), BuildOptions{Clock: clock})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()
	h := c.API.Router()

	rec := postForm(t, h, "/api/v1/meeting/start", map[string]string{"lead_id": "L-3", "latitude": "1", "longitude": "2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The UI navigates away before the focus check answers.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/meeting/reconcile", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, recording.StateRecording, c.Recorder.Status().State)
	assert.True(t, c.Meetings.Snapshot().Active())
	_, ok, err := c.Store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_OfflineStartIsNetworkError(t *testing.T) {
	c, err := Build(context.Background(), testConfig(t, ""), BuildOptions{})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	rec := postForm(t, c.API.Router(), "/api/v1/meeting/start", map[string]string{
		"lead_id": "L-1", "latitude": "1", "longitude": "2",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Nil(t, c.Remote)
}

func TestBuild_ReadinessReportsOfflineAsDegraded(t *testing.T) {
	c, err := Build(context.Background(), testConfig(t, ""), BuildOptions{})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	rec := httptest.NewRecorder()
	c.API.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Ready  bool                      `json:"ready"`
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Checks["store"]["status"])
	assert.Equal(t, "degraded", body.Checks["remote"]["status"])
	assert.NotContains(t, body.Checks, "recording_engine")
}

func TestBuild_UnknownEngine(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Recording.Engine = "tape"
	_, err := Build(context.Background(), cfg, BuildOptions{})
	assert.Error(t, err)
}

func TestApp_LaunchReconcileAdoptsOpenMeeting(t *testing.T) {
	started := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	clock := testutil.NewManualClock(started.Add(time.Hour))
	crm := &crmServer{startedAt: started, open: true}
	srv := httptest.NewServer(crm.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	c, err := Build(context.Background(), testConfig(t, srv.URL), BuildOptions{Clock: clock, KV: store})
	require.NoError(t, err)
	require.NoError(t, c.Store.SaveSession(context.Background(), model.Session{LeadID: "L-9", StartedAt: started, Active: true}))

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{Logger: c.logger, APIHandler: c.API.Router()})
	require.NoError(t, err)
	app := NewApp(c.logger, mgr, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	snap := c.Meetings.Snapshot()
	assert.True(t, snap.Active())
	assert.Equal(t, "L-9", snap.LeadID)
	assert.Equal(t, int64(3600), snap.ElapsedSeconds)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	// Shutdown keeps the persisted meeting for the next launch.
	sess, ok, err := c.Store.LoadSession(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L-9", sess.LeadID)
}

func TestApp_LaunchWithoutCredentialClears(t *testing.T) {
	store := kv.NewMemoryStore()
	cfg := testConfig(t, "")
	cfg.API.Token = ""
	c, err := Build(context.Background(), cfg, BuildOptions{KV: store})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()
	require.NoError(t, c.Store.SaveSession(context.Background(), model.Session{LeadID: "L-1", StartedAt: time.Now(), Active: true}))

	out := c.Meetings.Restore(context.Background())
	assert.Equal(t, reconcile.StateLoggedOut, out.State)
	_, ok, err := c.Store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
