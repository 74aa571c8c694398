package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/immiframe/internal/api/handler"
	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/metrics"
	"github.com/timmy/immiframe/internal/service"
)

type fakeFrame struct {
	status   service.Status
	manifest *domain.GenerationManifest
	err      error
}

func (f *fakeFrame) Status() service.Status                       { return f.status }
func (f *fakeFrame) Current() (*domain.GenerationManifest, error) { return f.manifest, f.err }

type fakeTrigger struct{ err error }

func (f *fakeTrigger) Trigger() error { return f.err }

type fakeHistory struct {
	runs      []domain.RunRecord
	lastLimit int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]domain.RunRecord, error) {
	f.lastLimit = limit
	return f.runs, nil
}

func (f *fakeHistory) CountByStatus(context.Context) (map[domain.RunStatus]int64, error) {
	return map[domain.RunStatus]int64{domain.RunStatusSuccess: int64(len(f.runs))}, nil
}

type prefixURLs string

func (p prefixURLs) URL(name string) string { return string(p) + name }

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Frame == nil {
		deps.Frame = &fakeFrame{status: service.Status{State: service.StateIdle}}
	}
	return SetupRouter(deps, config.ServerConfig{Mode: "test"})
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	frame := &fakeFrame{status: service.Status{
		State:   service.StateAwaitingTrigger,
		LastRun: &domain.RunOutcome{Status: domain.RunStatusPartial},
	}}
	w := do(newTestRouter(t, Deps{Frame: frame}), http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "awaiting_trigger", body["state"])
	assert.Equal(t, "partial", body["last_run_status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStatus(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	frame := &fakeFrame{status: service.Status{
		State:    service.StateAwaitingTrigger,
		Schedule: service.ScheduleState{Expression: "0 * * * *", NextFire: start.Add(time.Hour)},
		LastRun: &domain.RunOutcome{
			RunID: "r1", Trigger: "schedule", Status: domain.RunStatusFailed,
			Theme: domain.Theme{Text: "family", Source: "default"},
			Err:   domain.ErrNoAssets, StartedAt: start, FinishedAt: start.Add(2 * time.Second),
		},
	}}
	history := &fakeHistory{runs: []domain.RunRecord{{ID: "r1"}}}
	w := do(newTestRouter(t, Deps{Frame: frame, History: history}), http.MethodGet, "/api/v1/status")

	require.Equal(t, http.StatusOK, w.Code)
	var body handler.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, service.StateAwaitingTrigger, body.State)
	assert.Equal(t, "0 * * * *", body.Schedule.Expression)
	require.NotNil(t, body.LastRun)
	assert.Equal(t, "no assets fetched", body.LastRun.Error)
	assert.Equal(t, int64(2000), body.LastRun.DurationMs)
	assert.Equal(t, int64(1), body.Totals[domain.RunStatusSuccess])
}

func TestListRuns(t *testing.T) {
	history := &fakeHistory{runs: []domain.RunRecord{{ID: "b"}, {ID: "a"}}}
	router := newTestRouter(t, Deps{History: history})

	w := do(router, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, history.lastLimit)
	var body struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 2)

	w = do(router, http.MethodGet, "/api/v1/runs?limit=1000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, history.lastLimit)

	w = do(router, http.MethodGet, "/api/v1/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name    string
		trigger handler.Triggerer
		want    int
	}{
		{"accepted", &fakeTrigger{}, http.StatusAccepted},
		{"in progress", &fakeTrigger{err: domain.ErrRunInProgress}, http.StatusConflict},
		{"other error", &fakeTrigger{err: errors.New("boom")}, http.StatusInternalServerError},
		{"no scheduler", nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestRouter(t, Deps{Trigger: tt.trigger}), http.MethodPost, "/api/v1/runs")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGeneration(t *testing.T) {
	w := do(newTestRouter(t, Deps{}), http.MethodGet, "/api/v1/generation")
	assert.Equal(t, http.StatusNotFound, w.Code)

	frame := &fakeFrame{manifest: &domain.GenerationManifest{
		ID:    "g1",
		Theme: domain.Theme{Text: "beach", Source: "weekly"},
		Files: []domain.ManifestEntry{{Ordinal: 1, AssetID: "a", File: "photo_1.jpg"}},
	}}
	w = do(newTestRouter(t, Deps{Frame: frame, URLs: prefixURLs("https://cdn.example/frame/")}), http.MethodGet, "/api/v1/generation")
	require.Equal(t, http.StatusOK, w.Code)

	var body handler.GenerationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "g1", body.ID)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "photo_1.jpg", body.Files[0].File)
	assert.Equal(t, "https://cdn.example/frame/photo_1.jpg", body.Files[0].URL)
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	router := newTestRouter(t, Deps{Metrics: m})

	do(router, http.MethodGet, "/health")
	w := do(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `immiframe_http_requests_total{code="200",method="GET",route="/health"} 1`))

	w = do(newTestRouter(t, Deps{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	router := SetupRouter(Deps{Frame: &fakeFrame{}}, config.ServerConfig{
		Mode: "test",
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://ha.local:8123"}},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://ha.local:8123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://ha.local:8123", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
