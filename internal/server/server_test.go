package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/blobstore"
	"github.com/hupe1980/kmeanslab/internal/config"
	"github.com/hupe1980/kmeanslab/resource"
	"github.com/hupe1980/kmeanslab/snapshot"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	repo := snapshot.NewRepository(blobstore.NewMemoryStore(), snapshot.Options{})
	opts = append([]Option{WithSnapshotRepository(repo)}, opts...)

	return New(config.Default().Server, opts...)
}

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))

	return resp.StatusCode, out
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()

	code, out := do(t, s, http.MethodPost, "/sessions", map[string]any{"seed": 7})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "success", out["status"])

	return out["id"].(string)
}

var fourPoints = [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	code, out := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", out["status"])
}

func TestServer_ManualWorkflow(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	base := "/sessions/" + id

	code, _ := do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	require.Equal(t, http.StatusOK, code)

	code, out := do(t, s, http.MethodPost, base+"/initialize", map[string]any{
		"init_method":       "manual",
		"n_clusters":        2,
		"initial_centroids": [][]float64{{0, 0}, {10, 0}},
	})
	require.Equal(t, http.StatusOK, code, out["message"])
	assert.Equal(t, "initialized", out["state"])

	code, out = do(t, s, http.MethodPost, base+"/step", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["converged"])
	assert.Equal(t, []any{0.0, 0.0, 1.0, 1.0}, out["labels"])
	assert.Equal(t, []any{[]any{0.0, 0.5}, []any{10.0, 0.5}}, out["centroids"])

	code, out = do(t, s, http.MethodPost, base+"/run", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["converged"])
	assert.Equal(t, false, out["cap_reached"])
	assert.Equal(t, 1.0, out["iterations"])

	code, out = do(t, s, http.MethodPost, base+"/predict", map[string]any{
		"points": [][]float64{{1, 1}, {9, 0}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{0.0, 1.0}, out["labels"])

	code, out = do(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "converged", out["state"])
	assert.Equal(t, []any{2.0, 2.0}, out["cluster_sizes"])
	assert.InDelta(t, 1.0, out["inertia"], 1e-12)
}

func TestServer_ExtremeFiniteData(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	code, _ := do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": [][]float64{{-1.7e308}, {1.7e308}}})
	require.Equal(t, http.StatusOK, code)

	code, out := do(t, s, http.MethodPost, base+"/initialize", map[string]any{
		"init_method":       "manual",
		"n_clusters":        2,
		"initial_centroids": [][]float64{{1.75e308}, {1e308}},
	})
	require.Equal(t, http.StatusOK, code, out["message"])

	code, out = do(t, s, http.MethodPost, base+"/step", nil)
	require.Equal(t, http.StatusOK, code, out["message"])
	assert.Equal(t, []any{0.0, 0.0}, out["labels"])

	code, out = do(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code, out["message"])
	assert.Nil(t, out["inertia"])
	assert.Len(t, out["cluster_sizes"], 2)
}

func TestServer_DefaultsMatchDemo(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	code, out := do(t, s, http.MethodPost, base+"/generate_data", nil)
	require.Equal(t, http.StatusOK, code)

	points := out["data_points"].([]any)
	require.Len(t, points, 300)
	for _, p := range points {
		xy := p.([]any)
		require.Len(t, xy, 2)
		for _, v := range xy {
			assert.GreaterOrEqual(t, v.(float64), -10.0)
			assert.Less(t, v.(float64), 10.0)
		}
	}

	code, out = do(t, s, http.MethodPost, base+"/initialize", map[string]any{"init_method": "kmeans++"})
	require.Equal(t, http.StatusOK, code, out["message"])
	assert.Len(t, out["centroids"], 4)

	code, out = do(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	cfg := out["config"].(map[string]any)
	assert.Equal(t, 4.0, cfg["k"])
	assert.Equal(t, 100.0, cfg["max_iter"])
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"unknown session", http.MethodPost, "/sessions/0b7e1f4c-4a35-4ad4-9c16-5d2e3fd2a9c1/step", nil, http.StatusNotFound},
		{"malformed id", http.MethodGet, "/sessions/nope", nil, http.StatusNotFound},
		{"step before initialize", http.MethodPost, base + "/step", nil, http.StatusConflict},
		{"run before initialize", http.MethodPost, base + "/run", nil, http.StatusConflict},
		{"predict before initialize", http.MethodPost, base + "/predict", map[string]any{"points": fourPoints}, http.StatusConflict},
		{"initialize without data", http.MethodPost, base + "/initialize", map[string]any{"init_method": "random"}, http.StatusBadRequest},
		{"unknown method", http.MethodPost, base + "/initialize", map[string]any{"init_method": "bogus"}, http.StatusBadRequest},
		{"bad generate range", http.MethodPost, base + "/generate_data", map[string]any{"low": 5, "high": 5}, http.StatusBadRequest},
		{"empty data", http.MethodPost, base + "/data", map[string]any{"data_points": [][]float64{}}, http.StatusBadRequest},
		{"ragged data", http.MethodPost, base + "/data", map[string]any{"data_points": [][]float64{{1, 2}, {3}}}, http.StatusBadRequest},
		{"missing snapshot", http.MethodPost, "/snapshots/missing/restore", nil, http.StatusNotFound},
		{"invalid snapshot name", http.MethodPost, base + "/snapshot", map[string]any{"name": "../x"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, "error", out["status"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/initialize", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_InitializeFailureKeepsSession(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	code, _ := do(t, s, http.MethodPost, base+"/initialize", map[string]any{"init_method": "farthest", "n_clusters": 2})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodPost, base+"/initialize", map[string]any{"init_method": "random", "n_clusters": 9})
	assert.Equal(t, http.StatusBadRequest, code)

	_, out := do(t, s, http.MethodGet, base, nil)
	assert.Equal(t, "initialized", out["state"])
	assert.Equal(t, 2.0, out["config"].(map[string]any)["k"])
}

func TestServer_ResetKeepsData(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	do(t, s, http.MethodPost, base+"/initialize", map[string]any{"n_clusters": 2})

	code, out := do(t, s, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4.0, out["data_points"])

	code, _ = do(t, s, http.MethodPost, base+"/step", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, s, http.MethodPost, base+"/initialize", map[string]any{"n_clusters": 2})
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_DeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)

	code, _ := do(t, s, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestServer_SnapshotRestore(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	do(t, s, http.MethodPost, base+"/initialize", map[string]any{
		"init_method":       "manual",
		"n_clusters":        2,
		"initial_centroids": [][]float64{{0, 0}, {10, 0}},
	})
	do(t, s, http.MethodPost, base+"/step", nil)

	code, _ := do(t, s, http.MethodPost, base+"/snapshot", map[string]any{"name": "demo"})
	require.Equal(t, http.StatusOK, code)

	code, out := do(t, s, http.MethodGet, "/snapshots", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"demo"}, out["snapshots"])

	code, out = do(t, s, http.MethodPost, "/snapshots/demo/restore", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "stepping", out["state"])

	restored := "/sessions/" + out["id"].(string)

	code, out = do(t, s, http.MethodPost, restored+"/step", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["converged"])
	assert.Equal(t, []any{[]any{0.0, 0.5}, []any{10.0, 0.5}}, out["centroids"])

	code, _ = do(t, s, http.MethodDelete, "/snapshots/demo", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_SnapshotsDisabled(t *testing.T) {
	s := New(config.Default().Server)

	code, out := do(t, s, http.MethodGet, "/snapshots", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", out["status"])
}

func TestServer_RateLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{RequestsPerSecond: 0.001, Burst: 1})
	s := newTestServer(t, WithResourceController(rc))

	createSession(t, s)

	code, _ := do(t, s, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	s := newTestServer(t, WithResourceController(rc))
	base := "/sessions/" + createSession(t, s)

	code, _ := do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodPost, base+"/generate_data", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestServer_RunQueue(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxConcurrentRuns: 1})
	s := newTestServer(t, WithResourceController(rc), WithQueueTimeout(200*time.Millisecond))
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	code, _ := do(t, s, http.MethodPost, base+"/initialize", map[string]any{"n_clusters": 2})
	require.Equal(t, http.StatusOK, code)

	require.True(t, rc.TryAcquireRun())
	go func() {
		time.Sleep(20 * time.Millisecond)
		rc.ReleaseRun()
	}()

	code, out := do(t, s, http.MethodPost, base+"/run", nil)
	require.Equal(t, http.StatusOK, code, out["message"])
	assert.Equal(t, true, out["converged"])
	assert.Equal(t, int64(0), rc.Stats().ActiveRuns)

	require.True(t, rc.TryAcquireRun())
	defer rc.ReleaseRun()

	code, out = do(t, s, http.MethodPost, base+"/run", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, out["message"], "too many concurrent runs")
}

func TestServer_DataLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := kmeanslab.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newTestServer(t, WithLogger(logger))
	base := "/sessions/" + createSession(t, s)

	code, _ := do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, buf.String(), `msg="data set"`)
	assert.Contains(t, buf.String(), "count=4 dimension=2")

	buf.Reset()

	code, _ = do(t, s, http.MethodPost, base+"/generate_data", map[string]any{"n_points": 10, "dim": 3})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, buf.String(), `msg="data generated"`)
	assert.Contains(t, buf.String(), "count=10 dimension=3")
}

func TestServer_Plot(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	do(t, s, http.MethodPost, base+"/initialize", map[string]any{"n_clusters": 2})
	do(t, s, http.MethodPost, base+"/step", nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, base+"/plot", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Centroids")
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	base := "/sessions/" + createSession(t, s)

	do(t, s, http.MethodPost, base+"/data", map[string]any{"data_points": fourPoints})
	do(t, s, http.MethodPost, base+"/initialize", map[string]any{"n_clusters": 2})
	do(t, s, http.MethodPost, base+"/run", nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "kmeanslab_runs_total")
	assert.Contains(t, string(body), "kmeanslab_sessions 1")
}
