package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/aide/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*Config)) (*Client, *prometheus.Registry) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	cfg := Config{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		CacheSize:  8,
		HTTPClient: server.Client(),
		Metrics:    NewMetrics(reg),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c, reg
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:42424", "/api"} {
		_, err := NewClient(Config{BaseURL: raw})
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "url %q", raw)
	}
}

func TestClient_Health(t *testing.T) {
	c, reg := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathHealth, r.URL.Path)
		writeJSON(t, w, HealthStatus{Status: "ok", Version: "1.2.3"})
	}))

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.OK())
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, 1.0, counterValue(t, reg, "aide_sidecar_requests_total", map[string]string{"endpoint": PathHealth, "code": "200"}))
}

func TestClient_WaitForHealthy(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			writeJSON(t, w, HealthStatus{Status: "starting", Indexing: true})
		default:
			writeJSON(t, w, HealthStatus{Status: "ok"})
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := c.WaitForHealthy(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, status.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_WaitForHealthy_GivesUp(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitForHealthy(ctx, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.ErrorIs(t, err, errors.ErrSidecarResponse)
}

func TestClient_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.Health(context.Background())
	var timeoutErr *errors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.True(t, errors.IsRetryable(err))
	assert.Contains(t, err.Error(), PathHealth)
}

func TestClient_NotImplementedIsNotRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))

	_, err := c.Search(context.Background(), SearchRequest{Query: "foo"})
	var sidecarErr *errors.SidecarError
	require.ErrorAs(t, err, &sidecarErr)
	assert.Equal(t, http.StatusNotImplemented, sidecarErr.StatusCode)
	assert.False(t, errors.IsRetryable(err))
}

func TestClient_WaitForHealthy_NonRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	_, err := c.WaitForHealthy(context.Background(), 10*time.Millisecond)
	var sidecarErr *errors.SidecarError
	require.ErrorAs(t, err, &sidecarErr)
	assert.Equal(t, http.StatusNotFound, sidecarErr.StatusCode)
}

func TestClient_ErrorStatus(t *testing.T) {
	c, reg := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not ready", http.StatusServiceUnavailable)
	}))

	_, err := c.Search(context.Background(), SearchRequest{Query: "foo"})
	var sidecarErr *errors.SidecarError
	require.ErrorAs(t, err, &sidecarErr)
	assert.Equal(t, PathSearch, sidecarErr.Endpoint)
	assert.Equal(t, http.StatusServiceUnavailable, sidecarErr.StatusCode)
	assert.Equal(t, "index not ready", sidecarErr.Body)
	assert.True(t, errors.IsRetryable(err))
	assert.ErrorIs(t, err, errors.ErrSidecarResponse)
	assert.Equal(t, 1.0, counterValue(t, reg, "aide_sidecar_requests_total", map[string]string{"endpoint": PathSearch, "code": "503"}))
}

func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	assert.ErrorIs(t, err, errors.ErrSidecarUnavailable)
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_InvalidBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, errors.ErrSidecarResponse)
}

func TestClient_NotifyFileChanged(t *testing.T) {
	got := make(chan string, 1)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathFileChanged, r.URL.Path)
		var body fileChangedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got <- body.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.NotifyFileChanged(context.Background(), "/repo/main.go"))
	assert.Equal(t, "/repo/main.go", <-got)

	assert.ErrorIs(t, c.NotifyFileChanged(context.Background(), ""), errors.ErrInvalidInput)
}

func TestClient_BaseURLWithPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/prefix/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, HealthStatus{Status: "ok"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL + "/prefix/"})
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.NoError(t, err)
}
