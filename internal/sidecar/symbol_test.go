package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/aide/internal/errors"
)

func symbolHandler(t *testing.T, calls *atomic.Int32, delay time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req SymbolRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.FilePath == "missing.go" {
			http.Error(w, "no such file", http.StatusNotFound)
			return
		}
		time.Sleep(delay)
		writeJSON(t, w, SymbolResult{
			Name:       req.FilePath,
			Kind:       "function",
			Definition: &Location{Path: req.FilePath, StartLine: req.Line, EndLine: req.Line + 2},
		})
	})
}

func TestClient_Symbol_Cached(t *testing.T) {
	var calls atomic.Int32
	c, reg := newTestClient(t, symbolHandler(t, &calls, 0))

	req := SymbolRequest{FilePath: "main.go", Line: 3, Column: 7}
	first, err := c.Symbol(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Symbol(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, counterValue(t, reg, "aide_sidecar_symbol_cache_total", map[string]string{"result": "hit"}))
}

func TestClient_Symbol_InvalidatedByFileChange(t *testing.T) {
	var version atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(PathSymbol, func(w http.ResponseWriter, r *http.Request) {
		var req SymbolRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		name := "oldName"
		if version.Load() > 0 {
			name = "newName"
		}
		writeJSON(t, w, SymbolResult{Name: name, Kind: "function"})
	})
	mux.HandleFunc(PathFileChanged, func(w http.ResponseWriter, r *http.Request) {
		version.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	changed := SymbolRequest{FilePath: "pkg/main.go", Line: 3, Column: 7}
	other := SymbolRequest{FilePath: "pkg/util.go", Line: 1, Column: 1}
	before, err := c.Symbol(ctx, changed)
	require.NoError(t, err)
	require.Equal(t, "oldName", before.Name)
	_, err = c.Symbol(ctx, other)
	require.NoError(t, err)

	require.NoError(t, c.NotifyFileChanged(ctx, "/work/repo/pkg/main.go"))

	after, err := c.Symbol(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "newName", after.Name)

	untouched, err := c.Symbol(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "oldName", untouched.Name, "other files stay cached")
}

func TestSamePath(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"main.go", "main.go", true},
		{"./pkg/main.go", "pkg/main.go", true},
		{"pkg/main.go", "/repo/pkg/main.go", true},
		{"/repo/pkg/main.go", "main.go", true},
		{"ain.go", "/repo/main.go", false},
		{"/a/main.go", "/b/main.go", false},
		{"pkg/main.go", "pkg/util.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samePath(tt.a, tt.b), "samePath(%q, %q)", tt.a, tt.b)
	}
}

func TestClient_Symbol_NoCache(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, symbolHandler(t, &calls, 0), func(cfg *Config) { cfg.CacheSize = 0 })

	req := SymbolRequest{FilePath: "main.go", Line: 1, Column: 1}
	for range 3 {
		_, err := c.Symbol(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Symbol_SharedInFlight(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, symbolHandler(t, &calls, 100*time.Millisecond), func(cfg *Config) { cfg.CacheSize = 0 })

	req := SymbolRequest{FilePath: "main.go", Line: 1, Column: 1}
	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, err := c.Symbol(context.Background(), req)
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	assert.Less(t, calls.Load(), int32(5))
}

func TestClient_Symbol_SharedSurvivesCallerCancel(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, symbolHandler(t, &calls, 150*time.Millisecond), func(cfg *Config) { cfg.CacheSize = 0 })
	req := SymbolRequest{FilePath: "main.go", Line: 1, Column: 1}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Symbol(firstCtx, req)
		firstErr <- err
	}()
	time.Sleep(30 * time.Millisecond)

	secondDone := make(chan *SymbolResult, 1)
	go func() {
		res, err := c.Symbol(context.Background(), req)
		assert.NoError(t, err)
		secondDone <- res
	}()
	time.Sleep(30 * time.Millisecond)
	cancelFirst()

	assert.ErrorIs(t, <-firstErr, errors.ErrCanceled)
	select {
	case res := <-secondDone:
		require.NotNil(t, res)
		assert.Equal(t, "main.go", res.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never received the shared result")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Symbol_Validation(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	for _, req := range []SymbolRequest{
		{Line: 1, Column: 1},
		{FilePath: "a.go", Line: 0, Column: 1},
		{FilePath: "a.go", Line: 1, Column: 0},
	} {
		_, err := c.Symbol(context.Background(), req)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "%+v", req)
	}
}

func TestClient_Symbols(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, symbolHandler(t, &calls, 10*time.Millisecond), func(cfg *Config) { cfg.Concurrency = 2 })

	reqs := []SymbolRequest{
		{FilePath: "a.go", Line: 1, Column: 1},
		{FilePath: "b.go", Line: 2, Column: 1},
		{FilePath: "c.go", Line: 3, Column: 1},
		{FilePath: "d.go", Line: 4, Column: 1},
	}
	results, err := c.Symbols(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, reqs[i].FilePath, res.Name)
		assert.Equal(t, reqs[i].Line, res.Definition.StartLine)
	}
}

func TestClient_Symbols_Error(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, symbolHandler(t, &calls, 0))

	_, err := c.Symbols(context.Background(), []SymbolRequest{
		{FilePath: "a.go", Line: 1, Column: 1},
		{FilePath: "missing.go", Line: 1, Column: 1},
	})
	var sidecarErr *errors.SidecarError
	require.ErrorAs(t, err, &sidecarErr)
	assert.Equal(t, http.StatusNotFound, sidecarErr.StatusCode)
	assert.Contains(t, err.Error(), "missing.go:1:1")
}
