package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/aide/internal/errors"
)

func score(f float64) *float64 { return &f }

func paths(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}

func TestSortByRelevance(t *testing.T) {
	tests := []struct {
		name  string
		input []SearchResult
		want  []string
	}{
		{
			name: "descending scores",
			input: []SearchResult{
				{Path: "low", Score: score(0.1)},
				{Path: "high", Score: score(0.9)},
				{Path: "mid", Score: score(0.5)},
			},
			want: []string{"high", "mid", "low"},
		},
		{
			name: "nil scores last in original order",
			input: []SearchResult{
				{Path: "n1"},
				{Path: "a", Score: score(0.2)},
				{Path: "n2"},
				{Path: "b", Score: score(0.7)},
				{Path: "n3"},
			},
			want: []string{"b", "a", "n1", "n2", "n3"},
		},
		{
			name: "ties keep original order",
			input: []SearchResult{
				{Path: "first", Score: score(0.5)},
				{Path: "second", Score: score(0.5)},
				{Path: "third", Score: score(0.5)},
			},
			want: []string{"first", "second", "third"},
		},
		{
			name: "zero is a score",
			input: []SearchResult{
				{Path: "none"},
				{Path: "zero", Score: score(0)},
				{Path: "negative", Score: score(-1)},
			},
			want: []string{"zero", "negative", "none"},
		},
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortByRelevance(tt.input)
			assert.Equal(t, tt.want, paths(tt.input))
		})
	}
}

func TestClient_Search(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathSearch, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "parse config", req.Query)
		assert.Equal(t, 5, req.Limit)

		_, _ = w.Write([]byte(`{"results":[
			{"path":"b.go","start_line":1,"end_line":3,"score":null},
			{"path":"a.go","start_line":10,"end_line":20,"score":0.8},
			{"path":"c.go","start_line":5,"end_line":6,"score":0.95}
		]}`))
	}))

	results, err := c.Search(context.Background(), SearchRequest{Query: "parse config", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.go", "a.go", "b.go"}, paths(results))
	assert.Nil(t, results[2].Score)
	assert.Equal(t, 10, results[1].StartLine)
}

func TestClient_Search_EmptyQuery(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.Search(context.Background(), SearchRequest{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
