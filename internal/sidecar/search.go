package sidecar

import (
	"cmp"
	"context"
	"net/http"
	"slices"

	"github.com/Iron-Ham/aide/internal/errors"
)

// SearchRequest is a code search query.
type SearchRequest struct {
	Query string `json:"query"`
	// Limit caps the number of results. Zero lets the sidecar decide.
	Limit int `json:"limit,omitempty"`
	// Paths restricts the search to these workspace-relative prefixes.
	Paths []string `json:"paths,omitempty"`
}

// SearchResult is one search hit. Score is nil when the sidecar could not
// rank the hit.
type SearchResult struct {
	Path      string   `json:"path"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Snippet   string   `json:"snippet,omitempty"`
	Score     *float64 `json:"score"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a code search and returns hits ordered by SortByRelevance.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if req.Query == "" {
		return nil, errors.NewValidationError("search query is required").WithField("query")
	}
	var resp searchResponse
	if err := c.call(ctx, http.MethodPost, PathSearch, req, &resp); err != nil {
		return nil, err
	}
	SortByRelevance(resp.Results)
	c.logger.Debug("search completed", "query", req.Query, "results", len(resp.Results))
	return resp.Results, nil
}

// SortByRelevance orders results by descending score. Results without a
// score go last. Equal scores, and unscored results among themselves, keep
// their original order.
func SortByRelevance(results []SearchResult) {
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return compareScores(a.Score, b.Score)
	})
}

func compareScores(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}
