package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/logging"
)

// Endpoint paths.
const (
	PathHealth      = "/api/health"
	PathSearch      = "/api/agent/search"
	PathSymbol      = "/api/agent/symbol"
	PathChat        = "/api/agent/chat"
	PathFileChanged = "/api/file/changed"
)

const maxErrorBody = 4096

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds non-streaming requests. Zero means 30s.
	Timeout time.Duration
	// CacheSize is the number of symbol results kept. Zero disables caching.
	CacheSize int
	// Concurrency bounds parallel lookups in Symbols. Zero means 4.
	Concurrency int

	// HTTPClient overrides the transport. Its Timeout is ignored; streams
	// must outlive any fixed deadline.
	HTTPClient *http.Client
	Metrics    *Metrics
	Logger     *logging.Logger
}

// Client talks to one sidecar. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	timeout     time.Duration
	concurrency int
	cache       *lru.Cache[SymbolRequest, *SymbolResult]
	cacheGen    atomic.Uint64 // bumped on every invalidation
	group       singleflight.Group
	metrics     *Metrics
	logger      *logging.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError("sidecar URL must be absolute").
			WithField("base_url").
			WithValue(cfg.BaseURL)
	}

	c := &Client{
		baseURL:     u,
		http:        cfg.HTTPClient,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	} else {
		clone := *c.http
		clone.Timeout = 0
		c.http = &clone
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[SymbolRequest, *SymbolResult](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create symbol cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// BaseURL returns the sidecar address.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// send performs a request and returns the response when the status is 2xx.
// The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(path, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", errors.ErrCanceled, path, ctx.Err())
		}
		return nil, errors.NewSidecarError("request failed", fmt.Errorf("%w: %v", errors.ErrSidecarUnavailable, err)).
			WithEndpoint(path)
	}
	c.metrics.observe(path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		sidecarErr := errors.NewSidecarError("unexpected status", errors.ErrSidecarResponse).
			WithEndpoint(path).
			WithStatusCode(resp.StatusCode).
			WithBody(strings.TrimSpace(string(data)))
		if resp.StatusCode == http.StatusNotImplemented {
			// The sidecar does not serve this endpoint; asking again won't help.
			sidecarErr.WithRetryable(false)
		}
		return nil, sidecarErr
	}
	return resp, nil
}

// call performs a bounded JSON request and decodes the response into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.NewTimeoutError("sidecar request "+path, c.timeout)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewSidecarError("invalid response body", fmt.Errorf("%w: %v", errors.ErrSidecarResponse, err)).
			WithEndpoint(path).
			WithStatusCode(resp.StatusCode)
	}
	return nil
}

// HealthStatus is the sidecar's self-reported state.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	// Indexing is true while the sidecar is still building its index.
	Indexing bool `json:"indexing,omitempty"`
}

// OK reports whether the sidecar considers itself ready.
func (h HealthStatus) OK() bool {
	return h.Status == "" || strings.EqualFold(h.Status, "ok")
}

// Health queries the sidecar's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.call(ctx, http.MethodGet, PathHealth, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForHealthy polls Health every interval until the sidecar reports ready
// or ctx is done.
func (c *Client) WaitForHealthy(ctx context.Context, interval time.Duration) (*HealthStatus, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	started := time.Now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		status, err := c.Health(ctx)
		switch {
		case err == nil && status.OK():
			c.logger.Debug("sidecar healthy", "attempts", attempt, "version", status.Version)
			return status, nil
		case err == nil:
			lastErr = fmt.Errorf("%w: status %q", errors.ErrSidecarUnavailable, status.Status)
		case ctx.Err() != nil:
			// canceled mid-request; report the last real failure
		case !errors.IsRetryable(err):
			return nil, err
		default:
			lastErr = err
		}

		select {
		case <-ctx.Done():
			waitErr := ctx.Err()
			if errors.Is(waitErr, context.DeadlineExceeded) {
				waitErr = errors.Join(waitErr, errors.NewTimeoutError("waiting for sidecar", time.Since(started).Round(time.Millisecond)))
			}
			return nil, fmt.Errorf("sidecar at %s not healthy: %w", c.BaseURL(), errors.Join(waitErr, lastErr))
		case <-ticker.C:
		}
	}
}

type fileChangedRequest struct {
	Path string `json:"path"`
}

// NotifyFileChanged tells the sidecar to re-index path and drops cached
// symbols for that file.
func (c *Client) NotifyFileChanged(ctx context.Context, path string) error {
	if path == "" {
		return errors.NewValidationError("path is required").WithField("path")
	}
	// Invalidate even if the request fails: the file changed regardless.
	if n := c.invalidate(path); n > 0 {
		c.logger.Debug("symbol cache invalidated", "path", path, "entries", n)
	}
	return c.call(ctx, http.MethodPost, PathFileChanged, fileChangedRequest{Path: path}, nil)
}
