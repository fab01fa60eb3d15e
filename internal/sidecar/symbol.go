package sidecar

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/aide/internal/errors"
)

// SymbolRequest identifies a position in a workspace file. Line and Column
// are 1-based.
type SymbolRequest struct {
	FilePath string `json:"fs_file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (r SymbolRequest) key() string {
	return fmt.Sprintf("%s:%d:%d", r.FilePath, r.Line, r.Column)
}

func (r SymbolRequest) validate() error {
	switch {
	case r.FilePath == "":
		return errors.NewValidationError("file path is required").WithField("fs_file_path")
	case r.Line < 1:
		return errors.NewValidationError("line must be positive").WithField("line").WithValue(r.Line)
	case r.Column < 1:
		return errors.NewValidationError("column must be positive").WithField("column").WithValue(r.Column)
	}
	return nil
}

// Location is a range in a workspace file.
type Location struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// SymbolResult describes the symbol under a position.
type SymbolResult struct {
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	Definition    *Location  `json:"definition,omitempty"`
	References    []Location `json:"references,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
}

// Symbol looks up the symbol at a position. Results are cached until the
// file is reported changed, and concurrent lookups for the same position
// share one request. The shared request is not bound to any single caller's
// cancellation; each caller stops waiting when its own ctx is done. Callers
// must not modify the returned value.
func (c *Client) Symbol(ctx context.Context, req SymbolRequest) (*SymbolResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if res, ok := c.cache.Get(req); ok {
			c.metrics.cacheResult(true)
			return res, nil
		}
		c.metrics.cacheResult(false)
	}

	key := req.key()
	gen := c.cacheGen.Load()
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		var res SymbolResult
		if err := c.call(shared, http.MethodPost, PathSymbol, req, &res); err != nil {
			return nil, err
		}
		// A change reported while the request was in flight makes the
		// answer stale.
		if c.cache != nil && c.cacheGen.Load() == gen {
			c.cache.Add(req, &res)
		}
		return &res, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: symbol %s: %v", errors.ErrCanceled, key, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			c.logger.Debug("symbol lookup shared", "key", key)
		}
		return r.Val.(*SymbolResult), nil
	}
}

// Symbols looks up several positions with bounded concurrency. Results are
// returned in request order. The first failure cancels the remaining
// lookups and is returned.
func (c *Client) Symbols(ctx context.Context, reqs []SymbolRequest) ([]*SymbolResult, error) {
	type indexed struct {
		i   int
		res *SymbolResult
	}

	p := pool.NewWithResults[indexed]().
		WithContext(ctx).
		WithMaxGoroutines(c.concurrency).
		WithCancelOnError().
		WithFirstError()
	for i, req := range reqs {
		p.Go(func(ctx context.Context) (indexed, error) {
			res, err := c.Symbol(ctx, req)
			if err != nil {
				return indexed{}, fmt.Errorf("symbol %s: %w", req.key(), err)
			}
			return indexed{i: i, res: res}, nil
		})
	}

	done, err := p.Wait()
	if err != nil {
		return nil, err
	}
	out := make([]*SymbolResult, len(reqs))
	for _, r := range done {
		out[r.i] = r.res
	}
	return out, nil
}

// invalidate drops cached symbols whose file is path. Relative request paths
// match an absolute path that ends with them.
func (c *Client) invalidate(path string) int {
	c.cacheGen.Add(1)
	if c.cache == nil {
		return 0
	}
	removed := 0
	for _, req := range c.cache.Keys() {
		if samePath(req.FilePath, path) && c.cache.Remove(req) {
			removed++
		}
	}
	return removed
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	if filepath.IsAbs(a) == filepath.IsAbs(b) {
		return false
	}
	abs, rel := a, b
	if !filepath.IsAbs(a) {
		abs, rel = b, a
	}
	return len(abs) > len(rel) && abs[len(abs)-len(rel)-1] == filepath.Separator && abs[len(abs)-len(rel):] == rel
}
