package terminal

import (
	"context"
	"sync"
)

// fakeRunner emits scripted lines and exit codes per command. Commands listed
// in block wait until release is closed or the context is canceled.
type fakeRunner struct {
	mu      sync.Mutex
	lines   map[string][]string
	codes   map[string]int
	errs    map[string]error
	block   map[string]bool
	release chan struct{}
	ran     []Request
	closed  bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		lines:   make(map[string][]string),
		codes:   make(map[string]int),
		errs:    make(map[string]error),
		block:   make(map[string]bool),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, req Request, onLine LineFunc) (int, error) {
	f.mu.Lock()
	f.ran = append(f.ran, req)
	lines := f.lines[req.Command]
	code := f.codes[req.Command]
	err := f.errs[req.Command]
	block := f.block[req.Command]
	f.mu.Unlock()

	for _, l := range lines {
		onLine(l)
	}
	if block {
		select {
		case <-f.release:
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	return code, err
}

func (f *fakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ran))
	for i, r := range f.ran {
		out[i] = r.Command
	}
	return out
}
