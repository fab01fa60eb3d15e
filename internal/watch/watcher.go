// Package watch reports workspace file edits to the sidecar so its index
// stays current while an agent works.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors produce for one save.
const DefaultDebounce = 50 * time.Millisecond

// DefaultIgnore lists patterns skipped when no ignore list is configured.
var DefaultIgnore = []string{".git", "node_modules", "vendor", ".DS_Store", "*.swp", "*~"}

// Notifier receives debounced file changes. *sidecar.Client implements it.
type Notifier interface {
	NotifyFileChanged(ctx context.Context, path string) error
}

// Options configures a Watcher.
type Options struct {
	Root string
	// Ignore holds glob patterns. A pattern matches a file or directory by
	// base name ("*.log") or by slash-separated path relative to Root
	// ("build/**"). Ignored directories are not descended into.
	Ignore   []string
	Debounce time.Duration
	Notifier Notifier
	Bus      *event.Bus
	Logger   *logging.Logger
}

// Watcher watches a directory tree and reports changed files after a quiet
// period.
type Watcher struct {
	root     string
	ignore   []glob.Glob
	debounce time.Duration
	notifier Notifier
	bus      *event.Bus
	logger   *logging.Logger

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Watcher and registers every directory under opts.Root.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	patterns := opts.Ignore
	if len(patterns) == 0 {
		patterns = DefaultIgnore
	}
	ignore, err := compileIgnore(patterns)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		ignore:   ignore,
		debounce: opts.Debounce,
		notifier: opts.Notifier,
		bus:      opts.Bus,
		logger:   opts.Logger,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = logging.NopLogger()
	}

	if err := w.watchDirRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

func compileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = ""
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.ignore {
		if g.Match(base) || (rel != "" && g.Match(rel)) {
			return true
		}
	}
	return false
}

// watchDirRecursive adds root and its subdirectories. Unreadable entries are
// skipped; only a failure on root itself is returned.
func (w *Watcher) watchDirRecursive(root string) error {
	if err := w.watcher.Add(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Debug("failed to watch directory", "path", path, "error", err.Error())
			}
		}
		return nil
	})
}

// Start begins delivering changes in the background. Calls after the first
// do nothing.
func (w *Watcher) Start() {
	w.startOnce.Do(func() { go w.loop() })
}

// Stop ends watching and waits for in-flight notifications. Safe to call
// more than once, and without Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	w.startOnce.Do(func() { close(w.done) })
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.watchDirRecursive(ev.Name)
					continue
				}
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			slices.Sort(paths)
			for _, p := range paths {
				w.deliver(p)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) deliver(path string) {
	if w.bus != nil {
		w.bus.Publish(event.NewWorkspaceFileChangedEvent(path))
	}
	if w.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.notifier.NotifyFileChanged(ctx, path); err != nil {
		w.logger.Warn("failed to notify sidecar of file change", "path", path, "error", err.Error())
		return
	}
	w.logger.Debug("file change reported", "path", path)
}
