package terminal

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/logging"
)

// Options configures a Manager.
type Options struct {
	// Runner executes commands. Required.
	Runner Runner
	// Bus receives terminal events. Optional.
	Bus    *event.Bus
	Logger *logging.Logger

	HotWindow          time.Duration
	CompilingHotWindow time.Duration
	// MaxOutputBytes caps the output buffered per process (default 1MB).
	MaxOutputBytes int

	// Now is used for hotness and durations. Defaults to time.Now.
	Now func() time.Time
}

// Terminal is a working directory that runs one command at a time.
type Terminal struct {
	id      string
	cwd     string
	created time.Time

	mu       sync.Mutex
	process  *Process
	cancel   context.CancelFunc
	disposed bool
}

// ID returns the terminal's identifier.
func (t *Terminal) ID() string { return t.id }

// Cwd returns the directory commands run in.
func (t *Terminal) Cwd() string { return t.cwd }

// IsBusy reports whether a command is running.
func (t *Terminal) IsBusy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busyLocked()
}

func (t *Terminal) busyLocked() bool {
	return t.process != nil && !t.process.Exited()
}

// Process returns the most recent process, or nil if nothing ran yet.
func (t *Terminal) Process() *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.process
}

// Manager owns the terminals created for an agent session.
type Manager struct {
	opts   Options
	logger *logging.Logger

	mu        sync.Mutex
	terminals []*Terminal // creation order
	wg        sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 1 << 20
	}
	if opts.HotWindow <= 0 {
		opts.HotWindow = DefaultHotWindow
	}
	if opts.CompilingHotWindow <= 0 {
		opts.CompilingHotWindow = DefaultCompilingHotWindow
	}
	return &Manager{opts: opts, logger: opts.Logger}
}

// GetOrCreate returns an idle terminal for cwd, creating one if every
// terminal in that directory is busy.
func (m *Manager) GetOrCreate(cwd string) *Terminal {
	if cwd != "" {
		cwd = filepath.Clean(cwd)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.terminals {
		t.mu.Lock()
		reusable := t.cwd == cwd && !t.disposed && !t.busyLocked()
		t.mu.Unlock()
		if reusable {
			return t
		}
	}

	t := &Terminal{
		id:      "term-" + uuid.NewString()[:8],
		cwd:     cwd,
		created: m.opts.Now(),
	}
	m.terminals = append(m.terminals, t)
	m.logger.WithTerminal(t.id).Debug("terminal created", "cwd", cwd)
	return t
}

// Run starts command in t and returns immediately. If t is busy or disposed
// the returned process has already finished with ErrTerminalBusy or
// ErrTerminalNotFound.
func (m *Manager) Run(ctx context.Context, t *Terminal, command string) *Process {
	p := newProcess(t.id, command, m.opts.MaxOutputBytes, m.opts.HotWindow, m.opts.CompilingHotWindow, m.opts.Now)
	log := m.logger.WithTerminal(t.id)

	t.mu.Lock()
	switch {
	case t.disposed:
		t.mu.Unlock()
		p.finish(-1, errors.NewTerminalError("terminal is disposed", errors.ErrTerminalNotFound).
			WithTerminalID(t.id).WithCommand(command))
		return p
	case t.busyLocked():
		running := t.process.Command()
		t.mu.Unlock()
		p.finish(-1, errors.NewTerminalError(fmt.Sprintf("already running %q", running), errors.ErrTerminalBusy).
			WithTerminalID(t.id).WithCommand(command))
		return p
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.process = p
	t.cancel = cancel
	m.wg.Add(1)
	t.mu.Unlock()

	m.publish(event.NewTerminalStartedEvent(t.id, t.cwd, command))
	log.Info("command started", "command", command, "cwd", t.cwd)

	go func() {
		defer m.wg.Done()
		defer cancel()

		req := Request{TerminalID: t.id, Cwd: t.cwd, Command: command}
		code, err := m.opts.Runner.Run(runCtx, req, func(line string) {
			p.appendLine(line)
			m.publish(event.NewTerminalLineEvent(t.id, line))
		})
		p.finish(code, err)

		res := p.Wait()
		m.publish(event.NewTerminalCompletedEvent(t.id, command, code, res.Duration, err))
		if err != nil {
			log.Warn("command failed", "command", command, "error", err.Error())
		} else {
			log.Info("command completed", "command", command, "exit_code", code, "duration_ms", res.Duration.Milliseconds())
		}
	}()

	return p
}

// RunSequence runs commands one after another in a terminal for cwd, waiting
// for each to exit before starting the next. It stops at the first command
// that fails to run or exits non-zero; the results gathered so far are
// returned along with a *errors.TerminalError.
func (m *Manager) RunSequence(ctx context.Context, cwd string, commands ...string) ([]Result, error) {
	results := make([]Result, 0, len(commands))
	for _, command := range commands {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %v", errors.ErrCanceled, err)
		}

		t := m.GetOrCreate(cwd)
		res := m.Run(ctx, t, command).Wait()
		results = append(results, res)

		if res.Err != nil {
			return results, res.Err
		}
		if res.ExitCode != 0 {
			return results, errors.NewTerminalError("command exited with non-zero status", errors.ErrCommandFailed).
				WithTerminalID(res.TerminalID).
				WithCommand(command).
				WithExitCode(res.ExitCode)
		}
	}
	return results, nil
}

// Terminal looks up a terminal by ID.
func (m *Manager) Terminal(id string) (*Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terminals {
		if t.id == id {
			return t, nil
		}
	}
	return nil, errors.NewNotFoundError("terminal", id).WithCause(errors.ErrTerminalNotFound)
}

// UnretrievedOutput drains the output of the terminal's latest process.
func (m *Manager) UnretrievedOutput(id string) (string, error) {
	t, err := m.Terminal(id)
	if err != nil {
		return "", err
	}
	if p := t.Process(); p != nil {
		return p.UnretrievedOutput(), nil
	}
	return "", nil
}

// IsProcessHot reports whether the terminal's latest process is still
// producing output. Unknown terminals are never hot.
func (m *Manager) IsProcessHot(id string) bool {
	t, err := m.Terminal(id)
	if err != nil {
		return false
	}
	p := t.Process()
	return p != nil && p.IsHot()
}

// Terminals returns the live terminals in creation order.
func (m *Manager) Terminals() []*Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.terminals)
}

// DisposeAll cancels every running command, waits for them to exit, and
// closes the runner. The manager holds no terminals afterwards.
func (m *Manager) DisposeAll() error {
	m.mu.Lock()
	terminals := m.terminals
	m.terminals = nil
	m.mu.Unlock()

	var wg conc.WaitGroup
	for _, t := range terminals {
		wg.Go(func() {
			t.mu.Lock()
			t.disposed = true
			cancel := t.cancel
			p := t.process
			t.mu.Unlock()

			if cancel != nil {
				cancel()
			}
			if p != nil {
				<-p.Done()
			}
		})
	}
	wg.Wait()
	m.wg.Wait()

	m.logger.Debug("terminals disposed", "count", len(terminals))
	return m.opts.Runner.Close()
}

func (m *Manager) publish(e event.Event) {
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(e)
	}
}
