package terminal

import (
	"strings"
	"sync"
	"time"
)

// Result is the outcome of a command, as returned by Process.Wait.
type Result struct {
	TerminalID string
	Command    string
	ExitCode   int
	// Output holds the tail of everything the command printed.
	Output   string
	Duration time.Duration
	Err      error
	// Continued is set when Wait returned because of Continue while the
	// command was still running.
	Continued bool
}

// Success reports whether the command ran to completion with exit code 0.
func (r Result) Success() bool {
	return r.Err == nil && !r.Continued && r.ExitCode == 0
}

// Process is one command running in a terminal. All methods are safe for
// concurrent use.
type Process struct {
	terminalID string
	command    string
	started    time.Time
	maxBytes   int
	now        func() time.Time

	mu      sync.Mutex
	output  tailBuffer
	pending tailBuffer
	hot     hotTracker
	result  Result
	exited  bool

	done         chan struct{}
	continued    chan struct{}
	continueOnce sync.Once
}

func newProcess(terminalID, command string, maxBytes int, window, compilingWindow time.Duration, now func() time.Time) *Process {
	if now == nil {
		now = time.Now
	}
	start := now()
	return &Process{
		terminalID: terminalID,
		command:    command,
		started:    start,
		maxBytes:   maxBytes,
		now:        now,
		output:     tailBuffer{max: maxBytes},
		pending:    tailBuffer{max: maxBytes},
		hot:        newHotTracker(window, compilingWindow, start),
		done:       make(chan struct{}),
		continued:  make(chan struct{}),
	}
}

// TerminalID returns the terminal the process runs in.
func (p *Process) TerminalID() string { return p.terminalID }

// Command returns the command line.
func (p *Process) Command() string { return p.command }

// Done is closed when the command has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// appendLine records one line of output.
func (p *Process) appendLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output.writeLine(line)
	p.pending.writeLine(line)
	p.hot.observe(line, p.now())
}

// finish records the outcome and releases waiters. Only the first call counts.
func (p *Process) finish(exitCode int, err error) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.result = Result{
		TerminalID: p.terminalID,
		Command:    p.command,
		ExitCode:   exitCode,
		Output:     p.output.String(),
		Duration:   p.now().Sub(p.started),
		Err:        err,
	}
	p.mu.Unlock()
	close(p.done)
}

// Wait blocks until the command exits or Continue is called, whichever comes
// first. After Continue, the result carries Continued=true, ExitCode -1 and
// the output so far.
func (p *Process) Wait() Result {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result
	case <-p.continued:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return p.result
	}
	return Result{
		TerminalID: p.terminalID,
		Command:    p.command,
		ExitCode:   -1,
		Output:     p.output.String(),
		Duration:   p.now().Sub(p.started),
		Continued:  true,
	}
}

// Continue releases current and future Wait calls without stopping the
// command. Its output keeps accumulating for UnretrievedOutput.
func (p *Process) Continue() {
	p.continueOnce.Do(func() { close(p.continued) })
}

// UnretrievedOutput returns the output produced since the previous call and
// marks it retrieved.
func (p *Process) UnretrievedOutput() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.pending.String()
	p.pending.reset()
	return s
}

// IsHot reports whether the command is still running and produced output
// recently.
func (p *Process) IsHot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited && p.hot.hot(p.now())
}

// Exited reports whether the command has finished.
func (p *Process) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// tailBuffer keeps at most max bytes of the most recent lines. Lines are
// dropped whole from the front.
type tailBuffer struct {
	max   int
	lines []string
	size  int
}

func (b *tailBuffer) writeLine(line string) {
	b.lines = append(b.lines, line)
	b.size += len(line) + 1
	for b.max > 0 && b.size > b.max && len(b.lines) > 1 {
		b.size -= len(b.lines[0]) + 1
		b.lines = b.lines[1:]
	}
}

func (b *tailBuffer) reset() {
	b.lines = nil
	b.size = 0
}

func (b *tailBuffer) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}
