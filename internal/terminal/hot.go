package terminal

import (
	"regexp"
	"time"
)

// Default hot windows. A process is hot while it produced output within the
// window; output that looks like a build in progress extends the window until
// a line reports the build finished.
const (
	DefaultHotWindow          = 2 * time.Second
	DefaultCompilingHotWindow = 15 * time.Second
)

var (
	compilingPattern = regexp.MustCompile(`(?i)\b(compiling|building|bundling|transpiling|generating|starting)\b`)
	nullifierPattern = regexp.MustCompile(`(?i)\b(compiled|success|succeeded|finish|finished|complete|completed|succeed|done|end|ended|stop|stopped|exit|exited|terminate|terminated|error|errors|fail|failed)\b`)
)

// hotTracker decides whether output is still flowing. It is not safe for
// concurrent use; Process guards it.
type hotTracker struct {
	window          time.Duration
	compilingWindow time.Duration
	lastOutput      time.Time
	compiling       bool
}

func newHotTracker(window, compilingWindow time.Duration, now time.Time) hotTracker {
	if window <= 0 {
		window = DefaultHotWindow
	}
	if compilingWindow < window {
		compilingWindow = window
	}
	return hotTracker{window: window, compilingWindow: compilingWindow, lastOutput: now}
}

// observe records a line of output seen at now.
func (h *hotTracker) observe(line string, now time.Time) {
	h.lastOutput = now
	switch {
	case nullifierPattern.MatchString(line):
		h.compiling = false
	case compilingPattern.MatchString(line):
		h.compiling = true
	}
}

// hot reports whether the last output falls within the current window.
func (h *hotTracker) hot(now time.Time) bool {
	w := h.window
	if h.compiling {
		w = h.compilingWindow
	}
	return now.Sub(h.lastOutput) < w
}
