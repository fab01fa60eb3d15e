package terminal

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/logging"
)

// TmuxSocket isolates aide's tmux sessions from the user's own server.
const TmuxSocket = "aide"

// tmuxHistoryLimit is the scrollback kept per pane. Output is read back from
// the history, so it has to outlast any realistic command.
const tmuxHistoryLimit = 100000

// TmuxRunner runs commands by typing them into a detached tmux session and
// polling capture-pane until a completion marker carrying the exit status
// appears. Each Run gets its own session, named after the terminal, which is
// killed when the command finishes.
type TmuxRunner struct {
	socket   string
	prefix   string
	interval time.Duration
	logger   *logging.Logger

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// NewTmuxRunner returns a runner whose sessions are named "<prefix>-<terminal>".
func NewTmuxRunner(prefix string, interval time.Duration, logger *logging.Logger) *TmuxRunner {
	if prefix == "" {
		prefix = "aide"
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &TmuxRunner{
		socket:   TmuxSocket,
		prefix:   prefix,
		interval: interval,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

func (r *TmuxRunner) command(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", append([]string{"-L", r.socket}, args...)...)
}

// SessionName returns the tmux session used for a terminal.
func (r *TmuxRunner) SessionName(terminalID string) string {
	return r.prefix + "-" + terminalID
}

// AttachCommand returns the command a user can run to watch a terminal.
func (r *TmuxRunner) AttachCommand(terminalID string) string {
	return fmt.Sprintf("tmux -L %s attach -t %s", r.socket, r.SessionName(terminalID))
}

// Run implements Runner.
func (r *TmuxRunner) Run(ctx context.Context, req Request, onLine LineFunc) (int, error) {
	if _, err := r.lookPath("tmux"); err != nil {
		return -1, fmt.Errorf("%w: tmux not found in PATH", errors.ErrNoShellIntegration)
	}

	session := r.SessionName(req.TerminalID)
	termErr := func(msg string, cause error) error {
		return errors.NewTerminalError(msg, cause).WithTerminalID(req.TerminalID).WithCommand(req.Command)
	}

	// A leftover session from a crashed run would swallow our keystrokes.
	if err := killErr(r.command(ctx, "kill-session", "-t", session)); err != nil && !isSessionNotFoundError(err) {
		r.logger.Warn("failed to clean up tmux session", "session", session, "error", err.Error())
	}

	// history-limit only applies to panes created after it is set, so it goes
	// on the server ahead of new-session in the same invocation.
	args := []string{
		"start-server", ";",
		"set-option", "-g", "history-limit", strconv.Itoa(tmuxHistoryLimit), ";",
	}
	args = append(args, "new-session", "-d", "-s", session, "-x", strconv.Itoa(ptyCols), "-y", strconv.Itoa(ptyRows))
	if req.Cwd != "" {
		args = append(args, "-c", req.Cwd)
	}
	for _, kv := range req.Env {
		args = append(args, "-e", kv)
	}
	// A bare POSIX shell with no prompt keeps the pane free of anything but
	// command output.
	args = append(args, "env PS1= PS2= /bin/sh")
	if err := r.command(ctx, args...).Run(); err != nil {
		return -1, termErr("failed to create tmux session", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := killErr(r.command(cleanupCtx, "kill-session", "-t", session)); err != nil && !isSessionNotFoundError(err) {
			r.logger.Warn("failed to kill tmux session", "session", session, "error", err.Error())
		}
	}()

	token := "__AIDE_DONE_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	marker := regexp.MustCompile("^" + token + `:(\d+)$`)
	if err := r.sendLine(ctx, session, "stty -echo"); err != nil {
		return -1, termErr("failed to prepare tmux session", err)
	}
	if err := r.sendLine(ctx, session, wrapWithMarker(req.Command, token)); err != nil {
		return -1, termErr("failed to send command", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	var emit paneEmitter
	for {
		select {
		case <-ctx.Done():
			_ = r.command(context.Background(), "send-keys", "-t", session, "C-c").Run()
			return -1, fmt.Errorf("%w: %v", errors.ErrCanceled, ctx.Err())
		case <-ticker.C:
		}

		out, err := r.command(ctx, "capture-pane", "-p", "-J", "-t", session, "-S", "-").Output()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return -1, termErr("failed to capture tmux pane", err)
		}

		lines, code, done := scanPane(string(out), token, marker)
		for _, line := range emit.next(lines) {
			if onLine != nil {
				onLine(line)
			}
		}
		if done {
			return code, nil
		}
	}
}

func (r *TmuxRunner) sendLine(ctx context.Context, session, text string) error {
	if err := r.command(ctx, "send-keys", "-t", session, "-l", text).Run(); err != nil {
		return err
	}
	return r.command(ctx, "send-keys", "-t", session, "Enter").Run()
}

// Close kills every session this runner's socket still holds.
func (r *TmuxRunner) Close() error {
	if _, err := r.lookPath("tmux"); err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := killErr(r.command(ctx, "kill-server")); err != nil && !isSessionNotFoundError(err) {
		return err
	}
	return nil
}

// wrapWithMarker appends a printf that reports the command's exit status on a
// line of its own. The format string keeps the literal marker out of the
// command text so an echoed command never matches.
func wrapWithMarker(command, token string) string {
	return fmt.Sprintf("%s\nprintf '\\n%%s:%%d\\n' %s $?", command, token)
}

// scanPane splits captured pane text into output lines, stopping at the
// completion marker. Trailing blank lines are dropped because tmux pads the
// visible area.
func scanPane(captured, token string, marker *regexp.Regexp) (lines []string, exitCode int, done bool) {
	all := strings.Split(strings.TrimRight(captured, "\n "), "\n")
	for _, line := range all {
		line = strings.TrimRight(line, " \r")
		if m := marker.FindStringSubmatch(line); m != nil {
			code, _ := strconv.Atoi(m[1])
			return trimTrailingBlank(lines), code, true
		}
		if strings.Contains(line, token) {
			continue
		}
		lines = append(lines, line)
	}
	// The last line may still be partial until the next newline arrives.
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	return lines, 0, false
}

// paneEmitterTail is how many recently emitted lines paneEmitter remembers
// to realign after the top of the history is dropped.
const paneEmitterTail = 256

// paneEmitter turns successive pane captures into the lines not yet
// emitted. Once the history limit is reached tmux drops lines from the top,
// so the capture no longer starts where the previous one did; the emitter
// realigns by matching the lines it emitted last.
type paneEmitter struct {
	emitted int
	tail    []string
}

func (e *paneEmitter) next(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	start := e.resume(lines)
	fresh := lines[start:]
	e.emitted = len(lines)
	e.tail = append(e.tail, fresh...)
	if over := len(e.tail) - paneEmitterTail; over > 0 {
		e.tail = append([]string(nil), e.tail[over:]...)
	}
	return fresh
}

// resume returns the index in lines of the first line not yet emitted.
func (e *paneEmitter) resume(lines []string) int {
	if e.emitted == 0 {
		return 0
	}
	if e.emitted <= len(lines) && lines[e.emitted-1] == e.tail[len(e.tail)-1] {
		return e.emitted
	}
	// Find the fewest dropped lines that line the remembered tail up with
	// the start of this capture.
	for dropped := 1; dropped <= e.emitted; dropped++ {
		end := e.emitted - dropped
		if end > len(lines) {
			continue
		}
		n := min(end, len(e.tail))
		if n == 0 {
			break
		}
		if slices.Equal(lines[end-n:end], e.tail[len(e.tail)-n:]) {
			return end
		}
	}
	// Everything emitted has scrolled away.
	return 0
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// killErr runs a teardown command, capturing stderr so "not found" errors can
// be told apart from real failures.
func killErr(cmd *exec.Cmd) error {
	_, err := cmd.Output()
	return err
}

// isSessionNotFoundError checks if the error indicates a tmux session was not found.
func isSessionNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		err = fmt.Errorf("%s", exitErr.Stderr)
	}
	errStr := err.Error()
	return strings.Contains(errStr, "session not found") ||
		strings.Contains(errStr, "no server running") ||
		strings.Contains(errStr, "can't find session")
}
