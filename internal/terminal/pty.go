package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"

	"github.com/Iron-Ham/aide/internal/errors"
)

// Default pseudo-terminal size. Wide enough that most tools do not wrap.
const (
	ptyCols = 200
	ptyRows = 50
)

// PTYRunner runs each command as "<Shell> -c <command>" attached to a fresh
// pseudo-terminal, so tools that check isatty keep their interactive output.
type PTYRunner struct {
	Shell string
}

// NewPTYRunner returns a PTYRunner using shell, or /bin/sh when empty.
func NewPTYRunner(shell string) *PTYRunner {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &PTYRunner{Shell: shell}
}

// Run implements Runner.
func (r *PTYRunner) Run(ctx context.Context, req Request, onLine LineFunc) (int, error) {
	cmd := exec.CommandContext(ctx, r.Shell, "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Env = append(os.Environ(), req.Env...)
	// pty.Start makes the shell a session leader, so its pid is also the
	// process group to kill on cancellation.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
	if err != nil {
		return -1, errors.NewTerminalError("failed to start command", err).
			WithTerminalID(req.TerminalID).
			WithCommand(req.Command)
	}
	defer func() { _ = f.Close() }()

	// The master returns EIO once the child side closes; that ends the scan.
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(strings.TrimRight(scanner.Text(), "\r"))
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return -1, fmt.Errorf("%w: %v", errors.ErrCanceled, ctx.Err())
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.NewTerminalError("command did not complete", waitErr).
			WithTerminalID(req.TerminalID).
			WithCommand(req.Command)
	}
	return 0, nil
}

// Close implements Runner. A PTYRunner holds no shared resources.
func (r *PTYRunner) Close() error { return nil }
