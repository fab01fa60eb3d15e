// Package terminal runs shell commands on behalf of an agent and tracks their
// output.
//
// A Manager hands out Terminals keyed by working directory and runs one
// command at a time in each. Commands execute through a Runner: PTYRunner
// starts "<shell> -c <command>" under a pseudo-terminal, TmuxRunner types the
// command into a detached tmux session and polls the pane for a completion
// marker. Every running command is represented by a Process whose output can
// be drained incrementally and whose "hotness" tells callers whether it is
// still producing output.
package terminal

import "context"

// Request describes one command to run.
type Request struct {
	TerminalID string
	Cwd        string
	Command    string
	// Env is appended to the inherited environment.
	Env []string
}

// LineFunc receives output one line at a time, without the trailing newline.
type LineFunc func(line string)

// Runner executes commands. Run blocks until the command exits or ctx is
// done, and returns the exit code. An error means the command could not be
// run or observed; a non-zero exit code alone is not an error.
type Runner interface {
	Run(ctx context.Context, req Request, onLine LineFunc) (exitCode int, err error)
	Close() error
}
