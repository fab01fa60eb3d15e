package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/event"
)

func newRunCmd() *cobra.Command {
	var (
		cwd     string
		backend string
	)
	cmd := &cobra.Command{
		Use:   "run [--cwd dir] <command>...",
		Short: "Run commands one after another in an automated terminal",
		Long: `Run each argument as a shell command in an automated terminal, waiting
for one to finish before starting the next. The sequence stops at the first
command that fails.

  aide run "go build ./..." "go test ./..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if backend != "" {
				rt.cfg.Terminal.Backend = backend
			}
			if cwd == "" {
				cwd = workingDir()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			p := newProgressPrinter(out)
			for _, typ := range []string{event.TypeTerminalStarted, event.TypeTerminalLine, event.TypeTerminalCompleted} {
				id := rt.bus.Subscribe(typ, p.handle)
				defer rt.bus.Unsubscribe(id)
			}

			mgr := rt.terminalManager()
			results, err := mgr.RunSequence(ctx, cwd, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d command(s) succeeded\n", len(results))
			return nil
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (default: current directory)")
	cmd.Flags().StringVar(&backend, "backend", "", "terminal backend: pty or tmux (default from terminal.backend)")
	return cmd
}
