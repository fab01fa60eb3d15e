package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Report file edits to the sidecar until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			root := workingDir()
			if len(args) == 1 {
				root = args[0]
			}
			client, err := rt.sidecarClient()
			if err != nil {
				return err
			}
			rt.serveMetrics()

			out := cmd.OutOrStdout()
			id := rt.bus.Subscribe(event.TypeWorkspaceFileChanged, func(e event.Event) {
				fmt.Fprintf(out, "changed: %s\n", e.(event.WorkspaceFileChangedEvent).Path)
			})
			defer rt.bus.Unsubscribe(id)

			w, err := watch.New(watch.Options{
				Root:     root,
				Ignore:   rt.cfg.Watch.Ignore,
				Debounce: rt.cfg.Watch.Debounce(),
				Notifier: client,
				Bus:      rt.bus,
				Logger:   rt.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to watch %s: %w", root, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w.Start()
			fmt.Fprintf(out, "Watching %s (ctrl+c to stop)\n", w.Root())
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
	return cmd
}
