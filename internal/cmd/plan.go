package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/plan"
	"github.com/Iron-Ham/aide/internal/session"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect and replay agent plans",
	}
	cmd.AddCommand(newPlanReplayCmd(), newPlanShowCmd(), newPlanListCmd())
	return cmd
}

func newPlanReplayCmd() *cobra.Command {
	var (
		save    bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay recorded plan updates and print the resulting plan",
		Long: `Replay a recorded sequence of plan updates and print the resulting plan as
YAML. The file is either YAML:

  session_id: demo
  updates:
    - {index: 0, title: Setup, description: "Install deps"}
    - {index: 0, complete: true}

or JSON lines with one update object per line. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			script, err := readScript(cmd, args[0])
			if err != nil {
				return err
			}
			if script.SessionID == "" {
				script.SessionID = "replay"
			}

			p := plan.New(script.SessionID)
			detach := plan.Bridge(p, rt.bus)
			defer detach()
			if verbose {
				id := rt.bus.SubscribeAll(newProgressPrinter(cmd.ErrOrStderr()).handle)
				defer rt.bus.Unsubscribe(id)
			}

			replayErr := script.Replay(p)
			snap := p.Snapshot()
			p.Dispose()

			data, err := snap.EncodeYAML()
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}

			if save {
				store, err := rt.snapshotStore()
				if err != nil {
					return err
				}
				if store == nil {
					return fmt.Errorf("--save requires session.snapshot_dir to be set")
				}
				path, err := store.Save(cmd.Context(), snap)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved snapshot to %s\n", path)
			}
			return replayErr
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the resulting snapshot in session.snapshot_dir")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print plan events to stderr while replaying")
	return cmd
}

func readScript(cmd *cobra.Command, path string) (*plan.Script, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open replay file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return plan.LoadScript(r)
}

func openStore(cmd *cobra.Command) (*session.SnapshotStore, func(), error) {
	rt, err := newRuntime(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := rt.snapshotStore()
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	if store == nil {
		rt.Close()
		return nil, nil, fmt.Errorf("session.snapshot_dir is not set")
	}
	return store, rt.Close, nil
}

func newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored plan snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()

			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := snap.EncodeYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newPlanListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored plan snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()
			return listSnapshots(cmd.Context(), cmd.OutOrStdout(), store)
		},
	}
}

func listSnapshots(ctx context.Context, out io.Writer, store *session.SnapshotStore) error {
	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(out, "No snapshots in %s\n", store.Dir())
		return nil
	}
	for _, id := range ids {
		snap, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "%s  (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(out, "%s  %d/%d steps complete\n", id, snap.Completed(), len(snap.Steps))
	}
	return nil
}
