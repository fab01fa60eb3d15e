package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/sidecar"
)

func newHealthCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the sidecar is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.sidecarClient()
			if err != nil {
				return err
			}

			var status *sidecar.HealthStatus
			if wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				status, err = client.WaitForHealthy(ctx, rt.cfg.Sidecar.HealthInterval())
			} else {
				status, err = client.Health(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("sidecar at %s is unhealthy: %w", client.BaseURL(), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sidecar: %s\n", client.BaseURL())
			fmt.Fprintf(out, "Status:  %s\n", status.Status)
			if status.Version != "" {
				fmt.Fprintf(out, "Version: %s\n", status.Version)
			}
			if status.Indexing {
				fmt.Fprintln(out, "Index:   building")
			}
			if !status.OK() {
				return fmt.Errorf("sidecar reported status %q", status.Status)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep polling until healthy or this long has passed")
	return cmd
}
