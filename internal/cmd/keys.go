package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/contextkeys"
	"github.com/Iron-Ham/aide/internal/errors"
)

func newKeysCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "keys [name]",
		Short: "List the probe context keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decls := contextkeys.All()
			if len(args) == 1 {
				d, ok := contextkeys.Lookup(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", errors.ErrUnknownContextKey, args[0])
				}
				decls = []contextkeys.Declaration{d}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(decls)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTYPE\tDEFAULT\tVALUES")
			for _, d := range decls {
				values := "-"
				if len(d.Values) > 0 {
					values = strings.Join(d.Values, "|")
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", d.Name, d.Type, d.Default, values)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			for _, d := range decls {
				fmt.Fprintf(out, "%s: %s\n", d.Name, d.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print declarations as JSON")
	return cmd
}
