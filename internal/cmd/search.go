package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/sidecar"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		paths  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace through the sidecar index",
		Long: `Search the workspace through the sidecar index. Results are ordered by
relevance; results without a score are listed last in the order the sidecar
returned them.`,
		Args: cobra.MinimumNArgs(1),
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
			results, err := client.Search(cmd.Context(), sidecar.SearchRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
				Paths: paths,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for _, r := range results {
				score := "-"
				if r.Score != nil {
					score = fmt.Sprintf("%.3f", *r.Score)
				}
				fmt.Fprintf(out, "%s:%d-%d  (score %s)\n", r.Path, r.StartLine, r.EndLine, score)
				if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
					for _, line := range strings.Split(snippet, "\n") {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	cmd.Flags().StringSliceVar(&paths, "path", nil, "restrict the search to these paths (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
