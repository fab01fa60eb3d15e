package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/sidecar"
)

func newSymbolCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "symbol <file> <line> <column> [<file> <line> <column>...]",
		Short: "Resolve the symbol at one or more positions",
		Long: `Resolve the symbol at each file position. Several positions are looked up
in parallel, bounded by sidecar.concurrency.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%3 != 0 {
				return fmt.Errorf("expected <file> <line> <column> triples, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := parseSymbolArgs(args)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.sidecarClient()
			if err != nil {
				return err
			}
			results, err := client.Symbols(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for i, r := range results {
				printSymbol(out, reqs[i], r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func parseSymbolArgs(args []string) ([]sidecar.SymbolRequest, error) {
	reqs := make([]sidecar.SymbolRequest, 0, len(args)/3)
	for i := 0; i+2 < len(args); i += 3 {
		line, err := strconv.Atoi(args[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid line %q: expected integer", args[i+1])
		}
		col, err := strconv.Atoi(args[i+2])
		if err != nil {
			return nil, fmt.Errorf("invalid column %q: expected integer", args[i+2])
		}
		reqs = append(reqs, sidecar.SymbolRequest{FilePath: args[i], Line: line, Column: col})
	}
	return reqs, nil
}

func printSymbol(out io.Writer, req sidecar.SymbolRequest, r *sidecar.SymbolResult) {
	fmt.Fprintf(out, "%s:%d:%d  %s %s\n", req.FilePath, req.Line, req.Column, r.Kind, r.Name)
	if r.Definition != nil {
		fmt.Fprintf(out, "  defined at %s:%d\n", r.Definition.Path, r.Definition.StartLine)
	}
	if len(r.References) > 0 {
		fmt.Fprintf(out, "  %d references\n", len(r.References))
		for _, ref := range r.References {
			fmt.Fprintf(out, "    %s:%d\n", ref.Path, ref.StartLine)
		}
	}
	if r.Documentation != "" {
		fmt.Fprintf(out, "  %s\n", r.Documentation)
	}
}
