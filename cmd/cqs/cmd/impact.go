package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newImpactCmd() *cobra.Command {
	var depth int
	var format string

	cmd := &cobra.Command{
		Use:   "impact <name>",
		Short: "Show what breaks if a function changes",
		Long:  `Walks the reverse call graph from name and reports its direct callers, its transitive callers up to --depth hops (only when --depth is greater than 1), and every test that reaches it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd, args[0], depth, format)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 1, "Reverse call-graph traversal depth")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runImpact(cmd *cobra.Command, name string, depth int, format string) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	result, err := eng.Analyzer.AnalyzeImpact(ctx, name, depth)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cliutil.New(cmd.OutOrStdout())
	out.Statusf("", "%d direct caller(s), %d transitive caller(s), %d test(s) reach %q",
		len(result.Callers), len(result.TransitiveCallers), len(result.Tests), name)
	out.Newline()
	for _, c := range result.Callers {
		out.Statusf("", "caller: %s  (%s:%d)", c.CallerName, c.Origin, c.CallLine)
	}
	for _, t := range result.Tests {
		out.Statusf("", "test:   %s  (depth=%d)", t.TestName, t.Depth)
	}
	if len(result.Tests) == 0 {
		out.Warning(fmt.Sprintf("no test coverage found reaching %q", name))
	}
	return nil
}
