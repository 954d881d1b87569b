package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newOnboardCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "onboard <query>",
		Short: "Produce an ordered reading list for a concept or subsystem",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard(cmd, strings.Join(args, " "), limit, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Max files considered when choosing the entry point")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runOnboard(cmd *cobra.Command, query string, limit int, format string) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	queryEmb, err := eng.EmbedQuery(ctx, query)
	if err != nil {
		return err
	}
	result, err := eng.Analyzer.Onboard(ctx, queryEmb, query, limit)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cliutil.New(cmd.OutOrStdout())
	if result.EntryPoint != nil {
		out.Statusf("", "entry point: %s:%d %s", result.EntryPoint.Origin, result.EntryPoint.LineStart, result.EntryPoint.Name)
	}
	out.Statusf("", "%d item(s) across %d file(s), callee depth %d, %d test(s)",
		result.Summary.TotalItems, result.Summary.FilesCovered, result.Summary.CalleeDepth, result.Summary.TestsFound)
	out.Newline()
	for _, e := range result.CallChain {
		out.Statusf("", "  [depth %d] %s:%d %s", e.Depth, e.Chunk.Origin, e.Chunk.LineStart, e.Chunk.Name)
	}
	for _, c := range result.Callers {
		out.Statusf("", "caller: %s:%d %s", c.Chunk.Origin, c.Chunk.LineStart, c.Chunk.Name)
	}
	if len(result.KeyTypes) > 0 {
		out.Statusf("", "key types: %s", strings.Join(result.KeyTypes, ", "))
	}
	for _, t := range result.Tests {
		out.Statusf("", "test: %s (depth=%d)", t.TestName, t.Depth)
	}
	return nil
}
