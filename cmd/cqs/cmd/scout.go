package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newScoutCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "scout <query>",
		Short: "Build a planning dashboard for a change described in natural language",
		Long: `Groups hybrid-search hits by file, tags each chunk as a modify target,
a test to update, or a dependency via gap detection on the score
distribution, and lists notes that mention the result files. Files are
not checked for staleness.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScout(cmd, strings.Join(args, " "), limit, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum files returned")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runScout(cmd *cobra.Command, query string, limit int, format string) error {
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
	result, err := eng.Analyzer.Scout(ctx, queryEmb, query, limit)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cliutil.New(cmd.OutOrStdout())
	for _, f := range result.Files {
		staleTag := ""
		if f.Stale {
			staleTag = "  [notes may be stale]"
		}
		out.Statusf("", "%s  (relevance=%.3f)%s", f.Origin, f.Relevance, staleTag)
		for _, c := range f.Chunks {
			out.Statusf("", "  [%s] %s:%d", c.Role, c.Chunk.Name, c.Chunk.LineStart)
		}
	}
	for _, n := range result.Notes {
		out.Statusf("", "note: %s", n.Text)
	}
	return nil
}
