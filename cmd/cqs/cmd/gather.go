package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/engine"
	"github.com/cqs-dev/cqs/internal/refindex"
)

func newGatherCmd() *cobra.Command {
	var expand int
	var direction string
	var limit int
	var refName string
	var format string

	cmd := &cobra.Command{
		Use:   "gather <query>",
		Short: "Gather the smallest set of chunks that answers a question",
		Long: `Seeds from hybrid search, then expands along the call graph up to
--expand hops, decaying relevance per hop, to assemble a reading set
rather than a flat ranked list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGather(cmd, strings.Join(args, " "), expand, direction, limit, refName, format)
		},
	}

	cmd.Flags().IntVar(&expand, "expand", 1, "Call-graph expansion depth")
	cmd.Flags().StringVar(&direction, "direction", string(analysis.DirectionBoth), "Expansion direction: both, callers, callees")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum chunks returned")
	cmd.Flags().StringVar(&refName, "ref", "", "Gather from a loaded reference index instead of the project")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runGather(cmd *cobra.Command, query string, expand int, direction string, limit int, refName, format string) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	dir := analysis.Direction(direction)
	if dir != analysis.DirectionBoth && dir != analysis.DirectionCallers && dir != analysis.DirectionCallees {
		return fmt.Errorf("invalid --direction %q", direction)
	}

	queryEmb, err := eng.EmbedQuery(ctx, query)
	if err != nil {
		return err
	}

	opts := analysis.DefaultGatherOptions()
	opts.ExpandDepth = expand
	opts.Direction = dir
	opts.Limit = limit

	if refName != "" {
		ref := findReference(eng, refName)
		if ref == nil {
			return fmt.Errorf("no loaded reference named %q", refName)
		}
		items, err := eng.Analyzer.GatherCrossIndex(ctx, ref.Name, ref.Engine, ref.Store, queryEmb, query, opts)
		if err != nil {
			return err
		}
		return renderGatherCrossIndex(cmd, items, format)
	}

	result, err := eng.Analyzer.Gather(ctx, queryEmb, query, opts)
	if err != nil {
		return err
	}
	return renderGather(cmd, result, format)
}

func findReference(eng *engine.Engine, name string) *refindex.Reference {
	for _, r := range eng.References {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func renderGather(cmd *cobra.Command, result *analysis.GatherResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result.Chunks)
	}

	out := cliutil.New(cmd.OutOrStdout())
	if result.ExpansionCapped {
		out.Warning("expansion capped before exhausting the call graph")
	}
	if result.SearchDegraded {
		out.Warning("some expanded names could not be resolved back to chunks")
	}
	for _, c := range result.Chunks {
		out.Statusf("", "%s:%d  %s  (depth=%d score=%.3f)", c.Chunk.Origin, c.Chunk.LineStart, c.Chunk.Name, c.Depth, c.Score)
	}
	return nil
}

func renderGatherCrossIndex(cmd *cobra.Command, items []analysis.CrossIndexGatheredChunk, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	out := cliutil.New(cmd.OutOrStdout())
	for _, c := range items {
		src := c.SourceRef
		if src == "" {
			src = "project"
		}
		out.Statusf("", "%s:%d  %s  [%s] (depth=%d score=%.3f)", c.Chunk.Origin, c.Chunk.LineStart, c.Chunk.Name, src, c.Depth, c.Score)
	}
	return nil
}
