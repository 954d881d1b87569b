package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/store"
)

func newDriftCmd() *cobra.Command {
	var threshold float64
	var minDrift float64
	var format string

	cmd := &cobra.Command{
		Use:   "drift <before-index>",
		Short: "Compare the current index against an earlier snapshot",
		Long: `Pairs chunks between an earlier index snapshot and the current one by
(origin, name, type, line) and reports every pair whose embedding cosine
similarity fell below the threshold. The argument is a path to the
snapshot's index.db (or the directory holding it).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			beforePath := args[0]
			if info, serr := os.Stat(beforePath); serr == nil && info.IsDir() {
				beforePath = filepath.Join(beforePath, "index.db")
			}
			before, err := store.OpenReadOnly(beforePath)
			if err != nil {
				return fmt.Errorf("open snapshot %s: %w", beforePath, err)
			}
			defer func() { _ = before.Close() }()

			entries, err := analysis.CompareDrift(ctx, before, eng.Store, threshold)
			if err != nil {
				return err
			}
			if minDrift > 0 {
				filtered := entries[:0]
				for _, e := range entries {
					if e.Drift >= minDrift {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			out := cliutil.New(cmd.OutOrStdout())
			if len(entries) == 0 {
				out.Status("", "no drifted chunks")
				return nil
			}
			out.Statusf("", "%d drifted chunk(s):", len(entries))
			for _, e := range entries {
				out.Statusf("", "  %s  %s (%s) drift=%.3f", e.Origin, e.Name, e.ChunkType, e.Drift)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", analysis.DefaultDriftThreshold, "Similarity below which a chunk counts as drifted")
	cmd.Flags().Float64Var(&minDrift, "min-drift", 0, "Only report chunks that drifted at least this much")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
