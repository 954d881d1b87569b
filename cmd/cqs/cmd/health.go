package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newHealthCmd() *cobra.Command {
	var topN int
	var format string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report aggregate index health: counts, dead code, and untested hotspots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			report := eng.Analyzer.Health(ctx, topN, eng.Index)

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := cliutil.New(cmd.OutOrStdout())
			out.Statusf("", "chunks=%d origins=%d notes=%d vector_index=%d",
				report.ChunkCount, report.OriginCount, report.NoteCount, report.VectorIndexSize)
			out.Statusf("", "dead code: %d confident, %d possibly public", report.DeadCodeConfident, report.DeadCodePossiblyPublic)
			out.Newline()
			if len(report.TopHotspots) > 0 {
				out.Status("", "top hotspots:")
				for _, h := range report.TopHotspots {
					out.Statusf("", "  %s (%d callers)", h.Name, h.CallerCount)
				}
			}
			if len(report.UntestedHotspots) > 0 {
				out.Status("", "untested hotspots:")
				for _, r := range report.UntestedHotspots {
					out.Statusf("", "  %s (%d callers, %d tests)", r.Name, r.CallerCount, r.TestCount)
				}
			}
			for _, w := range report.Warnings {
				out.Warning(w)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topN, "top", 10, "Number of hotspots reported")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
