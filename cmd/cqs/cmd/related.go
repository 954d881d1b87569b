package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/model"
)

func newRelatedCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "related <name>",
		Short: "Find functions that co-occur with a target via shared callers, callees, or types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			result, err := eng.Analyzer.FindRelated(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			out := cliutil.New(cmd.OutOrStdout())
			printRelatedGroup(out, "shared callers", result.SharedCallers)
			printRelatedGroup(out, "shared callees", result.SharedCallees)
			printRelatedGroup(out, "shared types", result.SharedTypes)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum entries per group")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printRelatedGroup(out *cliutil.Writer, label string, chunks []*model.Chunk) {
	if len(chunks) == 0 {
		return
	}
	out.Statusf("", "%s:", label)
	for _, c := range chunks {
		out.Statusf("", "  %s  (%s:%d)", c.Name, c.Origin, c.LineStart)
	}
}
