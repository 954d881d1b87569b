package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newPlacementCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "placement <description>",
		Short: "Suggest where new code described in natural language should live",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlacement(cmd, strings.Join(args, " "), limit, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum candidate files returned")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runPlacement(cmd *cobra.Command, description string, limit int, format string) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	descEmb, err := eng.EmbedQuery(ctx, description)
	if err != nil {
		return err
	}
	suggestions, err := eng.Analyzer.SuggestPlacement(ctx, descEmb, description, limit)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(suggestions)
	}

	out := cliutil.New(cmd.OutOrStdout())
	for _, s := range suggestions {
		out.Statusf("", "%s:%d  score=%.3f", s.Origin, s.InsertionLine, s.Score)
		if s.LocalPatterns.NamingConvention != "" {
			out.Statusf("", "  naming: %s", s.LocalPatterns.NamingConvention)
		}
		if s.LocalPatterns.ErrorHandlingStyle != "" {
			out.Statusf("", "  errors: %s", s.LocalPatterns.ErrorHandlingStyle)
		}
		if len(s.LocalPatterns.DominantImports) > 0 {
			out.Statusf("", "  imports: %s", strings.Join(s.LocalPatterns.DominantImports, ", "))
		}
	}
	return nil
}
