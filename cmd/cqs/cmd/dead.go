package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newDeadCmd() *cobra.Command {
	var includePublic bool
	var format string

	cmd := &cobra.Command{
		Use:   "dead",
		Short: "Find chunks with no discovered callers",
		Long:  `Reports functions with zero callers in the call graph. Exported names are only included with --include-pub, since they may be called from outside the indexed project.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			confident, possiblyPublic, err := eng.Store.FindDeadCode(ctx, includePublic)
			if err != nil {
				return err
			}

			if format == "json" {
				payload := map[string]any{"confident": confident}
				if includePublic {
					payload["possibly_public"] = possiblyPublic
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			out := cliutil.New(cmd.OutOrStdout())
			for _, c := range confident {
				out.Statusf("", "%s:%d  %s", c.Origin, c.LineStart, c.Name)
			}
			if includePublic && len(possiblyPublic) > 0 {
				out.Newline()
				out.Status("", "possibly public (exported, no discovered callers):")
				for _, c := range possiblyPublic {
					out.Statusf("", "  %s:%d  %s", c.Origin, c.LineStart, c.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includePublic, "include-pub", false, "Also report exported functions with no discovered callers")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
