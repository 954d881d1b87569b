package cmd

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/embedder"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/suggest"
)

func newSuggestCmd() *cobra.Command {
	var apply bool
	var format string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Scan the index for note-worthy patterns",
		Long: `Runs the suggestion detectors (dead-code clusters, untested hotspots,
high-risk functions, stale note mentions) and prints candidate notes.
With --apply, the suggestions are written into the notes store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, apply)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			suggestions, err := suggest.Suggest(ctx, eng.Store, eng.Root)
			if err != nil {
				return err
			}

			if apply {
				for _, sg := range suggestions {
					vec, eerr := eng.Embedder.EmbedQuery(ctx, sg.Text)
					if eerr != nil {
						return eerr
					}
					note := &model.Note{
						ID:        "suggest:" + uuid.NewString(),
						Text:      sg.Text,
						Sentiment: sg.Sentiment,
						Mentions:  sg.Mentions,
						Embedding: embedder.NoteVector(vec, sg.Sentiment),
					}
					if uerr := eng.Store.UpsertNote(ctx, note); uerr != nil {
						return uerr
					}
				}
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"suggestions": suggestions, "applied": apply})
			}

			out := cliutil.New(cmd.OutOrStdout())
			if len(suggestions) == 0 {
				out.Status("", "no suggestions")
				return nil
			}
			for _, sg := range suggestions {
				out.Statusf("", "[%s] %s", sg.Reason, sg.Text)
			}
			if apply {
				out.Successf("saved %d note(s)", len(suggestions))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Write suggestions into the notes store")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
