package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/refindex"
	"github.com/cqs-dev/cqs/internal/search"
)

type searchOptions struct {
	limit        int
	language     string
	pathPattern  string
	nameOnly     bool
	semanticOnly bool
	withNotes    bool
	notesOnly    bool
	format       string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search combines BM25 full-text matching over chunk names/signatures/content
with embedding cosine similarity, fused with Reciprocal Rank Fusion (k=60).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language")
	cmd.Flags().StringVarP(&opts.pathPattern, "path", "p", "", "Filter by path glob")
	cmd.Flags().BoolVar(&opts.nameOnly, "name-only", false, "Match only chunk names, skip hybrid search")
	cmd.Flags().BoolVar(&opts.semanticOnly, "semantic-only", false, "Skip BM25/RRF fusion, rank by embedding similarity only")
	cmd.Flags().BoolVar(&opts.withNotes, "notes", false, "Merge matching notes into the results")
	cmd.Flags().BoolVar(&opts.notesOnly, "notes-only", false, "Search only notes, skip code chunks")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if opts.nameOnly {
		results, err := eng.Store.SearchByName(ctx, query, opts.limit)
		if err != nil {
			return err
		}
		tagged := make([]refindex.TaggedResult, len(results))
		for i, r := range results {
			tagged[i] = refindex.TaggedResult{SearchResult: r}
		}
		return renderSearchResults(cmd, query, tagged, opts.format)
	}

	filter := search.Filter{
		Languages:   splitNonEmpty(opts.language),
		PathPattern: opts.pathPattern,
		EnableRRF:   !opts.semanticOnly,
		NoteOnly:    opts.notesOnly,
	}

	if opts.withNotes || opts.notesOnly {
		unified, err := eng.SearchUnified(ctx, query, filter, opts.limit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		tagged := make([]refindex.TaggedResult, len(unified))
		for i, r := range unified {
			tagged[i] = refindex.TaggedResult{SearchResult: r}
		}
		return renderSearchResults(cmd, query, tagged, opts.format)
	}

	results, err := eng.SearchCombined(ctx, query, filter, opts.limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return renderSearchResults(cmd, query, results, opts.format)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func renderSearchResults(cmd *cobra.Command, query string, results []refindex.TaggedResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := cliutil.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("no results for %q", query))
		return nil
	}
	out.Statusf("", "found %d result(s) for %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		if r.Note != nil {
			out.Statusf("", "%d. note %s score=%.3f", i+1, r.Note.ID, r.Score)
			out.Status("", "   "+firstLine(r.Note.Text))
			continue
		}
		loc := r.Chunk.Origin
		if r.Chunk.LineStart > 0 {
			loc = fmt.Sprintf("%s:%d", r.Chunk.Origin, r.Chunk.LineStart)
		}
		label := r.Chunk.Name
		if r.RefName != "" {
			label = fmt.Sprintf("%s [%s]", label, r.RefName)
		}
		out.Statusf("", "%d. %s (%s) score=%.3f", i+1, label, loc, r.Score)
		out.Status("", "   "+firstLine(r.Chunk.Signature, r.Chunk.Content))
	}
	return nil
}

func firstLine(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if idx := strings.IndexByte(c, '\n'); idx >= 0 {
			return c[:idx]
		}
		return c
	}
	return ""
}
