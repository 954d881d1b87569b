// Package engine wires a project's Store, Embedder, VectorIndex, search
// Engine, and Analyzer together behind a single handle, so the CLI,
// batch, and MCP front ends share one construction path instead of each
// repeating it: a single struct wiring the independently-testable
// pieces, rather than a god object.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/config"
	"github.com/cqs-dev/cqs/internal/embedder"
	"github.com/cqs-dev/cqs/internal/ingest"
	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/refindex"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
	"github.com/cqs-dev/cqs/internal/vectorindex"
)

// ReferencesDir returns the platform-local directory that holds
// pre-built reference indexes, one subdirectory per reference name.
func ReferencesDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cqs", "refs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cqs-refs")
	}
	return filepath.Join(home, ".local", "share", "cqs", "refs")
}

// Engine is a ready-to-use handle on one project's index: the project
// root, its resolved config, the primary Store, an Embedder, an optional
// accelerating VectorIndex, the hybrid search Engine, the analysis
// Analyzer, the ingest Pipeline, and any loaded reference indexes.
type Engine struct {
	Root       string
	Config     *config.Config
	Store      *store.Store
	Embedder   embedder.Embedder
	Index      vectorindex.VectorIndex
	Search     *search.Engine
	Analyzer   *analysis.Analyzer
	Ingest     *ingest.Pipeline
	Registry   *lang.Registry
	References []*refindex.Reference

	// NotesSuppressed is set from .cqs/audit_state.json: while an
	// operator audits the notes store, search keeps notes out of
	// unified results.
	NotesSuppressed bool
}

// Options controls how Open resolves a project's store and embedder.
type Options struct {
	// ReadOnly opens the store without acquiring the writer lock, for
	// commands that only query.
	ReadOnly bool
}

// Open resolves root's config, opens (or initializes) its Store, loads a
// persisted vector index if present, and wires every collaborator
// together. The caller must call Close when done.
func Open(ctx context.Context, root string, opts Options) (*Engine, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	emb := embedder.NewStatic()
	dataDir := filepath.Join(root, cfg.Store.DataDir)
	dbPath := filepath.Join(dataDir, "index.db")

	storeOpts := store.Options{
		Dimensions: emb.Dimensions(),
		ModelName:  emb.ModelName(),
	}

	var st *store.Store
	if opts.ReadOnly {
		st, err = store.OpenReadOnly(dbPath)
	} else {
		st, err = store.Open(dbPath, storeOpts)
	}
	if err != nil {
		return nil, err
	}

	var idx vectorindex.VectorIndex
	if loaded, ok, lerr := vectorindex.TryLoad(dataDir); lerr == nil && ok {
		idx = loaded
	}

	searchEngine := search.New(st, idx)
	analyzer := analysis.New(st, searchEngine)
	pipeline := ingest.New(st, emb, idx, cfg)

	refs, errs := loadConfiguredReferences(cfg, dataDir)
	for _, rerr := range errs {
		// Reference failures are warnings, not fatal: the primary index
		// still works.
		slog.Warn("reference_load_failed", slog.Any("err", rerr))
	}

	return &Engine{
		Root:            root,
		Config:          cfg,
		Store:           st,
		Embedder:        emb,
		Index:           idx,
		Search:          searchEngine,
		Analyzer:        analyzer,
		Ingest:          pipeline,
		Registry:        lang.Default(),
		References:      refs,
		NotesSuppressed: loadAuditState(dataDir).SuppressNotes,
	}, nil
}

// loadConfiguredReferences opens every reference named in the project
// config, then discovers any further references under ReferencesDir, all
// in parallel. A discovered reference's weight comes from
// an optional "weight" file (a bare float) alongside its index.db;
// references without one default to weight 1.0.
func loadConfiguredReferences(cfg *config.Config, dataDir string) ([]*refindex.Reference, []error) {
	_ = dataDir
	var configs []refindex.Config
	declared := map[string]struct{}{}
	for _, rc := range cfg.References {
		declared[rc.Name] = struct{}{}
		configs = append(configs, refindex.Config{Name: rc.Name, Path: rc.Path, Weight: rc.Weight})
	}

	refsRoot := ReferencesDir()
	entries, err := os.ReadDir(refsRoot)
	if err != nil {
		entries = nil
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := declared[e.Name()]; ok {
			continue
		}
		weight := 1.0
		if raw, rerr := os.ReadFile(filepath.Join(refsRoot, e.Name(), "weight")); rerr == nil {
			if parsed, perr := parseWeight(string(raw)); perr == nil {
				weight = parsed
			}
		}
		configs = append(configs, refindex.Config{
			Name:   e.Name(),
			Path:   filepath.Join(refsRoot, e.Name()),
			Weight: weight,
		})
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return refindex.LoadReferences(configs)
}

func parseWeight(s string) (float64, error) {
	var w float64
	_, err := fmt.Sscanf(s, "%f", &w)
	return w, err
}

// Close releases the store and every loaded reference.
func (e *Engine) Close() error {
	refindex.Close(e.References)
	return e.Store.Close()
}

// EmbedQuery embeds text with this engine's embedder, a thin convenience
// wrapper so callers need not import internal/embedder directly.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.Embedder.EmbedQuery(ctx, text)
	return vec, err
}

// SearchCombined runs the primary hybrid search and, when references are
// loaded, searches each one (weighted) and merges everything with
// refindex.MergeResults.
func (e *Engine) SearchCombined(ctx context.Context, query string, filter search.Filter, limit int) ([]refindex.TaggedResult, error) {
	queryEmb, err := e.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	filter.QueryText = query

	primary, err := e.Search.SearchFiltered(ctx, queryEmb, filter, limit)
	if err != nil {
		return nil, err
	}
	if len(e.References) == 0 {
		return refindex.MergeResults(primary, nil, limit), nil
	}

	refResults := make(map[string][]model.SearchResult, len(e.References))
	for _, ref := range e.References {
		results, rerr := refindex.SearchReference(ctx, ref, queryEmb, filter, limit, filter.Threshold, true)
		if rerr != nil {
			continue
		}
		refResults[ref.Name] = results
	}
	return refindex.MergeResults(primary, refResults, limit), nil
}

// SearchUnified runs the unified code+notes search,
// honoring the audit-state suppression flag: while notes are suppressed,
// the call degrades to code-only search with identical semantics.
func (e *Engine) SearchUnified(ctx context.Context, query string, filter search.Filter, limit int) ([]model.SearchResult, error) {
	queryEmb, err := e.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	filter.QueryText = query
	if e.NotesSuppressed {
		return e.Search.SearchFiltered(ctx, queryEmb, filter, limit)
	}
	if filter.NoteOnly {
		return e.Search.SearchNotes(ctx, queryEmb, filter, limit)
	}
	return e.Search.SearchUnified(ctx, queryEmb, filter, limit)
}
