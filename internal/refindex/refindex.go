// Package refindex implements reference indexes: read-only
// pre-built stores searched alongside the primary project store, weighted
// and merged into a single result list.
package refindex

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// Config describes a single reference to load.
type Config struct {
	Name   string
	Path   string
	Weight float64
}

// Reference is an opened, read-only reference index ready to search.
type Reference struct {
	Name   string
	Weight float64
	Store  *store.Store
	Engine *search.Engine
}

// validateName enforces reference storage path validation:
// names must be non-empty, contain no '/', '\', "..", or '.'.
func validateName(name string) error {
	if name == "" {
		return cqserrors.New(cqserrors.ErrCodeInvalidReference, "reference name must not be empty", nil)
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") || strings.Contains(name, ".") {
		return cqserrors.New(cqserrors.ErrCodeInvalidReference, "reference name contains disallowed characters", nil)
	}
	return nil
}

// LoadReferences opens every config in parallel, rejecting any whose path
// is a symlink (a trust-boundary violation since references are untrusted
// pre-built artifacts).
func LoadReferences(configs []Config) ([]*Reference, []error) {
	refs := make([]*Reference, len(configs))
	errs := make([]error, len(configs))

	var g errgroup.Group
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			refs[i], errs[i] = loadOne(cfg)
			return nil
		})
	}
	_ = g.Wait()

	var outRefs []*Reference
	var outErrs []error
	for i := range configs {
		if errs[i] != nil {
			outErrs = append(outErrs, errs[i])
			continue
		}
		outRefs = append(outRefs, refs[i])
	}
	return outRefs, outErrs
}

func loadOne(cfg Config) (*Reference, error) {
	if err := validateName(cfg.Name); err != nil {
		return nil, err
	}
	info, err := os.Lstat(cfg.Path)
	if err != nil {
		return nil, cqserrors.StoreError("stat reference path", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, cqserrors.New(cqserrors.ErrCodeInvalidReference, "reference path must not be a symlink: "+cfg.Path, nil)
	}

	dbPath := cfg.Path
	if info.IsDir() {
		dbPath = filepath.Join(cfg.Path, "index.db")
	}
	s, err := store.OpenReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	return &Reference{Name: cfg.Name, Weight: cfg.Weight, Store: s, Engine: search.New(s, nil)}, nil
}

// Close closes every reference's underlying store.
func Close(refs []*Reference) {
	for _, r := range refs {
		_ = r.Store.Close()
	}
}

// SearchReference runs filter against a single reference. When
// applyWeight is true, every result's score is multiplied by the
// reference's weight and threshold is re-applied, which can drop results
// that passed the raw threshold.
func SearchReference(ctx context.Context, ref *Reference, queryEmb model.Embedding, filter search.Filter, limit int, threshold float64, applyWeight bool) ([]model.SearchResult, error) {
	results, err := ref.Engine.SearchFiltered(ctx, queryEmb, filter, limit)
	if err != nil {
		return nil, err
	}
	if !applyWeight {
		return results, nil
	}

	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		r.Score *= ref.Weight
		if r.Score < threshold {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// TaggedResult pairs a result with the reference it came from ("" for the
// primary project store).
type TaggedResult struct {
	model.SearchResult
	RefName string
}

// MergeResults concatenates tagged primary and per-reference results,
// sorts by score descending, deduplicates code results by content-hash
// keeping the highest score (notes are never deduplicated), and truncates
// to limit.
func MergeResults(primary []model.SearchResult, refResults map[string][]model.SearchResult, limit int) []TaggedResult {
	all := make([]TaggedResult, 0, len(primary))
	for _, r := range primary {
		all = append(all, TaggedResult{SearchResult: r})
	}
	for refName, results := range refResults {
		for _, r := range results {
			all = append(all, TaggedResult{SearchResult: r, RefName: refName})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	seen := map[string]struct{}{}
	out := make([]TaggedResult, 0, len(all))
	for _, r := range all {
		if r.Source == "note" {
			out = append(out, r)
			continue
		}
		if r.Chunk == nil {
			continue
		}
		if _, dup := seen[r.Chunk.ContentHash]; dup {
			continue
		}
		seen[r.Chunk.ContentHash] = struct{}{}
		out = append(out, r)
	}

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
