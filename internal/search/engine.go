package search

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
	"github.com/cqs-dev/cqs/internal/vectorindex"
)

// candidateStore is the subset of *store.Store the engine needs, so tests
// can exercise the pipeline against a real temp-file store without pulling
// in anything else.
type candidateStore interface {
	ScanCandidates(ctx context.Context, filter store.CandidateFilter) ([]store.Candidate, error)
	ScanCandidatesByIDs(ctx context.Context, ids []string) ([]store.Candidate, error)
	SearchChunksFTS(ctx context.Context, queryText string, limit int) ([]store.FTSHit, error)
	SearchNotesFTS(ctx context.Context, queryText string, limit int) ([]store.FTSHit, error)
	GetAllNotes(ctx context.Context) ([]*model.Note, error)
}

// Engine runs the hybrid scoring pipeline over a Store, optionally
// accelerated by a vectorindex.VectorIndex.
type Engine struct {
	store candidateStore
	index vectorindex.VectorIndex // nil means brute-force scan
}

// New returns an Engine over store, optionally accelerated by index (pass
// nil for the brute-force candidate scan path).
func New(s candidateStore, index vectorindex.VectorIndex) *Engine {
	return &Engine{store: s, index: index}
}

// SearchFiltered runs the full code-chunk scoring pipeline: gather candidates, score by embedding + optional name boost,
// filter by path glob and threshold, truncate, optionally fuse with FTS
// via RRF, join back to full records, and dedupe windowed chunks by
// parent id.
func (e *Engine) SearchFiltered(ctx context.Context, query model.Embedding, filter Filter, limit int) ([]model.SearchResult, error) {
	var globMatcher func(origin string) bool
	if filter.PathPattern != "" {
		globMatcher = func(origin string) bool {
			ok, _ := doublestar.Match(filter.PathPattern, origin)
			return ok
		}
	}

	candidates, err := e.gatherCandidates(ctx, query, filter, limit)
	if err != nil {
		return nil, err
	}

	threshold := filter.Threshold
	scored := make([]model.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		embScore := store.CosineSimilarity(query, c.Embedding)
		var nameScore, finalScore float64
		finalScore = embScore
		if filter.NameBoost > 0 && strings.TrimSpace(filter.QueryText) != "" {
			nameScore = NameScore(filter.QueryText, c.Chunk.Name)
			finalScore = (1-filter.NameBoost)*embScore + filter.NameBoost*nameScore
		}
		if globMatcher != nil && !globMatcher(c.Chunk.Origin) {
			continue
		}
		if finalScore < threshold {
			continue
		}
		scored = append(scored, model.SearchResult{
			Chunk:      c.Chunk,
			Score:      finalScore,
			EmbScore:   embScore,
			NameScore:  nameScore,
			Source:     "code",
			MatchedVia: "vector",
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	truncateTo := limit
	if filter.EnableRRF && strings.TrimSpace(filter.QueryText) != "" {
		truncateTo = limit * 3
	}
	if truncateTo >= 0 && len(scored) > truncateTo {
		scored = scored[:truncateTo]
	}

	if filter.EnableRRF && strings.TrimSpace(filter.QueryText) != "" {
		scored, err = e.fuseWithFTS(ctx, scored, filter.QueryText, limit)
		if err != nil {
			return nil, err
		}
	}

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return dedupeByParent(scored), nil
}

// gatherCandidates implements step 2 of the pipeline: with a vector index,
// restrict scoring to its approximate top max(limit*5, 100) ids; without
// one, scan every chunk matching languages/chunk types.
func (e *Engine) gatherCandidates(ctx context.Context, query model.Embedding, filter Filter, limit int) ([]store.Candidate, error) {
	if e.index != nil && e.index.Len() > 0 {
		k := limit * 5
		if k < minIndexCandidate {
			k = minIndexCandidate
		}
		hits, err := e.index.Search(query, k)
		if err != nil {
			return nil, cqserrors.StoreError("vector index search", err)
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		return e.store.ScanCandidatesByIDs(ctx, ids)
	}

	storeFilter := store.CandidateFilter{Languages: filter.Languages, ChunkTypes: filter.ChunkTypes}
	return e.store.ScanCandidates(ctx, storeFilter)
}

// fuseWithFTS implements pipeline step 5: submit the normalized query to
// FTS, take its top limit*3 hits by BM25, and fuse the two ranked lists by
// RRF (K=60), truncating to limit.
func (e *Engine) fuseWithFTS(ctx context.Context, scored []model.SearchResult, queryText string, limit int) ([]model.SearchResult, error) {
	ftsHits, err := e.store.SearchChunksFTS(ctx, queryText, limit*3)
	if err != nil {
		return nil, cqserrors.StoreError("fts fusion search", err)
	}
	if len(ftsHits) == 0 {
		return scored, nil
	}

	byID := make(map[string]model.SearchResult, len(scored))
	list1 := make([]rankedHit, len(scored))
	for i, r := range scored {
		byID[r.Chunk.ID] = r
		list1[i] = rankedHit{id: r.Chunk.ID, score: r.Score}
	}
	list2 := make([]rankedHit, len(ftsHits))
	for i, h := range ftsHits {
		list2[i] = rankedHit{id: h.ChunkID, score: h.Score}
	}

	fused := rrfFuse(list1, list2)

	// ids present only in the FTS list need their chunk fetched.
	var missingIDs []string
	for _, f := range fused {
		if _, ok := byID[f.id]; !ok {
			missingIDs = append(missingIDs, f.id)
		}
	}
	if len(missingIDs) > 0 {
		extra, err := e.store.ScanCandidatesByIDs(ctx, missingIDs)
		if err != nil {
			return nil, cqserrors.StoreError("fetch fts-only candidates", err)
		}
		for _, c := range extra {
			byID[c.Chunk.ID] = model.SearchResult{Chunk: c.Chunk, Source: "code"}
		}
	}

	out := make([]model.SearchResult, 0, len(fused))
	for _, f := range fused {
		r, ok := byID[f.id]
		if !ok {
			continue
		}
		r.Score = f.rrfScore
		r.MatchedVia = "rrf"
		out = append(out, r)
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// dedupeByParent implements pipeline step 7: collapse windowed chunks
// sharing a parent id down to their first (highest-scoring) occurrence.
func dedupeByParent(results []model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		key := r.Chunk.ParentID
		if key == "" {
			key = r.Chunk.ID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
