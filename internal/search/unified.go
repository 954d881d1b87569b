package search

import (
	"context"
	"sort"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
)

// SearchNotes scores every stored note against query by cosine similarity,
// optionally fused with FTS via the same RRF scheme as code search, and
// returns the top limit results above threshold.
func (e *Engine) SearchNotes(ctx context.Context, query model.Embedding, filter Filter, limit int) ([]model.SearchResult, error) {
	notes, err := e.store.GetAllNotes(ctx)
	if err != nil {
		return nil, cqserrors.StoreError("scan notes", err)
	}

	scored := make([]model.SearchResult, 0, len(notes))
	byID := make(map[string]*model.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
		embScore := noteCosine(query, n.Embedding)
		if embScore < filter.Threshold {
			continue
		}
		scored = append(scored, model.SearchResult{
			Note:       n,
			Score:      embScore * weightOrOne(filter.NoteWeight),
			EmbScore:   embScore,
			Source:     "note",
			MatchedVia: "vector",
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Note.ID < scored[j].Note.ID
	})

	if filter.EnableRRF && filter.QueryText != "" {
		ftsHits, err := e.store.SearchNotesFTS(ctx, filter.QueryText, limit*3)
		if err != nil {
			return nil, cqserrors.StoreError("notes fts fusion search", err)
		}
		if len(ftsHits) > 0 {
			list1 := make([]rankedHit, len(scored))
			for i, r := range scored {
				list1[i] = rankedHit{id: r.Note.ID, score: r.Score}
			}
			list2 := make([]rankedHit, len(ftsHits))
			for i, h := range ftsHits {
				list2[i] = rankedHit{id: h.ChunkID, score: h.Score}
			}
			fused := rrfFuse(list1, list2)
			out := make([]model.SearchResult, 0, len(fused))
			for _, f := range fused {
				n, ok := byID[f.id]
				if !ok {
					continue
				}
				out = append(out, model.SearchResult{Note: n, Score: f.rrfScore, Source: "note", MatchedVia: "rrf"})
			}
			scored = out
		}
	}

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// noteCosine scores a query vector against a note embedding. Note vectors
// carry one extra trailing sentiment dimension;
// the query is treated as sentiment-neutral, so that dimension simply
// contributes nothing to the dot product.
func noteCosine(query, note model.Embedding) float64 {
	if len(note) == len(query)+1 {
		note = note[:len(query)]
	}
	return store.CosineSimilarity(query, note)
}

func weightOrOne(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

// SearchUnified runs SearchFiltered for code and SearchNotes for notes,
// then merges them: at least 3*limit/5 slots are
// reserved for code, the remainder filled with top notes, then the
// combined set is resorted by score and truncated to limit.
func (e *Engine) SearchUnified(ctx context.Context, query model.Embedding, filter Filter, limit int) ([]model.SearchResult, error) {
	minCodeSlots := 3 * limit / 5

	code, err := e.SearchFiltered(ctx, query, filter, limit)
	if err != nil {
		return nil, err
	}
	notes, err := e.SearchNotes(ctx, query, filter, limit)
	if err != nil {
		return nil, err
	}

	remainder := limit - min(len(code), minCodeSlots)
	if remainder < 0 {
		remainder = 0
	}
	if remainder > len(notes) {
		remainder = len(notes)
	}

	merged := make([]model.SearchResult, 0, len(code)+remainder)
	merged = append(merged, code...)
	merged = append(merged, notes[:remainder]...)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
