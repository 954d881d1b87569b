package store

import (
	"context"
	"strings"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
)

// CandidateFilter narrows the brute-force / index-guided candidate scan
// to chunks matching languages and chunk types (SQL-pushed WHERE).
type CandidateFilter struct {
	Languages  []string
	ChunkTypes []model.ChunkType
}

// Candidate is a chunk plus its decoded embedding, as scanned for scoring.
type Candidate struct {
	Chunk     *model.Chunk
	Embedding model.Embedding
}

// ScanCandidates iterates chunks matching filter (all chunks when filter
// is empty), decoding embeddings as it goes. Rows with a missing or
// malformed embedding are skipped with a warning, never erroring the
// whole scan.
func (s *Store) ScanCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE 1=1`
	var args []any
	if len(filter.Languages) > 0 {
		query += ` AND language IN (` + placeholders(len(filter.Languages)) + `)`
		for _, l := range filter.Languages {
			args = append(args, l)
		}
	}
	if len(filter.ChunkTypes) > 0 {
		query += ` AND chunk_type IN (` + placeholders(len(filter.ChunkTypes)) + `)`
		for _, t := range filter.ChunkTypes {
			args = append(args, string(t))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cqserrors.StoreError("scan candidates", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, blob, err := rowToChunk(rows)
		if err != nil {
			return nil, cqserrors.StoreError("scan candidate chunk", err)
		}
		emb, ok := decodeEmbedding(blob, s.dims)
		if !ok {
			continue
		}
		out = append(out, Candidate{Chunk: c, Embedding: emb})
	}
	return out, nil
}

// ScanCandidatesByIDs fetches candidates restricted to ids (used after a
// vector-index lookup narrows the id set).
func (s *Store) ScanCandidatesByIDs(ctx context.Context, ids []string) ([]Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Candidate
	bs := batchSize(1)
	for i := 0; i < len(ids); i += bs {
		end := i + bs
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]
		rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders(len(batch))+`)`, toArgs(batch)...)
		if err != nil {
			return nil, cqserrors.StoreError("scan candidates by ids", err)
		}
		for rows.Next() {
			c, blob, err := rowToChunk(rows)
			if err != nil {
				rows.Close()
				return nil, cqserrors.StoreError("scan candidate chunk", err)
			}
			emb, ok := decodeEmbedding(blob, s.dims)
			if !ok {
				continue
			}
			out = append(out, Candidate{Chunk: c, Embedding: emb})
		}
		rows.Close()
	}
	return out, nil
}

// FTSHit is a single full-text match, ranked by the engine's internal
// ranking function.
type FTSHit struct {
	ChunkID string
	Score   float64
}

// SearchChunksFTS runs a normalized query against chunks_fts, returning up
// to limit hits ordered best-first by bm25() (more negative = better,
// negated here so higher = better).
func (s *Store) SearchChunksFTS(ctx context.Context, queryText string, limit int) ([]FTSHit, error) {
	normalized := nl.NormalizeForFTS(queryText)
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?`, normalized, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, cqserrors.StoreError("fts search", err)
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, cqserrors.StoreError("scan fts hit", err)
		}
		out = append(out, FTSHit{ChunkID: id, Score: -score})
	}
	return out, nil
}

// SearchNotesFTS mirrors SearchChunksFTS over notes_fts.
func (s *Store) SearchNotesFTS(ctx context.Context, queryText string, limit int) ([]FTSHit, error) {
	normalized := nl.NormalizeForFTS(queryText)
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, bm25(notes_fts) AS score
		FROM notes_fts
		JOIN notes n ON n.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ?
		ORDER BY score
		LIMIT ?`, normalized, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, cqserrors.StoreError("notes fts search", err)
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, cqserrors.StoreError("scan notes fts hit", err)
		}
		out = append(out, FTSHit{ChunkID: id, Score: -score})
	}
	return out, nil
}

// ScanAllCandidateIDs returns every chunk id matching filter: the full
// candidate universe that ScanCandidates would score.
func (s *Store) ScanAllCandidateIDs(ctx context.Context, filter CandidateFilter) ([]string, error) {
	candidates, err := s.ScanCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Chunk.ID
	}
	return ids, nil
}
