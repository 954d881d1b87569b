package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
)

// ChunkEmbedding pairs a chunk with its embedding for upsert.
type ChunkEmbedding struct {
	Chunk     *model.Chunk
	Embedding model.Embedding
}

// UpsertChunksBatch inserts or replaces every (chunk, embedding) pair in a
// single transaction: INSERT OR REPLACE into chunks, then delete+reinsert
// the chunks_fts row with normalized text.
func (s *Store) UpsertChunksBatch(ctx context.Context, pairs []ChunkEmbedding) error {
	if len(pairs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO chunks(
				id, origin, source_type, language, chunk_type, name, signature, content,
				content_hash, doc, line_start, line_end, embedding, source_mtime,
				parent_id, window_idx, parent_type_name, created_at, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return cqserrors.StoreError("prepare chunk upsert", err)
		}
		defer upsert.Close()

		for _, p := range pairs {
			c := p.Chunk
			now := time.Now().UTC()
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			var windowIdx any
			if c.WindowIdx != nil {
				windowIdx = *c.WindowIdx
			}
			var parentID any
			if c.ParentID != "" {
				parentID = c.ParentID
			}

			if _, err := upsert.ExecContext(ctx,
				c.ID, c.Origin, "file", c.Language, string(c.ChunkType), c.Name, c.Signature, c.Content,
				c.ContentHash, c.Doc, c.LineStart, c.LineEnd, encodeEmbedding(p.Embedding), c.SourceMtime,
				parentID, windowIdx, c.ParentTypeName, createdAt.Unix(), now.Unix(),
			); err != nil {
				return cqserrors.StoreError(fmt.Sprintf("upsert chunk %s", c.ID), err)
			}

			var rowid int64
			if err := tx.QueryRowContext(ctx, `SELECT rowid FROM chunks WHERE id = ?`, c.ID).Scan(&rowid); err != nil {
				return cqserrors.StoreError("resolve chunk rowid", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE rowid = ?`, rowid); err != nil {
				return cqserrors.StoreError("clear fts row", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunks_fts(rowid, name, signature, content, doc) VALUES (?,?,?,?,?)`,
				rowid, nl.NormalizeForFTS(c.Name), nl.NormalizeForFTS(c.Signature),
				nl.NormalizeForFTS(c.Content), nl.NormalizeForFTS(c.Doc),
			); err != nil {
				return cqserrors.StoreError("insert fts row", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range pairs {
		s.embCache.Add(p.Chunk.ContentHash, p.Embedding)
	}
	return nil
}

// rowToChunk scans a chunks row into a model.Chunk. embedding is decoded
// separately by callers that need it.
func rowToChunk(rows *sql.Rows) (*model.Chunk, []byte, error) {
	var c model.Chunk
	var chunkType, parentID, parentTypeName sql.NullString
	var windowIdx sql.NullInt64
	var embBlob []byte
	var createdAt, updatedAt int64

	if err := rows.Scan(
		&c.ID, &c.Origin, &c.Language, &chunkType, &c.Name, &c.Signature, &c.Content,
		&c.ContentHash, &c.Doc, &c.LineStart, &c.LineEnd, &embBlob, &c.SourceMtime,
		&parentID, &windowIdx, &parentTypeName, &createdAt, &updatedAt,
	); err != nil {
		return nil, nil, err
	}
	c.ChunkType = model.ChunkType(chunkType.String)
	c.ParentID = parentID.String
	c.ParentTypeName = parentTypeName.String
	if windowIdx.Valid {
		idx := int(windowIdx.Int64)
		c.WindowIdx = &idx
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, embBlob, nil
}

const chunkColumns = `id, origin, language, chunk_type, name, signature, content,
	content_hash, doc, line_start, line_end, embedding, source_mtime,
	parent_id, window_idx, parent_type_name, created_at, updated_at`

// GetChunkByID fetches a single chunk by its id, or (nil, false) if absent.
func (s *Store) GetChunkByID(ctx context.Context, id string) (*model.Chunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	if err != nil {
		return nil, false, cqserrors.StoreError("get chunk by id", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, nil
	}
	c, _, err := rowToChunk(rows)
	if err != nil {
		return nil, false, cqserrors.StoreError("scan chunk", err)
	}
	return c, true, nil
}

// GetChunksByOrigin returns every chunk whose origin exactly matches
// origin.
func (s *Store) GetChunksByOrigin(ctx context.Context, origin string) ([]*model.Chunk, error) {
	return s.GetChunksByOriginsBatch(ctx, []string{origin})
}

// GetChunksByOriginsBatch fetches chunks for many exact origins in
// bounded-size SQL IN-batches.
func (s *Store) GetChunksByOriginsBatch(ctx context.Context, origins []string) ([]*model.Chunk, error) {
	if len(origins) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Chunk
	bs := batchSize(1)
	for i := 0; i < len(origins); i += bs {
		end := i + bs
		if end > len(origins) {
			end = len(origins)
		}
		batch := origins[i:end]
		placeholders := strings.TrimRight(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for j, o := range batch {
			args[j] = o
		}
		rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE origin IN (`+placeholders+`) ORDER BY line_start`, args...)
		if err != nil {
			return nil, cqserrors.StoreError("get chunks by origin batch", err)
		}
		for rows.Next() {
			c, _, err := rowToChunk(rows)
			if err != nil {
				rows.Close()
				return nil, cqserrors.StoreError("scan chunk", err)
			}
			out = append(out, c)
		}
		rows.Close()
	}
	return out, nil
}

// GetEmbeddingsByHashes returns stored embeddings keyed by content_hash
// for every hash found, letting the ingest pipeline skip re-embedding
// unchanged chunks.
func (s *Store) GetEmbeddingsByHashes(ctx context.Context, hashes []string) (map[string]model.Embedding, error) {
	out := map[string]model.Embedding{}
	if len(hashes) == 0 {
		return out, nil
	}

	// Serve recently-seen hashes from the LRU before touching SQL.
	var misses []string
	for _, h := range hashes {
		if emb, ok := s.embCache.Get(h); ok {
			out[h] = emb
			continue
		}
		misses = append(misses, h)
	}
	if len(misses) == 0 {
		return out, nil
	}
	hashes = misses

	s.mu.RLock()
	defer s.mu.RUnlock()

	bs := batchSize(1)
	for i := 0; i < len(hashes); i += bs {
		end := i + bs
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[i:end]
		placeholders := strings.TrimRight(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for j, h := range batch {
			args[j] = h
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT content_hash, embedding FROM chunks WHERE content_hash IN (`+placeholders+`) AND embedding IS NOT NULL`, args...)
		if err != nil {
			return nil, cqserrors.StoreError("get embeddings by hashes", err)
		}
		for rows.Next() {
			var hash string
			var blob []byte
			if err := rows.Scan(&hash, &blob); err != nil {
				rows.Close()
				return nil, cqserrors.StoreError("scan embedding", err)
			}
			if emb, ok := decodeEmbedding(blob, s.dims); ok {
				if _, exists := out[hash]; !exists {
					out[hash] = emb
					s.embCache.Add(hash, emb)
				}
			}
		}
		rows.Close()
	}
	return out, nil
}

// NeedsReindex reports whether origin has no chunks yet, or its stored
// source_mtime is strictly older than mtime.
func (s *Store) NeedsReindex(ctx context.Context, origin string, mtime time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stored int64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(source_mtime) FROM chunks WHERE origin = ?`, origin).Scan(&stored)
	if err == sql.ErrNoRows || stored == 0 {
		return true, nil
	}
	if err != nil {
		return false, cqserrors.StoreError("check needs_reindex", err)
	}
	return mtime.Unix() > stored, nil
}

// PruneMissing deletes chunks (source_type='file') whose origin is not in
// existingFiles, returning the number of rows deleted.
func (s *Store) PruneMissing(ctx context.Context, existingFiles map[string]struct{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT origin FROM chunks WHERE source_type = 'file'`)
	if err != nil {
		return 0, cqserrors.StoreError("list origins", err)
	}
	var stale []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			rows.Close()
			return 0, cqserrors.StoreError("scan origin", err)
		}
		if _, ok := existingFiles[origin]; !ok {
			stale = append(stale, origin)
		}
	}
	rows.Close()
	if len(stale) == 0 {
		return 0, nil
	}

	var total int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, origin := range stale {
			res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE origin = ? AND source_type = 'file'`, origin)
			if err != nil {
				return cqserrors.StoreError("prune origin "+origin, err)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// EmbeddingBatches streams every (id, embedding) pair in the store to fn
// in fixed-size pages, without holding the full table in memory — a
// finite, non-restartable producer so index builders can stream rather
// than load everything upfront. fn returns false to stop
// early.
func (s *Store) EmbeddingBatches(ctx context.Context, batchSizeHint int, fn func(id string, emb model.Embedding) bool) error {
	if batchSizeHint <= 0 {
		batchSizeHint = 1000
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastRowid int64
	for {
		rows, err := s.db.QueryContext(ctx,
			`SELECT rowid, id, embedding FROM chunks WHERE rowid > ? AND embedding IS NOT NULL ORDER BY rowid LIMIT ?`,
			lastRowid, batchSizeHint)
		if err != nil {
			return cqserrors.StoreError("scan embedding batch", err)
		}
		n := 0
		keepGoing := true
		for rows.Next() {
			var rowid int64
			var id string
			var blob []byte
			if err := rows.Scan(&rowid, &id, &blob); err != nil {
				rows.Close()
				return cqserrors.StoreError("scan embedding row", err)
			}
			lastRowid = rowid
			n++
			if !keepGoing {
				continue
			}
			emb, ok := decodeEmbedding(blob, s.dims)
			if !ok {
				continue
			}
			if !fn(id, emb) {
				keepGoing = false
			}
		}
		rows.Close()
		if !keepGoing || n == 0 {
			return nil
		}
	}
}

// PruneStaleTypeEdges removes type_edges rows whose source_chunk_id no
// longer exists in chunks (orphans CASCADE normally misses only when a
// row was inserted after its source was deleted out of band).
func (s *Store) PruneStaleTypeEdges(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM type_edges WHERE source_chunk_id NOT IN (SELECT id FROM chunks)`)
	if err != nil {
		return 0, cqserrors.StoreError("prune stale type edges", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
