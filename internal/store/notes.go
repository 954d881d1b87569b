package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
)

// UpsertNote inserts or replaces a note and its notes_fts row, mirroring
// the chunk upsert pattern in chunks.go.
func (s *Store) UpsertNote(ctx context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		mentionsJSON, err := json.Marshal(note.Mentions)
		if err != nil {
			return cqserrors.StoreError("marshal mentions", err)
		}
		now := time.Now().UTC()
		createdAt := note.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO notes(id, text, sentiment, mentions, embedding, source_file, file_mtime, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			note.ID, note.Text, note.Sentiment, string(mentionsJSON), encodeEmbedding(note.Embedding),
			note.SourceFile, note.FileMtime, createdAt.Unix(), now.Unix(),
		); err != nil {
			return cqserrors.StoreError("upsert note", err)
		}

		var rowid int64
		if err := tx.QueryRowContext(ctx, `SELECT rowid FROM notes WHERE id = ?`, note.ID).Scan(&rowid); err != nil {
			return cqserrors.StoreError("resolve note rowid", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE rowid = ?`, rowid); err != nil {
			return cqserrors.StoreError("clear notes fts row", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO notes_fts(rowid, text) VALUES (?, ?)`, rowid, nl.NormalizeForFTS(note.Text)); err != nil {
			return cqserrors.StoreError("insert notes fts row", err)
		}
		return nil
	})
}

const noteColumns = `id, text, sentiment, mentions, embedding, source_file, file_mtime, created_at, updated_at`

func rowToNote(rows *sql.Rows) (*model.Note, error) {
	var n model.Note
	var mentionsJSON string
	var embBlob []byte
	var createdAt, updatedAt int64
	if err := rows.Scan(&n.ID, &n.Text, &n.Sentiment, &mentionsJSON, &embBlob, &n.SourceFile, &n.FileMtime, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(mentionsJSON), &n.Mentions)
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if emb, ok := decodeEmbedding(embBlob, 0); ok {
		n.Embedding = emb
	}
	return &n, nil
}

// GetAllNotes returns every note, embeddings included, for brute-force
// candidate scoring by the search engine.
func (s *Store) GetAllNotes(ctx context.Context) ([]*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes`)
	if err != nil {
		return nil, cqserrors.StoreError("get all notes", err)
	}
	defer rows.Close()
	var out []*model.Note
	for rows.Next() {
		n, err := rowToNote(rows)
		if err != nil {
			return nil, cqserrors.StoreError("scan note", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// GetNoteByID fetches a single note, or (nil, false) if absent.
func (s *Store) GetNoteByID(ctx context.Context, id string) (*model.Note, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return nil, false, cqserrors.StoreError("get note by id", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, nil
	}
	n, err := rowToNote(rows)
	if err != nil {
		return nil, false, cqserrors.StoreError("scan note", err)
	}
	return n, true, nil
}

// DeleteNote removes a note and its FTS row.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var rowid int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM notes WHERE id = ?`, id).Scan(&rowid)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return cqserrors.StoreError("resolve note rowid", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE rowid = ?`, rowid); err != nil {
			return cqserrors.StoreError("delete notes fts row", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return cqserrors.StoreError("delete note", err)
		}
		return nil
	})
}

// NoteCount returns the number of stored notes (used by health reports).
func (s *Store) NoteCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, cqserrors.StoreError("count notes", err)
	}
	return n, nil
}

// ChunkCount returns the number of stored (non-window) chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE parent_id IS NULL`).Scan(&n); err != nil {
		return 0, cqserrors.StoreError("count chunks", err)
	}
	return n, nil
}

// OriginCount returns the number of distinct indexed origins.
func (s *Store) OriginCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT origin) FROM chunks`).Scan(&n); err != nil {
		return 0, cqserrors.StoreError("count origins", err)
	}
	return n, nil
}
