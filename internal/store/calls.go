package store

import (
	"context"
	"database/sql"
	"log/slog"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
)

// UpsertCallsForOrigin replaces every calls + function_calls row
// attributed to origin. calls carries the unclipped, file-level call
// sites, captured from all function/method bodies regardless of chunk
// size. Each caller's name is resolved to its non-windowed chunk id for the clipped `calls`
// table, skipping callers that resolve to no chunk (e.g. file-scope).
func (s *Store) UpsertCallsForOrigin(ctx context.Context, origin string, calls []model.CallSite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM function_calls WHERE origin = ?`, origin); err != nil {
			return cqserrors.StoreError("clear function_calls", err)
		}

		// caller chunk ids for this origin, preferring non-windowed rows,
		// resolved inside the same transaction (TOCTOU rule).
		rows, err := tx.QueryContext(ctx,
			`SELECT id, name FROM chunks WHERE origin = ? AND parent_id IS NULL`, origin)
		if err != nil {
			return cqserrors.StoreError("resolve caller ids", err)
		}
		nameToID := map[string]string{}
		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return cqserrors.StoreError("scan caller id", err)
			}
			if _, exists := nameToID[name]; !exists {
				nameToID[name] = id
			}
		}
		rows.Close()

		ids := make([]string, 0, len(nameToID))
		for _, id := range nameToID {
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			ph := placeholders(len(ids))
			args := toArgs(ids)
			if _, err := tx.ExecContext(ctx, `DELETE FROM calls WHERE caller_id IN (`+ph+`)`, args...); err != nil {
				return cqserrors.StoreError("clear calls", err)
			}
		}

		insFC, err := tx.PrepareContext(ctx,
			`INSERT INTO function_calls(origin, caller_name, caller_line, callee_name, call_line) VALUES (?,?,?,?,?)`)
		if err != nil {
			return cqserrors.StoreError("prepare function_calls insert", err)
		}
		defer insFC.Close()

		insCalls, err := tx.PrepareContext(ctx,
			`INSERT INTO calls(caller_id, callee_name, line_number) VALUES (?,?,?)`)
		if err != nil {
			return cqserrors.StoreError("prepare calls insert", err)
		}
		defer insCalls.Close()

		for _, c := range calls {
			if _, err := insFC.ExecContext(ctx, origin, c.CallerName, c.CallLine, c.CalleeName, c.CallLine); err != nil {
				return cqserrors.StoreError("insert function_call", err)
			}
			if callerID, ok := nameToID[c.CallerName]; ok {
				if _, err := insCalls.ExecContext(ctx, callerID, c.CalleeName, c.CallLine); err != nil {
					return cqserrors.StoreError("insert call", err)
				}
			}
		}
		return nil
	})
}

// UpsertTypeEdgesForOrigin replaces every type_edges row for chunks of
// origin, resolving source chunk ids inside the transaction to avoid a
// TOCTOU race with concurrent chunk upserts.
func (s *Store) UpsertTypeEdgesForOrigin(ctx context.Context, origin string, refs []model.TypeEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE origin = ?`, origin)
		if err != nil {
			return cqserrors.StoreError("resolve chunk ids for type edges", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return cqserrors.StoreError("scan chunk id", err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		if len(ids) > 0 {
			ph := placeholders(len(ids))
			args := toArgs(ids)
			if _, err := tx.ExecContext(ctx, `DELETE FROM type_edges WHERE source_chunk_id IN (`+ph+`)`, args...); err != nil {
				return cqserrors.StoreError("clear type_edges", err)
			}
		}

		ins, err := tx.PrepareContext(ctx,
			`INSERT INTO type_edges(source_chunk_id, target_type_name, edge_kind, line_number) VALUES (?,?,?,?)`)
		if err != nil {
			return cqserrors.StoreError("prepare type_edges insert", err)
		}
		defer ins.Close()

		for _, r := range refs {
			if _, err := ins.ExecContext(ctx, r.SourceChunkID, r.TargetTypeName, string(r.EdgeKind), r.Line); err != nil {
				return cqserrors.StoreError("insert type_edge", err)
			}
		}
		return nil
	})
}

// edgeCap is the hard bound on in-memory graph construction; hitting it
// logs a warning.
const edgeCap = 500_000

// GetCallGraph rebuilds the in-memory CallGraph from function_calls (the
// unclipped file-level call table), bounded by edgeCap.
func (s *Store) GetCallGraph(ctx context.Context) (*model.CallGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT caller_name, callee_name FROM function_calls LIMIT ?`, edgeCap+1)
	if err != nil {
		return nil, cqserrors.StoreError("load call graph", err)
	}
	defer rows.Close()

	g := model.NewCallGraph()
	n := 0
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			return nil, cqserrors.StoreError("scan call edge", err)
		}
		g.AddEdge(caller, callee)
		n++
		if n >= edgeCap {
			slog.Warn("store_edge_cap_hit", slog.String("graph", "call_graph"), slog.Int("cap", edgeCap))
			break
		}
	}
	return g, nil
}

// GetTypeGraph rebuilds the in-memory TypeGraph from type_edges, keyed by
// the using chunk's name rather than chunk id, bounded by edgeCap.
func (s *Store) GetTypeGraph(ctx context.Context) (*model.TypeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, t.target_type_name
		FROM type_edges t JOIN chunks c ON c.id = t.source_chunk_id
		LIMIT ?`, edgeCap+1)
	if err != nil {
		return nil, cqserrors.StoreError("load type graph", err)
	}
	defer rows.Close()

	g := model.NewTypeGraph()
	n := 0
	for rows.Next() {
		var user, typeName string
		if err := rows.Scan(&user, &typeName); err != nil {
			return nil, cqserrors.StoreError("scan type edge", err)
		}
		g.AddEdge(user, typeName)
		n++
		if n >= edgeCap {
			slog.Warn("store_edge_cap_hit", slog.String("graph", "type_graph"), slog.Int("cap", edgeCap))
			break
		}
	}
	return g, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}

func toArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
