package store

import (
	"context"
	"sort"
	"strings"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
)

// CallerInfo is a direct caller of some target, as returned by
// GetCallersFull / GetCallersWithContext.
type CallerInfo struct {
	CallerName string
	CallLine   int
	Origin     string
}

// GetCallersFull returns every (caller_name, call_line, origin) that
// calls name, deduplicated by (caller, line, origin).
func (s *Store) GetCallersFull(ctx context.Context, name string) ([]CallerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT caller_name, call_line, origin FROM function_calls WHERE callee_name = ? ORDER BY origin, call_line`, name)
	if err != nil {
		return nil, cqserrors.StoreError("get callers", err)
	}
	defer rows.Close()
	var out []CallerInfo
	for rows.Next() {
		var c CallerInfo
		if err := rows.Scan(&c.CallerName, &c.CallLine, &c.Origin); err != nil {
			return nil, cqserrors.StoreError("scan caller", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// CallerWithContext augments CallerInfo with a 3-line snippet around the
// call site, taken from the caller's stored content.
type CallerWithContext struct {
	CallerInfo
	CallerChunkID string
	Snippet       string
}

// GetCallersWithContext returns GetCallersFull results augmented with a
// snippet, using a single batched chunk fetch to avoid N+1.
func (s *Store) GetCallersWithContext(ctx context.Context, name string) ([]CallerWithContext, error) {
	callers, err := s.GetCallersFull(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(callers) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(callers))
	seen := map[string]struct{}{}
	for _, c := range callers {
		if _, ok := seen[c.CallerName]; !ok {
			seen[c.CallerName] = struct{}{}
			names = append(names, c.CallerName)
		}
	}
	byName, err := s.SearchByNamesBatch(ctx, names, 5)
	if err != nil {
		return nil, err
	}

	out := make([]CallerWithContext, 0, len(callers))
	for _, c := range callers {
		res := byName[c.CallerName]
		chunk := bestChunkForOrigin(res, c.Origin)
		cw := CallerWithContext{CallerInfo: c}
		if chunk != nil {
			cw.CallerChunkID = chunk.ID
			cw.Snippet = snippetAround(chunk.Content, chunk.LineStart, c.CallLine)
		}
		out = append(out, cw)
	}
	return out, nil
}

// bestChunkForOrigin picks the non-windowed (ParentID=="") SearchResult
// chunk matching origin, whose stored line offsets are correct.
func bestChunkForOrigin(results []model.SearchResult, origin string) *model.Chunk {
	var fallback *model.Chunk
	for _, r := range results {
		if r.Chunk == nil || r.Chunk.Origin != origin {
			continue
		}
		if r.Chunk.ParentID == "" {
			return r.Chunk
		}
		if fallback == nil {
			fallback = r.Chunk
		}
	}
	return fallback
}

// snippetAround extracts up to 3 lines of content centered on callLine,
// with bounds-checking against the chunk's own [lineStart, lineStart+N)
// range.
func snippetAround(content string, lineStart, callLine int) string {
	lines := strings.Split(content, "\n")
	rel := callLine - lineStart // 0-based index into lines
	if rel < 0 || rel >= len(lines) {
		return ""
	}
	from := rel - 1
	if from < 0 {
		from = 0
	}
	to := rel + 2
	if to > len(lines) {
		to = len(lines)
	}
	return strings.Join(lines[from:to], "\n")
}

// GetCalleesFull returns every distinct callee name called from name,
// optionally scoped to a single origin.
func (s *Store) GetCalleesFull(ctx context.Context, name, origin string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := `SELECT DISTINCT callee_name FROM function_calls WHERE caller_name = ?`
	args := []any{name}
	if origin != "" {
		query += ` AND origin = ?`
		args = append(args, origin)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cqserrors.StoreError("get callees", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var callee string
		if err := rows.Scan(&callee); err != nil {
			return nil, cqserrors.StoreError("scan callee", err)
		}
		out = append(out, callee)
	}
	return out, nil
}

// entryPointNames are language-conventional entry points excluded from
// the confident-dead bucket even with zero callers.
var entryPointNames = map[string]struct{}{
	"main": {}, "init": {}, "TestMain": {},
}

// FindDeadCode partitions zero-caller chunks into confident-dead and
// possibly-public-dead buckets. includePublic controls whether exported
// names (first character an uppercase ASCII letter) are considered at all;
// when false only the other names are scanned.
func (s *Store) FindDeadCode(ctx context.Context, includePublic bool) (confident, possiblyPublic []*model.Chunk, err error) {
	s.mu.RLock()
	chunkRows, qerr := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE chunk_type IN ('Function','Method') AND parent_id IS NULL`)
	s.mu.RUnlock()
	if qerr != nil {
		return nil, nil, cqserrors.StoreError("list candidate dead code", qerr)
	}
	var candidates []*model.Chunk
	for chunkRows.Next() {
		c, _, serr := rowToChunk(chunkRows)
		if serr != nil {
			chunkRows.Close()
			return nil, nil, cqserrors.StoreError("scan candidate", serr)
		}
		candidates = append(candidates, c)
	}
	chunkRows.Close()

	called := map[string]struct{}{}
	s.mu.RLock()
	calleeRows, qerr := s.db.QueryContext(ctx, `SELECT DISTINCT callee_name FROM function_calls`)
	s.mu.RUnlock()
	if qerr != nil {
		return nil, nil, cqserrors.StoreError("list called names", qerr)
	}
	for calleeRows.Next() {
		var name string
		if serr := calleeRows.Scan(&name); serr != nil {
			calleeRows.Close()
			return nil, nil, cqserrors.StoreError("scan callee name", serr)
		}
		called[name] = struct{}{}
	}
	calleeRows.Close()

	for _, c := range candidates {
		if _, ok := called[c.Name]; ok {
			continue
		}
		if _, ok := entryPointNames[c.Name]; ok {
			continue
		}
		if isExported(c.Name) {
			if includePublic {
				possiblyPublic = append(possiblyPublic, c)
			}
		} else {
			confident = append(confident, c)
		}
	}
	return confident, possiblyPublic, nil
}

func isExported(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)[0]
	return r >= 'A' && r <= 'Z'
}

// testPathMarkers are path fragments identifying test files regardless of
// naming convention.
var testPathMarkers = []string{"/tests/", "/test/", "/spec/", "_test.", ".test.", ".spec."}

// FindTestChunks returns chunks recognized as tests by name prefix
// (test_/Test*), by origin path markers, or both.
func (s *Store) FindTestChunks(ctx context.Context) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE parent_id IS NULL`)
	if err != nil {
		return nil, cqserrors.StoreError("list chunks for test detection", err)
	}
	defer rows.Close()
	var out []*model.Chunk
	for rows.Next() {
		c, _, err := rowToChunk(rows)
		if err != nil {
			return nil, cqserrors.StoreError("scan chunk", err)
		}
		if IsTestChunk(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// IsTestChunk applies the shared test-name/path heuristic to a single chunk.
func IsTestChunk(c *model.Chunk) bool {
	lowerOrigin := strings.ToLower(c.Origin)
	for _, marker := range testPathMarkers {
		if strings.Contains(lowerOrigin, marker) {
			return true
		}
	}
	if strings.HasPrefix(c.Name, "test_") {
		return true
	}
	if strings.HasPrefix(c.Name, "Test") && len(c.Name) > 4 {
		r := []rune(c.Name)[4]
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// SearchByName returns up to limit chunks whose name equals name exactly,
// non-windowed chunks first. It has no FTS or fuzzy fallback, and the
// results carry no score.
func (s *Store) SearchByName(ctx context.Context, name string, limit int) ([]model.SearchResult, error) {
	res, err := s.SearchByNamesBatch(ctx, []string{name}, limit)
	if err != nil {
		return nil, err
	}
	return res[name], nil
}

// SearchByNamesBatch resolves many names in a single SQL IN-batch,
// returning up to perNameLimit chunks per input name.
func (s *Store) SearchByNamesBatch(ctx context.Context, names []string, perNameLimit int) (map[string][]model.SearchResult, error) {
	out := map[string][]model.SearchResult{}
	if len(names) == 0 {
		return out, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bs := batchSize(1)
	for i := 0; i < len(names); i += bs {
		end := i + bs
		if end > len(names) {
			end = len(names)
		}
		batch := names[i:end]
		ph := placeholders(len(batch))
		rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE name IN (`+ph+`)`, toArgs(batch)...)
		if err != nil {
			return nil, cqserrors.StoreError("search by names batch", err)
		}
		for rows.Next() {
			c, _, err := rowToChunk(rows)
			if err != nil {
				rows.Close()
				return nil, cqserrors.StoreError("scan chunk", err)
			}
			r := model.SearchResult{Chunk: c, MatchedVia: "name"}
			out[c.Name] = append(out[c.Name], r)
		}
		rows.Close()
	}

	for name, results := range out {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Chunk.ParentID == "" && results[j].Chunk.ParentID != ""
		})
		if len(results) > perNameLimit {
			results = results[:perNameLimit]
		}
		out[name] = results
	}
	return out, nil
}

// FindSharedCallers returns functions called by the same callers as name
// (excluding name itself), ranked by shared-caller count, via a self-join
// on function_calls.
func (s *Store) FindSharedCallers(ctx context.Context, name string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.callee_name
		FROM function_calls a
		JOIN function_calls b ON a.caller_name = b.caller_name AND b.callee_name != ?
		WHERE a.callee_name = ?
		GROUP BY b.callee_name
		ORDER BY COUNT(DISTINCT a.caller_name) DESC
		LIMIT ?`, name, name, limit)
	if err != nil {
		return nil, cqserrors.StoreError("find shared callers", err)
	}
	return scanNames(rows)
}

// FindSharedCallees returns functions that call the same callees as name.
func (s *Store) FindSharedCallees(ctx context.Context, name string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.caller_name
		FROM function_calls a
		JOIN function_calls b ON a.callee_name = b.callee_name AND b.caller_name != ?
		WHERE a.caller_name = ?
		GROUP BY b.caller_name
		ORDER BY COUNT(DISTINCT a.callee_name) DESC
		LIMIT ?`, name, name, limit)
	if err != nil {
		return nil, cqserrors.StoreError("find shared callees", err)
	}
	return scanNames(rows)
}

// FindSharedTypeUsers returns names of chunks that have a type edge to
// targetType, with common types already filtered at ingest time.
func (s *Store) FindSharedTypeUsers(ctx context.Context, targetType string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.name
		FROM type_edges t JOIN chunks c ON c.id = t.source_chunk_id
		WHERE t.target_type_name = ?
		LIMIT ?`, targetType, limit)
	if err != nil {
		return nil, cqserrors.StoreError("find shared type users", err)
	}
	return scanNames(rows)
}

// SearchChunksBySignaturesBatch finds chunks whose signature mentions any
// of typeNames (used by related-functions to widen "shared types" past
// type_edges).
func (s *Store) SearchChunksBySignaturesBatch(ctx context.Context, typeNames []string) (map[string][]*model.Chunk, error) {
	out := map[string][]*model.Chunk{}
	if len(typeNames) == 0 {
		return out, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE parent_id IS NULL`)
	if err != nil {
		return nil, cqserrors.StoreError("scan signatures", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, _, err := rowToChunk(rows)
		if err != nil {
			return nil, cqserrors.StoreError("scan chunk", err)
		}
		for _, t := range typeNames {
			if strings.Contains(c.Signature, t) {
				out[t] = append(out[t], c)
			}
		}
	}
	return out, nil
}

// GetTypeDependencies returns the distinct type names a chunk references,
// from the type_edges rows of the chunks with that name.
func (s *Store) GetTypeDependencies(ctx context.Context, chunkName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.target_type_name
		FROM type_edges t JOIN chunks c ON c.id = t.source_chunk_id
		WHERE c.name = ?`, chunkName)
	if err != nil {
		return nil, cqserrors.StoreError("get type dependencies", err)
	}
	return scanNames(rows)
}

func scanNames(rows interface {
	Next() bool
	Scan(...any) error
	Close() error
}) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, cqserrors.StoreError("scan name", err)
		}
		out = append(out, name)
	}
	return out, nil
}

// normalizeForFTSQuery is a package-local wrapper around
// nl.NormalizeForFTS.
func normalizeForFTSQuery(q string) string { return nl.NormalizeForFTS(q) }
