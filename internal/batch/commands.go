// Package batch implements the stdio batch-mode protocol: one command
// per line of stdin, one JSON object per line of stdout, with named
// commands, stable flags per command, and a single typed params/result
// shape per method.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/engine"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/nl"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

// commandNames is the closed command set, in help order.
var commandNames = []string{
	"search", "callers", "callees", "explain", "similar", "gather",
	"impact", "test-map", "trace", "dead", "related", "context",
	"stats", "help",
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(discardWriter{})
	return fs
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// requireCount rejects a non-positive count.
func requireCount(name string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %d", name, n)
	}
	return nil
}

func dispatch(ctx context.Context, eng *engine.Engine, cmd string, args []string) (any, error) {
	switch cmd {
	case "search":
		return cmdSearch(ctx, eng, args)
	case "callers":
		return cmdCallers(ctx, eng, args)
	case "callees":
		return cmdCallees(ctx, eng, args)
	case "explain":
		return cmdExplain(ctx, eng, args)
	case "similar":
		return cmdSimilar(ctx, eng, args)
	case "gather":
		return cmdGather(ctx, eng, args)
	case "impact":
		return cmdImpact(ctx, eng, args)
	case "test-map":
		return cmdTestMap(ctx, eng, args)
	case "trace":
		return cmdTrace(ctx, eng, args)
	case "dead":
		return cmdDead(ctx, eng, args)
	case "related":
		return cmdRelated(ctx, eng, args)
	case "context":
		return cmdContext(ctx, eng, args)
	case "stats":
		return cmdStats(ctx, eng, args)
	case "help":
		return cmdHelp(), nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

// --- search ---

type chunkRef struct {
	Origin    string  `json:"origin"`
	Name      string  `json:"name"`
	ChunkType string  `json:"chunk_type"`
	Language  string  `json:"language"`
	LineStart int     `json:"line_start"`
	LineEnd   int      `json:"line_end"`
	Score     float64 `json:"score,omitempty"`
	Snippet   string   `json:"snippet,omitempty"`
}

func toChunkRef(r model.SearchResult) chunkRef {
	c := r.Chunk
	return chunkRef{
		Origin: c.Origin, Name: c.Name, ChunkType: string(c.ChunkType), Language: c.Language,
		LineStart: c.LineStart, LineEnd: c.LineEnd, Score: r.Score, Snippet: truncateWords(c.Content, 60),
	}
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + " ..."
}

func truncateTokens(s string, n int) string {
	if n <= 0 {
		return s
	}
	return truncateWords(s, n)
}

func cmdSearch(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("search")
	n := fs.IntP("limit", "n", 5, "")
	nameOnly := fs.Bool("name-only", false, "")
	semanticOnly := fs.Bool("semantic-only", false, "")
	rerank := fs.Bool("rerank", false, "")
	lang := fs.StringP("language", "l", "", "")
	glob := fs.StringP("path", "p", "", "")
	tokens := fs.Int("tokens", 0, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireCount("-n", *n); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("search requires a query")
	}
	query := strings.Join(rest, " ")

	var results []model.SearchResult
	if *nameOnly {
		var err error
		results, err = eng.Store.SearchByName(ctx, query, *n)
		if err != nil {
			return nil, err
		}
	} else {
		filter := search.Filter{QueryText: query, EnableRRF: !*semanticOnly, PathPattern: *glob}
		if *lang != "" {
			filter.Languages = []string{*lang}
		}
		queryEmb, err := eng.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		results, err = eng.Search.SearchFiltered(ctx, queryEmb, filter, *n)
		if err != nil {
			return nil, err
		}
	}
	// No Reranker is wired; --rerank
	// is accepted and is a no-op rather than an error.
	_ = rerank

	out := make([]chunkRef, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		cr := toChunkRef(r)
		if *tokens > 0 {
			cr.Snippet = truncateTokens(r.Chunk.Content, *tokens)
		}
		out = append(out, cr)
	}
	return map[string]any{"query": query, "results": out}, nil
}

// --- callers / callees ---

func cmdCallers(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("callers requires a function name")
	}
	callers, err := eng.Store.GetCallersWithContext(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": args[0], "callers": toCallerRefs(callers)}, nil
}

func toCallerRefs(callers []store.CallerWithContext) []map[string]any {
	out := make([]map[string]any, 0, len(callers))
	for _, c := range callers {
		out = append(out, map[string]any{
			"caller_name": c.CallerName, "origin": c.Origin, "call_line": c.CallLine, "snippet": c.Snippet,
		})
	}
	return out
}

func toTestHitRefs(tests []analysis.TestHit) []map[string]any {
	out := make([]map[string]any, 0, len(tests))
	for _, t := range tests {
		out = append(out, map[string]any{"test_name": t.TestName, "depth": t.Depth})
	}
	return out
}

func cmdCallees(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("callees requires a function name")
	}
	origin := ""
	if len(args) > 1 {
		origin = args[1]
	}
	callees, err := eng.Store.GetCalleesFull(ctx, args[0], origin)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": args[0], "callees": callees}, nil
}

// --- explain ---

func cmdExplain(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("explain requires a function name")
	}
	hits, err := eng.Store.SearchByName(ctx, args[0], 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Chunk == nil {
		return nil, fmt.Errorf("could not resolve %q to any chunk", args[0])
	}
	c := hits[0].Chunk
	def, _ := eng.Registry.ByName(c.Language)
	description := nl.GenerateNLDescription(c, def, "")
	return map[string]any{
		"origin": c.Origin, "name": c.Name, "chunk_type": c.ChunkType,
		"signature": c.Signature, "doc": c.Doc, "line_start": c.LineStart, "line_end": c.LineEnd,
		"description": description, "content": c.Content,
	}, nil
}

// --- similar ---

func cmdSimilar(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("similar")
	n := fs.IntP("limit", "n", 10, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireCount("-n", *n); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("similar requires a function name")
	}
	name := rest[0]

	hits, err := eng.Store.SearchByName(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Chunk == nil {
		return nil, fmt.Errorf("could not resolve %q to any chunk", name)
	}
	target := hits[0].Chunk
	def, _ := eng.Registry.ByName(target.Language)
	description := nl.GenerateNLDescription(target, def, "")

	queryEmb, err := eng.EmbedQuery(ctx, description)
	if err != nil {
		return nil, err
	}
	results, err := eng.Search.SearchFiltered(ctx, queryEmb, search.Filter{QueryText: description, EnableRRF: true}, *n+1)
	if err != nil {
		return nil, err
	}
	out := make([]chunkRef, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil || r.Chunk.ID == target.ID {
			continue
		}
		out = append(out, toChunkRef(r))
		if len(out) == *n {
			break
		}
	}
	return map[string]any{"name": name, "results": out}, nil
}

// --- gather ---

func cmdGather(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("gather")
	expand := fs.Int("expand", 1, "")
	direction := fs.String("direction", "both", "")
	n := fs.IntP("limit", "n", 10, "")
	tokens := fs.Int("tokens", 0, "")
	ref := fs.String("ref", "", "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireCount("-n", *n); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("gather requires a query")
	}
	query := strings.Join(rest, " ")

	opts := analysis.DefaultGatherOptions()
	opts.ExpandDepth = *expand
	opts.Limit = *n
	switch analysis.Direction(*direction) {
	case analysis.DirectionBoth, analysis.DirectionCallers, analysis.DirectionCallees:
		opts.Direction = analysis.Direction(*direction)
	default:
		return nil, fmt.Errorf("unknown direction %q", *direction)
	}

	queryEmb, err := eng.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	if *ref != "" {
		for _, r := range eng.References {
			if r.Name == *ref {
				result, rerr := eng.Analyzer.GatherCrossIndex(ctx, r.Name, r.Engine, r.Store, queryEmb, query, opts)
				if rerr != nil {
					return nil, rerr
				}
				out := make([]map[string]any, 0, len(result))
				for _, g := range result {
					entry := map[string]any{
						"origin": g.Chunk.Origin, "name": g.Chunk.Name, "score": g.Score, "depth": g.Depth,
					}
					if g.SourceRef != "" {
						entry["source"] = g.SourceRef
					}
					out = append(out, entry)
				}
				return map[string]any{"query": query, "chunks": out}, nil
			}
		}
		return nil, fmt.Errorf("unknown reference %q", *ref)
	}

	result, err := eng.Analyzer.Gather(ctx, queryEmb, query, opts)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(result.Chunks))
	for _, g := range result.Chunks {
		content := g.Chunk.Content
		if *tokens > 0 {
			content = truncateTokens(content, *tokens)
		}
		out = append(out, map[string]any{
			"origin": g.Chunk.Origin, "name": g.Chunk.Name, "line_start": g.Chunk.LineStart,
			"score": g.Score, "depth": g.Depth, "content": content,
		})
	}
	return map[string]any{
		"query": query, "chunks": out,
		"expansion_capped": result.ExpansionCapped, "search_degraded": result.SearchDegraded,
	}, nil
}

// --- impact / test-map ---

func cmdImpact(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("impact")
	depth := fs.Int("depth", 1, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("impact requires a function name")
	}
	result, err := eng.Analyzer.AnalyzeImpact(ctx, rest[0], *depth)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"function_name": result.FunctionName, "callers": toCallerRefs(result.Callers), "tests": toTestHitRefs(result.Tests),
		"transitive_caller_count": len(result.TransitiveCallers),
	}, nil
}

func cmdTestMap(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("test-map requires a function name")
	}
	result, err := eng.Analyzer.AnalyzeImpact(ctx, args[0], 1)
	if err != nil {
		return nil, err
	}
	return map[string]any{"function_name": result.FunctionName, "tests": toTestHitRefs(result.Tests)}, nil
}

// --- trace ---

func cmdTrace(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("trace")
	maxDepth := fs.Int("max-depth", 10, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *maxDepth < 1 || *maxDepth > 50 {
		return nil, fmt.Errorf("--max-depth must be between 1 and 50, got %d", *maxDepth)
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return nil, fmt.Errorf("trace requires <src> <dst>")
	}
	src, dst := rest[0], rest[1]

	g, err := eng.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	path, found := bfsPath(g.Forward, src, dst, *maxDepth)
	return map[string]any{"src": src, "dst": dst, "found": found, "path": path}, nil
}

// bfsPath finds the shortest forward-adjacency path from src to dst within
// maxDepth hops, breadth-first so the first completion is shortest.
func bfsPath(adj map[string][]string, src, dst string, maxDepth int) ([]string, bool) {
	if src == dst {
		return []string{src}, true
	}
	type item struct {
		name string
		path []string
	}
	visited := map[string]struct{}{src: {}}
	queue := []item{{src, []string{src}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= maxDepth {
			continue
		}
		for _, next := range adj[cur.name] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			newPath := append(append([]string{}, cur.path...), next)
			if next == dst {
				return newPath, true
			}
			queue = append(queue, item{next, newPath})
		}
	}
	return nil, false
}

// --- dead ---

func cmdDead(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("dead")
	includePub := fs.Bool("include-pub", false, "")
	minConfidence := fs.String("min-confidence", "low", "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch *minConfidence {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("unknown --min-confidence %q", *minConfidence)
	}

	confident, possiblyPublic, err := eng.Store.FindDeadCode(ctx, *includePub)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"confident": toRefs(confident)}
	if *minConfidence != "high" {
		out["possibly_public"] = toRefs(possiblyPublic)
	}
	return out, nil
}

func toRefs(chunks []*model.Chunk) []chunkRef {
	out := make([]chunkRef, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chunkRef{Origin: c.Origin, Name: c.Name, ChunkType: string(c.ChunkType), Language: c.Language, LineStart: c.LineStart, LineEnd: c.LineEnd})
	}
	return out
}

// --- related ---

func cmdRelated(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("related")
	n := fs.IntP("limit", "n", 10, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireCount("-n", *n); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("related requires a function name")
	}
	result, err := eng.Analyzer.FindRelated(ctx, rest[0], *n)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"shared_callers": toRefs(result.SharedCallers),
		"shared_callees": toRefs(result.SharedCallees),
		"shared_types":   toRefs(result.SharedTypes),
	}, nil
}

// --- context ---

func cmdContext(ctx context.Context, eng *engine.Engine, args []string) (any, error) {
	fs := newFlagSet("context")
	n := fs.IntP("limit", "n", 10, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireCount("-n", *n); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return nil, fmt.Errorf("context requires a query")
	}
	query := strings.Join(rest, " ")

	queryEmb, err := eng.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	opts := analysis.DefaultGatherOptions()
	opts.Limit = *n
	result, err := eng.Analyzer.Gather(ctx, queryEmb, query, opts)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(result.Chunks))
	for _, g := range result.Chunks {
		out = append(out, map[string]any{
			"origin": g.Chunk.Origin, "name": g.Chunk.Name, "line_start": g.Chunk.LineStart,
			"line_end": g.Chunk.LineEnd, "content": g.Chunk.Content,
		})
	}
	return map[string]any{"query": query, "bundle": out}, nil
}

// --- stats ---

func cmdStats(ctx context.Context, eng *engine.Engine, _ []string) (any, error) {
	chunkCount, _ := eng.Store.ChunkCount(ctx)
	originCount, _ := eng.Store.OriginCount(ctx)
	noteCount, _ := eng.Store.NoteCount(ctx)
	indexSize := 0
	if eng.Index != nil {
		indexSize = eng.Index.Len()
	}
	return map[string]any{
		"chunk_count": chunkCount, "origin_count": originCount, "note_count": noteCount,
		"vector_index_size": indexSize, "model_name": eng.Store.ModelName(), "dimensions": eng.Store.Dimensions(),
		"references": referenceNames(eng),
	}, nil
}

func referenceNames(eng *engine.Engine) []string {
	names := make([]string, 0, len(eng.References))
	for _, r := range eng.References {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// --- help ---

func cmdHelp() any {
	return map[string]any{"commands": commandNames}
}
