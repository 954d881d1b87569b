package mcpserver

import (
	"context"
	"log/slog"

	gosdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
)

const defaultLimit = 10

// registerTools registers every tool with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering mcp tools")

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "search",
		Description: "Hybrid semantic and keyword search over the indexed codebase. Returns ranked chunks with file, name, and line range.",
	}, s.searchHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "gather",
		Description: "Collects the smallest set of chunks that answers a query by combining search with call-graph expansion.",
	}, s.gatherHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "impact",
		Description: "Lists every caller and reaching test of a named function, and (with depth>1) its transitive caller count.",
	}, s.impactHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "callers",
		Description: "Lists direct callers of a named function with call-site snippets.",
	}, s.callersHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "callees",
		Description: "Lists the functions a named function calls.",
	}, s.calleesHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "related",
		Description: "Finds functions that share callers, callees, or custom types with a target function.",
	}, s.relatedHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "scout",
		Description: "Produces a change-planning dashboard: files ranked by relevance to a query, chunks tagged by role.",
	}, s.scoutHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "onboard",
		Description: "Produces a guided reading list for a concept: an entry point, its call chain, key types, and tests.",
	}, s.onboardHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "placement",
		Description: "Suggests which existing file new code matching a description should be added to, with that file's conventions.",
	}, s.placementHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "dead_code",
		Description: "Lists functions with no discovered callers and no entry-point role.",
	}, s.deadCodeHandler)

	gosdkmcp.AddTool(s.mcp, &gosdkmcp.Tool{
		Name:        "health",
		Description: "Aggregate project health: chunk and note counts, dead code, call-graph hotspots, untested high-risk functions.",
	}, s.healthHandler)

	s.logger.Info("mcp tools registered", slog.Int("count", 11))
}

// --- search ---

type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"max results, default 10"`
	Languages   []string `json:"languages,omitempty" jsonschema:"restrict to these languages"`
	ChunkTypes  []string `json:"chunk_types,omitempty" jsonschema:"restrict to these chunk types (Function, Method, Struct, ...)"`
	PathPattern string   `json:"path_pattern,omitempty" jsonschema:"a glob restricting matched origins"`
}

type SearchResultOut struct {
	Origin    string  `json:"origin"`
	Name      string  `json:"name"`
	Language  string  `json:"language"`
	ChunkType string  `json:"chunk_type"`
	Score     float64 `json:"score"`
	LineStart int     `json:"line_start"`
	LineEnd   int      `json:"line_end"`
	Snippet   string   `json:"snippet"`
}

type SearchOutput struct {
	Results []SearchResultOut `json:"results"`
}

func (s *Server) searchHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input SearchInput) (*gosdkmcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, invalidParams("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	queryEmb, err := s.engine.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	filter := search.Filter{
		Languages:   input.Languages,
		ChunkTypes:  toChunkTypes(input.ChunkTypes),
		PathPattern: input.PathPattern,
		NameBoost:   0.15,
		QueryText:   input.Query,
		EnableRRF:   true,
	}

	results, err := s.engine.Search.SearchFiltered(ctx, queryEmb, filter, limit)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	out := SearchOutput{Results: make([]SearchResultOut, 0, len(results))}
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		out.Results = append(out.Results, toSearchResultOut(r))
	}
	return nil, out, nil
}

func toChunkTypes(names []string) []model.ChunkType {
	if len(names) == 0 {
		return nil
	}
	out := make([]model.ChunkType, len(names))
	for i, n := range names {
		out[i] = model.ChunkType(n)
	}
	return out
}

func toSearchResultOut(r model.SearchResult) SearchResultOut {
	return SearchResultOut{
		Origin:    r.Chunk.Origin,
		Name:      r.Chunk.Name,
		Language:  r.Chunk.Language,
		ChunkType: string(r.Chunk.ChunkType),
		Score:     r.Score,
		LineStart: r.Chunk.LineStart,
		LineEnd:   r.Chunk.LineEnd,
		Snippet:   truncate(r.Chunk.Content, 500),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// --- gather ---

type GatherInput struct {
	Query string `json:"query" jsonschema:"the task or question to gather context for"`
	Limit int    `json:"limit,omitempty" jsonschema:"max chunks returned, default 20"`
	Depth int    `json:"depth,omitempty" jsonschema:"call-graph expansion depth, default 1"`
}

type GatherChunkOut struct {
	Origin    string  `json:"origin"`
	Name      string  `json:"name"`
	LineStart int     `json:"line_start"`
	Score     float64 `json:"score"`
	Depth     int     `json:"depth"`
}

type GatherOutput struct {
	Chunks          []GatherChunkOut `json:"chunks"`
	ExpansionCapped bool             `json:"expansion_capped"`
	SearchDegraded  bool             `json:"search_degraded"`
}

func (s *Server) gatherHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input GatherInput) (*gosdkmcp.CallToolResult, GatherOutput, error) {
	if input.Query == "" {
		return nil, GatherOutput{}, invalidParams("query is required")
	}
	opts := analysis.DefaultGatherOptions()
	if input.Limit > 0 {
		opts.Limit = input.Limit
	}
	if input.Depth > 0 {
		opts.ExpandDepth = input.Depth
	}

	queryEmb, err := s.engine.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, GatherOutput{}, mapError(err)
	}

	result, err := s.engine.Analyzer.Gather(ctx, queryEmb, input.Query, opts)
	if err != nil {
		return nil, GatherOutput{}, mapError(err)
	}

	out := GatherOutput{ExpansionCapped: result.ExpansionCapped, SearchDegraded: result.SearchDegraded}
	for _, c := range result.Chunks {
		out.Chunks = append(out.Chunks, GatherChunkOut{
			Origin: c.Chunk.Origin, Name: c.Chunk.Name, LineStart: c.Chunk.LineStart,
			Score: c.Score, Depth: c.Depth,
		})
	}
	return nil, out, nil
}

// --- impact ---

type ImpactInput struct {
	Name  string `json:"name" jsonschema:"the function name to analyze"`
	Depth int    `json:"depth,omitempty" jsonschema:"transitive caller depth, 1 for direct only"`
}

type CallerOut struct {
	CallerName string `json:"caller_name"`
	Origin     string `json:"origin"`
	CallLine   int    `json:"call_line"`
	Snippet    string `json:"snippet,omitempty"`
}

type TestHitOut struct {
	TestName string `json:"test_name"`
	Depth    int    `json:"depth"`
}

type ImpactOutput struct {
	FunctionName          string       `json:"function_name"`
	Callers               []CallerOut  `json:"callers"`
	Tests                 []TestHitOut `json:"tests"`
	TransitiveCallerCount int          `json:"transitive_caller_count"`
}

func (s *Server) impactHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input ImpactInput) (*gosdkmcp.CallToolResult, ImpactOutput, error) {
	if input.Name == "" {
		return nil, ImpactOutput{}, invalidParams("name is required")
	}
	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}

	result, err := s.engine.Analyzer.AnalyzeImpact(ctx, input.Name, depth)
	if err != nil {
		return nil, ImpactOutput{}, mapError(err)
	}

	out := ImpactOutput{FunctionName: result.FunctionName, TransitiveCallerCount: len(result.TransitiveCallers)}
	for _, c := range result.Callers {
		out.Callers = append(out.Callers, CallerOut{
			CallerName: c.CallerName, Origin: c.Origin, CallLine: c.CallLine, Snippet: c.Snippet,
		})
	}
	for _, t := range result.Tests {
		out.Tests = append(out.Tests, TestHitOut{TestName: t.TestName, Depth: t.Depth})
	}
	return nil, out, nil
}

// --- callers / callees ---

type CallersInput struct {
	Name string `json:"name" jsonschema:"the function name to find callers of"`
}

type CallersOutput struct {
	Callers []CallerOut `json:"callers"`
}

func (s *Server) callersHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input CallersInput) (*gosdkmcp.CallToolResult, CallersOutput, error) {
	if input.Name == "" {
		return nil, CallersOutput{}, invalidParams("name is required")
	}
	callers, err := s.engine.Store.GetCallersWithContext(ctx, input.Name)
	if err != nil {
		return nil, CallersOutput{}, mapError(err)
	}
	out := CallersOutput{}
	for _, c := range callers {
		out.Callers = append(out.Callers, CallerOut{
			CallerName: c.CallerName, Origin: c.Origin, CallLine: c.CallLine, Snippet: c.Snippet,
		})
	}
	return nil, out, nil
}

type CalleesInput struct {
	Name   string `json:"name" jsonschema:"the function name to find callees of"`
	Origin string `json:"origin,omitempty" jsonschema:"restrict to calls made from this file"`
}

type CalleesOutput struct {
	Callees []string `json:"callees"`
}

func (s *Server) calleesHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input CalleesInput) (*gosdkmcp.CallToolResult, CalleesOutput, error) {
	if input.Name == "" {
		return nil, CalleesOutput{}, invalidParams("name is required")
	}
	callees, err := s.engine.Store.GetCalleesFull(ctx, input.Name, input.Origin)
	if err != nil {
		return nil, CalleesOutput{}, mapError(err)
	}
	return nil, CalleesOutput{Callees: callees}, nil
}

// --- related ---

type RelatedInput struct {
	Name  string `json:"name" jsonschema:"the target function name"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results per category, default 10"`
}

type ChunkRefOut struct {
	Origin    string `json:"origin"`
	Name      string `json:"name"`
	LineStart int    `json:"line_start"`
}

type RelatedOutput struct {
	SharedCallers []ChunkRefOut `json:"shared_callers"`
	SharedCallees []ChunkRefOut `json:"shared_callees"`
	SharedTypes   []ChunkRefOut `json:"shared_types"`
}

func (s *Server) relatedHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input RelatedInput) (*gosdkmcp.CallToolResult, RelatedOutput, error) {
	if input.Name == "" {
		return nil, RelatedOutput{}, invalidParams("name is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	result, err := s.engine.Analyzer.FindRelated(ctx, input.Name, limit)
	if err != nil {
		return nil, RelatedOutput{}, mapError(err)
	}
	return nil, RelatedOutput{
		SharedCallers: toChunkRefs(result.SharedCallers),
		SharedCallees: toChunkRefs(result.SharedCallees),
		SharedTypes:   toChunkRefs(result.SharedTypes),
	}, nil
}

func toChunkRefs(chunks []*model.Chunk) []ChunkRefOut {
	out := make([]ChunkRefOut, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, ChunkRefOut{Origin: c.Origin, Name: c.Name, LineStart: c.LineStart})
	}
	return out
}

// --- scout ---

type ScoutInput struct {
	Query string `json:"query" jsonschema:"the planned change, in natural language"`
	Limit int    `json:"limit,omitempty" jsonschema:"max files returned, default 10"`
}

type ScoutChunkOut struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	LineStart int    `json:"line_start"`
}

type ScoutFileOut struct {
	Origin    string          `json:"origin"`
	Relevance float64         `json:"relevance"`
	Stale     bool            `json:"stale"`
	Chunks    []ScoutChunkOut `json:"chunks"`
}

type ScoutOutput struct {
	Files []ScoutFileOut `json:"files"`
	Notes []string       `json:"notes"`
}

func (s *Server) scoutHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input ScoutInput) (*gosdkmcp.CallToolResult, ScoutOutput, error) {
	if input.Query == "" {
		return nil, ScoutOutput{}, invalidParams("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	queryEmb, err := s.engine.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, ScoutOutput{}, mapError(err)
	}
	result, err := s.engine.Analyzer.Scout(ctx, queryEmb, input.Query, limit)
	if err != nil {
		return nil, ScoutOutput{}, mapError(err)
	}

	out := ScoutOutput{}
	for _, f := range result.Files {
		fo := ScoutFileOut{Origin: f.Origin, Relevance: f.Relevance, Stale: f.Stale}
		for _, c := range f.Chunks {
			fo.Chunks = append(fo.Chunks, ScoutChunkOut{Name: c.Chunk.Name, Role: string(c.Role), LineStart: c.Chunk.LineStart})
		}
		out.Files = append(out.Files, fo)
	}
	for _, n := range result.Notes {
		out.Notes = append(out.Notes, n.Text)
	}
	return nil, out, nil
}

// --- onboard ---

type OnboardInput struct {
	Query string `json:"query" jsonschema:"the concept or subsystem to onboard onto"`
	Limit int    `json:"limit,omitempty" jsonschema:"max files considered when choosing the entry point"`
}

type OnboardSummaryOut struct {
	TotalItems   int `json:"total_items"`
	FilesCovered int `json:"files_covered"`
	CalleeDepth  int `json:"callee_depth"`
	TestsFound   int `json:"tests_found"`
}

type OnboardOutput struct {
	EntryPoint string            `json:"entry_point,omitempty"`
	CallChain  []ChunkRefOut     `json:"call_chain"`
	Callers    []ChunkRefOut     `json:"callers"`
	KeyTypes   []string          `json:"key_types"`
	Tests      []TestHitOut      `json:"tests"`
	Summary    OnboardSummaryOut `json:"summary"`
}

func (s *Server) onboardHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input OnboardInput) (*gosdkmcp.CallToolResult, OnboardOutput, error) {
	if input.Query == "" {
		return nil, OnboardOutput{}, invalidParams("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	queryEmb, err := s.engine.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, OnboardOutput{}, mapError(err)
	}
	result, err := s.engine.Analyzer.Onboard(ctx, queryEmb, input.Query, limit)
	if err != nil {
		return nil, OnboardOutput{}, mapError(err)
	}

	out := OnboardOutput{
		Summary: OnboardSummaryOut{
			TotalItems: result.Summary.TotalItems, FilesCovered: result.Summary.FilesCovered,
			CalleeDepth: result.Summary.CalleeDepth, TestsFound: result.Summary.TestsFound,
		},
		KeyTypes: result.KeyTypes,
	}
	if result.EntryPoint != nil {
		out.EntryPoint = result.EntryPoint.Origin + ":" + result.EntryPoint.Name
	}
	for _, e := range result.CallChain {
		out.CallChain = append(out.CallChain, ChunkRefOut{Origin: e.Chunk.Origin, Name: e.Chunk.Name, LineStart: e.Chunk.LineStart})
	}
	for _, c := range result.Callers {
		out.Callers = append(out.Callers, ChunkRefOut{Origin: c.Chunk.Origin, Name: c.Chunk.Name, LineStart: c.Chunk.LineStart})
	}
	for _, t := range result.Tests {
		out.Tests = append(out.Tests, TestHitOut{TestName: t.TestName, Depth: t.Depth})
	}
	return nil, out, nil
}

// --- placement ---

type PlacementInput struct {
	Description string `json:"description" jsonschema:"a description of the code to be added"`
	Limit       int    `json:"limit,omitempty" jsonschema:"max candidate files returned, default 5"`
}

type PlacementOut struct {
	Origin             string   `json:"origin"`
	Score              float64  `json:"score"`
	InsertionLine      int      `json:"insertion_line"`
	DominantImports    []string `json:"dominant_imports,omitempty"`
	NamingConvention   string   `json:"naming_convention,omitempty"`
	ErrorHandlingStyle string   `json:"error_handling_style,omitempty"`
}

type PlacementOutput struct {
	Suggestions []PlacementOut `json:"suggestions"`
}

func (s *Server) placementHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input PlacementInput) (*gosdkmcp.CallToolResult, PlacementOutput, error) {
	if input.Description == "" {
		return nil, PlacementOutput{}, invalidParams("description is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}
	descEmb, err := s.engine.EmbedQuery(ctx, input.Description)
	if err != nil {
		return nil, PlacementOutput{}, mapError(err)
	}
	suggestions, err := s.engine.Analyzer.SuggestPlacement(ctx, descEmb, input.Description, limit)
	if err != nil {
		return nil, PlacementOutput{}, mapError(err)
	}

	out := PlacementOutput{}
	for _, p := range suggestions {
		out.Suggestions = append(out.Suggestions, PlacementOut{
			Origin: p.Origin, Score: p.Score, InsertionLine: p.InsertionLine,
			DominantImports: p.LocalPatterns.DominantImports, NamingConvention: p.LocalPatterns.NamingConvention,
			ErrorHandlingStyle: p.LocalPatterns.ErrorHandlingStyle,
		})
	}
	return nil, out, nil
}

// --- dead_code ---

type DeadCodeInput struct {
	IncludePublic bool `json:"include_public,omitempty" jsonschema:"also report exported functions with no discovered callers"`
}

type DeadCodeOutput struct {
	Confident      []ChunkRefOut `json:"confident"`
	PossiblyPublic []ChunkRefOut `json:"possibly_public"`
}

func (s *Server) deadCodeHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input DeadCodeInput) (*gosdkmcp.CallToolResult, DeadCodeOutput, error) {
	confident, possiblyPublic, err := s.engine.Store.FindDeadCode(ctx, input.IncludePublic)
	if err != nil {
		return nil, DeadCodeOutput{}, mapError(err)
	}
	return nil, DeadCodeOutput{
		Confident:      toChunkRefs(confident),
		PossiblyPublic: toChunkRefs(possiblyPublic),
	}, nil
}

// --- health ---

type HealthInput struct {
	TopN int `json:"top_n,omitempty" jsonschema:"number of hotspots returned, default 10"`
}

type HotspotOut struct {
	Name        string `json:"name"`
	CallerCount int    `json:"caller_count"`
}

type HealthOutput struct {
	ChunkCount             int          `json:"chunk_count"`
	OriginCount            int          `json:"origin_count"`
	NoteCount              int          `json:"note_count"`
	DeadCodeConfident      int          `json:"dead_code_confident"`
	DeadCodePossiblyPublic int          `json:"dead_code_possibly_public"`
	VectorIndexSize        int          `json:"vector_index_size"`
	TopHotspots            []HotspotOut `json:"top_hotspots"`
	UntestedHotspots       []string     `json:"untested_hotspots"`
	Warnings               []string     `json:"warnings,omitempty"`
}

func (s *Server) healthHandler(ctx context.Context, req *gosdkmcp.CallToolRequest, input HealthInput) (*gosdkmcp.CallToolResult, HealthOutput, error) {
	topN := input.TopN
	if topN <= 0 {
		topN = 10
	}
	report := s.engine.Analyzer.Health(ctx, topN, s.engine.Index)

	indexSize := 0
	if s.engine.Index != nil {
		indexSize = s.engine.Index.Len()
	}

	out := HealthOutput{
		ChunkCount: report.ChunkCount, OriginCount: report.OriginCount, NoteCount: report.NoteCount,
		DeadCodeConfident: report.DeadCodeConfident, DeadCodePossiblyPublic: report.DeadCodePossiblyPublic,
		VectorIndexSize: indexSize, Warnings: report.Warnings,
	}
	for _, h := range report.TopHotspots {
		out.TopHotspots = append(out.TopHotspots, HotspotOut{Name: h.Name, CallerCount: h.CallerCount})
	}
	for _, r := range report.UntestedHotspots {
		out.UntestedHotspots = append(out.UntestedHotspots, r.Name)
	}
	return nil, out, nil
}
