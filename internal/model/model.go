// Package model holds the data types shared across the engine: chunks,
// call sites, type edges, notes, and graphs.
package model

import "time"

// ChunkType enumerates the kinds of named code elements the parser emits.
type ChunkType string

const (
	ChunkFunction  ChunkType = "Function"
	ChunkMethod    ChunkType = "Method"
	ChunkClass     ChunkType = "Class"
	ChunkStruct    ChunkType = "Struct"
	ChunkEnum      ChunkType = "Enum"
	ChunkTrait     ChunkType = "Trait"
	ChunkInterface ChunkType = "Interface"
	ChunkObject    ChunkType = "Object"
	ChunkProperty  ChunkType = "Property"
	ChunkConstant  ChunkType = "Constant"
	ChunkModule    ChunkType = "Module"
	ChunkTypeAlias ChunkType = "TypeAlias"
	ChunkMacro     ChunkType = "Macro"
	ChunkSection   ChunkType = "Section"
)

// SignatureStyle controls how a chunk's signature line is extracted.
type SignatureStyle string

const (
	SignatureFirstLine  SignatureStyle = "FirstLine"
	SignatureUntilBrace SignatureStyle = "UntilBrace"
	SignatureUntilAs    SignatureStyle = "UntilAs"
)

// TypeEdgeKind classifies a use of a named type by a chunk.
type TypeEdgeKind string

const (
	EdgeParam    TypeEdgeKind = "Param"
	EdgeReturn   TypeEdgeKind = "Return"
	EdgeField    TypeEdgeKind = "Field"
	EdgeImpl     TypeEdgeKind = "Impl"
	EdgeBound    TypeEdgeKind = "Bound"
	EdgeAlias    TypeEdgeKind = "Alias"
	EdgeCatchAll TypeEdgeKind = ""
)

// Chunk is a single named code element.
type Chunk struct {
	ID             string
	Origin         string
	Language       string
	ChunkType      ChunkType
	Name           string
	Signature      string
	Content        string
	Doc            string
	LineStart      int
	LineEnd        int
	ContentHash    string
	ParentID       string // "" when this is a non-windowed / primary chunk
	WindowIdx      *int   // nil for non-windowed chunks
	ParentTypeName string
	SourceMtime    int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsWindow reports whether this chunk is a window of a larger parent.
func (c *Chunk) IsWindow() bool { return c.ParentID != "" }

// CallSite is an observed call from one function to another.
type CallSite struct {
	CallerName string
	CalleeName string
	CallLine   int
	Origin     string
}

// TypeRef is an observed use of a named type by a chunk.
type TypeRef struct {
	TargetTypeName string
	EdgeKind       TypeEdgeKind
	Line           int
}

// TypeEdge is a persisted TypeRef, attributed to its source chunk.
type TypeEdge struct {
	SourceChunkID  string
	TargetTypeName string
	EdgeKind       TypeEdgeKind
	Line           int
}

// Note is a free-text memory item searched alongside code.
type Note struct {
	ID         string
	Text       string
	Sentiment  float64 // in [-1, +1]
	Mentions   []string
	SourceFile string
	FileMtime  int64
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Embedding is a fixed-length, L2-normalized float32 vector.
type Embedding []float32

// CallGraph is an in-memory adjacency-list view of the call table.
type CallGraph struct {
	Forward map[string][]string
	Reverse map[string][]string
}

// NewCallGraph returns an empty CallGraph.
func NewCallGraph() *CallGraph {
	return &CallGraph{Forward: map[string][]string{}, Reverse: map[string][]string{}}
}

// AddEdge records caller -> callee in both adjacency directions.
func (g *CallGraph) AddEdge(caller, callee string) {
	g.Forward[caller] = append(g.Forward[caller], callee)
	g.Reverse[callee] = append(g.Reverse[callee], caller)
}

// TypeGraph is an in-memory adjacency-list view of the type_edges table,
// keyed by type name rather than chunk id.
type TypeGraph struct {
	Forward map[string][]string // chunk/type name -> types it references
	Reverse map[string][]string // type name -> names that reference it
}

// NewTypeGraph returns an empty TypeGraph.
func NewTypeGraph() *TypeGraph {
	return &TypeGraph{Forward: map[string][]string{}, Reverse: map[string][]string{}}
}

// AddEdge records user -> type in both adjacency directions.
func (g *TypeGraph) AddEdge(user, typeName string) {
	g.Forward[user] = append(g.Forward[user], typeName)
	g.Reverse[typeName] = append(g.Reverse[typeName], user)
}

// SearchResult is a single scored hit returned by the search engine.
type SearchResult struct {
	Chunk       *Chunk
	Score       float64
	NameScore   float64
	EmbScore    float64
	Source      string // "code" or "note"
	Note        *Note
	MatchedVia  string // "vector", "fts", "rrf", "name"
}
