// Package parser turns source files into chunks, call sites, and type
// references using the per-language grammars registered in internal/lang.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/config"
	cqserrors "github.com/cqs-dev/cqs/internal/errors"
	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

// Parser wraps a tree-sitter parser and the language registry.
type Parser struct {
	ts       *sitter.Parser
	registry *lang.Registry
}

// New returns a Parser backed by the default language registry.
func New() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: lang.Default()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

// Result is everything extracted from a single file.
type Result struct {
	Chunks []*model.Chunk
	Calls  []model.CallSite
	Types  []model.TypeEdge // keyed by SourceChunkID after chunk resolution
}

// ParseFile parses the file at path with content source and mtime,
// returning all chunks (including windows), call sites, and type edges.
// Fails on unknown extension or unrecoverable parse failure; a partial
// parse (some chunk-bearing nodes malformed) still succeeds.
func (p *Parser) ParseFile(ctx context.Context, path string, source []byte, mtime time.Time) (*Result, error) {
	origin := config.NormalizeOrigin(path)
	ext := filepath.Ext(path)
	def, ok := p.registry.ByExtension(ext)
	if !ok {
		return nil, cqserrors.ParserError(cqserrors.ErrCodeUnsupportedFileType,
			fmt.Sprintf("unsupported file extension %q", ext), nil)
	}

	if def.Name == "markdown" {
		return p.parseMarkdown(origin, def, source, mtime)
	}

	if def.Grammar == nil {
		return nil, cqserrors.ParserError(cqserrors.ErrCodeUnsupportedFileType,
			fmt.Sprintf("language %q has no grammar", def.Name), nil)
	}

	p.ts.SetLanguage(def.Grammar)
	tree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, cqserrors.ParserError(cqserrors.ErrCodeParseFailure,
			fmt.Sprintf("parse %s: %v", path, err), err)
	}
	if tree == nil {
		return nil, cqserrors.ParserError(cqserrors.ErrCodeParseFailure, "nil parse tree", nil)
	}
	root := tree.RootNode()

	entries := p.collectChunks(root, source, origin, def, mtime)

	var allChunks []*model.Chunk
	var primaries []*model.Chunk
	for _, e := range entries {
		allChunks = append(allChunks, e.chunk)
		allChunks = append(allChunks, applyWindowing(e.chunk)...)
		primaries = append(primaries, e.chunk)
	}

	calls := p.collectCalls(root, source, origin, def, entries)
	types := p.collectTypeRefs(root, source, def, entries)

	return &Result{Chunks: allChunks, Calls: calls, Types: types}, nil
}

// chunkEntry pairs a built chunk with the grammar node it came from, so
// call/type-ref extraction can find the narrowest enclosing chunk for any
// given node.
type chunkEntry struct {
	node  *sitter.Node
	chunk *model.Chunk
}

// collectChunks walks the tree and emits one primary (non-windowed) Chunk
// per chunk-bearing node, applying method-container reclassification and
// any post_process_chunk hook.
func (p *Parser) collectChunks(root *sitter.Node, source []byte, origin string, def *lang.Def, mtime time.Time) []chunkEntry {
	var entries []chunkEntry
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if kind, ok := def.ChunkNodeKinds[n.Type()]; ok {
			if c := p.buildChunk(n, source, origin, def, kind, mtime); c != nil {
				entries = append(entries, chunkEntry{node: n, chunk: c})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return entries
}

// enclosingChunk returns the chunk whose node most narrowly contains n, or
// nil when no chunk contains it (e.g. a call at file scope).
func enclosingChunk(n *sitter.Node, entries []chunkEntry) *model.Chunk {
	var best *model.Chunk
	var bestSpan uint32 = ^uint32(0)
	for _, e := range entries {
		if e.node.StartByte() <= n.StartByte() && n.EndByte() <= e.node.EndByte() {
			span := e.node.EndByte() - e.node.StartByte()
			if span < bestSpan {
				bestSpan = span
				best = e.chunk
			}
		}
	}
	return best
}

func (p *Parser) buildChunk(n *sitter.Node, source []byte, origin string, def *lang.Def, kind model.ChunkType, mtime time.Time) *model.Chunk {
	name := extractName(n, source, def.Name)
	if def.PostProcessChunk != nil {
		newName, newKind := def.PostProcessChunk(n, source, name, kind)
		name, kind = newName, newKind
	}
	if name == "" {
		return nil
	}

	if kind == model.ChunkFunction {
		if container := methodContainer(n, def); container != nil {
			kind = model.ChunkMethod
		}
	}

	var parentType string
	if kind == model.ChunkMethod {
		if container := methodContainer(n, def); container != nil {
			parentType = containerName(container, source, def)
		}
	}

	signature := computeSignature(n, source, def.SignatureStyle)
	doc := extractDocComment(n, source, def)
	content := n.Content(source)
	hash := contentHash(content)
	lineStart := int(n.StartPoint().Row) + 1
	lineEnd := int(n.EndPoint().Row) + 1

	c := &model.Chunk{
		Origin:         origin,
		Language:       def.Name,
		ChunkType:      kind,
		Name:           name,
		Signature:      signature,
		Content:        content,
		Doc:            doc,
		LineStart:      lineStart,
		LineEnd:        lineEnd,
		ContentHash:    hash,
		ParentTypeName: parentType,
		SourceMtime:    mtime.Unix(),
		CreatedAt:      mtime,
		UpdatedAt:      mtime,
	}
	c.ID = chunkID(origin, lineStart, hash)
	return c
}

// methodContainer walks up from n looking for the nearest ancestor whose
// node kind is a registered method container.
func methodContainer(n *sitter.Node, def *lang.Def) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if def.IsMethodContainer(p.Type()) {
			return p
		}
	}
	return nil
}

func containerName(container *sitter.Node, source []byte, def *lang.Def) string {
	if def.ExtractContainerName != nil {
		if name := def.ExtractContainerName(container, source); name != "" {
			return name
		}
	}
	// Generic fallback: the container's own chunk-bearing ancestor (a
	// class/struct/impl declaration) usually carries a "name" field.
	for p := container; p != nil; p = p.Parent() {
		if _, ok := def.ChunkNodeKinds[p.Type()]; ok {
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				return nameNode.Content(source)
			}
			return extractName(p, source, def.Name)
		}
	}
	return ""
}
