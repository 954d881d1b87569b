// Package lang defines the closed, build-time set of supported source
// languages: extensions, tree-sitter grammars, chunk/call/type queries, and
// the per-language hooks the parser and NL synthesizer call into.
package lang

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/model"
)

// CapturedNode is a single chunk-bearing node surfaced by a chunk query,
// before the parser turns it into a model.Chunk.
type CapturedNode struct {
	Node     *sitter.Node
	NameNode *sitter.Node
	Kind     model.ChunkType
}

// PostProcessFn lets a language rewrite the name/ChunkType of a captured
// node. Used when one grammar node represents multiple logical kinds (HCL
// "block", Kotlin/Swift combined declarations).
type PostProcessFn func(node *sitter.Node, source []byte, name string, kind model.ChunkType) (string, model.ChunkType)

// ContainerNameFn extracts the enclosing type name for a method container
// node, e.g. the struct/class name a method is nested inside.
type ContainerNameFn func(container *sitter.Node, source []byte) string

// QualifiedMethodFn builds a fully qualified method name, e.g.
// "Receiver.Method" for Go or "Class::method" for C++-family languages.
type QualifiedMethodFn func(containerName, methodName string) string

// ReturnNLFn extracts a natural-language return-type phrase from a
// signature string, e.g. "-> Config" -> "Config". Returns ok=false when
// the signature has no return annotation.
type ReturnNLFn func(signature string) (string, bool)

// Def is the static record describing one supported language.
type Def struct {
	Name       string
	Extensions []string

	// Grammar is the tree-sitter grammar handle for this language.
	Grammar *sitter.Language

	// ChunkNodeKinds lists the grammar node kinds that are chunk-bearing,
	// mapped to the ChunkType they produce.
	ChunkNodeKinds map[string]model.ChunkType

	// CallNodeKind is the grammar node kind for a call expression, if any.
	CallNodeKind string
	// TypeRefNodeKinds lists node kinds that reference a named type.
	TypeRefNodeKinds []string

	SignatureStyle model.SignatureStyle

	// DocCommentKinds lists node kinds recognized as doc comments when
	// walking backward from a chunk-bearing node.
	DocCommentKinds []string

	// MethodContainerKinds lists node kinds whose direct children that are
	// Functions get reclassified to Methods with ParentTypeName set.
	MethodContainerKinds []string

	Stopwords map[string]struct{}

	ExtractReturnNL      ReturnNLFn
	ExtractContainerName ContainerNameFn
	ExtractQualifiedName QualifiedMethodFn
	PostProcessChunk      PostProcessFn
}

// IsDocComment reports whether kind is one of this language's doc-comment
// node kinds.
func (d *Def) IsDocComment(kind string) bool {
	for _, k := range d.DocCommentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsMethodContainer reports whether kind reclassifies nested Functions
// into Methods.
func (d *Def) IsMethodContainer(kind string) bool {
	for _, k := range d.MethodContainerKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsStopword reports whether tok should be dropped by the NL synthesizer.
func (d *Def) IsStopword(tok string) bool {
	_, ok := d.Stopwords[strings.ToLower(tok)]
	return ok
}

// Registry is the process-wide, immutable set of registered languages.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Def
	byExt   map[string]string
}

var global = newRegistry()

func newRegistry() *Registry {
	r := &Registry{byName: map[string]*Def{}, byExt: map[string]string{}}
	r.register(goDef())
	r.register(pythonDef())
	r.register(javascriptDef())
	r.register(typescriptDef())
	r.register(tsxDef())
	r.register(rustDef())
	r.register(javaDef())
	r.register(markdownDef())
	return r
}

func (r *Registry) register(d *Def) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[d.Name] = d
	for _, ext := range d.Extensions {
		r.byExt[ext] = d.Name
	}
}

// Default returns the process-wide language registry.
func Default() *Registry { return global }

// ByName returns the LanguageDef registered under name.
func (r *Registry) ByName(name string) (*Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// ByExtension returns the LanguageDef whose Extensions contain ext
// (case-insensitive, leading dot optional).
func (r *Registry) ByExtension(ext string) (*Def, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.mu.RLock()
	name, ok := r.byExt[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.ByName(name)
}

// Names returns the registered language names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
