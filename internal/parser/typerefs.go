package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

// commonTypes is the denylist of uninteresting type names filtered before
// type edges are persisted.
var commonTypes = map[string]struct{}{
	"string": {}, "str": {}, "int": {}, "int32": {}, "int64": {}, "uint": {},
	"uint32": {}, "uint64": {}, "float32": {}, "float64": {}, "bool": {},
	"byte": {}, "rune": {}, "error": {}, "any": {}, "void": {}, "object": {},
	"number": {}, "boolean": {}, "undefined": {}, "null": {},
	"String": {}, "Vec": {}, "Map": {}, "Option": {}, "Result": {}, "Box": {},
	"HashMap": {}, "HashSet": {}, "Arc": {}, "Rc": {},
	"List": {}, "Dict": {}, "Set": {}, "Tuple": {}, "Optional": {},
}

// collectTypeRefs walks the tree for type-reference nodes, classifies
// each by its syntactic position, and filters the common-types denylist.
func (p *Parser) collectTypeRefs(root *sitter.Node, source []byte, def *lang.Def, entries []chunkEntry) []model.TypeEdge {
	if len(def.TypeRefNodeKinds) == 0 {
		return nil
	}
	isTypeRefKind := make(map[string]struct{}, len(def.TypeRefNodeKinds))
	for _, k := range def.TypeRefNodeKinds {
		isTypeRefKind[k] = struct{}{}
	}

	var edges []model.TypeEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if _, ok := isTypeRefKind[n.Type()]; ok {
			name := baseTypeName(n.Content(source))
			if _, denied := commonTypes[name]; !denied && name != "" {
				if chunk := enclosingChunk(n, entries); chunk != nil {
					edges = append(edges, model.TypeEdge{
						SourceChunkID:  chunk.ID,
						TargetTypeName: name,
						EdgeKind:       classifyEdgeKind(n),
						Line:           int(n.StartPoint().Row) + 1,
					})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return edges
}

// baseTypeName strips generic arguments and pointer/reference sigils,
// e.g. "*Vec<Foo>" -> "Vec".
func baseTypeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "*&")
	if idx := strings.IndexAny(s, "<[("); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// classifyEdgeKind inspects n's immediate syntactic context to assign a
// TypeEdgeKind; positions the generic walk cannot distinguish fall back
// to the catch-all kind.
func classifyEdgeKind(n *sitter.Node) model.TypeEdgeKind {
	parent := n.Parent()
	if parent == nil {
		return model.EdgeCatchAll
	}
	switch parent.Type() {
	case "parameter_declaration", "required_parameter", "optional_parameter",
		"typed_parameter", "parameters":
		return model.EdgeParam
	case "field_declaration", "struct_field", "property_signature",
		"public_field_definition", "field_definition":
		return model.EdgeField
	case "impl_item":
		return model.EdgeImpl
	case "trait_bound", "constraint", "type_parameter":
		return model.EdgeBound
	case "type_alias_declaration", "type_item":
		return model.EdgeAlias
	}
	for _, field := range []string{"result", "return_type", "type"} {
		if fn := parent.ChildByFieldName(field); fn == n {
			if field == "result" || field == "return_type" {
				return model.EdgeReturn
			}
		}
	}
	return model.EdgeCatchAll
}
