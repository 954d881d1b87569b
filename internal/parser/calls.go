package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

// collectCalls walks the tree for call-expression nodes and attributes
// each to its narrowest enclosing chunk. Calls outside any chunk (file-scope calls) are dropped.
func (p *Parser) collectCalls(root *sitter.Node, source []byte, origin string, def *lang.Def, entries []chunkEntry) []model.CallSite {
	if def.CallNodeKind == "" {
		return nil
	}

	var calls []model.CallSite
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == def.CallNodeKind {
			if caller := enclosingChunk(n, entries); caller != nil {
				if callee := calleeName(n, source); callee != "" {
					calls = append(calls, model.CallSite{
						CallerName: caller.Name,
						CalleeName: callee,
						CallLine:   int(n.StartPoint().Row) + 1,
						Origin:     origin,
					})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return calls
}

// calleeName extracts the invoked name from a call expression: the
// "function" field when the grammar names it, a trailing
// field_identifier/property_identifier for method calls
// (obj.method(...)), or the first identifier child as a fallback.
func calleeName(call *sitter.Node, source []byte) string {
	if fn := call.ChildByFieldName("function"); fn != nil {
		return innermostCalleeName(fn, source)
	}
	for i := 0; i < int(call.ChildCount()); i++ {
		child := call.Child(i)
		switch child.Type() {
		case "identifier", "field_identifier", "property_identifier":
			return child.Content(source)
		}
	}
	return ""
}

func innermostCalleeName(n *sitter.Node, source []byte) string {
	switch n.Type() {
	case "selector_expression", "member_expression", "attribute", "field_expression":
		if field := n.ChildByFieldName("field"); field != nil {
			return field.Content(source)
		}
		if prop := n.ChildByFieldName("property"); prop != nil {
			return prop.Content(source)
		}
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			return attr.Content(source)
		}
		return n.Content(source)
	default:
		return n.Content(source)
	}
}
