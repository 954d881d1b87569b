package parser

import sitter "github.com/smacker/go-tree-sitter"

// extractName finds the identifier that names a chunk-bearing node. Go
// methods carry their name in a field_identifier, most other languages use
// a "name" field or bare identifier/type_identifier child; constants and
// type declarations often nest the real identifier inside a *_spec node.
func extractName(n *sitter.Node, source []byte, langName string) string {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(source)
	}

	switch langName {
	case "go":
		return extractGoName(n, source)
	default:
		return firstChildOfKind(n, source, "identifier", "field_identifier", "type_identifier", "property_identifier")
	}
}

func extractGoName(n *sitter.Node, source []byte) string {
	switch n.Type() {
	case "function_declaration":
		return firstChildOfKind(n, source, "identifier")
	case "method_declaration":
		return firstChildOfKind(n, source, "field_identifier")
	case "type_declaration":
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "type_spec" {
				if name := firstChildOfKind(child, source, "type_identifier"); name != "" {
					return name
				}
			}
		}
	case "const_declaration":
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "const_spec" {
				if name := firstChildOfKind(child, source, "identifier"); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func firstChildOfKind(n *sitter.Node, source []byte, kinds ...string) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		for _, k := range kinds {
			if child.Type() == k {
				return child.Content(source)
			}
		}
	}
	return ""
}
