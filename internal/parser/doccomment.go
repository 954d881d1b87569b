package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/lang"
)

// extractDocComment walks backward over the node's preceding siblings,
// collecting contiguous comment nodes immediately adjacent (no blank line
// between them) to the chunk-bearing node.
func extractDocComment(n *sitter.Node, source []byte, def *lang.Def) string {
	if len(def.DocCommentKinds) == 0 {
		return ""
	}
	parent := n.Parent()
	if parent == nil {
		return ""
	}

	idx := -1
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i) == n {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}

	var comments []string
	expectedEndLine := int(n.StartPoint().Row)
	for i := idx - 1; i >= 0; i-- {
		sib := parent.Child(i)
		if !def.IsDocComment(sib.Type()) {
			break
		}
		if int(sib.EndPoint().Row) < expectedEndLine-1 {
			// a blank line separates this comment from the chunk
			break
		}
		comments = append([]string{cleanCommentText(sib.Content(source))}, comments...)
		expectedEndLine = int(sib.StartPoint().Row)
	}
	return strings.TrimSpace(strings.Join(comments, "\n"))
}

func cleanCommentText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "///")
	s = strings.TrimPrefix(s, "//!")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimPrefix(strings.TrimSpace(s), "*")
	return strings.TrimSpace(s)
}
