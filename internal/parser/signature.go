package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cqs-dev/cqs/internal/model"
)

// computeSignature extracts a node's signature per its language's
// signature style.
func computeSignature(n *sitter.Node, source []byte, style model.SignatureStyle) string {
	content := n.Content(source)
	switch style {
	case model.SignatureFirstLine:
		return firstLine(content)
	case model.SignatureUntilAs:
		return untilKeyword(content, "AS")
	case model.SignatureUntilBrace:
		return untilBrace(content)
	default:
		return firstLine(content)
	}
}

func firstLine(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx != -1 {
		return content[:idx]
	}
	return content
}

// untilBrace returns source up to the first unquoted, uncommented '{'.
func untilBrace(content string) string {
	inString := byte(0)
	for i := 0; i < len(content); i++ {
		c := content[i]
		if inString != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case '/':
			if i+1 < len(content) && content[i+1] == '/' {
				// line comment: skip to newline
				for i < len(content) && content[i] != '\n' {
					i++
				}
			}
		case '{':
			return strings.TrimRight(content[:i], " \t\n")
		}
	}
	return content
}

// untilKeyword returns source up to the first case-insensitive whole-word
// occurrence of keyword (used for SQL "AS").
func untilKeyword(content, keyword string) string {
	upper := strings.ToUpper(content)
	kw := strings.ToUpper(keyword)
	idx := 0
	for {
		rel := strings.Index(upper[idx:], kw)
		if rel == -1 {
			return content
		}
		pos := idx + rel
		before := pos == 0 || isWordBoundary(upper[pos-1])
		after := pos+len(kw) >= len(upper) || isWordBoundary(upper[pos+len(kw)])
		if before && after {
			return strings.TrimRight(content[:pos], " \t\n")
		}
		idx = pos + len(kw)
	}
}

func isWordBoundary(b byte) bool {
	return !(b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9'))
}
