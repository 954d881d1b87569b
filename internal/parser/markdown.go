package parser

import (
	"strings"
	"time"

	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

// parseMarkdown chunks a markdown file by heading. smacker/go-tree-sitter ships no markdown grammar, so
// headings are found with a plain line scan rather than a tree-sitter
// query, and each section's breadcrumb is the stack of enclosing heading
// titles joined by " > ".
func (p *Parser) parseMarkdown(origin string, def *lang.Def, source []byte, mtime time.Time) (*Result, error) {
	lines := strings.Split(string(source), "\n")

	type heading struct {
		title     string
		depth     int
		lineIdx   int // 0-based
	}
	var headings []heading
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		depth := 0
		for depth < len(trimmed) && trimmed[depth] == '#' {
			depth++
		}
		if depth == 0 || depth > 6 {
			continue
		}
		if depth < len(trimmed) && trimmed[depth] != ' ' && trimmed[depth] != '\t' {
			continue // e.g. "#hashtag", not a heading
		}
		title := strings.TrimSpace(trimmed[depth:])
		if title == "" {
			continue
		}
		headings = append(headings, heading{title: title, depth: depth, lineIdx: i})
	}

	if len(headings) == 0 {
		return &Result{}, nil
	}

	var chunks []*model.Chunk
	var stack []heading
	for idx, h := range headings {
		end := len(lines)
		if idx+1 < len(headings) {
			end = headings[idx+1].lineIdx
		}
		content := strings.Join(lines[h.lineIdx:end], "\n")

		for len(stack) > 0 && stack[len(stack)-1].depth >= h.depth {
			stack = stack[:len(stack)-1]
		}
		crumbs := make([]string, 0, len(stack)+1)
		for _, s := range stack {
			crumbs = append(crumbs, s.title)
		}
		breadcrumb := strings.Join(crumbs, " > ")
		stack = append(stack, h)

		lineStart := h.lineIdx + 1
		lineEnd := end
		if lineEnd < lineStart {
			lineEnd = lineStart
		}
		hash := contentHash(content)
		c := &model.Chunk{
			Origin:      origin,
			Language:    def.Name,
			ChunkType:   model.ChunkSection,
			Name:        h.title,
			Signature:   h.title,
			Content:     content,
			Doc:         breadcrumb,
			LineStart:   lineStart,
			LineEnd:     lineEnd,
			ContentHash: hash,
			SourceMtime: mtime.Unix(),
			CreatedAt:   mtime,
			UpdatedAt:   mtime,
		}
		c.ID = chunkID(origin, lineStart, hash)
		chunks = append(chunks, c)
		chunks = append(chunks, applyWindowing(c)...)
	}

	return &Result{Chunks: chunks}, nil
}
