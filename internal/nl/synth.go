package nl

import (
	"regexp"
	"strings"

	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

const markdownPreviewLen = 1800

// GenerateNLDescription produces the string fed to the embedder for a
// chunk. def is the language the chunk was parsed from; it
// supplies the return-type extractor and, for JS/TS, JSDoc merging.
func GenerateNLDescription(chunk *model.Chunk, def *lang.Def, breadcrumb string) string {
	if chunk.ChunkType == model.ChunkSection {
		preview := stripMarkdown(chunk.Content)
		if len(preview) > markdownPreviewLen {
			preview = truncateRunes(preview, markdownPreviewLen)
		}
		return joinNonEmpty(". ", breadcrumb, chunk.Name, preview)
	}

	var parts []string

	if doc := strings.TrimSpace(chunk.Doc); doc != "" {
		parts = append(parts, doc)
	}

	if chunk.ChunkType == model.ChunkMethod && chunk.ParentTypeName != "" {
		parts = append(parts, tokenizedJoin(chunk.ParentTypeName)+" method")
	}

	kindWord := strings.ToLower(string(chunk.ChunkType))
	parts = append(parts, "A "+kindWord+" named "+tokenizedJoin(chunk.Name))

	parts = append(parts, parameterLine(chunk, def))

	if retLine, ok := returnLine(chunk, def); ok {
		parts = append(parts, retLine)
	}

	return joinNonEmpty(". ", parts...)
}

func tokenizedJoin(name string) string {
	return strings.Join(tokenizePhraseWords(name), " ")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// parameterLine builds "Takes parameters: a, b" or "Takes no parameters"
// from a chunk's signature. For JS/TS, JSDoc @param types are merged in.
func parameterLine(chunk *model.Chunk, def *lang.Def) string {
	names := paramNames(chunk.Signature)
	if len(names) == 0 {
		return "Takes no parameters"
	}

	isJS := def != nil && (def.Name == "javascript" || def.Name == "typescript" || def.Name == "tsx")
	jsdocTypes := map[string]string{}
	if isJS {
		jsdocTypes = lang.JSDocParamTypes(chunk.Doc)
	}

	described := make([]string, 0, len(names))
	for _, n := range names {
		if t, ok := jsdocTypes[n]; ok {
			described = append(described, tokenizedJoin(n)+" "+tokenizedJoin(t))
			continue
		}
		described = append(described, tokenizedJoin(n))
	}
	return "Takes parameters: " + strings.Join(described, ", ")
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// paramNames splits the parameter list of signature on top-level commas
// and extracts each parameter's leading identifier.
func paramNames(signature string) []string {
	// A signature may carry more than one top-level paren group: Go
	// methods have a receiver group before the parameter group, and a
	// parenthesized result list may follow it. The parameter list is the
	// first group, or the second when a Go receiver comes first.
	var groups []string
	depth := 0
	groupStart := -1
	for i, r := range signature {
		switch r {
		case '(':
			if depth == 0 {
				groupStart = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && groupStart != -1 {
				groups = append(groups, signature[groupStart:i])
				groupStart = -1
			}
		}
	}
	if len(groups) == 0 {
		return nil
	}
	body := groups[0]
	if strings.HasPrefix(strings.TrimSpace(signature), "func (") && len(groups) > 1 {
		body = groups[1]
	}
	var names []string
	depth = 0
	last := 0
	split := func(i int) {
		seg := strings.TrimSpace(body[last:i])
		last = i + 1
		if seg == "" {
			return
		}
		seg = strings.TrimPrefix(seg, "self")
		seg = strings.TrimPrefix(seg, "&self")
		seg = strings.TrimPrefix(seg, "mut self")
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return
		}
		if m := identRE.FindString(strings.TrimSpace(seg)); m != "" {
			if m == "self" {
				return
			}
			names = append(names, m)
		}
	}
	for i, r := range body {
		switch r {
		case '(', '[', '<', '{':
			depth++
		case ')', ']', '>', '}':
			depth--
		case ',':
			if depth == 0 {
				split(i)
			}
		}
	}
	split(len(body))
	return names
}

// returnLine extracts a return-type phrase from the language's signature
// extractor, falling back to JSDoc @returns for JS/TS.
func returnLine(chunk *model.Chunk, def *lang.Def) (string, bool) {
	if def == nil || def.ExtractReturnNL == nil {
		return "", false
	}
	ret, ok := def.ExtractReturnNL(chunk.Signature)
	if !ok && chunk.Doc != "" {
		ret, ok = def.ExtractReturnNL(chunk.Doc)
	}
	if !ok {
		return "", false
	}
	return "Returns " + tokenizedJoin(ret), true
}

var (
	mdHeadingRE   = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	mdLinkRE      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImageRE     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdBoldItalicRE = regexp.MustCompile("[*_`]+")
	mdWhitespaceRE = regexp.MustCompile(`\s+`)
)

// stripMarkdown removes headings, converts links/images to their text, and
// strips emphasis/code markers, collapsing remaining whitespace.
func stripMarkdown(s string) string {
	s = mdImageRE.ReplaceAllString(s, "$1")
	s = mdLinkRE.ReplaceAllString(s, "$1")
	s = mdHeadingRE.ReplaceAllString(s, "")
	s = mdBoldItalicRE.ReplaceAllString(s, "")
	s = mdWhitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
