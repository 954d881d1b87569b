package lang

import (
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/cqs-dev/cqs/internal/model"
)

func tsChunkKinds() map[string]model.ChunkType {
	return map[string]model.ChunkType{
		"function_declaration":   model.ChunkFunction,
		"method_definition":      model.ChunkMethod,
		"class_declaration":      model.ChunkClass,
		"interface_declaration":  model.ChunkInterface,
		"type_alias_declaration": model.ChunkTypeAlias,
		"lexical_declaration":    model.ChunkConstant,
	}
}

func typescriptDef() *Def {
	return &Def{
		Name:                 "typescript",
		Extensions:           []string{".ts"},
		Grammar:              typescript.GetLanguage(),
		ChunkNodeKinds:       tsChunkKinds(),
		CallNodeKind:         "call_expression",
		TypeRefNodeKinds:     []string{"type_identifier"},
		SignatureStyle:       model.SignatureUntilBrace,
		DocCommentKinds:      []string{"comment"},
		MethodContainerKinds: []string{"class_body"},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      typescriptExtractReturnNL,
		ExtractQualifiedName: func(container, method string) string {
			return container + "." + method
		},
	}
}

func tsxDef() *Def {
	d := typescriptDef()
	d.Name = "tsx"
	d.Extensions = []string{".tsx"}
	d.Grammar = tsx.GetLanguage()
	return d
}

// typescriptExtractReturnNL reads a ": Type" annotation trailing the
// parameter list, falling back to JSDoc @returns when absent.
func typescriptExtractReturnNL(signature string) (string, bool) {
	depth := 0
	parenEnd := -1
	for i, r := range signature {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				parenEnd = i + 1
			}
		}
		if parenEnd != -1 {
			break
		}
	}
	if parenEnd == -1 || parenEnd >= len(signature) {
		return jsdocExtractReturnNL(signature)
	}
	rest := signature[parenEnd:]
	colon := -1
	for i, r := range rest {
		if r == ':' {
			colon = i
			break
		}
		if r == '{' {
			break
		}
	}
	if colon == -1 {
		return jsdocExtractReturnNL(signature)
	}
	ret := rest[colon+1:]
	braceIdx := len(ret)
	for i, r := range ret {
		if r == '{' {
			braceIdx = i
			break
		}
	}
	ret = ret[:braceIdx]
	if ret == "" {
		return jsdocExtractReturnNL(signature)
	}
	return trimSpaceOrFallback(ret, signature)
}

func trimSpaceOrFallback(ret, signature string) (string, bool) {
	trimmed := ret
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == ' ' || trimmed[len(trimmed)-1] == '\t') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if trimmed == "" {
		return jsdocExtractReturnNL(signature)
	}
	return trimmed, true
}
