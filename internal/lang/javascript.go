package lang

import (
	"regexp"
	"strings"

	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/cqs-dev/cqs/internal/model"
)

func javascriptDef() *Def {
	return &Def{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".jsx"},
		Grammar:    javascript.GetLanguage(),
		ChunkNodeKinds: map[string]model.ChunkType{
			"function_declaration": model.ChunkFunction,
			"function":             model.ChunkFunction,
			"method_definition":    model.ChunkMethod,
			"class_declaration":    model.ChunkClass,
			"lexical_declaration":  model.ChunkConstant,
		},
		CallNodeKind:         "call_expression",
		TypeRefNodeKinds:     []string{},
		SignatureStyle:       model.SignatureUntilBrace,
		DocCommentKinds:      []string{"comment"},
		MethodContainerKinds: []string{"class_body"},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      jsdocExtractReturnNL,
		ExtractQualifiedName: func(container, method string) string {
			return container + "." + method
		},
	}
}

var jsdocReturnsRE = regexp.MustCompile(`@returns?\s*\{([^}]+)\}`)

// jsdocExtractReturnNL pulls a @returns {Type} annotation from a JSDoc
// block above a function; JS/TS signatures carry no inline return type.
func jsdocExtractReturnNL(docOrSignature string) (string, bool) {
	m := jsdocReturnsRE.FindStringSubmatch(docOrSignature)
	if m == nil {
		return "", false
	}
	ret := strings.TrimSpace(m[1])
	if ret == "" {
		return "", false
	}
	return ret, true
}

var jsdocParamRE = regexp.MustCompile(`@param\s*\{([^}]+)\}\s*(\w+)`)

// JSDocParamTypes extracts {type, name} pairs from @param tags, used to
// merge type annotations into the JS/TS parameter line.
func JSDocParamTypes(doc string) map[string]string {
	out := map[string]string{}
	for _, m := range jsdocParamRE.FindAllStringSubmatch(doc, -1) {
		out[m[2]] = m[1]
	}
	return out
}
