package lang

import (
	"strings"

	"github.com/smacker/go-tree-sitter/golang"

	"github.com/cqs-dev/cqs/internal/model"
)

func goDef() *Def {
	return &Def{
		Name:       "go",
		Extensions: []string{".go"},
		Grammar:    golang.GetLanguage(),
		ChunkNodeKinds: map[string]model.ChunkType{
			"function_declaration": model.ChunkFunction,
			"method_declaration":   model.ChunkMethod,
			"type_declaration":     model.ChunkStruct,
			"const_declaration":    model.ChunkConstant,
		},
		CallNodeKind:         "call_expression",
		TypeRefNodeKinds:     []string{"type_identifier", "qualified_type"},
		SignatureStyle:       model.SignatureUntilBrace,
		DocCommentKinds:      []string{"comment"},
		MethodContainerKinds: []string{}, // Go methods carry their own receiver, never nested
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      goExtractReturnNL,
		ExtractQualifiedName: func(container, method string) string {
			return container + "." + method
		},
	}
}

// goExtractReturnNL finds the return clause of a Go signature, which sits
// after the closing paren of the parameter list and before the opening
// brace, e.g. "func Foo(a int) (Result, error) {" -> "Result, error".
func goExtractReturnNL(signature string) (string, bool) {
	sig := strings.TrimSuffix(strings.TrimSpace(signature), "{")
	sig = strings.TrimSpace(sig)

	depth := 0
	paramsEnd := -1
	// A method's receiver group comes before its parameter list.
	groupsToSkip := 0
	if strings.HasPrefix(sig, "func (") {
		groupsToSkip = 1
	}
	for i, r := range sig {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if groupsToSkip > 0 {
					groupsToSkip--
				} else {
					paramsEnd = i + 1
				}
			}
		}
		if paramsEnd != -1 && depth == 0 {
			break
		}
	}
	if paramsEnd == -1 || paramsEnd >= len(sig) {
		return "", false
	}
	ret := strings.TrimSpace(sig[paramsEnd:])
	ret = strings.TrimPrefix(ret, "(")
	ret = strings.TrimSuffix(ret, ")")
	ret = strings.TrimSpace(ret)
	if ret == "" {
		return "", false
	}
	return ret, true
}
