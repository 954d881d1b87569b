package lang

import (
	"strings"

	"github.com/smacker/go-tree-sitter/python"

	"github.com/cqs-dev/cqs/internal/model"
)

func pythonDef() *Def {
	return &Def{
		Name:       "python",
		Extensions: []string{".py"},
		Grammar:    python.GetLanguage(),
		ChunkNodeKinds: map[string]model.ChunkType{
			"function_definition": model.ChunkFunction,
			"class_definition":    model.ChunkClass,
		},
		CallNodeKind:         "call",
		TypeRefNodeKinds:     []string{"type"},
		SignatureStyle:       model.SignatureUntilBrace, // the colon plays the role of the brace
		DocCommentKinds:      []string{"comment"},
		MethodContainerKinds: []string{"class_definition"},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      pythonExtractReturnNL,
		ExtractQualifiedName: func(container, method string) string {
			return container + "." + method
		},
	}
}

// pythonExtractReturnNL reads a "-> Type:" annotation from a def signature.
func pythonExtractReturnNL(signature string) (string, bool) {
	idx := strings.Index(signature, "->")
	if idx == -1 {
		return "", false
	}
	ret := signature[idx+2:]
	ret = strings.TrimSuffix(strings.TrimSpace(ret), ":")
	ret = strings.TrimSpace(ret)
	if ret == "" {
		return "", false
	}
	return ret, true
}
