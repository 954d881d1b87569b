package lang

import (
	"strings"

	"github.com/smacker/go-tree-sitter/java"

	"github.com/cqs-dev/cqs/internal/model"
)

func javaDef() *Def {
	return &Def{
		Name:       "java",
		Extensions: []string{".java"},
		Grammar:    java.GetLanguage(),
		ChunkNodeKinds: map[string]model.ChunkType{
			"method_declaration":    model.ChunkMethod,
			"class_declaration":     model.ChunkClass,
			"interface_declaration": model.ChunkInterface,
			"enum_declaration":      model.ChunkEnum,
			"field_declaration":     model.ChunkProperty,
		},
		CallNodeKind:         "method_invocation",
		TypeRefNodeKinds:     []string{"type_identifier"},
		SignatureStyle:       model.SignatureUntilBrace,
		DocCommentKinds:      []string{"line_comment", "block_comment"},
		MethodContainerKinds: []string{"class_body", "interface_body"},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      javaExtractReturnNL,
		ExtractQualifiedName: func(container, method string) string {
			return container + "." + method
		},
	}
}

// javaExtractReturnNL reads the return-type token preceding the method
// name in "public List<String> getNames(...) {".
func javaExtractReturnNL(signature string) (string, bool) {
	paren := strings.IndexByte(signature, '(')
	if paren == -1 {
		return "", false
	}
	head := strings.TrimSpace(signature[:paren])
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return "", false
	}
	ret := fields[len(fields)-2]
	if ret == "" || ret == "void" {
		return "", false
	}
	return ret, true
}
