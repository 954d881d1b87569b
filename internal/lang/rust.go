package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/cqs-dev/cqs/internal/model"
)

func rustDef() *Def {
	return &Def{
		Name:       "rust",
		Extensions: []string{".rs"},
		Grammar:    rust.GetLanguage(),
		ChunkNodeKinds: map[string]model.ChunkType{
			"function_item":    model.ChunkFunction,
			"struct_item":      model.ChunkStruct,
			"enum_item":        model.ChunkEnum,
			"trait_item":       model.ChunkTrait,
			"type_item":        model.ChunkTypeAlias,
			"const_item":       model.ChunkConstant,
			"macro_definition": model.ChunkMacro,
		},
		CallNodeKind:         "call_expression",
		TypeRefNodeKinds:     []string{"type_identifier", "generic_type"},
		SignatureStyle:       model.SignatureUntilBrace,
		DocCommentKinds:      []string{"line_comment", "block_comment"},
		MethodContainerKinds: []string{"impl_item", "trait_item"},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL:      rustExtractReturnNL,
		ExtractContainerName: rustContainerName,
		ExtractQualifiedName: func(container, method string) string {
			return container + "::" + method
		},
	}
}

// rustExtractReturnNL reads a "-> Type {" return clause.
func rustExtractReturnNL(signature string) (string, bool) {
	idx := strings.Index(signature, "->")
	if idx == -1 {
		return "", false
	}
	ret := strings.TrimSpace(signature[idx+2:])
	ret = strings.TrimSuffix(ret, "{")
	ret = strings.TrimSpace(ret)
	if ret == "" {
		return "", false
	}
	return ret, true
}

// rustContainerName resolves the type name an impl/trait block is
// implementing for, e.g. "Foo" out of "impl<T> Trait for Foo<T>".
func rustContainerName(container *sitter.Node, source []byte) string {
	if container == nil {
		return ""
	}
	// The "type" field holds the Self type for both impl and trait blocks
	// in the tree-sitter-rust grammar.
	if tn := container.ChildByFieldName("type"); tn != nil {
		name := tn.Content(source)
		if idx := strings.IndexByte(name, '<'); idx != -1 {
			name = name[:idx]
		}
		return strings.TrimSpace(name)
	}
	if nn := container.ChildByFieldName("name"); nn != nil {
		return nn.Content(source)
	}
	return ""
}
