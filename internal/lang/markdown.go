package lang

import "github.com/cqs-dev/cqs/internal/model"

// markdownDef has no tree-sitter grammar: smacker/go-tree-sitter ships no
// markdown grammar, so the parser chunks markdown by heading depth instead
// of by query. Grammar is left
// nil and the parser special-cases Name == "markdown".
func markdownDef() *Def {
	return &Def{
		Name:       "markdown",
		Extensions: []string{".md", ".markdown"},
		Grammar:    nil,
		ChunkNodeKinds: map[string]model.ChunkType{
			"section": model.ChunkSection,
		},
		SignatureStyle:       model.SignatureFirstLine,
		DocCommentKinds:      []string{},
		MethodContainerKinds: []string{},
		Stopwords:            stopwordSet(commonStopwords...),
		ExtractReturnNL: func(string) (string, bool) {
			return "", false
		},
	}
}
