package nl

import (
	"strings"
	"testing"

	"github.com/cqs-dev/cqs/internal/lang"
	"github.com/cqs-dev/cqs/internal/model"
)

func TestGenerateNLDescriptionFunction(t *testing.T) {
	def, _ := lang.Default().ByName("go")
	chunk := &model.Chunk{
		ChunkType: model.ChunkFunction,
		Name:      "parseConfigFile",
		Signature: "func parseConfigFile(path string) (Config, error) {",
		Doc:       "Parse configuration from file",
	}

	got := GenerateNLDescription(chunk, def, "")
	want := "Parse configuration from file. A function named parse config file. Takes parameters: path. Returns config error"
	if got != want {
		t.Errorf("GenerateNLDescription =\n%q\nwant\n%q", got, want)
	}
}

func TestGenerateNLDescriptionMethod(t *testing.T) {
	def, _ := lang.Default().ByName("go")
	chunk := &model.Chunk{
		ChunkType:      model.ChunkMethod,
		Name:           "Save",
		ParentTypeName: "UserStore",
		Signature:      "func (s *UserStore) Save() error {",
	}
	got := GenerateNLDescription(chunk, def, "")
	if !strings.Contains(got, "user store method") {
		t.Errorf("expected parent context line, got %q", got)
	}
	if !strings.Contains(got, "Takes no parameters") {
		t.Errorf("expected no-parameters phrase, got %q", got)
	}
}

func TestGenerateNLDescriptionSection(t *testing.T) {
	def, _ := lang.Default().ByName("markdown")
	chunk := &model.Chunk{
		ChunkType: model.ChunkSection,
		Name:      "Installation",
		Content:   "## Installation\n\nRun `go install` to **install** the [tool](https://example.com).",
	}
	got := GenerateNLDescription(chunk, def, "README")
	if strings.Contains(got, "#") || strings.Contains(got, "*") || strings.Contains(got, "`") {
		t.Errorf("markdown formatting not stripped: %q", got)
	}
	if !strings.HasPrefix(got, "README. Installation.") {
		t.Errorf("expected breadcrumb prefix, got %q", got)
	}
}

func TestParamNames(t *testing.T) {
	cases := []struct {
		sig  string
		want []string
	}{
		{"func Foo(a int, b string) error {", []string{"a", "b"}},
		{"func Foo() {", nil},
		{"func (s *Store) Save(ctx context.Context) error {", []string{"ctx"}},
		{"fn foo(&self, x: i32) -> bool {", []string{"x"}},
	}
	for _, c := range cases {
		got := paramNames(c.sig)
		if len(got) != len(c.want) {
			t.Errorf("paramNames(%q) = %v, want %v", c.sig, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("paramNames(%q)[%d] = %q, want %q", c.sig, i, got[i], c.want[i])
			}
		}
	}
}
