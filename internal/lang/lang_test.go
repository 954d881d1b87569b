package lang

import "testing"

func TestByExtension(t *testing.T) {
	r := Default()

	cases := map[string]string{
		"go":   "go",
		".go":  "go",
		".PY":  "python",
		"ts":   "typescript",
		"tsx":  "tsx",
		"js":   "javascript",
		"jsx":  "javascript",
		"rs":   "rust",
		"java": "java",
		"md":   "markdown",
	}
	for ext, want := range cases {
		d, ok := r.ByExtension(ext)
		if !ok {
			t.Fatalf("ByExtension(%q): not found", ext)
		}
		if d.Name != want {
			t.Errorf("ByExtension(%q) = %q, want %q", ext, d.Name, want)
		}
	}

	if _, ok := r.ByExtension(".xyz"); ok {
		t.Error("ByExtension(.xyz) should not be found")
	}
}

func TestByName(t *testing.T) {
	r := Default()
	for _, name := range []string{"go", "python", "javascript", "typescript", "tsx", "rust", "java", "markdown"} {
		if _, ok := r.ByName(name); !ok {
			t.Errorf("ByName(%q) not found", name)
		}
	}
}

func TestGoExtractReturnNL(t *testing.T) {
	cases := []struct {
		sig     string
		want    string
		wantOk  bool
	}{
		{"func Foo(a int) (Result, error) {", "Result, error", true},
		{"func Foo() {", "", false},
		{"func Foo(a int) string {", "string", true},
	}
	for _, c := range cases {
		got, ok := goExtractReturnNL(c.sig)
		if ok != c.wantOk || got != c.want {
			t.Errorf("goExtractReturnNL(%q) = (%q, %v), want (%q, %v)", c.sig, got, ok, c.want, c.wantOk)
		}
	}
}

func TestPythonExtractReturnNL(t *testing.T) {
	got, ok := pythonExtractReturnNL("def foo(a: int) -> Config:")
	if !ok || got != "Config" {
		t.Errorf("pythonExtractReturnNL = (%q, %v)", got, ok)
	}
	if _, ok := pythonExtractReturnNL("def foo(a: int):"); ok {
		t.Error("expected no return annotation")
	}
}

func TestJSDocParamTypes(t *testing.T) {
	doc := "/**\n * @param {string} name\n * @param {number} age\n * @returns {boolean}\n */"
	got := JSDocParamTypes(doc)
	if got["name"] != "string" || got["age"] != "number" {
		t.Errorf("JSDocParamTypes = %v", got)
	}
	ret, ok := jsdocExtractReturnNL(doc)
	if !ok || ret != "boolean" {
		t.Errorf("jsdocExtractReturnNL = (%q, %v)", ret, ok)
	}
}

func TestRustContainerName(t *testing.T) {
	if got := rustContainerName(nil, nil); got != "" {
		t.Errorf("rustContainerName(nil) = %q, want empty", got)
	}
}

func TestIsStopword(t *testing.T) {
	d, _ := Default().ByName("go")
	if !d.IsStopword("Get") {
		t.Error("expected 'Get' to be a stopword (case-insensitive)")
	}
	if d.IsStopword("parse") {
		t.Error("'parse' should not be a stopword")
	}
}
