package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cqs-dev/cqs/internal/config"
)

func newTestPipeline(t *testing.T, include, exclude []string) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Include = include
	cfg.Paths.Exclude = exclude
	return &Pipeline{Config: cfg}
}

func TestPipeline_MatchesExclude(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"vendor/**", "*.generated.go"})
	assert.True(t, p.matchesExclude("vendor/lib/foo.go"))
	assert.True(t, p.matchesExclude("models.generated.go"))
	assert.False(t, p.matchesExclude("internal/store/store.go"))
}

func TestPipeline_MatchesInclude(t *testing.T) {
	p := newTestPipeline(t, []string{"src/**/*.go"}, nil)
	assert.True(t, p.matchesInclude("src/app/main.go"))
	assert.False(t, p.matchesInclude("other/main.go"))
}

func TestRelPath(t *testing.T) {
	root := filepath.FromSlash("/proj")
	got := relPath(root, filepath.FromSlash("/proj/internal/store/store.go"))
	assert.Equal(t, "internal/store/store.go", got)
}

func TestRelPath_Root(t *testing.T) {
	root := filepath.FromSlash("/proj")
	got := relPath(root, filepath.FromSlash("/proj"))
	assert.Equal(t, ".", got)
}

func TestDetectLanguageName_Empty(t *testing.T) {
	assert.Equal(t, "", detectLanguageName(nil))
}
