package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
)

var fixtureMtime = time.Unix(1700000000, 0).UTC()

const goFixture = `package demo

// parseConfig reads the config file at path.
func parseConfig(path string) (*Config, error) {
	data := readFile(path)
	return decode(data)
}

func readFile(path string) []byte {
	return nil
}

type Config struct {
	Name string
}

func (c *Config) Validate() error {
	return nil
}
`

func TestParseFile_GoSource(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.ParseFile(context.Background(), "src/demo.go", []byte(goFixture), fixtureMtime)
	require.NoError(t, err)

	byName := map[string]*model.Chunk{}
	for _, c := range result.Chunks {
		byName[c.Name] = c
	}

	pc := byName["parseConfig"]
	require.NotNil(t, pc)
	assert.Equal(t, model.ChunkFunction, pc.ChunkType)
	assert.Equal(t, "src/demo.go", pc.Origin)
	assert.Equal(t, "go", pc.Language)
	assert.Equal(t, 4, pc.LineStart)
	assert.Equal(t, 7, pc.LineEnd)
	assert.Equal(t, "func parseConfig(path string) (*Config, error)", pc.Signature)
	assert.Contains(t, pc.Doc, "parseConfig reads the config file")
	assert.Equal(t, fmt.Sprintf("src/demo.go:4:%s", pc.ContentHash[:8]), pc.ID)
	assert.Empty(t, pc.ParentID)
	assert.Nil(t, pc.WindowIdx)

	cfg := byName["Config"]
	require.NotNil(t, cfg)
	assert.Equal(t, model.ChunkStruct, cfg.ChunkType)

	validate := byName["Validate"]
	require.NotNil(t, validate)
	assert.Equal(t, model.ChunkMethod, validate.ChunkType)
}

func TestParseFile_Deterministic(t *testing.T) {
	p := New()
	defer p.Close()

	first, err := p.ParseFile(context.Background(), "src/demo.go", []byte(goFixture), fixtureMtime)
	require.NoError(t, err)
	second, err := p.ParseFile(context.Background(), "src/demo.go", []byte(goFixture), fixtureMtime)
	require.NoError(t, err)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ID, second.Chunks[i].ID)
		assert.Equal(t, first.Chunks[i].ContentHash, second.Chunks[i].ContentHash)
	}
}

func TestParseFile_ExtractsCalls(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.ParseFile(context.Background(), "src/demo.go", []byte(goFixture), fixtureMtime)
	require.NoError(t, err)

	var callees []string
	for _, c := range result.Calls {
		if c.CallerName == "parseConfig" {
			callees = append(callees, c.CalleeName)
			assert.Equal(t, "src/demo.go", c.Origin)
			assert.Greater(t, c.CallLine, 4)
			assert.Less(t, c.CallLine, 8)
		}
	}
	assert.ElementsMatch(t, []string{"readFile", "decode"}, callees)
}

func TestParseFile_UnknownExtension(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.ParseFile(context.Background(), "notes.xyz", []byte("whatever"), fixtureMtime)
	require.Error(t, err)
}

func TestApplyWindowing_SmallChunkNotWindowed(t *testing.T) {
	c := &model.Chunk{ID: "a.go:1:deadbeef", Origin: "a.go", Name: "small", LineStart: 1, LineEnd: 40, Content: strings.Repeat("x\n", 39) + "x"}
	assert.Nil(t, applyWindowing(c))
}

func TestApplyWindowing_GiantChunkSplitsIntoThree(t *testing.T) {
	lines := make([]string, 2000)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	primary := &model.Chunk{
		Origin: "big.go", Name: "giant", ChunkType: model.ChunkFunction,
		LineStart: 10, LineEnd: 2009, Content: strings.Join(lines, "\n"),
	}
	primary.ContentHash = contentHash(primary.Content)
	primary.ID = chunkID(primary.Origin, primary.LineStart, primary.ContentHash)

	windows := applyWindowing(primary)
	require.Len(t, windows, 3)

	for i, w := range windows {
		assert.Equal(t, primary.ID, w.ParentID)
		require.NotNil(t, w.WindowIdx)
		assert.Equal(t, i, *w.WindowIdx)
		assert.Equal(t, "giant", w.Name)
		assert.LessOrEqual(t, w.LineStart, w.LineEnd)
	}

	// consecutive windows overlap by overlapLines
	assert.Equal(t, windows[0].LineEnd-windows[1].LineStart+1, overlapLines)
	// the final window ends where the primary ends
	assert.Equal(t, primary.LineEnd, windows[2].LineEnd)
}

func TestChunkID_Format(t *testing.T) {
	hash := contentHash("func foo() {}")
	id := chunkID("src/a.go", 12, hash)
	assert.Equal(t, "src/a.go:12:"+hash[:8], id)
	assert.Len(t, hash, 64)
}

func TestParseMarkdown_SectionsAndBreadcrumbs(t *testing.T) {
	p := New()
	defer p.Close()

	md := `# Guide

intro text

## Install

run the installer

### Linux

use the tarball

## Usage

#hashtag is not a heading
`
	result, err := p.ParseFile(context.Background(), "docs/guide.md", []byte(md), fixtureMtime)
	require.NoError(t, err)

	byName := map[string]*model.Chunk{}
	for _, c := range result.Chunks {
		byName[c.Name] = c
	}
	require.Len(t, result.Chunks, 4)

	guide := byName["Guide"]
	require.NotNil(t, guide)
	assert.Equal(t, model.ChunkSection, guide.ChunkType)
	assert.Equal(t, "", guide.Doc)

	linux := byName["Linux"]
	require.NotNil(t, linux)
	assert.Equal(t, "Guide > Install", linux.Doc)
	assert.Contains(t, linux.Content, "use the tarball")

	usage := byName["Usage"]
	require.NotNil(t, usage)
	assert.Contains(t, usage.Content, "#hashtag")
}

func TestComputeSignature_Helpers(t *testing.T) {
	assert.Equal(t, "first", firstLine("first\nsecond"))
	assert.Equal(t, "whole", firstLine("whole"))

	got := untilBrace("func f(s string) error {\n\treturn nil\n}")
	assert.Equal(t, "func f(s string) error", got)

	// a brace inside a string literal does not terminate the signature
	got = untilBrace(`fn f(s: &str = "{") -> i32 {`)
	assert.Equal(t, `fn f(s: &str = "{") -> i32`, got)

	got = untilKeyword("CREATE VIEW v AS SELECT 1", "AS")
	assert.Equal(t, "CREATE VIEW v", got)

	// "AS" inside a longer word is not a boundary match
	got = untilKeyword("CREATE TABLE basics (id INT)", "AS")
	assert.Equal(t, "CREATE TABLE basics (id INT)", got)
}
