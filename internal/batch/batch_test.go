package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`search foo bar`, []string{"search", "foo", "bar"}},
		{`search "load config" -n 3`, []string{"search", "load config", "-n", "3"}},
		{`search 'single quoted'`, []string{"search", "single quoted"}},
		{`gather a\ b`, []string{"gather", "a b"}},
		{`search ""`, []string{"search", ""}},
		{`  spaced   out  `, []string{"spaced", "out"}},
		{``, nil},
	}
	for _, tt := range tests {
		got, err := tokenize(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	_, err := tokenize(`search "unclosed`)
	require.Error(t, err)
	_, err = tokenize(`search trailing\`)
	require.Error(t, err)
}

func TestRun_ProtocolFraming(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"",
		"# a comment line",
		"help",
		"definitely-not-a-command",
		"quit",
		"help", // never reached: quit terminates the loop
	}, "\n"))
	var out bytes.Buffer

	err := Run(context.Background(), nil, in, &out)
	require.NoError(t, err)

	var lines []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &obj), "each output line is one JSON object")
		lines = append(lines, obj)
	}
	require.Len(t, lines, 2)

	cmds, ok := lines[0]["commands"].([]any)
	require.True(t, ok)
	assert.Len(t, cmds, len(commandNames))

	assert.Contains(t, lines[1]["error"], "unknown command")
}

func TestRun_ReportsTokenizeErrorsAndContinues(t *testing.T) {
	in := strings.NewReader("search \"unclosed\nhelp\nexit\n")
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), nil, in, &out))

	outLines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, outLines, 2)
	assert.Contains(t, outLines[0], "error")
	assert.Contains(t, outLines[1], "commands")
}

func TestBFSPath_FindsShortestPath(t *testing.T) {
	adj := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": {"e"},
	}
	path, found := bfsPath(adj, "a", "e", 10)
	require.True(t, found)
	assert.Equal(t, "a", path[0])
	assert.Equal(t, "e", path[len(path)-1])
	assert.Len(t, path, 4)

	_, found = bfsPath(adj, "a", "e", 2)
	assert.False(t, found, "path of 3 hops exceeds max depth 2")

	path, found = bfsPath(adj, "a", "a", 10)
	require.True(t, found)
	assert.Equal(t, []string{"a"}, path)

	_, found = bfsPath(adj, "e", "a", 10)
	assert.False(t, found, "edges are directed")
}

func TestRequireCount_RejectsNonPositive(t *testing.T) {
	assert.Error(t, requireCount("-n", 0))
	assert.Error(t, requireCount("-n", -3))
	assert.NoError(t, requireCount("-n", 1))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b", truncateWords("a b", 5))
	assert.Equal(t, "a b ...", truncateWords("a b c d", 2))
}
