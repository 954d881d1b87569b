package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ".cqs", cfg.Store.DataDir)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.True(t, cfg.Search.EnableRRF)
	assert.Equal(t, 200, cfg.Gather.MaxExpandedNode)
}

func TestLoad_ReadsYAMLAndReferences(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cqs"), 0o755))
	yaml := `
search:
  name_boost: 0.25
references:
  - name: stdlib
    path: /data/refs/stdlib
    weight: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".cqs", "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Search.NameBoost)
	require.Len(t, cfg.References, 1)
	assert.Equal(t, "stdlib", cfg.References[0].Name)
	assert.Equal(t, 0.5, cfg.References[0].Weight)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CQS_NAME_BOOST", "0.4")
	t.Setenv("CQS_DATA_DIR", ".custom")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Search.NameBoost)
	assert.Equal(t, ".custom", cfg.Store.DataDir)
}

func TestFindProjectRoot_WalksUpToMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestNormalizeOrigin(t *testing.T) {
	assert.Equal(t, "src/a.go", NormalizeOrigin(`src\a.go`))
	assert.Equal(t, "src/a.go", NormalizeOrigin("src/a.go"))
}
