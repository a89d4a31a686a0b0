package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.True(t, cfg.Optimize)
	assert.True(t, cfg.EmitGraphviz)
	assert.True(t, cfg.Color)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, ".spindlec-cache", cfg.Cache.Dir)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spindlec.yaml")
	yaml := `
optimize: false
emitGraphviz: false
color: false
cache:
  dir: build-cache
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Optimize)
	assert.False(t, cfg.EmitGraphviz)
	assert.False(t, cfg.Color)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "build-cache", cfg.Cache.Dir)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spindlec.yaml")
	yaml := "unknownField: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsWrongType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spindlec.yaml")
	yaml := "optimize: \"yes please\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
