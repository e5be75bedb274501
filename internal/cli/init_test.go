package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/errors"
)

func TestInit_NonInteractiveWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", config.ConfigFileName)

	var out bytes.Buffer
	require.NoError(t, Init(InitOptions{Path: path, NonInteractive: true}, &out))
	assert.Contains(t, out.String(), "Created "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Terminal, cfg.Terminal)
	assert.Equal(t, config.DefaultConfig().Timeouts, cfg.Timeouts)
}

func TestInit_ExistingFileNonInteractive(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	err := Init(InitOptions{Path: path, NonInteractive: true}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data), "existing file is untouched")
}

func TestInit_Force(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	require.NoError(t, Init(InitOptions{Path: path, Overwrite: true, NonInteractive: true}, &bytes.Buffer{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "terminal:")
}
