package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "xterm-256color", cfg.Terminal.Type)
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Exec)
	assert.Equal(t, 300*time.Second, cfg.Timeouts.Stream)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Pending)
	assert.False(t, cfg.SSH.StrictHostKeyChecking)
	assert.True(t, cfg.SSH.UseAgent)
	assert.Equal(t, 22, cfg.SSH.DefaultPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, "auto", cfg.Output.Color)

	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
terminal:
  type: vt100
  cols: 120
  rows: 40
timeouts:
  connect: 5s
  exec: 90s
ssh:
  strict_host_key_checking: true
  known_hosts: /tmp/known_hosts
  default_port: 2222
log:
  level: debug
  file: /tmp/rterm.log
output:
  color: never
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "vt100", cfg.Terminal.Type)
	assert.Equal(t, 120, cfg.Terminal.Cols)
	assert.Equal(t, 40, cfg.Terminal.Rows)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Exec)
	// Unset keys keep their defaults
	assert.Equal(t, 300*time.Second, cfg.Timeouts.Stream)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Pending)
	assert.True(t, cfg.SSH.StrictHostKeyChecking)
	assert.Equal(t, "/tmp/known_hosts", cfg.SSH.KnownHosts)
	assert.Equal(t, 2222, cfg.SSH.DefaultPort)
	assert.True(t, cfg.SSH.UseAgent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/rterm.log", cfg.Log.File)
	assert.Equal(t, "never", cfg.Output.Color)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("terminal: [unclosed"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestLoad_ExpandsKnownHosts(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("ssh:\n  known_hosts: ~/.ssh/other_hosts\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".ssh", "other_hosts"), cfg.SSH.KnownHosts)
}

func TestLoad_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("timeouts:\n  exec: 30s\n"), 0644))
	t.Setenv("RTERM_TIMEOUTS_EXEC", "45s")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Exec)
}

func TestFind_Explicit(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n"), 0644))

	found, err := Find(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, found)
}

func TestFind_ExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFind_CurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1\n"), 0644))
	t.Chdir(dir)

	found, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, ConfigFileName, filepath.Base(found))
}

func TestFind_ParentStopsAtGitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0644))

	repo := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))
	nested := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Setenv("HOME", t.TempDir())
	t.Chdir(nested)

	found, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, found, "search must not escape the git root")
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig().Terminal, cfg.Terminal)
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := DefaultConfig()
	cfg.Terminal.Cols = 132
	cfg.Timeouts.Exec = 75 * time.Second
	cfg.Output.Color = "never"

	require.NoError(t, Write(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 132, loaded.Terminal.Cols)
	assert.Equal(t, 75*time.Second, loaded.Timeouts.Exec)
	assert.Equal(t, "never", loaded.Output.Color)
}
