package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_EmptyFileIsNop(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rterm.log")

	logger, err := New(config.LogConfig{Level: "info", File: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("session state changed", zap.String("to", "connected"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"session state changed"`)
	assert.Contains(t, string(data), `"to":"connected"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "shouty", File: filepath.Join(t.TempDir(), "x.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		_, err := parseLevel(lvl)
		assert.NoError(t, err, lvl)
	}
}
