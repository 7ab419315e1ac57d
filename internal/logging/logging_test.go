package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_ConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runner.log")
	var console bytes.Buffer

	logger, cleanup, err := newLogger(config.LogConfig{Level: "info", File: path}, &console)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Test passed", zap.String("test", "login"))
	cleanup()

	assert.Contains(t, console.String(), "Test passed")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO")
	assert.Contains(t, string(data), `"test": "login"`)
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNewLogger_NoFile(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup, err := newLogger(config.LogConfig{Level: "warn"}, &console)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)

	l, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
