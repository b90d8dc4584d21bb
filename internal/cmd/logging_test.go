package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vdo.log")
	var stderr bytes.Buffer

	logger, err := NewLogger(LogConfig{Name: "start", File: path, Stderr: &stderr})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("volume started")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug entries need --debug")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "volume started", entry["msg"])
	assert.Equal(t, "start", entry["logger"])
	assert.Empty(t, stderr.String())
}

func TestNewLoggerFileDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vdo.log")

	logger, err := NewLogger(LogConfig{Name: "stop", File: path, Debug: true})
	require.NoError(t, err)
	logger.Debug("details")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"details"`)
}

func TestNewLoggerStderr(t *testing.T) {
	var stderr bytes.Buffer

	logger, err := NewLogger(LogConfig{Name: "list", Stderr: &stderr})
	require.NoError(t, err)
	logger.Error("not shown")
	assert.Empty(t, stderr.String(), "no sink without --logfile or --debug")

	logger, err = NewLogger(LogConfig{Name: "list", Debug: true, Stderr: &stderr})
	require.NoError(t, err)
	logger.Debug("shown")
	assert.Contains(t, stderr.String(), "shown")
	assert.Contains(t, stderr.String(), "list")
}

func TestNewLoggerBadFile(t *testing.T) {
	_, err := NewLogger(LogConfig{File: filepath.Join(t.TempDir(), "missing", "dir", "vdo.log")})
	assert.Error(t, err)
}
