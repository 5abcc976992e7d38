package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewFileWritesJSONWithComponent(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "shelfshot.log")
	logger, cleanup, err := NewFile("info", path)
	require.NoError(t, err)

	Component(logger, "storage").Info("commit session completed", "count", 2)
	logger.Debug("filtered out")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "commit session completed", rec["msg"])
	assert.Equal(t, "storage", rec["component"])
	assert.EqualValues(t, 2, rec["count"])
}

func TestNewFileBadPath(t *testing.T) {
	_, _, err := NewFile("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
