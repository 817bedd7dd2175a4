package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jzx17/calcpool/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("Server is listening", slog.String("address", "127.0.0.1:7878"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `msg="Server is listening"`)
	assert.Contains(t, buf.String(), "address=127.0.0.1:7878")
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, slog.LevelDebug)

	logger.Debug("New job received", slog.Int("worker_id", 3))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "New job received", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, float64(3), record["worker_id"])
}

func TestNew_LevelVar(t *testing.T) {
	logger, level, closer := New(config.Log{Level: "error"})
	defer closer.Close()

	require.NotNil(t, logger)
	assert.Equal(t, slog.LevelError, level.Level())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

	level.Set(slog.LevelDebug)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calcpool.log")

	logger, _, closer := New(config.Log{
		Level:      "info",
		JSON:       true,
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})

	logger.Info("Worker pool started", slog.Int("size", 4))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Worker pool started"`)
	assert.Contains(t, string(data), `"size":4`)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Error("dropped", slog.String("error", "none"))
	})
}
