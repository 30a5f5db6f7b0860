package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLoggerWritesAndCloses(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "service.log")

	logger, closeFunc, err := NewFileLogger(logPath, "testsvc", slog.LevelDebug)
	require.NoError(t, err)
	require.NotNil(t, closeFunc)

	logger.Info("service started", "key", "value")
	require.NoError(t, closeFunc(), "closing the log writer releases the file")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service started")
	assert.Contains(t, string(data), `"service":"testsvc"`)
}

func TestNewFileLoggerCloseIsRepeatable(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "service.log")

	_, closeFunc, err := NewFileLogger(logPath, "testsvc", slog.LevelInfo)
	require.NoError(t, err)

	require.NoError(t, closeFunc())
	assert.NoError(t, closeFunc(), "shutdown paths may close more than once")
}
