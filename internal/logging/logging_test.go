package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	require.NotEmpty(t, dir)
	assert.Contains(t, dir, ".ragindex")
	assert.Contains(t, dir, "logs")
}

func TestDefaultLogPath(t *testing.T) {
	assert.Equal(t, "server.log", filepath.Base(DefaultLogPath()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxArchives)
	assert.True(t, cfg.WriteToStderr)
}

func TestDebugConfig(t *testing.T) {
	assert.Equal(t, "debug", DebugConfig().Level)
}

func TestSetup_WritesTaggedJSONRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{
		Level:       "debug",
		FilePath:    logPath,
		MaxSizeMB:   1,
		MaxArchives: 3,
	})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("test message", slog.String("k", "v"))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.Split(strings.TrimSpace(string(data)), "\n")[0]), &record))
	assert.Equal(t, "test message", record["msg"])
	assert.Equal(t, "ragindexd", record["service"], "every record carries the service tag")
	assert.Contains(t, record, "version")
}

func TestSetup_NoFileMeansStderrOnly(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info", WriteToStderr: false})
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, logger)
}

func TestSetLevel_RuntimeChange(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: logPath})
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("dropped at info level")
	SetLevel("debug")
	logger.Debug("kept at debug level")
	SetLevel("info")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped at info level")
	assert.Contains(t, string(data), "kept at debug level")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, LevelFromString(tc.input).String(), "input %q", tc.input)
	}
}

func TestFindLogFile_NotFound(t *testing.T) {
	_, err := FindLogFile("/nonexistent/path/to/log.log")
	assert.Error(t, err)
}

func TestFindLogFile_ExplicitPath(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(logPath, []byte("test"), 0o644))

	found, err := FindLogFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, logPath, found)
}

func TestRotatingWriter_WriteIsImmediatelyVisible(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	record := []byte(`{"level":"INFO","msg":"test"}` + "\n")
	n, err := w.Write(record)
	require.NoError(t, err)
	assert.Equal(t, len(record), n)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, record, content)
}

func TestRotatingWriter_RotationArchivesWithTimestamp(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "rotate.log")

	// Zero MB budget forces rotation on every oversized write.
	w, err := NewRotatingWriter(logPath, 0, 3)
	require.NoError(t, err)
	defer w.Close()

	payload := []byte(strings.Repeat("x", 2048))
	_, err = w.Write(payload)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)

	assert.FileExists(t, logPath)
	archives, err := filepath.Glob(filepath.Join(dir, "rotate-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, archives, "rotation must leave a timestamped archive")
}

func TestRotatingWriter_PrunesOldArchives(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "prune.log")

	// Pre-seed more archives than the retention count, oldest first.
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, fmt.Sprintf("prune-2026010%dT000000.000.log", i+1))
		require.NoError(t, os.WriteFile(name, []byte("old"), 0o644))
	}

	w, err := NewRotatingWriter(logPath, 0, 2)
	require.NoError(t, err)
	defer w.Close()

	payload := []byte(strings.Repeat("y", 2048))
	_, err = w.Write(payload)
	require.NoError(t, err)
	_, err = w.Write(payload) // triggers rotate + prune
	require.NoError(t, err)

	archives, err := filepath.Glob(filepath.Join(dir, "prune-*.log"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(archives), 2, "prune must enforce the retention count")

	// The survivors are the newest ones.
	for _, a := range archives {
		assert.NotContains(t, a, "20260101", "oldest archive must be pruned first")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	w, err := NewRotatingWriter(logPath, 10, 3)
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				msg := fmt.Sprintf(`{"id":%d,"iter":%d,"msg":"test"}`, id, j) + "\n"
				_, _ = w.Write([]byte(msg))
			}
		}(i)
	}
	wg.Wait()

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
