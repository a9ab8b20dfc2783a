package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// archiveStamp is the timestamp layout embedded in rotated file names,
// chosen so lexical order equals chronological order.
const archiveStamp = "20060102T150405.000"

// RotatingWriter implements io.Writer with size-based rotation. When the
// live file exceeds its size budget it is renamed to a timestamped
// archive (server.log -> server-20260801T101500.000.log) and a fresh file
// opened; the oldest archives are pruned down to the configured count.
// Writes are synced immediately so `tail -f` on the live file never lags
// the service.
type RotatingWriter struct {
	path        string
	maxSize     int64
	maxArchives int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter creates a rotating log writer. maxSizeMB is the size
// budget in megabytes before rotation; maxArchives is how many rotated
// files to keep.
func NewRotatingWriter(path string, maxSizeMB, maxArchives int) (*RotatingWriter, error) {
	if maxArchives < 0 {
		maxArchives = 0
	}
	w := &RotatingWriter{
		path:        path,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		maxArchives: maxArchives,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer with automatic rotation.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Keep writing to the current file rather than lose records.
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Sync flushes the live file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the live file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// open opens or creates the live log file, picking up its current size.
func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.written = info.Size()
	return nil
}

// archiveName derives the timestamped archive path for the live file.
func (w *RotatingWriter) archiveName(now time.Time) string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	return fmt.Sprintf("%s-%s%s", base, now.UTC().Format(archiveStamp), ext)
}

// rotate moves the live file aside under a timestamped name and prunes
// old archives down to maxArchives.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.archiveName(time.Now())); err != nil {
			return fmt.Errorf("failed to archive log file: %w", err)
		}
	}
	w.prune()

	w.written = 0
	return w.open()
}

// prune removes the oldest archives beyond the retention count. Archive
// names embed a sortable timestamp, so lexical order is age order.
func (w *RotatingWriter) prune() {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)

	matches, err := filepath.Glob(base + "-*" + ext)
	if err != nil || len(matches) <= w.maxArchives {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-w.maxArchives] {
		_ = os.Remove(old)
	}
}
