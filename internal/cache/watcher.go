package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ragindex/ragindex/internal/index"
)

// Watcher marks cache entries stale when their source directories change
// on disk. Staleness never evicts: the entry keeps serving until the
// operator reloads it.
type Watcher struct {
	cache *Cache

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watched map[string]bool
}

// NewWatcher creates a watcher bound to the given cache.
func NewWatcher(c *Cache) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cache:   c,
		fsw:     fsw,
		watched: make(map[string]bool),
	}, nil
}

// Watch starts watching a collection root, non-recursively. Idempotent.
func (w *Watcher) Watch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched[root] {
		return nil
	}
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	w.watched[root] = true
	slog.Debug("watching collection root", slog.String("root", root))
	return nil
}

// Run processes events until ctx is cancelled or the watcher closes.
// Call in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			root := filepath.Dir(ev.Name)
			slog.Debug("source change detected",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()))
			w.cache.MarkStale(root)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher; a running Run loop drains and exits.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant filters events down to source file changes. Index artifacts,
// lock files, and hidden files churn during builds and must not flag
// their own collection stale.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if base == "manifest.json" {
		return false
	}
	ext := filepath.Ext(base)
	for _, want := range index.SourceExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
