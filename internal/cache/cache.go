// Package cache keeps loaded vector indices resident in memory, keyed by
// absolute path. Reads are concurrent; loads are serialized per path, so N
// callers racing on a cold path trigger exactly one load. Reload swaps
// handles atomically: in-flight searches finish against the old handle,
// which is closed only when its last reader releases it.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ragindex/ragindex/internal/index"
)

// Loader loads the index for a path. Injected so the cache stays ignorant
// of on-disk layouts.
type Loader func(ctx context.Context, path string) (index.Handle, error)

// EntryInfo describes one resident entry.
type EntryInfo struct {
	Path     string        `json:"path"`
	LoadedAt time.Time     `json:"loaded_at"`
	DocCount int           `json:"docs_count"`
	LoadTime time.Duration `json:"load_time"`
	Stale    bool          `json:"stale,omitempty"`
}

// Result is what GetOrLoad hands back. Handle is a leased reference: the
// caller must Close it when done searching, which releases the lease (it
// never unloads the entry).
type Result struct {
	Handle   index.Handle
	Info     EntryInfo
	Hit      bool
	LoadTime time.Duration // 0 on a cache hit
}

// entry is one resident index with its reader count.
type entry struct {
	handle   index.Handle
	loadedAt time.Time
	loadTime time.Duration

	refs    atomic.Int64
	retired atomic.Bool
	stale   atomic.Bool
}

// release drops one reader. The last reader out closes a retired handle.
func (e *entry) release() {
	if e.refs.Add(-1) == 0 && e.retired.Load() {
		if err := e.handle.Close(); err != nil {
			slog.Warn("closing retired index handle", slog.String("error", err.Error()))
		}
	}
}

// retire marks the entry dead. Closes immediately when no readers hold it.
func (e *entry) retire() {
	e.retired.Store(true)
	if e.refs.Load() == 0 {
		if err := e.handle.Close(); err != nil {
			slog.Warn("closing evicted index handle", slog.String("error", err.Error()))
		}
	}
}

// lease wraps a Handle so Close releases the cache reference instead of
// tearing down the shared index.
type lease struct {
	index.Handle
	entry *entry
	once  sync.Once
}

func (l *lease) Close() error {
	l.once.Do(l.entry.release)
	return nil
}

// loadOutcome is what one singleflight load reports to its joiners.
type loadOutcome struct {
	e        *entry
	hit      bool
	loadTime time.Duration
}

// Cache is the process-wide path → loaded index map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	group  singleflight.Group
	loader Loader
}

// New creates an empty cache around the given loader.
func New(loader Loader) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		loader:  loader,
	}
}

// GetOrLoad returns the resident index for path, loading it first if
// needed. Concurrent callers for the same cold path block on a single
// load; callers for other paths are unaffected.
func (c *Cache) GetOrLoad(ctx context.Context, path string) (*Result, error) {
	for {
		if e := c.peek(path); e != nil {
			if r := c.leaseOf(path, e, true, 0); r != nil {
				return r, nil
			}
		}

		v, err, _ := c.group.Do(path, func() (any, error) {
			// Re-check residency: a racing caller may have completed
			// the load between our peek and winning the flight.
			if e := c.peek(path); e != nil {
				return loadOutcome{e: e, hit: true}, nil
			}

			start := time.Now()
			h, err := c.loader(ctx, path)
			if err != nil {
				return nil, err
			}
			e := &entry{
				handle:   h,
				loadedAt: time.Now(),
				loadTime: time.Since(start),
			}
			c.insert(path, e)
			return loadOutcome{e: e, loadTime: e.loadTime}, nil
		})
		if err != nil {
			return nil, err
		}

		out := v.(loadOutcome)
		if r := c.leaseOf(path, out.e, out.hit, out.loadTime); r != nil {
			return r, nil
		}
		// The entry was retired before this caller could reference it
		// (eviction racing a load); go around again.
	}
}

// peek returns the live entry for path, or nil.
func (c *Cache) peek(path string) *entry {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok || e.retired.Load() {
		return nil
	}
	return e
}

// insert makes e resident, retiring any predecessor.
func (c *Cache) insert(path string, e *entry) {
	c.mu.Lock()
	old := c.entries[path]
	c.entries[path] = e
	c.mu.Unlock()
	if old != nil {
		old.retire()
	}
}

// leaseOf takes a reader reference on e and wraps it in a Result. Returns
// nil when e was retired first.
func (c *Cache) leaseOf(path string, e *entry, hit bool, loadTime time.Duration) *Result {
	e.refs.Add(1)
	if e.retired.Load() {
		e.release()
		return nil
	}
	if hit && e.stale.Load() {
		slog.Warn("serving stale index; reload to refresh", slog.String("path", path))
	}
	return &Result{
		Handle:   &lease{Handle: e.handle, entry: e},
		Info:     c.infoFor(path, e),
		Hit:      hit,
		LoadTime: loadTime,
	}
}

func (c *Cache) infoFor(path string, e *entry) EntryInfo {
	return EntryInfo{
		Path:     path,
		LoadedAt: e.loadedAt,
		DocCount: e.handle.DocCount(),
		LoadTime: e.loadTime,
		Stale:    e.stale.Load(),
	}
}

// Stats lists resident entries sorted by path.
func (c *Cache) Stats() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]EntryInfo, 0, len(c.entries))
	for path, e := range c.entries {
		out = append(out, c.infoFor(path, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths lists resident paths sorted ascending.
func (c *Cache) Paths() []string {
	stats := c.Stats()
	paths := make([]string, len(stats))
	for i, s := range stats {
		paths[i] = s.Path
	}
	return paths
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evict removes the entry for path. The next query reloads it. Returns
// whether an entry was resident.
func (c *Cache) Evict(path string) bool {
	c.mu.Lock()
	e, ok := c.entries[path]
	delete(c.entries, path)
	c.mu.Unlock()

	if ok {
		e.retire()
		slog.Info("index evicted", slog.String("path", path))
	}
	return ok
}

// EvictAll removes every entry and returns how many were evicted.
func (c *Cache) EvictAll() int {
	c.mu.Lock()
	evicted := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for _, e := range evicted {
		e.retire()
	}
	if len(evicted) > 0 {
		slog.Info("cache cleared", slog.Int("evicted", len(evicted)))
	}
	return len(evicted)
}

// Reload rebuilds the entry for path: the new index loads first, then the
// entry swaps. In-flight searches finish against the old handle, which is
// closed when its last reader releases it.
func (c *Cache) Reload(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	h, err := c.loader(ctx, path)
	if err != nil {
		return nil, err
	}
	e := &entry{
		handle:   h,
		loadedAt: time.Now(),
		loadTime: time.Since(start),
	}
	c.insert(path, e)

	slog.Info("index reloaded",
		slog.String("path", path),
		slog.Duration("load_time", e.loadTime))

	if r := c.leaseOf(path, e, false, e.loadTime); r != nil {
		return r, nil
	}
	// Retired immediately by a racing evict; the reload itself happened.
	return &Result{Info: c.infoFor(path, e), LoadTime: e.loadTime}, nil
}

// MarkStale flags a resident entry as stale. Serving continues; the flag
// surfaces in stats and a warning is logged on each hit.
func (c *Cache) MarkStale(path string) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && !e.stale.Swap(true) {
		slog.Warn("index sources changed on disk; entry marked stale",
			slog.String("path", path))
	}
}
