package embed

import (
	"context"
	"fmt"
	"sync"
)

// singleton holds the process-wide Embedder instance and the sync.Once
// guarding its construction. Model load dominates cold-start cost, so one
// instance is shared by every index build and load in the process.
var (
	singletonOnce sync.Once
	singletonInst Embedder
	singletonErr  error
	singletonMu   sync.RWMutex
)

// Factory builds the Embedder used by the process-wide singleton. Tests
// may override it via SetFactory to inject a fake without touching real
// construction paths.
type Factory func() (Embedder, error)

var singletonFactory Factory = func() (Embedder, error) {
	return NewCachedEmbedderWithDefaults(NewStaticEmbedder()), nil
}

// SetFactory overrides how the singleton is built. Must be called before
// the first call to Singleton in a given process (or after Reset).
func SetFactory(f Factory) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonFactory = f
}

// Singleton returns the process-wide Embedder, constructing it exactly once.
// Every index builder and loader in the process shares this instance so the
// (possibly expensive) construction cost is amortized across the process's
// lifetime rather than paid per index.
func Singleton(ctx context.Context) (Embedder, error) {
	singletonMu.RLock()
	factory := singletonFactory
	singletonMu.RUnlock()

	singletonOnce.Do(func() {
		inst, err := factory()
		if err != nil {
			singletonErr = fmt.Errorf("embeddings singleton: %w", err)
			return
		}
		if !inst.Available(ctx) {
			singletonErr = fmt.Errorf("embeddings singleton: embedder not available")
			return
		}
		singletonInst = inst
	})

	return singletonInst, singletonErr
}

// Reset clears the singleton and restores the default factory so a
// subsequent call to Singleton reconstructs it from scratch. Intended for
// tests; production code never calls this.
func Reset() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonOnce = sync.Once{}
	singletonInst = nil
	singletonErr = nil
	singletonFactory = func() (Embedder, error) {
		return NewCachedEmbedderWithDefaults(NewStaticEmbedder()), nil
	}
}
