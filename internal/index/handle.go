package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/ragindex/ragindex/internal/embed"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/store"
)

// Passage is one retrieved chunk with its similarity score.
type Passage struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Ordinal int     `json:"ordinal"`
	Score   float32 `json:"score"`
}

// Handle is an in-memory reference to a loaded index. Handles are shared by
// concurrent readers; all methods are safe for concurrent use.
type Handle interface {
	// Search returns the top-k passages nearest to the query vector,
	// ordered by descending score.
	Search(ctx context.Context, vector []float32, k int) ([]Passage, error)

	// DocCount returns the number of source documents in the index.
	DocCount() int

	// Dimensions returns the embedding dimension of the index.
	Dimensions() int

	// Manifest returns the build manifest the index was loaded with.
	Manifest() *BuildManifest

	// Close releases the underlying store.
	Close() error
}

// loadedIndex is the concrete Handle for both per-file and merged indices.
type loadedIndex struct {
	vectors    *store.HNSWStore
	chunks     map[string]StoredChunk
	manifest   *BuildManifest
	dimensions int
}

var _ Handle = (*loadedIndex)(nil)

// Load re-hydrates an index from dir. The embedding model recorded in the
// manifest must match model; vectors from different models are not
// comparable, so a mismatch refuses the load and demands a rebuild.
func Load(dir, model string) (Handle, error) {
	manifest, err := ReadManifest(ManifestPath(dir))
	if err != nil {
		return nil, err
	}
	if !manifest.CompatibleWith(model) {
		return nil, ragerrors.IndexCorruptError(dir,
			fmt.Errorf("index was built with model %q, current model is %q",
				manifest.EmbeddingModel, model)).
			WithSuggestion("rebuild the index with the current embedding model")
	}

	chunkList, err := ReadChunks(ChunksPath(dir))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]StoredChunk, len(chunkList))
	for _, c := range chunkList {
		byID[c.ID] = c
	}

	indexPath := IndexPath(dir)
	dims, err := store.ReadHNSWStoreDimensions(indexPath)
	if err != nil {
		return nil, ragerrors.IndexCorruptError(indexPath, err)
	}
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, ragerrors.IndexCorruptError(indexPath, err)
	}
	if err := vectors.Load(indexPath); err != nil {
		vectors.Close()
		return nil, ragerrors.IndexCorruptError(indexPath, err)
	}

	return &loadedIndex{
		vectors:    vectors,
		chunks:     byID,
		manifest:   manifest,
		dimensions: dims,
	}, nil
}

func (l *loadedIndex) Search(ctx context.Context, vector []float32, k int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := l.vectors.Search(ctx, vector, k)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "vector search failed", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		c, ok := l.chunks[r.ID]
		if !ok {
			continue
		}
		passages = append(passages, Passage{
			Content: c.Content,
			Source:  c.Source,
			Page:    c.Page,
			Ordinal: c.Ordinal,
			Score:   r.Score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	return passages, nil
}

func (l *loadedIndex) DocCount() int {
	return len(l.manifest.Fingerprints)
}

func (l *loadedIndex) Dimensions() int {
	return l.dimensions
}

func (l *loadedIndex) Manifest() *BuildManifest {
	return l.manifest
}

func (l *loadedIndex) Close() error {
	return l.vectors.Close()
}

// EmbedQuery embeds a question with the shared embedder.
func EmbedQuery(ctx context.Context, e embed.Embedder, question string) ([]float32, error) {
	vec, err := e.Embed(ctx, question)
	if err != nil {
		return nil, ragerrors.EmbeddingFailureError(err)
	}
	return vec, nil
}
