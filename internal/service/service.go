// Package service implements the long-running query service: a resident
// cache of loaded indices behind query, stats, evict, and reload
// operations, transport-agnostic so the HTTP layer stays a thin binding.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ragindex/ragindex/internal/cache"
	"github.com/ragindex/ragindex/internal/embed"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/fingerprint"
	"github.com/ragindex/ragindex/internal/index"
)

// DefaultTopK is the passage count when a query does not name one.
const DefaultTopK = 4

// DefaultQueryTimeout bounds one query end to end, load included.
const DefaultQueryTimeout = 300 * time.Second

// Service answers questions against cached indices.
type Service struct {
	cache    *cache.Cache
	builder  *index.Builder
	embedder embed.Embedder

	queryTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithQueryTimeout overrides the per-query deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// New creates a Service. The cache loader resolves paths by shape: a
// directory named by a fingerprint loads as a per-file index, anything
// else as a collection root (building the merged index on first touch).
func New(embedder embed.Embedder, builder *index.Builder, opts ...Option) *Service {
	s := &Service{
		builder:      builder,
		embedder:     embedder,
		queryTimeout: DefaultQueryTimeout,
	}
	s.cache = cache.New(s.load)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the service's index cache, shared with the multi-shard
// engine so both paths hit the same resident indices.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// load is the cache loader: fingerprint-named directories are per-file
// indices, everything else is a collection root.
func (s *Service) load(ctx context.Context, path string) (index.Handle, error) {
	if fingerprint.IsValid(filepath.Base(path)) {
		return index.Load(path, s.embedder.ModelName())
	}
	return s.builder.LoadCollection(ctx, path)
}

// Preload warms a collection path so the first external query is a hit.
func (s *Service) Preload(ctx context.Context, path string) error {
	r, err := s.cache.GetOrLoad(ctx, path)
	if err != nil {
		return err
	}
	defer r.Handle.Close()
	slog.Info("collection preloaded",
		slog.String("path", path),
		slog.Duration("load_time", r.LoadTime),
		slog.Int("docs", r.Info.DocCount))
	return nil
}

// SourceMetadata attributes one returned passage.
type SourceMetadata struct {
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
}

// Source is one retrieved passage with attribution.
type Source struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
	Score    float32        `json:"score"`
}

// QueryResponse is the outcome of one question.
type QueryResponse struct {
	// Answer is the deterministic rendering of the retrieved passages,
	// not generated text.
	Answer               string   `json:"answer"`
	Sources              []Source `json:"sources"`
	LoadTimeSeconds      float64  `json:"load_time_seconds"`
	RetrievalTimeSeconds float64  `json:"retrieval_time_seconds"`
	FromCache            bool     `json:"from_cache"`
}

// Query retrieves the top-k passages for question from the index at path.
func (s *Service) Query(ctx context.Context, path, question string, topK int) (*QueryResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ragerrors.New(ragerrors.ErrCodeQueryEmpty, "question is empty", nil)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	r, err := s.cache.GetOrLoad(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Handle.Close()

	retrievalStart := time.Now()
	vec, err := index.EmbedQuery(ctx, s.embedder, question)
	if err != nil {
		return nil, err
	}
	passages, err := r.Handle.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	retrieval := time.Since(retrievalStart)

	sources := make([]Source, len(passages))
	for i, p := range passages {
		sources[i] = Source{
			Content: p.Content,
			Metadata: SourceMetadata{
				Source: p.Source,
				Page:   p.Page,
			},
			Score: p.Score,
		}
	}

	slog.Debug("query served",
		slog.String("path", path),
		slog.Bool("from_cache", r.Hit),
		slog.Int("passages", len(passages)),
		slog.Duration("retrieval", retrieval))

	return &QueryResponse{
		Answer:               RenderAnswer(passages),
		Sources:              sources,
		LoadTimeSeconds:      r.LoadTime.Seconds(),
		RetrievalTimeSeconds: retrieval.Seconds(),
		FromCache:            r.Hit,
	}, nil
}

// RenderAnswer concatenates passages as "[source] Page N:\n<content>"
// blocks separated by "\n---\n". Deterministic; nothing is generated.
func RenderAnswer(passages []index.Passage) string {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		if p.Page > 0 {
			blocks[i] = fmt.Sprintf("[%s] Page %d:\n%s", p.Source, p.Page, p.Content)
		} else {
			blocks[i] = fmt.Sprintf("[%s]:\n%s", p.Source, p.Content)
		}
	}
	return strings.Join(blocks, "\n---\n")
}

// Stats lists resident cache entries.
func (s *Service) Stats() []cache.EntryInfo {
	return s.cache.Stats()
}

// Evict drops one resident entry. Returns whether it was resident.
func (s *Service) Evict(path string) bool {
	return s.cache.Evict(path)
}

// EvictAll drops every resident entry and returns how many there were.
func (s *Service) EvictAll() int {
	return s.cache.EvictAll()
}

// ReloadResult reports a completed reload.
type ReloadResult struct {
	LoadTimeSeconds float64 `json:"load_time_seconds"`
	DocsCount       int     `json:"docs_count"`
}

// Reload reloads the index at path and swaps it in. A collection root is
// force-rebuilt first; a fingerprint-named per-file index directory is
// reloaded from disk as it is, without a rebuild. In-flight queries finish
// against the old index.
func (s *Service) Reload(ctx context.Context, path string) (*ReloadResult, error) {
	if !fingerprint.IsValid(filepath.Base(path)) {
		if err := s.builder.RebuildCollection(ctx, path); err != nil {
			return nil, err
		}
	}

	r, err := s.cache.Reload(ctx, path)
	if err != nil {
		return nil, err
	}
	if r.Handle != nil {
		r.Handle.Close()
	}
	return &ReloadResult{
		LoadTimeSeconds: r.LoadTime.Seconds(),
		DocsCount:       r.Info.DocCount,
	}, nil
}

// Health describes service liveness for the root endpoint.
type Health struct {
	Status      string   `json:"status"`
	CachedCount int      `json:"cached_count"`
	Paths       []string `json:"paths"`
}

// Health reports the resident cache state.
func (s *Service) Health() Health {
	return Health{
		Status:      "ok",
		CachedCount: s.cache.Len(),
		Paths:       s.cache.Paths(),
	}
}
