package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore over the coder/hnsw pure Go HNSW graph,
// keeping the binary free of CGO dependencies.
//
// Chunk IDs map to graph keys positionally: the i-th chunk added gets key
// i, and the ids slice is the whole mapping. Because retrieval indices are
// immutable after build, there is no deletion bookkeeping to maintain and
// the persisted metadata is the ID list in insertion order plus the store
// config.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	ids  []string       // graph key -> chunk ID
	byID map[string]int // chunk ID -> graph key

	closed bool
}

// hnswSidecar is the companion metadata persisted next to the graph.
type hnswSidecar struct {
	IDs    []string
	Config VectorStoreConfig
}

// NewHNSWStore creates a new HNSW-based vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		byID:   make(map[string]int),
	}, nil
}

// Add inserts vectors during the build phase. Duplicate IDs are rejected:
// IDs derive from (fingerprint, ordinal), so a collision means the builder
// fed the same chunk twice.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := s.byID[id]; exists || seen[id] {
			return ErrDuplicateID{ID: id}
		}
		seen[id] = true
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		key := uint64(len(s.ids))
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.byID[id] = len(s.ids)
		s.ids = append(s.ids, id)
	}

	return nil
}

// Search finds k nearest neighbors to query vector.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalized)
	}

	nodes := s.graph.Search(normalized, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		if node.Key >= uint64(len(s.ids)) {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ID:       s.ids[node.Key],
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
	}

	return results, nil
}

// Contains checks if ID exists.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.byID[id]
	return exists
}

// Count returns number of vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.ids)
}

// Save persists the graph and its ID sidecar, each via a temp file and
// rename so a crash mid-save never corrupts an existing index.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error {
		return s.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}

	if err := writeAtomic(path+".meta", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(hnswSidecar{
			IDs:    s.ids,
			Config: s.config,
		})
	}); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// Load reads the graph and its ID sidecar back from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	sidecar, err := readSidecar(path + ".meta")
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	if s.graph.Len() != len(sidecar.IDs) {
		return fmt.Errorf("index corrupt: %d graph nodes but %d chunk IDs",
			s.graph.Len(), len(sidecar.IDs))
	}

	s.config = sidecar.Config
	s.ids = sidecar.IDs
	s.byID = make(map[string]int, len(sidecar.IDs))
	for i, id := range sidecar.IDs {
		s.byID[id] = i
	}
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadHNSWStoreDimensions reads the dimensions recorded in an index's
// sidecar without loading the graph. Returns 0 when no sidecar exists.
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	sidecar, err := readSidecar(vectorPath + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return sidecar.Config.Dimensions, nil
}

// readSidecar decodes an ID sidecar file.
func readSidecar(path string) (*hnswSidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer f.Close()

	var sidecar hnswSidecar
	if err := gob.NewDecoder(f).Decode(&sidecar); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &sidecar, nil
}

// writeAtomic writes a file via a .tmp sibling and rename.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Verify interface implementation
var _ VectorStore = (*HNSWStore)(nil)

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance value to a similarity score.
// For cosine distance: score = 1 - distance/2 (distance ranges 0-2).
// For L2 distance: score = 1 / (1 + distance).
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
