package index

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	ragerrors "github.com/ragindex/ragindex/internal/errors"
)

// SchemaVersion is bumped whenever the on-disk index format changes in a
// way old readers cannot handle.
const SchemaVersion = 1

// BuildManifest records what a stored index was built from and with.
type BuildManifest struct {
	SchemaVersion  int      `json:"schema_version"`
	Fingerprints   []string `json:"fingerprints"`
	Filename       string   `json:"filename,omitempty"`
	Chunks         int      `json:"chunks"`
	ChunkSize      int      `json:"chunk_size"`
	ChunkOverlap   int      `json:"chunk_overlap"`
	EmbeddingModel string   `json:"embedding_model"`
	BuiltAt        string   `json:"built_at"`
}

// NewBuildManifest creates a manifest stamped with the current time.
func NewBuildManifest(fingerprints []string, filename string, chunks, size, overlap int, model string) *BuildManifest {
	sorted := append([]string(nil), fingerprints...)
	sort.Strings(sorted)
	return &BuildManifest{
		SchemaVersion:  SchemaVersion,
		Fingerprints:   sorted,
		Filename:       filename,
		Chunks:         chunks,
		ChunkSize:      size,
		ChunkOverlap:   overlap,
		EmbeddingModel: model,
		BuiltAt:        time.Now().UTC().Format(time.RFC3339),
	}
}

// CompatibleWith reports whether the manifest was built with the given
// embedding model. A mismatch forces a rebuild: vectors from different
// models are not comparable.
func (m *BuildManifest) CompatibleWith(model string) bool {
	return m.EmbeddingModel == model
}

// HasFingerprint reports whether fp is among the manifest's sources.
func (m *BuildManifest) HasFingerprint(fp string) bool {
	for _, f := range m.Fingerprints {
		if f == fp {
			return true
		}
	}
	return false
}

// Validate checks structural invariants after a load.
func (m *BuildManifest) Validate() error {
	if m.SchemaVersion <= 0 || m.SchemaVersion > SchemaVersion {
		return fmt.Errorf("unsupported schema version %d", m.SchemaVersion)
	}
	if len(m.Fingerprints) == 0 {
		return fmt.Errorf("manifest lists no fingerprints")
	}
	if m.EmbeddingModel == "" {
		return fmt.Errorf("manifest has no embedding model")
	}
	return nil
}

// WriteManifest persists a manifest atomically (temp file then rename).
func WriteManifest(path string, m *BuildManifest) error {
	return writeJSONAtomic(path, m)
}

// ReadManifest loads and validates a build manifest.
func ReadManifest(path string) (*BuildManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("cannot read manifest: %s", path), err)
	}
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("cannot parse manifest: %s", path), err)
	}
	if err := m.Validate(); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("invalid manifest: %s", path), err)
	}
	return &m, nil
}

// CollectionManifest is the root-level record of a merged collection
// index: which files (by fingerprint) were merged, and when. It is the
// source of truth for "which files were in this index"; a rebuild is due
// when its fingerprint set differs from the current directory scan.
type CollectionManifest struct {
	Files       map[string]string `json:"files"` // fingerprint -> filename
	BuiltAt     string            `json:"built_at"`
	TotalChunks int               `json:"total_chunks"`
}

// NewCollectionManifest creates a collection manifest stamped with the
// current time.
func NewCollectionManifest(files map[string]string, totalChunks int) *CollectionManifest {
	return &CollectionManifest{
		Files:       files,
		BuiltAt:     time.Now().UTC().Format(time.RFC3339),
		TotalChunks: totalChunks,
	}
}

// Fingerprints returns the manifest's fingerprints sorted ascending.
func (c *CollectionManifest) Fingerprints() []string {
	fps := make([]string, 0, len(c.Files))
	for fp := range c.Files {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}

// SameFiles reports whether the manifest covers exactly the given
// fingerprint set, regardless of filenames. Renames alone never trigger
// a rebuild.
func (c *CollectionManifest) SameFiles(current map[string]string) bool {
	if len(c.Files) != len(current) {
		return false
	}
	for fp := range current {
		if _, ok := c.Files[fp]; !ok {
			return false
		}
	}
	return true
}

// WriteCollectionManifest persists a collection manifest atomically.
func WriteCollectionManifest(path string, c *CollectionManifest) error {
	return writeJSONAtomic(path, c)
}

// ReadCollectionManifest loads a collection manifest.
func ReadCollectionManifest(path string) (*CollectionManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c CollectionManifest
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("cannot parse collection manifest: %s", path), err)
	}
	return &c, nil
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
