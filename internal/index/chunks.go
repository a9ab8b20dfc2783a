package index

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ragindex/ragindex/internal/chunk"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
)

// StoredChunk is one chunk as persisted in chunks.json, pairing the vector
// store's string ID with the chunk text and its display metadata.
type StoredChunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Ordinal int    `json:"ordinal"`
}

// ChunkID derives the vector store ID for a chunk: its source fingerprint
// plus its ordinal. Stable across rebuilds of identical content.
func ChunkID(fp string, ordinal int) string {
	return fmt.Sprintf("%s:%05d", fp, ordinal)
}

// storedChunks converts chunker output to its persisted form.
func storedChunks(fp string, chunks []chunk.Chunk) []StoredChunk {
	out := make([]StoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = StoredChunk{
			ID:      ChunkID(fp, c.Ordinal),
			Content: c.Content,
			Source:  c.Source,
			Page:    c.Page,
			Ordinal: c.Ordinal,
		}
	}
	return out
}

// WriteChunks persists chunk metadata atomically.
func WriteChunks(path string, chunks []StoredChunk) error {
	return writeJSONAtomic(path, chunks)
}

// ReadChunks loads chunk metadata from an index directory.
func ReadChunks(path string) ([]StoredChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("cannot read chunk metadata: %s", path), err)
	}
	var chunks []StoredChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("cannot parse chunk metadata: %s", path), err)
	}
	return chunks, nil
}
