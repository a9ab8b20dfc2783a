// Package chunk splits PDF-extracted plain text into overlapping spans
// suitable for embedding and retrieval.
package chunk

import "context"

// Chunk size defaults. Roughly 300 tokens per chunk at 4 chars/token, with
// enough overlap that a sentence cut at a boundary survives in a neighbor.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 150
	MinChunkSize        = 100
)

// Chunk is a retrievable unit of source text.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// Source is the originating filename, display only. Identity lives in
	// the source file's fingerprint, never in the name.
	Source string

	// Page is the 1-indexed page the chunk starts on, 0 when the source
	// carries no page markers.
	Page int

	// Ordinal is the chunk's position within its source, 0-indexed.
	Ordinal int
}

// Input is one source document handed to a Chunker.
type Input struct {
	// Source is the display filename attached to every produced chunk.
	Source string

	// Text is the full extracted plain text of the document.
	Text string
}

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(ctx context.Context, in Input) ([]Chunk, error)
}
