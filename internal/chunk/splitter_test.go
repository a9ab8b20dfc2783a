package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_Empty(t *testing.T) {
	s := NewRecursiveSplitter()
	chunks, err := s.Chunk(context.Background(), Input{Source: "a.pdf", Text: "   \n  "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	s := NewRecursiveSplitter()
	chunks, err := s.Chunk(context.Background(), Input{Source: "a.pdf", Text: "a short document"})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Content)
	assert.Equal(t, "a.pdf", chunks[0].Source)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 0, chunks[0].Page, "no page markers means page 0")
}

func TestChunk_RespectsSizeBound(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(200), WithOverlap(40))

	// Paragraphs well under the size bound, many of them.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This paragraph talks about a topic in a few words.\n\n")
	}

	chunks, err := s.Chunk(context.Background(), Input{Source: "b.pdf", Text: b.String()})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 200, "chunk exceeds size bound")
	}
}

func TestChunk_OrdinalsAreSequential(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(150), WithOverlap(20))
	text := strings.Repeat("One more sentence about something. ", 60)

	chunks, err := s.Chunk(context.Background(), Input{Source: "c.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestChunk_NeighborsOverlap(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(200), WithOverlap(60))
	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 40)

	chunks, err := s.Chunk(context.Background(), Input{Source: "d.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// The start of each chunk should appear near the end of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i].Content
		if len(head) > 20 {
			head = head[:20]
		}
		assert.Contains(t, chunks[i-1].Content, strings.TrimSpace(head),
			"chunk %d does not overlap its predecessor", i)
	}
}

func TestChunk_HardCutUnbrokenText(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(100), WithOverlap(10))
	// No separators at all: one unbroken run.
	text := strings.Repeat("x", 950)

	chunks, err := s.Chunk(context.Background(), Input{Source: "e.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 100)
		total += len(c.Content)
	}
	assert.GreaterOrEqual(t, total, 950, "hard cut must not drop text")
}

func TestChunk_PageTracking(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(200), WithOverlap(0))
	page1 := strings.Repeat("first page sentence. ", 12)
	page2 := strings.Repeat("second page sentence. ", 12)
	text := page1 + "\f" + page2

	chunks, err := s.Chunk(context.Background(), Input{Source: "f.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, len(chunks)-1, chunks[len(chunks)-1].Ordinal)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)

	// Pages never decrease along the ordinal order.
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].Page, chunks[i-1].Page)
	}
}

func TestChunk_CancelledContext(t *testing.T) {
	s := NewRecursiveSplitter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Chunk(ctx, Input{Source: "g.pdf", Text: "whatever"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRecursiveSplitter_OverlapClampedBelowSize(t *testing.T) {
	s := NewRecursiveSplitter(WithSize(120), WithOverlap(400))
	assert.Less(t, s.Overlap(), s.Size())
}
