package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Basic Embedding
// ============================================================================

func TestStaticEmbedder_Embed_ReturnsCorrectDimensions(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "the quick brown fox jumps over the lazy dog")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "a paragraph of ordinary prose extracted from a PDF")
	require.NoError(t, err)

	magnitude := vectorMagnitude(embedding)
	assert.InDelta(t, 1.0, magnitude, 0.001, "vector should be normalized to unit length")
}

// ============================================================================
// Deterministic Output
// ============================================================================

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "the committee reviewed the quarterly report before adjourning"

	emb1, err1 := embedder.Embed(context.Background(), text)
	emb2, err2 := embedder.Embed(context.Background(), text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same text should produce identical vectors")
}

func TestStaticEmbedder_Embed_DeterministicAcrossInstances(t *testing.T) {
	embedder1 := NewStaticEmbedder()
	embedder2 := NewStaticEmbedder()
	defer func() { _ = embedder1.Close() }()
	defer func() { _ = embedder2.Close() }()

	text := "photosynthesis converts light energy into chemical energy"

	emb1, _ := embedder1.Embed(context.Background(), text)
	emb2, _ := embedder2.Embed(context.Background(), text)

	assert.Equal(t, emb1, emb2, "same text should produce identical vectors across instances")
}

// ============================================================================
// Different Texts Differ
// ============================================================================

func TestStaticEmbedder_Embed_DifferentTextsProduceDifferentVectors(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	emb1, _ := embedder.Embed(context.Background(), "the stock market rallied on Tuesday")
	emb2, _ := embedder.Embed(context.Background(), "glaciers are retreating at record rates")

	assert.NotEqual(t, emb1, emb2, "different texts should produce different vectors")
}

// ============================================================================
// Empty Input
// ============================================================================

func TestStaticEmbedder_Embed_EmptyInput_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)

	for i, v := range embedding {
		assert.Equal(t, float32(0), v, "element %d should be zero", i)
	}
}

func TestStaticEmbedder_Embed_WhitespaceOnly_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "   \t\n  ")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)

	for _, v := range embedding {
		assert.Equal(t, float32(0), v)
	}
}

// ============================================================================
// Similar Passages Have Higher Similarity
// ============================================================================

func TestStaticEmbedder_SimilarPassages_HaveHigherSimilarity(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	passageA := "the river flooded the valley after three days of heavy rain"
	passageB := "heavy rain for three days caused the river to flood the valley"
	unrelated := "the orchestra performed a symphony by Beethoven last night"

	embA, _ := embedder.Embed(context.Background(), passageA)
	embB, _ := embedder.Embed(context.Background(), passageB)
	embC, _ := embedder.Embed(context.Background(), unrelated)

	simAB := cosineSimilarity(embA, embB)
	simAC := cosineSimilarity(embA, embC)

	assert.Greater(t, simAB, simAC,
		"similar passages should have higher similarity (A/B: %.4f) than unrelated ones (A/C: %.4f)",
		simAB, simAC)
}

// ============================================================================
// Stop Word Filtering
// ============================================================================

func TestStaticEmbedder_StopWordFiltering(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	withStopWords := "the a an and or but of to in on for with"
	withoutStopWords := "glacier volcano earthquake tsunami"

	embWith, _ := embedder.Embed(context.Background(), withStopWords)
	embWithout, _ := embedder.Embed(context.Background(), withoutStopWords)

	similarity := cosineSimilarity(embWith, embWithout)
	assert.Less(t, similarity, float64(0.5),
		"stop words should be filtered, making vectors different (similarity: %.4f)", similarity)
}

// ============================================================================
// Always Available
// ============================================================================

func TestStaticEmbedder_Available_AlwaysTrue(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	available := embedder.Available(context.Background())

	assert.True(t, available, "static embedder should always be available")
}

func TestStaticEmbedder_Available_TrueEvenWithCancelledContext(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	available := embedder.Available(ctx)

	assert.True(t, available, "static embedder should be available even with cancelled context")
}

// ============================================================================
// Performance
// ============================================================================

func TestStaticEmbedder_Performance(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = "paragraph number " + string(rune('A'+i%26)) + " discusses an unrelated topic"
	}

	start := time.Now()
	for _, text := range texts {
		_, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 1*time.Second,
		"embedding 1000 texts should take < 1s (took %v)", elapsed)
}

// ============================================================================
// Interface Compliance
// ============================================================================

func TestStaticEmbedder_ImplementsEmbedderInterface(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	var _ Embedder = embedder
}

func TestStaticEmbedder_Dimensions_Returns256(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, StaticDimensions, embedder.Dimensions())
}

func TestStaticEmbedder_ModelName_ReturnsStatic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static", embedder.ModelName())
}

// ============================================================================
// Batch Embedding
// ============================================================================

func TestStaticEmbedder_EmbedBatch_ReturnsCorrectCount(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{"first chunk of text", "second chunk of text", "third chunk of text"}

	embeddings, err := embedder.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 3)

	for i, emb := range embeddings {
		assert.Len(t, emb, StaticDimensions, "embedding %d should have correct dimensions", i)
	}
}

func TestStaticEmbedder_EmbedBatch_EmptyList_ReturnsEmpty(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embeddings, err := embedder.EmbedBatch(context.Background(), []string{})

	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestStaticEmbedder_EmbedBatch_HandlesEmptyStringsInBatch(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"the first chunk discusses the history of the region",
		"", // Empty string
		"the second chunk discusses the geography of the region",
	}

	embeddings, err := embedder.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 3)

	for _, v := range embeddings[1] {
		assert.Equal(t, float32(0), v)
	}
}

// ============================================================================
// Edge Cases
// ============================================================================

func TestStaticEmbedder_Close_IsIdempotent(t *testing.T) {
	embedder := NewStaticEmbedder()

	err1 := embedder.Close()
	err2 := embedder.Close()
	err3 := embedder.Close()

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.NoError(t, err3)
}

func TestStaticEmbedder_Embed_AfterClose_ReturnsError(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	_, err := embedder.Embed(context.Background(), "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestStaticEmbedder_Available_AfterClose_ReturnsFalse(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	available := embedder.Available(context.Background())

	assert.False(t, available)
}

// ============================================================================
// Tokenization Tests
// ============================================================================

func TestStaticEmbedder_Tokenize_SplitsOnWordBoundaries(t *testing.T) {
	tokens := tokenize("The Quick-Brown Fox, jumps!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps"}, tokens)
}

func TestStaticEmbedder_Tokenize_LowercasesInput(t *testing.T) {
	tokens := tokenize("GLACIER Volcano EarthQuake")
	assert.Equal(t, []string{"glacier", "volcano", "earthquake"}, tokens)
}

// ============================================================================
// Unicode and Special Characters
// ============================================================================

func TestStaticEmbedder_Embed_UnicodeText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"日本語のテキストです",
		"комментарий на русском",
		"emoji in text 🚀 still embeds",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			embedding, err := embedder.Embed(context.Background(), text)
			require.NoError(t, err)
			assert.Len(t, embedding, StaticDimensions)
		})
	}
}

func TestStaticEmbedder_Embed_LongText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	longText := ""
	for i := 0; i < 10000; i++ {
		longText += "word "
	}

	embedding, err := embedder.Embed(context.Background(), longText)
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}
