package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ragindex/ragindex/internal/chunk"
	"github.com/ragindex/ragindex/internal/embed"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/fingerprint"
	"github.com/ragindex/ragindex/internal/store"
)

// Builder chunks source text, embeds it, and persists ANN indices.
type Builder struct {
	embedder  embed.Embedder
	splitter  *chunk.RecursiveSplitter
	batchSize int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n >= embed.MinBatchSize && n <= embed.MaxBatchSize {
			b.batchSize = n
		}
	}
}

// WithSplitter sets the chunking geometry.
func WithSplitter(s *chunk.RecursiveSplitter) BuilderOption {
	return func(b *Builder) {
		b.splitter = s
	}
}

// NewBuilder creates a Builder around the given embedder.
func NewBuilder(embedder embed.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		splitter:  chunk.NewRecursiveSplitter(),
		batchSize: embed.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildResult reports what a build produced.
type BuildResult struct {
	Manifest *BuildManifest

	// Warnings lists sources that were skipped (unreadable) rather than
	// aborting the build.
	Warnings []string
}

// Build chunks and embeds the given source files and persists the index to
// outputDir. Unreadable sources are skipped and recorded in the result's
// warnings; an embedding failure aborts the build and leaves no partial
// output directory.
func (b *Builder) Build(ctx context.Context, sourceFiles []string, outputDir string) (*BuildResult, error) {
	if len(sourceFiles) == 0 {
		return nil, ragerrors.ValidationError("no source files to index", nil)
	}

	var (
		allChunks    []StoredChunk
		fingerprints []string
		warnings     []string
	)

	for _, src := range sourceFiles {
		fp, chunks, err := b.chunkSource(ctx, src)
		if err != nil {
			slog.Warn("skipping unreadable source",
				slog.String("path", src),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("%s: %v", src, err))
			continue
		}
		fingerprints = append(fingerprints, fp)
		allChunks = append(allChunks, chunks...)
	}

	if len(fingerprints) == 0 {
		return nil, ragerrors.SourceUnavailable(sourceFiles[0],
			fmt.Errorf("no readable sources among %d inputs", len(sourceFiles)))
	}

	vectors, err := b.embedChunks(ctx, allChunks)
	if err != nil {
		return nil, err
	}

	filename := ""
	if len(sourceFiles) == 1 {
		filename = filepath.Base(sourceFiles[0])
	}
	manifest := NewBuildManifest(fingerprints, filename, len(allChunks),
		b.splitter.Size(), b.splitter.Overlap(), b.embedder.ModelName())

	if err := b.persist(outputDir, allChunks, vectors, manifest); err != nil {
		return nil, err
	}

	slog.Info("index built",
		slog.String("dir", outputDir),
		slog.Int("sources", len(fingerprints)),
		slog.Int("chunks", len(allChunks)))

	return &BuildResult{Manifest: manifest, Warnings: warnings}, nil
}

// BuildPerFile builds (or reuses) the per-file index for one source under
// storeRoot. The index directory is named by the source's fingerprint, so a
// renamed file reuses its existing index untouched. Returns the fingerprint
// and whether a build actually ran.
func (b *Builder) BuildPerFile(ctx context.Context, sourcePath, storeRoot string) (string, bool, error) {
	fp, err := fingerprint.File(sourcePath)
	if err != nil {
		return "", false, err
	}

	dir := PerFileDir(storeRoot, fp)
	if m, err := ReadManifest(ManifestPath(dir)); err == nil && m.CompatibleWith(b.embedder.ModelName()) {
		return fp, false, nil
	}

	// Serialize concurrent builders of the same fingerprint across
	// processes. The lock file sits next to the fingerprint directory so
	// builds of unrelated fingerprints never contend.
	lock := embed.NewPathLock(filepath.Join(storeRoot, "."+fp+".lock"))
	if err := lock.Lock(); err != nil {
		return "", false, ragerrors.IOError("acquire build lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Re-check under the lock: another process may have finished the build.
	if m, err := ReadManifest(ManifestPath(dir)); err == nil && m.CompatibleWith(b.embedder.ModelName()) {
		return fp, false, nil
	}

	if _, err := b.Build(ctx, []string{sourcePath}, dir); err != nil {
		return "", false, err
	}
	return fp, true, nil
}

// chunkSource fingerprints and chunks one source file.
func (b *Builder) chunkSource(ctx context.Context, src string) (string, []StoredChunk, error) {
	fp, err := fingerprint.File(src)
	if err != nil {
		return "", nil, err
	}

	// Text extraction is an external concern; sources arrive as plain
	// text produced from the PDFs.
	data, err := os.ReadFile(src)
	if err != nil {
		return "", nil, ragerrors.SourceUnavailable(src, err)
	}

	chunks, err := b.splitter.Chunk(ctx, chunk.Input{
		Source: filepath.Base(src),
		Text:   string(data),
	})
	if err != nil {
		return "", nil, ragerrors.New(ragerrors.ErrCodeChunkingFailed,
			fmt.Sprintf("chunking failed: %s", src), err)
	}

	return fp, storedChunks(fp, chunks), nil
}

// embedChunks batch-embeds all chunk texts. Any failure aborts the build.
func (b *Builder) embedChunks(ctx context.Context, chunks []StoredChunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		batch, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, ragerrors.EmbeddingFailureError(err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// persist writes the index, chunk metadata, and manifest. Everything is
// staged in a sibling temp directory and renamed into place so a failed
// build never leaves a partial output directory behind.
func (b *Builder) persist(outputDir string, chunks []StoredChunk, vectors [][]float32, manifest *BuildManifest) error {
	staging := outputDir + ".building"
	if err := os.RemoveAll(staging); err != nil {
		return ragerrors.IOError("clear staging directory", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return ragerrors.IOError("create staging directory", err)
	}
	defer os.RemoveAll(staging)

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(b.embedder.Dimensions()))
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeIndexFailed, "create vector store", err)
	}
	defer vs.Close()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := vs.Add(context.Background(), ids, vectors); err != nil {
		return ragerrors.New(ragerrors.ErrCodeIndexFailed, "populate vector store", err)
	}
	if err := vs.Save(IndexPath(staging)); err != nil {
		return ragerrors.New(ragerrors.ErrCodeIndexFailed, "save vector store", err)
	}
	if err := WriteChunks(ChunksPath(staging), chunks); err != nil {
		return ragerrors.IOError("write chunk metadata", err)
	}
	if err := WriteManifest(ManifestPath(staging), manifest); err != nil {
		return ragerrors.IOError("write manifest", err)
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return ragerrors.IOError("clear output directory", err)
	}
	if err := os.Rename(staging, outputDir); err != nil {
		return ragerrors.IOError("move index into place", err)
	}
	return nil
}
