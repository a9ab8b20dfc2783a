package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ragindex/ragindex/internal/embed"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/fingerprint"
)

// SourceExtensions lists the file extensions scanned as collection sources.
// Extraction upstream leaves plain text next to (or in place of) the PDFs,
// so both are accepted.
var SourceExtensions = []string{".pdf", ".txt", ".text", ".md"}

// ScanSources fingerprints the source files at a collection root,
// non-recursively. Index artifacts and hidden files are never sources.
func ScanSources(root string) (fingerprint.Manifest, error) {
	return fingerprint.DirectoryManifest(root, SourceExtensions...)
}

// NeedsRebuild reports whether the collection index at root is missing or
// out of date with respect to the current source files. Renaming a source
// never forces a rebuild; adding, removing, or editing one does.
func NeedsRebuild(root, model string) (bool, error) {
	current, err := ScanSources(root)
	if err != nil {
		return false, err
	}

	cm, err := ReadCollectionManifest(filepath.Join(root, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return true, nil // unreadable manifest: rebuild
	}
	if !cm.SameFiles(current) {
		return true, nil
	}

	bm, err := ReadManifest(ManifestPath(CollectionIndexDir(root)))
	if err != nil {
		return true, nil
	}
	return !bm.CompatibleWith(model), nil
}

// BuildCollection builds (or reuses) the merged index for all sources at
// root, writing the index under .mini_rag_index and the collection manifest
// at the root. Returns whether a build actually ran.
func (b *Builder) BuildCollection(ctx context.Context, root string) (bool, error) {
	current, err := ScanSources(root)
	if err != nil {
		return false, err
	}
	if len(current) == 0 {
		return false, ragerrors.SourceUnavailable(root, os.ErrNotExist).
			WithSuggestion("add source files to the collection before indexing")
	}

	rebuild, err := NeedsRebuild(root, b.embedder.ModelName())
	if err != nil {
		return false, err
	}
	if !rebuild {
		// Refresh filenames under unchanged fingerprint keys so renames
		// show up without a rebuild.
		manifestPath := filepath.Join(root, ManifestFileName)
		cm, err := ReadCollectionManifest(manifestPath)
		if err == nil && !sameNames(cm.Files, current) {
			cm.Files = map[string]string(current)
			if err := WriteCollectionManifest(manifestPath, cm); err != nil {
				return false, err
			}
			slog.Info("collection manifest refreshed", slog.String("root", root))
		}
		return false, nil
	}

	lock := embed.NewPathLock(filepath.Join(root, ".build.lock"))
	if err := lock.Lock(); err != nil {
		return false, ragerrors.IOError("acquire build lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	sources := make([]string, 0, len(current))
	for _, name := range current.Filenames() {
		sources = append(sources, filepath.Join(root, name))
	}

	result, err := b.Build(ctx, sources, CollectionIndexDir(root))
	if err != nil {
		return false, err
	}

	// The built manifest's fingerprints may be a subset of the scan when
	// sources were skipped; record exactly what went in.
	files := make(map[string]string, len(result.Manifest.Fingerprints))
	for fp, name := range current {
		if result.Manifest.HasFingerprint(fp) {
			files[fp] = name
		}
	}
	cm := NewCollectionManifest(files, result.Manifest.Chunks)
	if err := WriteCollectionManifest(filepath.Join(root, ManifestFileName), cm); err != nil {
		return false, err
	}

	slog.Info("collection index built",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("chunks", cm.TotalChunks))
	return true, nil
}

// RebuildCollection rebuilds the merged index for root unconditionally,
// ignoring any fresh manifest. Used by explicit reload requests.
func (b *Builder) RebuildCollection(ctx context.Context, root string) error {
	current, err := ScanSources(root)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return ragerrors.SourceUnavailable(root, os.ErrNotExist)
	}

	lock := embed.NewPathLock(filepath.Join(root, ".build.lock"))
	if err := lock.Lock(); err != nil {
		return ragerrors.IOError("acquire build lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	sources := make([]string, 0, len(current))
	for _, name := range current.Filenames() {
		sources = append(sources, filepath.Join(root, name))
	}
	result, err := b.Build(ctx, sources, CollectionIndexDir(root))
	if err != nil {
		return err
	}

	files := make(map[string]string, len(result.Manifest.Fingerprints))
	for fp, name := range current {
		if result.Manifest.HasFingerprint(fp) {
			files[fp] = name
		}
	}
	cm := NewCollectionManifest(files, result.Manifest.Chunks)
	if err := WriteCollectionManifest(filepath.Join(root, ManifestFileName), cm); err != nil {
		return err
	}

	slog.Info("collection index rebuilt",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("chunks", cm.TotalChunks))
	return nil
}

// LoadCollection loads the merged index for root, building it first when
// missing or stale.
func (b *Builder) LoadCollection(ctx context.Context, root string) (Handle, error) {
	if _, err := b.BuildCollection(ctx, root); err != nil {
		return nil, err
	}
	return Load(CollectionIndexDir(root), b.embedder.ModelName())
}

// CheckStale reports StaleCache when the loaded manifest's fingerprint set
// no longer matches the collection's current sources. The caller keeps
// serving the old index; reload is the remedy.
func CheckStale(root string, m *BuildManifest) error {
	current, err := ScanSources(root)
	if err != nil {
		return nil // cannot scan: do not flag
	}
	if len(current) != len(m.Fingerprints) {
		return ragerrors.StaleCacheError(root)
	}
	for fp := range current {
		if !m.HasFingerprint(fp) {
			return ragerrors.StaleCacheError(root)
		}
	}
	return nil
}

func sameNames(a map[string]string, b fingerprint.Manifest) bool {
	if len(a) != len(b) {
		return false
	}
	for fp, name := range b {
		if a[fp] != name {
			return false
		}
	}
	return true
}
