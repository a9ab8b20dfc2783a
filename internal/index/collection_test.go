package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestCollection(t *testing.T, files map[string]string) (string, *Builder) {
	t.Helper()
	root := t.TempDir()
	for name, topic := range files {
		writeSource(t, root, name, loremText(topic))
	}
	b := testBuilder()
	built, err := b.BuildCollection(context.Background(), root)
	require.NoError(t, err)
	require.True(t, built)
	return root, b
}

func TestBuildCollection_WritesBothManifests(t *testing.T) {
	root, _ := buildTestCollection(t, map[string]string{
		"one.pdf": "sailing",
		"two.txt": "gardening",
	})

	assert.DirExists(t, CollectionIndexDir(root))
	assert.FileExists(t, ManifestPath(CollectionIndexDir(root)))

	cm, err := ReadCollectionManifest(filepath.Join(root, ManifestFileName))
	require.NoError(t, err)
	assert.Len(t, cm.Files, 2)
	assert.Greater(t, cm.TotalChunks, 0)
}

func TestBuildCollection_SecondBuildIsNoop(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{"one.pdf": "chess"})

	built, err := b.BuildCollection(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, built)
}

func TestBuildCollection_RenameUpdatesManifestWithoutRebuild(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{"A.pdf": "weaving"})

	indexManifestBefore, err := os.ReadFile(ManifestPath(CollectionIndexDir(root)))
	require.NoError(t, err)

	require.NoError(t, os.Rename(filepath.Join(root, "A.pdf"), filepath.Join(root, "Z.pdf")))

	built, err := b.BuildCollection(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, built, "rename alone must not rebuild")

	cm, err := ReadCollectionManifest(filepath.Join(root, ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, []string{"Z.pdf"}, valuesOf(cm.Files), "filename refreshed under same fingerprint")

	indexManifestAfter, err := os.ReadFile(ManifestPath(CollectionIndexDir(root)))
	require.NoError(t, err)
	assert.Equal(t, indexManifestBefore, indexManifestAfter)
}

func TestBuildCollection_NewFileTriggersRebuild(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{"one.pdf": "falconry"})

	writeSource(t, root, "two.pdf", loremText("smithing"))
	built, err := b.BuildCollection(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, built)

	cm, err := ReadCollectionManifest(filepath.Join(root, ManifestFileName))
	require.NoError(t, err)
	assert.Len(t, cm.Files, 2)
}

func TestBuildCollection_RemovedFileTriggersRebuild(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{
		"one.pdf": "pottery",
		"two.pdf": "glasswork",
	})

	require.NoError(t, os.Remove(filepath.Join(root, "two.pdf")))
	built, err := b.BuildCollection(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, built)

	cm, err := ReadCollectionManifest(filepath.Join(root, ManifestFileName))
	require.NoError(t, err)
	assert.Len(t, cm.Files, 1)
}

func TestBuildCollection_EmptyRootFails(t *testing.T) {
	_, err := testBuilder().BuildCollection(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestBuildCollection_IgnoresIndexArtifacts(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{"one.pdf": "archery"})

	// manifest.json and .mini_rag_index now exist at the root; a rescan
	// must not treat them as sources.
	rebuild, err := NeedsRebuild(root, b.embedder.ModelName())
	require.NoError(t, err)
	assert.False(t, rebuild)
}

func TestLoadCollection_SearchWorks(t *testing.T) {
	root, b := buildTestCollection(t, map[string]string{
		"one.pdf": "beekeeping",
		"two.pdf": "winemaking",
	})

	h, err := b.LoadCollection(context.Background(), root)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 2, h.DocCount())

	vec, err := EmbedQuery(context.Background(), b.embedder, "how do bees make honey")
	require.NoError(t, err)
	passages, err := h.Search(context.Background(), vec, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, passages)
}

func TestCheckStale(t *testing.T) {
	root, _ := buildTestCollection(t, map[string]string{"one.pdf": "dyeing"})

	m, err := ReadManifest(ManifestPath(CollectionIndexDir(root)))
	require.NoError(t, err)
	require.NoError(t, CheckStale(root, m), "freshly built index is not stale")

	writeSource(t, root, "two.pdf", loremText("printing"))
	assert.Error(t, CheckStale(root, m), "added source must flag stale")
}

func valuesOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
