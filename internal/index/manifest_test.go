package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)

	m := NewBuildManifest([]string{"b" + hex31, "a" + hex31}, "book.pdf", 42, 1200, 150, "static-v1")
	require.NoError(t, WriteManifest(path, m))

	got, err := ReadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, got.SchemaVersion)
	assert.Equal(t, []string{"a" + hex31, "b" + hex31}, got.Fingerprints, "fingerprints are stored sorted")
	assert.Equal(t, "book.pdf", got.Filename)
	assert.Equal(t, 42, got.Chunks)
	assert.Equal(t, 1200, got.ChunkSize)
	assert.Equal(t, 150, got.ChunkOverlap)
	assert.Equal(t, "static-v1", got.EmbeddingModel)
	assert.NotEmpty(t, got.BuiltAt)
}

// hex31 pads test fingerprints to the full 32 hex characters.
const hex31 = "0000000000000000000000000000000"

func TestBuildManifest_CompatibleWith(t *testing.T) {
	m := NewBuildManifest([]string{"a" + hex31}, "", 1, 1200, 150, "static-v1")
	assert.True(t, m.CompatibleWith("static-v1"))
	assert.False(t, m.CompatibleWith("other-model"))
}

func TestReadManifest_MissingFile(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "manifest.json"))
	assert.Error(t, err)
}

func TestReadManifest_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ReadManifest(path)
	assert.Error(t, err)
}

func TestReadManifest_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)

	tests := []struct {
		name string
		body string
	}{
		{"no fingerprints", `{"schema_version":1,"fingerprints":[],"chunks":1,"chunk_size":1200,"chunk_overlap":150,"embedding_model":"m","built_at":"2026-01-01T00:00:00Z"}`},
		{"future schema", `{"schema_version":99,"fingerprints":["a"],"chunks":1,"chunk_size":1200,"chunk_overlap":150,"embedding_model":"m","built_at":"2026-01-01T00:00:00Z"}`},
		{"no model", `{"schema_version":1,"fingerprints":["a"],"chunks":1,"chunk_size":1200,"chunk_overlap":150,"embedding_model":"","built_at":"2026-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := ReadManifest(path)
			assert.Error(t, err)
		})
	}
}

func TestCollectionManifest_SameFiles(t *testing.T) {
	cm := NewCollectionManifest(map[string]string{
		"a" + hex31: "one.pdf",
		"b" + hex31: "two.pdf",
	}, 10)

	assert.True(t, cm.SameFiles(map[string]string{
		"a" + hex31: "renamed.pdf", // rename does not matter
		"b" + hex31: "two.pdf",
	}))
	assert.False(t, cm.SameFiles(map[string]string{
		"a" + hex31: "one.pdf",
	}))
	assert.False(t, cm.SameFiles(map[string]string{
		"a" + hex31: "one.pdf",
		"c" + hex31: "three.pdf",
	}))
}

func TestCollectionManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)

	cm := NewCollectionManifest(map[string]string{"a" + hex31: "x.pdf"}, 7)
	require.NoError(t, WriteCollectionManifest(path, cm))

	got, err := ReadCollectionManifest(path)
	require.NoError(t, err)
	assert.Equal(t, cm.Files, got.Files)
	assert.Equal(t, 7, got.TotalChunks)
	assert.Equal(t, []string{"a" + hex31}, got.Fingerprints())
}

func TestWriteManifest_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	m := NewBuildManifest([]string{"a" + hex31}, "", 1, 1200, 150, "m")
	require.NoError(t, WriteManifest(path, m))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestFileName, entries[0].Name())
}
