// Package index builds, persists, and loads the content-addressed vector
// indices that back retrieval.
//
// Two on-disk layouts exist. Per-file indices live in a directory named by
// the source file's fingerprint:
//
//	<root>/<fingerprint>/
//	    index.hnsw         ANN graph
//	    index.hnsw.meta    ID mappings
//	    chunks.json        chunk metadata and text
//	    manifest.json      build manifest
//
// A merged collection index lives in a .mini_rag_index directory at the
// collection root, with the collection manifest as a sibling of the sources:
//
//	<collection_root>/
//	    source1.pdf
//	    manifest.json      collection manifest (fingerprint -> filename)
//	    .mini_rag_index/
//	        index.hnsw
//	        index.hnsw.meta
//	        chunks.json
//	        manifest.json
package index

import "path/filepath"

// On-disk file names inside an index directory.
const (
	// IndexFileName holds the serialized ANN graph. The companion
	// .meta file written next to it is owned by the store layer.
	IndexFileName = "index.hnsw"

	// ChunksFileName holds chunk metadata and text.
	ChunksFileName = "chunks.json"

	// ManifestFileName holds the build manifest.
	ManifestFileName = "manifest.json"

	// CollectionIndexDirName is the merged-index directory at a
	// collection root.
	CollectionIndexDirName = ".mini_rag_index"
)

// PerFileDir returns the index directory for one fingerprint under root.
func PerFileDir(root, fp string) string {
	return filepath.Join(root, fp)
}

// CollectionIndexDir returns the merged-index directory for a collection.
func CollectionIndexDir(collectionRoot string) string {
	return filepath.Join(collectionRoot, CollectionIndexDirName)
}

// IndexPath returns the ANN graph path inside an index directory.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFileName)
}

// ChunksPath returns the chunk metadata path inside an index directory.
func ChunksPath(dir string) string {
	return filepath.Join(dir, ChunksFileName)
}

// ManifestPath returns the build manifest path inside an index directory.
func ManifestPath(dir string) string {
	return filepath.Join(dir, ManifestFileName)
}
