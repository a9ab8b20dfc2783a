package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/index"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats <store-dir>",
		Short: "Show on-disk index statistics",
		Long: `List every per-file index under a store directory with its source
filename, chunk count, size, and build time. The JSON output also
carries each index's embedding model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runStats(root, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// indexStat is one on-disk index as reported by the stats command.
type indexStat struct {
	Fingerprint    string `json:"fingerprint"`
	Filename       string `json:"filename,omitempty"`
	Chunks         int    `json:"chunks"`
	EmbeddingModel string `json:"embedding_model"`
	BuiltAt        string `json:"built_at"`
	SizeBytes      int64  `json:"size_bytes"`
}

func runStats(root string, jsonOutput bool) error {
	fps, err := listIndexFingerprints(root)
	if err != nil {
		return err
	}
	sort.Strings(fps)

	stats := make([]indexStat, 0, len(fps))
	for _, fp := range fps {
		dir := index.PerFileDir(root, fp)
		m, err := index.ReadManifest(index.ManifestPath(dir))
		if err != nil {
			out.Warningf("%s: %v", fp[:12], err)
			continue
		}
		stats = append(stats, indexStat{
			Fingerprint:    fp,
			Filename:       m.Filename,
			Chunks:         m.Chunks,
			EmbeddingModel: m.EmbeddingModel,
			BuiltAt:        m.BuiltAt,
			SizeBytes:      treeSize(dir),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats) == 0 {
		out.Status("•", "No per-file indices found under "+root)
		return nil
	}
	var totalChunks int
	var totalBytes int64
	for _, s := range stats {
		out.Statusf("", "%s  %-30s %6d chunks  %8s  %s",
			s.Fingerprint[:12], s.Filename, s.Chunks,
			humanize.Bytes(uint64(s.SizeBytes)), s.BuiltAt)
		totalChunks += s.Chunks
		totalBytes += s.SizeBytes
	}
	out.Newline()
	out.Statusf("•", "%d indices, %d chunks, %s on disk",
		len(stats), totalChunks, humanize.Bytes(uint64(totalBytes)))
	return nil
}

// treeSize sums file sizes under dir, ignoring errors.
func treeSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
