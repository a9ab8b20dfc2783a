// Package reclaim removes orphaned on-disk index directories: fingerprint
// directories whose source file no longer exists in the collection.
package reclaim

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/ragindex/ragindex/internal/fingerprint"
	"github.com/ragindex/ragindex/internal/index"
)

// Orphan describes one index directory slated for (or removed by) a
// reclaim pass.
type Orphan struct {
	Fingerprint string `json:"fingerprint"`
	Dir         string `json:"dir"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Report summarizes a reclaim pass.
type Report struct {
	OrphansFound int      `json:"orphans_found"`
	Kept         int      `json:"kept"`
	BytesFreed   int64    `json:"bytes_freed"`
	Orphans      []Orphan `json:"orphans,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	DryRun       bool     `json:"dry_run"`
}

// HumanBytes renders the freed byte count for operators.
func (r *Report) HumanBytes() string {
	return humanize.Bytes(uint64(r.BytesFreed))
}

// Reclaim scans collectionRoot for per-file index directories whose
// fingerprint no longer matches any current source file and removes them,
// unless dryRun is set. Directories whose names are not well-formed
// fingerprints are never touched, and orphan directories are removed
// whole, never file by file.
func Reclaim(collectionRoot string, dryRun bool) (*Report, error) {
	sources, err := index.ScanSources(collectionRoot)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(collectionRoot)
	if err != nil {
		return nil, err
	}

	report := &Report{DryRun: dryRun}
	var orphans []Orphan

	for _, e := range entries {
		if !e.IsDir() || !fingerprint.IsValid(e.Name()) {
			continue
		}
		if _, live := sources[e.Name()]; live {
			report.Kept++
			continue
		}

		dir := filepath.Join(collectionRoot, e.Name())
		size, err := dirSize(dir)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", dir, err))
		}
		orphans = append(orphans, Orphan{
			Fingerprint: e.Name(),
			Dir:         dir,
			SizeBytes:   size,
		})
	}

	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].Fingerprint < orphans[j].Fingerprint
	})

	for _, o := range orphans {
		if !dryRun {
			if err := os.RemoveAll(o.Dir); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", o.Dir, err))
				continue
			}
			slog.Info("orphan index removed",
				slog.String("fingerprint", o.Fingerprint),
				slog.String("size", humanize.Bytes(uint64(o.SizeBytes))))
		}
		report.OrphansFound++
		report.BytesFreed += o.SizeBytes
		report.Orphans = append(report.Orphans, o)
	}

	slog.Info("reclaim pass complete",
		slog.String("root", collectionRoot),
		slog.Int("orphans", report.OrphansFound),
		slog.Int("kept", report.Kept),
		slog.Bool("dry_run", dryRun),
		slog.String("freed", report.HumanBytes()))
	return report, nil
}

// dirSize sums the file sizes under dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
