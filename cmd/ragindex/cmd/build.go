package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/chunk"
	"github.com/ragindex/ragindex/internal/embed"
	"github.com/ragindex/ragindex/internal/index"
)

func newBuildCmd() *cobra.Command {
	var perFile bool
	var storeRoot string

	cmd := &cobra.Command{
		Use:   "build <collection-dir>",
		Short: "Build vector indices for a collection",
		Long: `Build the merged index for a collection directory, or (with --per-file)
one content-addressed index per source file. Indices whose fingerprints
already exist are reused, so rebuilding an unchanged collection is a
no-op and renamed files never re-embed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), root, perFile, storeRoot)
		},
	}

	cmd.Flags().BoolVar(&perFile, "per-file", false, "Build one index per source file instead of a merged index")
	cmd.Flags().StringVar(&storeRoot, "store", "", "Per-file index store root (default: the collection directory)")
	return cmd
}

func runBuild(ctx context.Context, root string, perFile bool, storeRoot string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	embedder, err := embed.Singleton(ctx)
	if err != nil {
		return err
	}
	builder := index.NewBuilder(embedder,
		index.WithBatchSize(cfg.Embeddings.BatchSize),
		index.WithSplitter(chunk.NewRecursiveSplitter(
			chunk.WithSize(cfg.Chunking.Size),
			chunk.WithOverlap(cfg.Chunking.Overlap),
		)),
	)

	if !perFile {
		built, err := builder.BuildCollection(ctx, root)
		if err != nil {
			return err
		}
		if built {
			out.Success("Merged index built under " + index.CollectionIndexDir(root))
		} else {
			out.Status("•", "Merged index already current; nothing to do")
		}
		return nil
	}

	if storeRoot == "" {
		storeRoot = root
	}
	sources, err := index.ScanSources(root)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no source files found in %s", root)
	}

	var built, reused int
	names := sources.Filenames()
	for i, name := range names {
		fp, didBuild, err := builder.BuildPerFile(ctx, filepath.Join(root, name), storeRoot)
		if err != nil {
			out.Warningf("%s: %v", name, err)
			continue
		}
		if didBuild {
			built++
		} else {
			reused++
		}
		out.Progress(i+1, len(names), name+" -> "+fp[:12])
	}
	out.ProgressDone()
	out.Successf("Per-file indices ready: %d built, %d reused", built, reused)
	return nil
}
