package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/cache"
	"github.com/ragindex/ragindex/internal/embed"
	"github.com/ragindex/ragindex/internal/fingerprint"
	"github.com/ragindex/ragindex/internal/index"
	"github.com/ragindex/ragindex/internal/search"
)

func newMultiQueryCmd() *cobra.Command {
	var (
		store      string
		hashes     []string
		all        bool
		topK       int
		maxWorkers int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "multiquery <question> [question...]",
		Short: "Fan a question out over per-file indices",
		Long: `Run up to three questions in parallel over many per-file indices,
selected by fingerprint (--hash, repeatable) or all indices under the
store (--all). Results are deduplicated across shards and ordered by
descending similarity. One embedding model load serves every shard.`,
		Args: cobra.RangeArgs(1, search.MaxQueriesPerCall),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMultiQuery(cmd.Context(), args, store, hashes, all, topK, maxWorkers, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&store, "store", "", "Per-file index store root (default: working directory)")
	cmd.Flags().StringArrayVar(&hashes, "hash", nil, "Source fingerprint to include (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Include every per-file index under the store")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Passages per shard (default from config)")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Concurrent shard queries (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runMultiQuery(ctx context.Context, queries []string, store string, hashes []string, all bool, topK, maxWorkers int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if store == "" {
		if store, err = os.Getwd(); err != nil {
			return err
		}
	}
	if store, err = filepath.Abs(store); err != nil {
		return err
	}

	if all {
		found, err := listIndexFingerprints(store)
		if err != nil {
			return err
		}
		hashes = append(hashes, found...)
	}
	if len(hashes) == 0 {
		return fmt.Errorf("no shards selected: pass --hash or --all")
	}

	embedder, err := embed.Singleton(ctx)
	if err != nil {
		return err
	}
	shardCache := cache.New(func(ctx context.Context, dir string) (index.Handle, error) {
		return index.Load(dir, embedder.ModelName())
	})
	engine := search.NewEngine(shardCache, embedder, store)

	if topK <= 0 {
		topK = cfg.MultiShard.KPerShard
	}
	if maxWorkers <= 0 {
		maxWorkers = cfg.MultiShard.MaxWorkers
	}

	resp, err := engine.MultiQuery(ctx, search.Request{
		Queries:       queries,
		SourceHashes:  hashes,
		TopKPerSource: topK,
		MaxWorkers:    maxWorkers,
		Timeout:       cfg.MultiShard.ShardTimeout.Std(),
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for _, qr := range resp.Results {
		out.Statusf("•", "%q: %d passages from %d shards (%d failed) in %s",
			qr.Query, len(qr.Passages), len(qr.Succeeded), len(qr.Failed), qr.Elapsed.Round(time.Millisecond))
		for _, p := range qr.Passages {
			fmt.Printf("  %.3f %v\n      %s\n", p.Score, p.Sources, firstLine(p.Content))
		}
		for fp, kind := range qr.Failed {
			out.Warningf("shard %s failed: %s", fp[:12], kind)
		}
	}
	return nil
}

// listIndexFingerprints returns the fingerprints of every per-file index
// directory under root.
func listIndexFingerprints(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var fps []string
	for _, e := range entries {
		if e.IsDir() && fingerprint.IsValid(e.Name()) {
			fps = append(fps, e.Name())
		}
	}
	return fps, nil
}

// firstLine truncates passage content for terminal display.
func firstLine(s string) string {
	const max = 120
	for i, r := range s {
		if r == '\n' || i >= max {
			return s[:i] + "…"
		}
	}
	return s
}
