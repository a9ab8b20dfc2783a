package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/chunk"
	"github.com/ragindex/ragindex/internal/embed"
	"github.com/ragindex/ragindex/internal/index"
	"github.com/ragindex/ragindex/internal/service"
)

func newQueryCmd() *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <collection-dir> <question>",
		Short: "Ask one question against a collection",
		Long: `Load (building if necessary) the merged index for a collection and
retrieve the top-k passages for a question. The answer is a
deterministic rendering of the retrieved passages, never generated
text.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), root, args[1], topK, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Passages to return (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runQuery(ctx context.Context, root, question string, topK int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if topK <= 0 {
		topK = cfg.Server.TopK
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
	svc := service.New(embedder, builder,
		service.WithQueryTimeout(cfg.Server.QueryTimeout.Std()))

	resp, err := svc.Query(ctx, root, question, topK)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	out.Newline()
	out.Statusf("•", "load %.2fs, retrieval %.2fs, from_cache=%v",
		resp.LoadTimeSeconds, resp.RetrievalTimeSeconds, resp.FromCache)
	return nil
}
