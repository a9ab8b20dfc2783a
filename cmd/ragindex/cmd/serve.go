package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/cache"
	"github.com/ragindex/ragindex/internal/chunk"
	"github.com/ragindex/ragindex/internal/daemon"
	"github.com/ragindex/ragindex/internal/embed"
	"github.com/ragindex/ragindex/internal/index"
	"github.com/ragindex/ragindex/internal/service"
)

func newServeCmd() *cobra.Command {
	var port int
	var preload string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query service",
		Long: `Start the long-running query service. Indices load on first query and
stay resident; an optional preload path is warmed at startup so the
first external query is already a cache hit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), port, preload)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&preload, "preload", "", "Collection to warm at startup (overrides config)")
	return cmd
}

func runServe(ctx context.Context, portFlag int, preloadFlag string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := cfg.Server.Port
	if portFlag != 0 {
		port = portFlag
	}
	preload := cfg.Paths.Preload
	if preloadFlag != "" {
		preload = preloadFlag
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

	// Run file so operators and sibling commands can find the daemon.
	addr := fmt.Sprintf(":%d", port)
	runFile := daemon.NewRunFile(cfg.Paths.DataDir)
	if err := runFile.Write(addr); err != nil {
		return err
	}
	defer func() { _ = runFile.Remove() }()

	// Watch source directories so resident entries flag themselves stale.
	watcher, err := cache.NewWatcher(svc.Cache())
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go watcher.Run(ctx)

	if preload != "" {
		if err := svc.Preload(ctx, preload); err != nil {
			slog.Warn("preload failed; serving without it",
				slog.String("path", preload),
				slog.String("error", err.Error()))
		} else if err := watcher.Watch(preload); err != nil {
			slog.Warn("cannot watch preload path", slog.String("error", err.Error()))
		}
	}

	server := service.NewServer(svc, addr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
