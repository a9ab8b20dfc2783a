// Package cmd provides the CLI commands for ragindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/config"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/logging"
	"github.com/ragindex/ragindex/internal/output"
	"github.com/ragindex/ragindex/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragindex",
		Short: "Content-addressed retrieval over PDF-derived text",
		Long: `ragindex answers free-form questions with ranked, source-attributed
passages drawn from collections of PDF-derived documents.

Indices are content-addressed: each source file is fingerprinted, its
vector index is cached under that fingerprint, and renames never
invalidate anything. A long-running service keeps indices resident in
memory; a fan-out engine queries many per-document indices in parallel.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("ragindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		cfg := logging.DefaultConfig()
		if debugMode {
			cfg = logging.DebugConfig()
		}
		logger, cleanup, err := logging.Setup(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
			return
		}
		slog.SetDefault(logger)
		loggingCleanup = cleanup
	}
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newMultiQueryCmd())
	cmd.AddCommand(newReclaimCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ragerrors.FormatForCLI(err))
		return err
	}
	return nil
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}

// out is the shared CLI output writer.
var out = output.New(os.Stdout)
