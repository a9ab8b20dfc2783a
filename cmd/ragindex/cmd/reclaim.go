package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/reclaim"
)

func newReclaimCmd() *cobra.Command {
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reclaim <collection-dir>",
		Short: "Remove orphaned index directories",
		Long: `Scan a collection for per-file index directories whose source file no
longer exists and remove them. Directories not named by a well-formed
fingerprint are never touched. Use --dry-run to preview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runReclaim(root, dryRun, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without removing anything")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runReclaim(root string, dryRun, jsonOutput bool) error {
	report, err := reclaim.Reclaim(root, dryRun)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	out.Statusf("•", "%d orphans %s (%s), %d indices kept",
		report.OrphansFound, verb, report.HumanBytes(), report.Kept)
	for _, o := range report.Orphans {
		out.Statusf("", "%s  %s", o.Fingerprint, o.Dir)
	}
	for _, e := range report.Errors {
		out.Warning(e)
	}
	return nil
}
