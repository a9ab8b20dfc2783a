package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			if verbose {
				fmt.Println(version.Info())
			} else {
				fmt.Println(version.Short())
			}
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show build details")
	return cmd
}
