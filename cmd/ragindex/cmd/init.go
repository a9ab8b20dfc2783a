package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/configs"
	"github.com/ragindex/ragindex/internal/config"
)

func newInitCmd() *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "init [collection-dir]",
		Short: "Write a starter configuration file",
		Long: `Write a commented .ragindex.yaml into a collection directory, or (with
--user) the machine-wide config at ~/.config/ragindex/config.yaml.
Existing files are never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if user {
				return writeTemplate(config.GetUserConfigPath(), configs.UserConfigTemplate)
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return writeTemplate(filepath.Join(dir, ".ragindex.yaml"), configs.CollectionConfigTemplate)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of a collection config")
	return cmd
}

func writeTemplate(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		out.Status("•", path+" already exists; leaving it untouched")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	out.Success("Wrote " + path)
	return nil
}
