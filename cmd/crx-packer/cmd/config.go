package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/crx-packer/internal/config"
	"github.com/oshokin/crx-packer/internal/logger"
)

// newConfigCommand groups configuration file helpers.
func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the crx-packer configuration file.",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a new file.",
		Long: `Writes the built-in defaults to path (default crx-packer.yaml) so they can be edited.
An existing file is never replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Wrote default configuration", "path", path)

			return nil
		},
	})

	return configCmd
}
