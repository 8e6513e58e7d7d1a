package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/donutloadable/internal/config"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		Long:  "Create the configuration directory and a default config.yaml. An existing file is left unchanged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := flags.resolveConfigDir()
			if err != nil {
				return &sysError{err}
			}
			created, err := config.WriteDefault(dir)
			if err != nil {
				return &sysError{err}
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", config.Path(dir))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", config.Path(dir))
			}
			return nil
		},
	}
}
