package cli

import (
	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version.PrintVersion(cmd.OutOrStdout())
		},
	}
}
