package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags "-X github.com/ceyewan/srvd/internal/cli.Version=..." 注入
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}
