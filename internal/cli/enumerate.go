package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newDomainsCmd(r *root) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List all domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := oneShot(ctx, a)
				defer cancel()
				domains, err := a.registry.Domains(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), domains)
				}
				return writeLines(cmd.OutOrStdout(), domains)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTypesCmd(r *root) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "types DOMAIN",
		Aliases: []string{"services"},
		Short:   "List the service types announced under a domain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := oneShot(ctx, a)
				defer cancel()
				types, err := a.registry.Types(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), types)
				}
				return writeLines(cmd.OutOrStdout(), types)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
