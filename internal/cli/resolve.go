package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/loadbalance"
)

func newResolveCmd(r *root) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve DOMAIN TYPE",
		Short: "List the live instances of a service directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := oneShot(ctx, a)
				defer cancel()
				list, err := a.registry.Resolve(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				return writeInstances(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPickCmd(r *root) *cobra.Command {
	var (
		strategy string
		key      string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "pick DOMAIN TYPE",
		Short: "Pick one live instance using a load-balancing strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			picker, err := loadbalance.New(strategy, key)
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := oneShot(ctx, a)
				defer cancel()
				inst, err := a.registry.Pick(ctx, args[0], args[1], picker)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), inst)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", inst.ID, inst.Raw)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", loadbalance.StrategyRandom,
		fmt.Sprintf("one of %v", loadbalance.Strategies()))
	cmd.Flags().StringVarP(&key, "key", "k", "", "request key for consistent_hash")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
