package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/clog"
)

func newAnnounceCmd(r *root) *cobra.Command {
	var (
		payload string
		hold    bool
	)
	cmd := &cobra.Command{
		Use:   "announce DOMAIN TYPE",
		Short: "Announce an instance and keep it alive until interrupted",
		Long: "announce creates an ephemeral instance node and prints its id. " +
			"The node lives as long as the store session, so by default the command " +
			"holds the session until interrupted and then withdraws the instance.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, service := args[0], args[1]
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				opCtx, cancel := oneShot(ctx, a)
				id, err := a.registry.Announce(opCtx, domain, service, payload)
				cancel()
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
				if !hold {
					return nil
				}

				a.logger.Info("holding announcement",
					clog.String("domain", domain), clog.String("type", service), clog.String("id", id))
				<-ctx.Done()

				unCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
				defer cancel()
				return a.registry.Unannounce(unCtx, domain, service, id)
			})
		},
	}
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "instance payload, stored verbatim (JSON recommended)")
	cmd.Flags().BoolVar(&hold, "hold", true, "keep the session open until interrupted")
	return cmd
}

func newUnannounceCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "unannounce DOMAIN TYPE ID",
		Short: "Withdraw an announced instance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := oneShot(ctx, a)
				defer cancel()
				return a.registry.Unannounce(ctx, args[0], args[1], args[2])
			})
		},
	}
}
