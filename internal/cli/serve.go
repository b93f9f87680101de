package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/auth"
	"github.com/ceyewan/srvd/httpapi"
)

func newServeCmd(r *root) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query gateway until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				if addr != "" {
					a.cfg.HTTP.Addr = addr
				}
				opts := []httpapi.Option{httpapi.WithLogger(a.logger), httpapi.WithMeter(a.meter)}
				if a.cfg.Trace.Enabled {
					opts = append(opts, httpapi.WithTracing())
				}
				authn, err := auth.New(&a.cfg.Auth, auth.WithLogger(a.logger), auth.WithMeter(a.meter))
				if err != nil {
					return err
				}
				opts = append(opts, httpapi.WithAuthenticator(authn))
				srv, err := httpapi.New(a.registry, &a.cfg.HTTP, opts...)
				if err != nil {
					return err
				}
				defer srv.Close()
				return srv.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}
