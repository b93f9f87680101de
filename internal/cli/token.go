package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/auth"
)

// newTokenCmd 用 auth.secret_key 签发网关写接口所需的 Token，不连接存储
func newTokenCmd(r *root) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			authCfg := cfg.Auth
			authCfg.Enabled = true
			authn, err := auth.New(&authCfg)
			if err != nil {
				return err
			}
			token, err := authn.GenerateToken(cmd.Context(), subject, scopes, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.token_ttl")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
