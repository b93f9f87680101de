package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/registry"
)

// watchRecord watch 命令输出的一行（JSON Lines）
type watchRecord struct {
	Time      time.Time           `json:"time"`
	Domain    string              `json:"domain"`
	Type      string              `json:"type"`
	Instances []registry.Instance `json:"instances"`
}

func newWatchCmd(r *root) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch DOMAIN TYPE",
		Short: "Stream changes of a service directory as JSON lines",
		Long: "watch prints the current instances of the directory, then one line " +
			"every time the set changes, until interrupted.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				events, err := a.registry.Watch(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				seen := 0
				for ev := range events {
					rec := watchRecord{
						Time:      time.Now(),
						Domain:    ev.Domain,
						Type:      ev.Service,
						Instances: ev.Instances,
					}
					if err := writeJSONLine(cmd, rec); err != nil {
						return err
					}
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after n events (0 = until interrupted)")
	return cmd
}

func writeJSONLine(cmd *cobra.Command, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
