package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var drawID int64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a draw's slate and bank counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			id := drawID
			if id == 0 {
				current, err := a.svc.Current(ctx)
				if err != nil {
					return err
				}
				id = current.ID
			}

			d, err := a.svc.Get(ctx, id)
			if err != nil {
				return err
			}
			stats, err := a.svc.DrawStats(ctx, id)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"draw":  d,
				"stats": stats,
			})
		},
	}
	cmd.Flags().Int64Var(&drawID, "draw", 0, "draw id (default: current draw)")
	return cmd
}
