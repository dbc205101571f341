package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func settleCmd() *cobra.Command {
	var drawID int64

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle a closed draw and print the settlement record",
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

			result, err := a.svc.Settle(ctx, id)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().Int64Var(&drawID, "draw", 0, "draw id (default: current draw)")
	return cmd
}
