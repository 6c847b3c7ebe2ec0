package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanizio/geofunnel/internal/admin"
)

var statsUser int64

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics and destinations",
		Long: `Print the same statistics the admin panel shows, followed by the
current region → destination table.  With --user, print one user's record
instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			out := cmd.OutOrStdout()

			if statsUser != 0 {
				u, err := e.store.User(ctx, statsUser)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				fmt.Fprintln(out, admin.FormatUser(u))
				return nil
			}

			st, err := e.store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			dest, err := e.store.Destinations(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Fprintln(out, admin.FormatStats(st))
			fmt.Fprintln(out)
			fmt.Fprintln(out, admin.FormatDestinations(dest))
			return nil
		},
	}
	cmd.Flags().Int64Var(&statsUser, "user", 0, "print a single user record by Telegram id")
	return cmd
}
