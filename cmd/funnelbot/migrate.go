package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed destinations",
		Long: `Create the users and destinations tables if they do not exist and
insert every entry of the destinations map that is not already present.
Existing URLs are never overwritten; use the admin panel to change them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.Migrate(ctx, e.cfg.Destinations); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready, %d destination seed(s) checked\n", len(e.cfg.Destinations))
			return nil
		},
	}
}
