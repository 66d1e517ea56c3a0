package main

import (
	"github.com/spf13/cobra"

	"masterdata/internal/masterdata/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireDB(); err != nil {
				return err
			}
			if err := store.Migrate(ctx, a.db); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "schema applied")
			return nil
		},
	}
}
