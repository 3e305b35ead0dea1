package cmd

import (
	"context"

	"lore-machine/repository"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := bootstrap(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := repository.Migrate(rt.db); err != nil {
				return err
			}
			rt.log.Infof("✅ migrated %d tables", len(repository.AllModels()))
			return nil
		},
	}
}
