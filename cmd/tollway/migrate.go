package main

import (
	"context"
	"fmt"

	pgStorage "tollway/internal/adapter/storage/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the accounts, tags, debit journal and transactions tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			ctx := context.Background()

			pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := pgStorage.Migrate(ctx, pool); err != nil {
				return err
			}
			a.log.Info().Msg("Schema is up to date")
			return nil
		},
	}
}
