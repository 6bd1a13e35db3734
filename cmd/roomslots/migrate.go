package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/roomslots/internal/app"
	"github.com/Freeeeeet/roomslots/internal/config"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres document table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				if err := mg.Run(ctx); err != nil {
					return err
				}
				fmt.Println("Migrations executed successfully.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				version, err := mg.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Current version: %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *app.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDSN == "" {
		return errors.New("DB_DSN is required for migrations")
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	pool, err := app.OpenPostgres(ctx, cfg.DBDSN, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(ctx, mg)
}
