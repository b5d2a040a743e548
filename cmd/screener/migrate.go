package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/migrate"
	"github.com/ternarybob/screener/internal/storage/postgres"
	"github.com/ternarybob/screener/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all stock and history rows from SQLite to Postgres",
	RunE:  runMigrate,
}

var migratePostgresURL string

func init() {
	migrateCmd.Flags().StringVar(&migratePostgresURL, "postgres-url", "", "Target Postgres URL (defaults to storage.postgres.url / DATABASE_URL)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	url := migratePostgresURL
	if url == "" {
		url = config.Storage.Postgres.URL
	}
	if url == "" {
		return fmt.Errorf("no Postgres URL: pass --postgres-url or set DATABASE_URL")
	}

	catalog, err := schemas.Load()
	if err != nil {
		return err
	}

	from, err := sqlite.NewStockStorage(ctx, logger, &config.Storage.SQLite, catalog)
	if err != nil {
		return err
	}
	defer from.Close()

	db, err := postgres.Open(ctx, url)
	if err != nil {
		return err
	}
	to, err := postgres.NewStockStorage(ctx, logger, db, catalog)
	if err != nil {
		db.Close()
		return err
	}
	defer to.Close()

	logger.Info().Str("sqlite", config.Storage.SQLite.Path).Msg("Migrating SQLite to Postgres")

	result, err := migrate.NewService(from, to, logger).Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("stocks", result.Stocks).Int("history", result.History).Msg("Migration finished")
	return nil
}
