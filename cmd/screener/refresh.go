package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/screener/internal/app"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/loader"
	"github.com/ternarybob/screener/internal/storage"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-scrape every stored ticker and reload storage once",
	Long: `Runs one refresh: tickers come from storage (falling back to the CSV),
are scraped with the configured delay, backed up to the refresh artifact and
loaded. Intended for an external cron; serve runs the same job on its own
schedule when refresh.enabled is set.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := schemas.Load()
	if err != nil {
		return err
	}
	stocks, err := storage.NewStockStorage(ctx, logger, &config.Storage, catalog)
	if err != nil {
		return err
	}
	defer stocks.Close()

	scrapeService, err := app.NewScrapeService(config, logger)
	if err != nil {
		return err
	}

	service := app.NewRefreshService(config, stocks, scrapeService, loader.NewService(stocks, catalog, logger), logger)
	result, err := service.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("loaded", result.Loaded).
		Dur("duration", result.Duration).
		Msg("Refresh finished")
	return nil
}
