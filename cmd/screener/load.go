package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/artifact"
	"github.com/ternarybob/screener/internal/services/loader"
	"github.com/ternarybob/screener/internal/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load [artifact] [csv]",
	Short: "Load an artifact into storage",
	Long: `Translates every record of the artifact into the column catalog, merges
industry and sector from the CSV and writes current-state and history rows.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	artifactPath := config.Loader.ArtifactPath
	csvPath := config.Loader.CSVPath
	if len(args) > 0 {
		artifactPath = args[0]
	}
	if len(args) > 1 {
		csvPath = args[1]
	}

	doc, err := artifact.Read(artifactPath)
	if err != nil {
		return err
	}
	source, err := loader.LoadSourceOptional(csvPath)
	if err != nil {
		return err
	}

	catalog, err := schemas.Load()
	if err != nil {
		return err
	}
	stocks, err := storage.NewStockStorage(ctx, logger, &config.Storage, catalog)
	if err != nil {
		return err
	}
	defer stocks.Close()

	n, err := loader.NewService(stocks, catalog, logger).Load(ctx, doc.Stocks, loader.Options{
		CommitEvery: config.Loader.CommitEvery,
		Industries:  source.Industries,
	})
	if err != nil {
		return err
	}

	count, err := stocks.CountStocks(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("loaded", n).Int("total_stocks", count).Str("artifact", artifactPath).Msg("Load complete")
	return nil
}
