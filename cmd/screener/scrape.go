package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/screener/internal/app"
	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/artifact"
	"github.com/ternarybob/screener/internal/services/loader"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [csv]",
	Short: "Scrape every ticker in the CSV into the artifact",
	Long: `Fetches the quote page of every ticker listed in the CSV, one at a time
with the configured delay, and writes the normalized records to the artifact.
Affiliate listings are written to the skipped list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrape,
}

var (
	scrapeTicker  string
	scrapeTickers []string
	scrapeOutput  string
)

func init() {
	scrapeCmd.Flags().StringVar(&scrapeTicker, "ticker", "", "Scrape a single ticker and print the record")
	scrapeCmd.Flags().StringSliceVar(&scrapeTickers, "tickers", nil, "Scrape these tickers into the artifact instead of the CSV list")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Artifact path (overrides loader.artifact_path)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scrapeService, err := app.NewScrapeService(config, logger)
	if err != nil {
		return err
	}

	if scrapeTicker != "" {
		ticker := common.ParseTicker(scrapeTicker).Code
		rec, err := scrapeService.ScrapeOne(ctx, ticker)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	tickers := common.TickerCodes(scrapeTickers)
	if len(tickers) == 0 {
		csvPath := config.Loader.CSVPath
		if len(args) > 0 {
			csvPath = args[0]
		}
		source, err := loader.LoadSource(csvPath)
		if err != nil {
			return err
		}
		tickers = source.Tickers
	}

	result, scrapeErr := scrapeService.ScrapeMany(ctx, tickers)
	if result == nil {
		return scrapeErr
	}

	output := config.Loader.ArtifactPath
	if scrapeOutput != "" {
		output = scrapeOutput
	}
	if err := artifact.Write(output, models.NewArtifact(result)); err != nil {
		return err
	}
	if err := artifact.WriteSkipped(config.Loader.SkippedPath, result.Skipped); err != nil {
		return err
	}

	logger.Info().
		Str("artifact", output).
		Int("successful", len(result.Records)).
		Int("skipped", len(result.Skipped)).
		Int("failed", result.Failed).
		Msg("Scrape saved")

	return scrapeErr
}
