package refresh

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/artifact"
	"github.com/ternarybob/screener/internal/services/loader"
	"github.com/ternarybob/screener/internal/services/scraper"
	"github.com/ternarybob/screener/internal/storage/sqlite"
)

type fakeScraper struct {
	mu      sync.Mutex
	got     []string
	block   chan struct{}
	started chan struct{}
	skip    map[string]bool
	err     error
}

func (f *fakeScraper) ScrapeMany(ctx context.Context, tickers []string) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.got = append([]string(nil), tickers...)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}

	result := &models.ScrapeResult{RunID: "run-1", Total: len(tickers), StartedAt: time.Now()}
	for i, ticker := range tickers {
		if f.skip[ticker] {
			result.Skipped = append(result.Skipped, ticker)
			continue
		}
		rec := models.NewRecord(ticker, "Company "+ticker)
		rec.Set("price", models.Float(float64(100+i)))
		result.Records = append(result.Records, rec)
	}
	return result, f.err
}

type env struct {
	dir     string
	stocks  *sqlite.StockStorage
	scraper *fakeScraper
	service *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	catalog := schemas.MustLoad()
	logger := arbor.NewLogger()

	stocks, err := sqlite.NewStockStorage(ctx, logger, &common.SQLiteConfig{Path: filepath.Join(dir, "stocks.db")}, catalog)
	require.NoError(t, err)
	t.Cleanup(func() { stocks.Close() })

	fs := &fakeScraper{}
	svc := NewService(stocks, fs, loader.NewService(stocks, catalog, logger), Config{
		CSVPath:      filepath.Join(dir, "StockSource.csv"),
		ArtifactPath: filepath.Join(dir, "stock_data_latest.json"),
		SkippedPath:  filepath.Join(dir, "affiliates_skipped.txt"),
	}, logger)

	return &env{dir: dir, stocks: stocks, scraper: fs, service: svc}
}

func (e *env) writeCSV(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.service.config.CSVPath, []byte(body), 0644))
}

func TestRun_NoTickers(t *testing.T) {
	e := newEnv(t)

	result, err := e.service.Run(context.Background())
	assert.ErrorIs(t, err, scraper.ErrNoTickers)
	assert.Equal(t, 0, result.Tickers)
	assert.False(t, e.service.Running())
	assert.NotEmpty(t, e.service.LastResult().Error)
}

func TestRun_FallsBackToCSV(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.writeCSV(t, "Exchange:Ticker,Industry Group,Sector\nNASDAQ:AAPL,Tech,Technology\nNYSE:XOM,Oil,Energy\nNYSE:BRK,Conglomerates,Financial\n")
	e.scraper.skip = map[string]bool{"BRK": true}

	result, err := e.service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "XOM", "BRK"}, e.scraper.got)
	assert.Equal(t, 3, result.Tickers)
	assert.Equal(t, 2, result.Scraped)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, "run-1", result.RunID)

	stock, err := e.stocks.GetStock(ctx, "XOM")
	require.NoError(t, err)
	assert.Equal(t, "Oil", stock["industry"])
	assert.Equal(t, 101.0, stock["price"])

	saved, err := artifact.Read(e.service.config.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Successful)
	assert.Equal(t, 1, saved.AffiliatesSkipped)

	skipped, err := os.ReadFile(e.service.config.SkippedPath)
	require.NoError(t, err)
	assert.Equal(t, "BRK\n", string(skipped))
}

func TestRun_PrefersStoredTickersAndKeepsIndustry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.writeCSV(t, "Exchange:Ticker,Industry Group,Sector\nNASDAQ:AAPL,Tech,Technology\nNYSE:XOM,Oil,Energy\n")

	_, err := e.service.Run(ctx)
	require.NoError(t, err)

	// CSV gone: stored tickers drive the run and stored industries survive
	require.NoError(t, os.Remove(e.service.config.CSVPath))

	_, err = e.service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "XOM"}, e.scraper.got)

	stock, err := e.stocks.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Tech", stock["industry"])
}

func TestRun_RejectsOverlap(t *testing.T) {
	e := newEnv(t)
	e.writeCSV(t, "Ticker\nAAPL\n")
	e.scraper.block = make(chan struct{})
	e.scraper.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := e.service.Run(context.Background())
		done <- err
	}()

	<-e.scraper.started
	assert.True(t, e.service.Running())

	_, err := e.service.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(e.scraper.block)
	require.NoError(t, <-done)
	assert.False(t, e.service.Running())
}

func TestRun_InterruptedKeepsBackup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.writeCSV(t, "Ticker\nAAPL\nMSFT\n")
	e.scraper.err = context.Canceled

	result, err := e.service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Loaded)

	_, err = artifact.Read(e.service.config.ArtifactPath)
	assert.NoError(t, err)

	count, err := e.stocks.CountStocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
