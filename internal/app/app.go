package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/handlers"
	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/loader"
	"github.com/ternarybob/screener/internal/services/normalize"
	"github.com/ternarybob/screener/internal/services/quotes"
	"github.com/ternarybob/screener/internal/services/refresh"
	"github.com/ternarybob/screener/internal/services/scraper"
	"github.com/ternarybob/screener/internal/services/shortlist"
	"github.com/ternarybob/screener/internal/services/stocks"
	"github.com/ternarybob/screener/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Catalog  *schemas.Catalog
	Storages *storage.Storages

	// Services
	ScrapeService    *scraper.Service
	LoaderService    *loader.Service
	ShortlistService *shortlist.Service
	StockService     *stocks.Service
	RefreshService   *refresh.Service
	Scheduler        *refresh.Scheduler

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	StockHandler     *handlers.StockHandler
	ShortlistHandler *handlers.ShortlistHandler
	RefreshHandler   *handlers.RefreshHandler
}

// New opens storage and wires every service and handler
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	catalog, err := schemas.Load()
	if err != nil {
		return nil, err
	}
	app.Catalog = catalog

	if err := app.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Storages.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Bool("quotes", cfg.Quotes.Enabled).
		Bool("refresh_schedule", cfg.Refresh.Enabled).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initStorage(ctx context.Context) error {
	storages, err := storage.NewStorages(ctx, a.Logger, &a.Config.Storage, a.Catalog)
	if err != nil {
		return err
	}
	a.Storages = storages
	return nil
}

func (a *App) initServices() error {
	scrapeService, err := NewScrapeService(a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.ScrapeService = scrapeService

	a.LoaderService = loader.NewService(a.Storages.Stocks, a.Catalog, a.Logger)
	a.ShortlistService = shortlist.NewService(a.Storages.Shortlist, a.Logger)

	var quoteProvider interfaces.QuoteProvider
	if a.Config.Quotes.Enabled {
		quoteProvider = quotes.NewYahooProvider(a.Logger)
	}
	a.StockService = stocks.NewService(a.Storages.Stocks, a.ShortlistService, quoteProvider, a.Catalog, a.Logger)

	a.RefreshService = NewRefreshService(a.Config, a.Storages.Stocks, a.ScrapeService, a.LoaderService, a.Logger)
	if a.Config.Refresh.Enabled {
		a.Scheduler = refresh.NewScheduler(a.RefreshService, a.Config.Refresh.Schedule, a.Logger)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Storages.Stocks, a.Logger)
	a.StockHandler = handlers.NewStockHandler(a.StockService, a.Logger)
	a.ShortlistHandler = handlers.NewShortlistHandler(a.ShortlistService, a.Logger)
	a.RefreshHandler = handlers.NewRefreshHandler(a.RefreshService, a.Logger)
}

// StartScheduler starts the refresh schedule when enabled
func (a *App) StartScheduler() error {
	if a.Scheduler == nil {
		a.Logger.Info().Msg("Refresh schedule disabled")
		return nil
	}
	return a.Scheduler.Start()
}

// Close stops the scheduler and closes storage
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.Storages != nil {
		if err := a.Storages.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

// NewScrapeService builds the page fetcher and scrape orchestrator from config
func NewScrapeService(cfg *common.Config, logger arbor.ILogger) (*scraper.Service, error) {
	delay, err := cfg.Scraper.DelayDuration()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Scraper.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	opts := []scraper.FetcherOption{
		scraper.WithLogger(logger),
		scraper.WithRateLimit(cfg.Scraper.RequestsPerSecond),
	}
	if cfg.Scraper.BaseURL != "" {
		opts = append(opts, scraper.WithBaseURL(cfg.Scraper.BaseURL))
	}
	if cfg.Scraper.UserAgent != "" {
		opts = append(opts, scraper.WithUserAgent(cfg.Scraper.UserAgent))
	}
	if cfg.Scraper.Proxy != "" {
		client, err := scraper.NewProxyClient(cfg.Scraper.Proxy, timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scraper.WithHTTPClient(client))
		logger.Info().Msg("Scraping through SOCKS5 proxy")
	} else if timeout > 0 {
		opts = append(opts, scraper.WithTimeout(timeout))
	}

	fetcher := scraper.NewHTTPFetcher(opts...)
	return scraper.NewService(fetcher, normalize.NewDefaultSplitter(), logger, scraper.WithDelay(delay)), nil
}

// NewRefreshService builds the refresh service from config
func NewRefreshService(cfg *common.Config, stocks interfaces.StockStorage, scrape refresh.Scraper, load refresh.Loader, logger arbor.ILogger) *refresh.Service {
	return refresh.NewService(stocks, scrape, load, refresh.Config{
		CSVPath:      cfg.Loader.CSVPath,
		ArtifactPath: cfg.Refresh.ArtifactPath,
		SkippedPath:  cfg.Refresh.SkippedPath,
		CommitEvery:  cfg.Refresh.CommitEvery,
	}, logger)
}
