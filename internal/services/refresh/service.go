// Package refresh re-scrapes every known ticker and reloads storage, either
// on demand or on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/artifact"
	"github.com/ternarybob/screener/internal/services/loader"
	"github.com/ternarybob/screener/internal/services/scraper"
)

// DefaultCommitEvery is the refresh transaction size
const DefaultCommitEvery = 100

// ErrAlreadyRunning is returned when a run is requested while one is in progress
var ErrAlreadyRunning = errors.New("refresh already running")

// Scraper runs a batch scrape
type Scraper interface {
	ScrapeMany(ctx context.Context, tickers []string) (*models.ScrapeResult, error)
}

// Loader writes records to storage
type Loader interface {
	Load(ctx context.Context, records []*models.Record, opts loader.Options) (int, error)
}

// Config holds the refresh file locations and batch size
type Config struct {
	CSVPath      string
	ArtifactPath string
	SkippedPath  string
	CommitEvery  int
}

// Result summarizes one refresh run
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Tickers   int           `json:"tickers"`
	Scraped   int           `json:"scraped"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Loaded    int           `json:"loaded"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Service runs refreshes, one at a time
type Service struct {
	stocks  interfaces.StockStorage
	scraper Scraper
	loader  Loader
	config  Config
	logger  arbor.ILogger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	last    *Result
}

// NewService creates a refresh service
func NewService(stocks interfaces.StockStorage, scraper Scraper, loader Loader, config Config, logger arbor.ILogger) *Service {
	if config.CommitEvery <= 0 {
		config.CommitEvery = DefaultCommitEvery
	}
	return &Service{
		stocks:  stocks,
		scraper: scraper,
		loader:  loader,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Running reports whether a run is in progress
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the outcome of the most recent finished run, or nil
func (s *Service) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Run scrapes every stored ticker, writes the artifact backup and reloads
// storage. Tickers come from storage, falling back to the CSV source; when
// neither has any the run fails with scraper.ErrNoTickers.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if !s.acquire() {
		return nil, ErrAlreadyRunning
	}

	result, err := s.run(ctx)
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	s.running = false
	s.last = result
	s.mu.Unlock()

	return result, err
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) run(ctx context.Context) (*Result, error) {
	result := &Result{StartedAt: s.now()}

	tickers, err := s.Tickers(ctx)
	if err != nil {
		return result, err
	}
	result.Tickers = len(tickers)
	if len(tickers) == 0 {
		s.logger.Error().Msg("No tickers found in storage or CSV")
		return result, scraper.ErrNoTickers
	}

	s.logger.Info().Int("tickers", len(tickers)).Msg("Refresh starting")

	scraped, scrapeErr := s.scraper.ScrapeMany(ctx, tickers)
	if scraped == nil {
		return result, scrapeErr
	}
	result.RunID = scraped.RunID
	result.Scraped = len(scraped.Records)
	result.Skipped = len(scraped.Skipped)
	result.Failed = scraped.Failed

	logger := s.logger.WithCorrelationId(scraped.RunID)

	// The backup is written even for a cancelled run
	if s.config.ArtifactPath != "" {
		if err := artifact.Write(s.config.ArtifactPath, models.NewArtifact(scraped)); err != nil {
			return result, err
		}
		logger.Info().Str("path", s.config.ArtifactPath).Msg("Saved artifact backup")
	}
	if s.config.SkippedPath != "" {
		if err := artifact.WriteSkipped(s.config.SkippedPath, scraped.Skipped); err != nil {
			return result, err
		}
	}

	if scrapeErr != nil {
		result.Duration = s.now().Sub(result.StartedAt)
		return result, fmt.Errorf("refresh interrupted: %w", scrapeErr)
	}

	industries, err := s.industries()
	if err != nil {
		logger.Warn().Err(err).Msg("Industry map unavailable, keeping stored classifications")
	}

	loaded, err := s.loader.Load(ctx, scraped.Records, loader.Options{
		CommitEvery:  s.config.CommitEvery,
		Industries:   industries,
		KeepExisting: true,
	})
	result.Loaded = loaded
	result.Duration = s.now().Sub(result.StartedAt)
	if err != nil {
		return result, fmt.Errorf("failed to load refreshed records: %w", err)
	}

	logger.Info().
		Int("scraped", result.Scraped).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("loaded", result.Loaded).
		Dur("duration", result.Duration).
		Msg("Refresh complete")

	return result, nil
}

// Tickers returns the tickers to refresh: every stored ticker, or the CSV
// list when storage is empty
func (s *Service) Tickers(ctx context.Context) ([]string, error) {
	tickers, err := s.stocks.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored tickers: %w", err)
	}
	if len(tickers) > 0 {
		return tickers, nil
	}

	if s.config.CSVPath == "" {
		return nil, nil
	}
	source, err := loader.LoadSourceOptional(s.config.CSVPath)
	if err != nil {
		return nil, err
	}
	if len(source.Tickers) > 0 {
		s.logger.Info().Str("path", s.config.CSVPath).Int("tickers", len(source.Tickers)).Msg("Storage empty, using CSV tickers")
	}
	return source.Tickers, nil
}

func (s *Service) industries() (loader.IndustryMap, error) {
	if s.config.CSVPath == "" {
		return nil, nil
	}
	source, err := loader.LoadSourceOptional(s.config.CSVPath)
	if err != nil {
		return nil, err
	}
	return source.Industries, nil
}
