// Package scraper fetches quote pages for a list of tickers one at a time
// and turns them into normalized records.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/extractor"
	"github.com/ternarybob/screener/internal/services/normalize"
)

// DefaultDelay is the pause between consecutive page requests
const DefaultDelay = 2500 * time.Millisecond

var (
	// ErrNoTickers is returned when there is nothing to scrape
	ErrNoTickers = errors.New("no tickers to scrape")

	// ErrAffiliate marks a ticker whose page redirects to an affiliate listing
	ErrAffiliate = errors.New("affiliate listing")
)

// Sleeper pauses between requests
type Sleeper func(ctx context.Context, d time.Duration) error

// Service runs sequential scrapes
type Service struct {
	fetcher   interfaces.PageFetcher
	extractor *extractor.Extractor
	splitter  *normalize.Splitter
	delay     time.Duration
	sleep     Sleeper
	now       func() time.Time
	logger    arbor.ILogger
}

// Option configures the Service
type Option func(*Service)

// WithDelay sets the pause between requests
func WithDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSleeper replaces the pause implementation
func WithSleeper(sleep Sleeper) Option {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a scrape service
func NewService(fetcher interfaces.PageFetcher, splitter *normalize.Splitter, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		extractor: extractor.NewExtractor(logger),
		splitter:  splitter,
		delay:     DefaultDelay,
		sleep:     sleepContext,
		now:       time.Now,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScrapeOne fetches and normalizes a single ticker. Affiliate pages return
// ErrAffiliate.
func (s *Service) ScrapeOne(ctx context.Context, ticker string) (*models.Record, error) {
	body, err := s.fetcher.Fetch(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}

	page, err := s.extractor.Extract(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", ticker, err)
	}

	if page.Affiliate {
		return nil, ErrAffiliate
	}

	return extractor.Normalize(ticker, page, s.splitter), nil
}

// ScrapeMany scrapes tickers in order with a fixed delay between requests.
// Per-ticker failures are logged and counted, never returned. Records keep
// input order. Cancelling ctx stops the run after the current ticker and
// returns what was collected with the context error.
func (s *Service) ScrapeMany(ctx context.Context, tickers []string) (*models.ScrapeResult, error) {
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	result := &models.ScrapeResult{
		RunID:     uuid.New().String(),
		Total:     len(tickers),
		StartedAt: s.now(),
	}
	logger := s.logger.WithCorrelationId(result.RunID)

	logger.Info().
		Int("tickers", len(tickers)).
		Dur("delay", s.delay).
		Dur("estimated", time.Duration(len(tickers))*s.delay).
		Msg("Starting scrape")

	var runErr error
	for i, ticker := range tickers {
		rec, err := s.ScrapeOne(ctx, ticker)
		switch {
		case err == nil:
			result.Records = append(result.Records, rec)
			logger.Debug().Int("n", i+1).Int("of", len(tickers)).Str("ticker", ticker).Int("fields", len(rec.Fields)).Msg("Scraped")
		case errors.Is(err, ErrAffiliate):
			result.Skipped = append(result.Skipped, ticker)
			logger.Debug().Int("n", i+1).Int("of", len(tickers)).Str("ticker", ticker).Msg("Skipped affiliate")
		default:
			result.Failed++
			logger.Warn().Err(err).Int("n", i+1).Int("of", len(tickers)).Str("ticker", ticker).Msg("Scrape failed")
		}

		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		if i < len(tickers)-1 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				runErr = err
				break
			}
		}
	}

	result.Duration = s.now().Sub(result.StartedAt)

	logger.Info().
		Int("successful", len(result.Records)).
		Int("skipped", len(result.Skipped)).
		Int("failed", result.Failed).
		Int("total", result.Total).
		Dur("duration", result.Duration).
		Msg("Scrape complete")

	return result, runErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
