// Package migrate copies stock data between storage backends.
package migrate

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
)

// BatchSize is the number of rows written per transaction
const BatchSize = 50

// Result counts the rows copied
type Result struct {
	Stocks  int
	History int
}

// Service copies every current-state and history row from one store to another
type Service struct {
	from   interfaces.StockStorage
	to     interfaces.StockStorage
	logger arbor.ILogger
}

// NewService creates a migration from one store to another
func NewService(from, to interfaces.StockStorage, logger arbor.ILogger) *Service {
	return &Service{from: from, to: to, logger: logger}
}

// Run copies current-state rows (replacing existing ones) and then history
// rows (keeping existing (ticker, date) pairs). Running it twice is safe.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	stocks, err := s.from.ExportStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export stocks: %w", err)
	}
	s.logger.Info().Int("rows", len(stocks)).Msg("Migrating stocks")

	for start := 0; start < len(stocks); start += BatchSize {
		end := min(start+BatchSize, len(stocks))
		snaps := make([]*models.Snapshot, 0, end-start)
		for _, row := range stocks[start:end] {
			snaps = append(snaps, &models.Snapshot{Stock: row})
		}

		n, err := s.to.SaveSnapshots(ctx, snaps, BatchSize)
		result.Stocks += n
		if err != nil {
			return result, fmt.Errorf("failed to write stocks %d-%d: %w", start, end, err)
		}
		s.logger.Debug().Int("progress", end).Int("of", len(stocks)).Msg("Stocks migrated")
	}

	history, err := s.from.ExportHistory(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to export history: %w", err)
	}
	s.logger.Info().Int("rows", len(history)).Msg("Migrating history")

	n, err := s.to.ImportHistory(ctx, history, BatchSize)
	result.History = n
	if err != nil {
		return result, fmt.Errorf("failed to import history: %w", err)
	}

	s.logger.Info().
		Int("stocks", result.Stocks).
		Int("history", result.History).
		Msg("Migration complete")

	return result, nil
}
