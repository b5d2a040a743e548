package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/screener/internal/models"
)

// ErrNotFound is returned when a ticker has no current-state row
var ErrNotFound = errors.New("not found")

// StockStorage is the storage port for current-state and history rows.
// Rows read back are keyed by API column names regardless of backend.
type StockStorage interface {
	// SaveSnapshots upserts the current-state row of every snapshot and
	// inserts its history row unless one exists for (ticker, date).
	// A commit is issued every commitEvery snapshots and once at the end.
	// Returns the number of snapshots written.
	SaveSnapshots(ctx context.Context, snaps []*models.Snapshot, commitEvery int) (int, error)

	ListTickers(ctx context.Context) ([]string, error)
	CountStocks(ctx context.Context) (int, error)
	ListIndustries(ctx context.Context) ([]string, error)
	ListSectors(ctx context.Context) ([]string, error)

	// QueryStocks returns rows matching every set filter, ordered by market
	// cap descending with nulls last
	QueryStocks(ctx context.Context, filter models.StockFilter) ([]models.Row, error)

	// GetStock returns ErrNotFound for unknown tickers
	GetStock(ctx context.Context, ticker string) (models.Row, error)
	GetHistory(ctx context.Context, ticker string) ([]models.Row, error)
	GetPeers(ctx context.Context, industry, exclude string, limit int) ([]models.Row, error)
	GetIndustryAverages(ctx context.Context, industry string) (models.Row, error)
	GetIndustryStats(ctx context.Context) ([]models.Row, error)

	// ExportStocks and ExportHistory read whole tables for migration
	ExportStocks(ctx context.Context) ([]*models.StockRow, error)
	ExportHistory(ctx context.Context) ([]*models.HistoryRow, error)
	// ImportHistory inserts history rows, ignoring existing (ticker, date) pairs
	ImportHistory(ctx context.Context, rows []*models.HistoryRow, commitEvery int) (int, error)

	Close() error
}
