// Package storage builds the configured stock and shortlist backends.
package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/storage/badger"
	"github.com/ternarybob/screener/internal/storage/postgres"
	"github.com/ternarybob/screener/internal/storage/sqlite"
)

// Storages is the pair of stores used by the services
type Storages struct {
	Stocks    interfaces.StockStorage
	Shortlist interfaces.ShortlistStorage
}

// Close closes the shortlist before the stock database it may share
func (s *Storages) Close() error {
	var first error
	if s.Shortlist != nil {
		if err := s.Shortlist.Close(); err != nil {
			first = err
		}
	}
	if s.Stocks != nil {
		if err := s.Stocks.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewStockStorage opens only the stock backend, for the CLI commands that
// never touch the shortlist
func NewStockStorage(ctx context.Context, logger arbor.ILogger, config *common.StorageConfig, catalog *schemas.Catalog) (interfaces.StockStorage, error) {
	switch config.Backend {
	case common.BackendPostgres:
		db, err := postgres.Open(ctx, config.Postgres.URL)
		if err != nil {
			return nil, err
		}
		s, err := postgres.NewStockStorage(ctx, logger, db, catalog)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	case common.BackendSQLite, "":
		return sqlite.NewStockStorage(ctx, logger, &config.SQLite, catalog)
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
}

// NewStorages opens the stock backend and the shortlist that goes with it:
// a table in Postgres, or a Badger directory next to SQLite
func NewStorages(ctx context.Context, logger arbor.ILogger, config *common.StorageConfig, catalog *schemas.Catalog) (*Storages, error) {
	switch config.Backend {
	case common.BackendPostgres:
		db, err := postgres.Open(ctx, config.Postgres.URL)
		if err != nil {
			return nil, err
		}
		stocks, err := postgres.NewStockStorage(ctx, logger, db, catalog)
		if err != nil {
			db.Close()
			return nil, err
		}
		shortlist, err := postgres.NewShortlistStorage(ctx, logger, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Storages{Stocks: stocks, Shortlist: shortlist}, nil

	case common.BackendSQLite, "":
		stocks, err := sqlite.NewStockStorage(ctx, logger, &config.SQLite, catalog)
		if err != nil {
			return nil, err
		}
		kv, err := badger.NewBadgerDB(logger, &config.Badger)
		if err != nil {
			stocks.Close()
			return nil, err
		}
		return &Storages{Stocks: stocks, Shortlist: badger.NewShortlistStorage(kv, logger)}, nil
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
}
