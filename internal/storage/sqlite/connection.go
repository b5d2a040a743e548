// Package sqlite is the single-file stock storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/storage/sqlstore"
)

// StockStorage is the SQLite implementation of interfaces.StockStorage
type StockStorage struct {
	*sqlstore.Store
	config *common.SQLiteConfig
}

// NewStockStorage opens (creating if needed) the database file and brings
// its schema up to date with the catalog
func NewStockStorage(ctx context.Context, logger arbor.ILogger, config *common.SQLiteConfig, catalog *schemas.Catalog) (*StockStorage, error) {
	if config.Path != ":memory:" {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite registers as "sqlite"
	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)

	s := &StockStorage{
		Store:  sqlstore.New(db, sqlstore.SQLiteDialect{}, catalog, logger),
		config: config,
	}

	if err := s.configure(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("path", config.Path).Msg("SQLite stock database initialized")
	return s, nil
}

func (s *StockStorage) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
	}
	if s.config.CacheSizeMB > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = -%d", s.config.CacheSizeMB*1024))
	}
	if s.config.BusyTimeoutMS > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeoutMS))
	}
	if s.config.WALMode && s.config.Path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.DB().ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Ping verifies the database connection
func (s *StockStorage) Ping(ctx context.Context) error {
	return s.DB().PingContext(ctx)
}
