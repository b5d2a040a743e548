// Package postgres is the server-database backend for stocks and the shortlist.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/storage/sqlstore"
)

// Open connects to the database and verifies the connection
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// StockStorage is the Postgres implementation of interfaces.StockStorage
type StockStorage struct {
	*sqlstore.Store
}

// NewStockStorage wraps an open database and brings its schema up to date
func NewStockStorage(ctx context.Context, logger arbor.ILogger, db *sql.DB, catalog *schemas.Catalog) (*StockStorage, error) {
	s := &StockStorage{Store: sqlstore.New(db, sqlstore.PostgresDialect{}, catalog, logger)}

	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("Postgres stock database initialized")
	return s, nil
}
