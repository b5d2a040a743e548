package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/models"
)

const shortlistSchema = `
CREATE TABLE IF NOT EXISTS shortlist (
	ticker VARCHAR(10) PRIMARY KEY,
	added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	added_price NUMERIC
)`

// ShortlistStorage implements interfaces.ShortlistStorage over a table
type ShortlistStorage struct {
	db     *sql.DB
	logger arbor.ILogger
}

// NewShortlistStorage creates the shortlist table when missing. The database
// is shared with the stock storage and is not closed by Close.
func NewShortlistStorage(ctx context.Context, logger arbor.ILogger, db *sql.DB) (*ShortlistStorage, error) {
	if _, err := db.ExecContext(ctx, shortlistSchema); err != nil {
		return nil, fmt.Errorf("failed to create shortlist table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE shortlist ADD COLUMN IF NOT EXISTS added_price NUMERIC"); err != nil {
		return nil, fmt.Errorf("failed to migrate shortlist table: %w", err)
	}
	return &ShortlistStorage{db: db, logger: logger}, nil
}

// List returns every entry ordered by ticker
func (s *ShortlistStorage) List(ctx context.Context) ([]models.ShortlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ticker, added_price, added_at FROM shortlist ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to list shortlist: %w", err)
	}
	defer rows.Close()

	entries := []models.ShortlistEntry{}
	for rows.Next() {
		var (
			entry models.ShortlistEntry
			price sql.NullFloat64
			at    sql.NullTime
		)
		if err := rows.Scan(&entry.Ticker, &price, &at); err != nil {
			return nil, fmt.Errorf("failed to scan shortlist row: %w", err)
		}
		if price.Valid {
			p := price.Float64
			entry.AddedPrice = &p
		}
		if at.Valid {
			t := at.Time
			entry.AddedAt = &t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shortlist: %w", err)
	}
	return entries, nil
}

// Add inserts a ticker. An existing entry keeps its original price and time.
func (s *ShortlistStorage) Add(ctx context.Context, ticker string, price *float64) error {
	var arg interface{}
	if price != nil {
		arg = *price
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO shortlist (ticker, added_price, added_at) VALUES ($1, $2, $3) ON CONFLICT (ticker) DO NOTHING",
		ticker, arg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add %s to shortlist: %w", ticker, err)
	}
	return nil
}

// Remove deletes a ticker
func (s *ShortlistStorage) Remove(ctx context.Context, ticker string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM shortlist WHERE ticker = $1", ticker); err != nil {
		return fmt.Errorf("failed to remove %s from shortlist: %w", ticker, err)
	}
	return nil
}

// Clear removes every entry
func (s *ShortlistStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM shortlist"); err != nil {
		return fmt.Errorf("failed to clear shortlist: %w", err)
	}
	return nil
}

// Close is a no-op; the stock storage owns the database
func (s *ShortlistStorage) Close() error {
	return nil
}
