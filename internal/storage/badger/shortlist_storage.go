package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/screener/internal/models"
)

// shortlistRecord is the stored form of a shortlist entry
type shortlistRecord struct {
	Ticker     string `badgerhold:"key"`
	AddedPrice *float64
	AddedAt    time.Time
}

// ShortlistStorage implements interfaces.ShortlistStorage for Badger
type ShortlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewShortlistStorage creates a shortlist over an open database
func NewShortlistStorage(db *BadgerDB, logger arbor.ILogger) *ShortlistStorage {
	return &ShortlistStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// List returns every entry ordered by ticker
func (s *ShortlistStorage) List(ctx context.Context) ([]models.ShortlistEntry, error) {
	var records []shortlistRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list shortlist: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Ticker < records[j].Ticker })

	entries := make([]models.ShortlistEntry, 0, len(records))
	for _, r := range records {
		entry := models.ShortlistEntry{Ticker: r.Ticker, AddedPrice: r.AddedPrice}
		if !r.AddedAt.IsZero() {
			at := r.AddedAt
			entry.AddedAt = &at
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Add inserts a ticker. An existing entry keeps its original price and time.
func (s *ShortlistStorage) Add(ctx context.Context, ticker string, price *float64) error {
	record := shortlistRecord{
		Ticker:     ticker,
		AddedPrice: price,
		AddedAt:    s.now().UTC(),
	}

	err := s.db.Store().Insert(ticker, &record)
	if err == badgerhold.ErrKeyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add %s to shortlist: %w", ticker, err)
	}

	s.logger.Debug().Str("ticker", ticker).Msg("Added to shortlist")
	return nil
}

// Remove deletes a ticker; removing an absent ticker is not an error
func (s *ShortlistStorage) Remove(ctx context.Context, ticker string) error {
	if err := s.db.Store().Delete(ticker, &shortlistRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to remove %s from shortlist: %w", ticker, err)
	}
	return nil
}

// Clear removes every entry
func (s *ShortlistStorage) Clear(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&shortlistRecord{}, nil); err != nil {
		return fmt.Errorf("failed to clear shortlist: %w", err)
	}
	return nil
}

// Close closes the database
func (s *ShortlistStorage) Close() error {
	return s.db.Close()
}
