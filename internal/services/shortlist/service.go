// Package shortlist manages the user's watchlist.
package shortlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
)

// Actions accepted by Update
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionToggle = "toggle"
	// ActionSet replaces the whole shortlist (Bulk only)
	ActionSet = "set"
)

// Service applies shortlist actions over a storage backend
type Service struct {
	storage interfaces.ShortlistStorage
	logger  arbor.ILogger
}

// NewService creates a shortlist service
func NewService(storage interfaces.ShortlistStorage, logger arbor.ILogger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Entries returns the detailed shortlist ordered by ticker
func (s *Service) Entries(ctx context.Context) ([]models.ShortlistEntry, error) {
	entries, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.ShortlistEntry{}
	}
	return entries, nil
}

// Tickers returns the shortlisted tickers ordered by ticker
func (s *Service) Tickers(ctx context.Context) ([]string, error) {
	entries, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make([]string, len(entries))
	for i, e := range entries {
		tickers[i] = e.Ticker
	}
	return tickers, nil
}

// Set returns the shortlist as a lookup set
func (s *Service) Set(ctx context.Context) (map[string]bool, error) {
	tickers, err := s.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		set[t] = true
	}
	return set, nil
}

// Contains reports whether a ticker is shortlisted
func (s *Service) Contains(ctx context.Context, ticker string) (bool, error) {
	set, err := s.Set(ctx)
	if err != nil {
		return false, err
	}
	return set[ticker], nil
}

// Update applies add, remove or toggle (the default) to one ticker and
// returns whether it is shortlisted afterwards. Unknown actions change
// nothing.
func (s *Service) Update(ctx context.Context, ticker, action string, price *float64) (bool, error) {
	current, err := s.Contains(ctx, ticker)
	if err != nil {
		return false, err
	}

	if action == "" {
		action = ActionToggle
	}

	switch {
	case action == ActionAdd || (action == ActionToggle && !current):
		if err := s.storage.Add(ctx, ticker, price); err != nil {
			return current, err
		}
		s.logger.Info().Str("ticker", ticker).Msg("Shortlisted")
		return true, nil
	case action == ActionRemove || (action == ActionToggle && current):
		if err := s.storage.Remove(ctx, ticker); err != nil {
			return current, err
		}
		s.logger.Info().Str("ticker", ticker).Msg("Removed from shortlist")
		return false, nil
	}
	return current, nil
}

// Bulk applies add (the default), remove or set to many tickers. Set clears
// the shortlist first. Bulk adds carry no price.
func (s *Service) Bulk(ctx context.Context, tickers []string, action string) error {
	if action == "" {
		action = ActionAdd
	}

	switch action {
	case ActionAdd:
		return s.addAll(ctx, tickers)
	case ActionRemove:
		for _, t := range tickers {
			if err := s.storage.Remove(ctx, t); err != nil {
				return err
			}
		}
		return nil
	case ActionSet:
		if err := s.storage.Clear(ctx); err != nil {
			return err
		}
		return s.addAll(ctx, tickers)
	}
	return fmt.Errorf("unknown bulk action: %s", action)
}

func (s *Service) addAll(ctx context.Context, tickers []string) error {
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if err := s.storage.Add(ctx, t, nil); err != nil {
			return err
		}
	}
	return nil
}
