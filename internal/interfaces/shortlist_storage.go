package interfaces

import (
	"context"

	"github.com/ternarybob/screener/internal/models"
)

// ShortlistStorage persists the user's watchlist
type ShortlistStorage interface {
	// List returns entries ordered by ticker
	List(ctx context.Context) ([]models.ShortlistEntry, error)
	// Add is a no-op when the ticker is already present
	Add(ctx context.Context, ticker string, price *float64) error
	Remove(ctx context.Context, ticker string) error
	Clear(ctx context.Context) error
	Close() error
}
