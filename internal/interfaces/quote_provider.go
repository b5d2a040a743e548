package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/screener/internal/models"
)

// ErrNoPriceData is returned when a quote source has nothing for a ticker
var ErrNoPriceData = errors.New("no price data")

// QuoteProvider supplies live quotes and price history
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*models.Quote, error)
	PriceHistory(ctx context.Context, ticker, period string) (*models.PriceHistory, error)
}
