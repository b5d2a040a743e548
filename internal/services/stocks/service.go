// Package stocks assembles the query API views over the stock storage port,
// the shortlist and the live quote provider.
package stocks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/shortlist"
)

const (
	// SourceStored marks prices taken from the scraped snapshot
	SourceStored = "finviz"

	peerLimit = 10
)

// ErrQuotesDisabled is returned by PriceHistory when no quote provider is configured
var ErrQuotesDisabled = errors.New("live quotes are disabled")

// Meta is the payload of /api/meta
type Meta struct {
	ColumnGroups map[string]schemas.GroupMeta  `json:"column_groups"`
	ColumnMeta   map[string]schemas.ColumnMeta `json:"column_meta"`
	GroupOrder   []string                      `json:"group_order"`
	Industries   []string                      `json:"industries"`
	Sectors      []string                      `json:"sectors"`
	TotalStocks  int                           `json:"total_stocks"`
}

// Service serves stock listings and detail views
type Service struct {
	stocks    interfaces.StockStorage
	shortlist *shortlist.Service
	quotes    interfaces.QuoteProvider
	catalog   *schemas.Catalog
	logger    arbor.ILogger
}

// NewService creates the query service. quotes may be nil when live quotes are disabled.
func NewService(stocks interfaces.StockStorage, shortlist *shortlist.Service, quotes interfaces.QuoteProvider, catalog *schemas.Catalog, logger arbor.ILogger) *Service {
	return &Service{
		stocks:    stocks,
		shortlist: shortlist,
		quotes:    quotes,
		catalog:   catalog,
		logger:    logger,
	}
}

// QuotesEnabled reports whether a live quote provider is configured
func (s *Service) QuotesEnabled() bool {
	return s.quotes != nil
}

// Meta returns the column catalog with the distinct industries and sectors
func (s *Service) Meta(ctx context.Context) (*Meta, error) {
	industries, err := s.stocks.ListIndustries(ctx)
	if err != nil {
		return nil, err
	}
	sectors, err := s.stocks.ListSectors(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.stocks.CountStocks(ctx)
	if err != nil {
		return nil, err
	}

	return &Meta{
		ColumnGroups: s.catalog.GroupMeta(),
		ColumnMeta:   s.catalog.ColumnMeta(),
		GroupOrder:   s.catalog.GroupOrder(),
		Industries:   nonNil(industries),
		Sectors:      nonNil(sectors),
		TotalStocks:  total,
	}, nil
}

// List returns the stocks matching the filter, each flagged with _shortlisted.
// With shortlistOnly set the listing is restricted to the shortlist, and an
// empty shortlist yields an empty listing.
func (s *Service) List(ctx context.Context, filter models.StockFilter, shortlistOnly bool) ([]models.Row, error) {
	listed, err := s.shortlist.Set(ctx)
	if err != nil {
		return nil, err
	}

	if shortlistOnly {
		if len(listed) == 0 {
			return []models.Row{}, nil
		}
		tickers, err := s.shortlist.Tickers(ctx)
		if err != nil {
			return nil, err
		}
		filter.Tickers = tickers
	}

	rows, err := s.stocks.QueryStocks(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		ticker, _ := row["ticker"].(string)
		row["_shortlisted"] = listed[ticker]
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, nil
}

// Detail returns one stock with its history, peers, industry averages and
// live price fields. Unknown tickers return interfaces.ErrNotFound.
func (s *Service) Detail(ctx context.Context, ticker string) (models.Row, error) {
	data, err := s.stocks.GetStock(ctx, ticker)
	if err != nil {
		return nil, err
	}

	history, err := s.stocks.GetHistory(ctx, ticker)
	if err != nil {
		return nil, err
	}
	data["history"] = nonNilRows(history)

	data["peers"] = []models.Row{}
	data["industry_averages"] = models.Row{}
	if industry, _ := data["industry"].(string); industry != "" {
		peers, err := s.stocks.GetPeers(ctx, industry, ticker, peerLimit)
		if err != nil {
			return nil, err
		}
		data["peers"] = nonNilRows(peers)

		averages, err := s.stocks.GetIndustryAverages(ctx, industry)
		if err != nil {
			return nil, err
		}
		data["industry_averages"] = averages
	}

	shortlisted, err := s.shortlist.Contains(ctx, ticker)
	if err != nil {
		return nil, err
	}
	data["_shortlisted"] = shortlisted

	if live := s.liveQuote(ctx, ticker); live != nil {
		data["live_price"] = live.Price
		data["live_change"] = live.Change
		data["live_change_pct"] = live.ChangePct
		data["live_prev_close"] = live.PrevClose
		data["price_source"] = live.Source
	} else {
		data["live_price"] = data["price"]
		data["live_change"] = nil
		data["live_change_pct"] = nil
		data["live_prev_close"] = data["prev_close"]
		data["price_source"] = SourceStored
	}

	return data, nil
}

// Quote returns a live quote, falling back to the stored price and previous
// close. Returns interfaces.ErrNotFound when neither is available.
func (s *Service) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	if live := s.liveQuote(ctx, ticker); live != nil {
		return live, nil
	}

	row, err := s.stocks.GetStock(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return StoredQuote(row), nil
}

// StoredQuote builds a quote from a stock row's scraped price and previous close
func StoredQuote(row models.Row) *models.Quote {
	price, hasPrice := number(row["price"])
	prev, hasPrev := number(row["prev_close"])

	q := &models.Quote{Source: SourceStored}
	if hasPrice {
		q.Price = &price
	}
	if hasPrev {
		q.PrevClose = &prev
	}

	if price != 0 && prev != 0 {
		change := round2(price - prev)
		q.Change = &change
		if change != 0 {
			pct := round2(change / prev * 100)
			q.ChangePct = &pct
		}
	}
	return q
}

// PriceHistory returns the price series of a ticker for a period key
func (s *Service) PriceHistory(ctx context.Context, ticker, period string) (*models.PriceHistory, error) {
	if s.quotes == nil {
		return nil, ErrQuotesDisabled
	}
	return s.quotes.PriceHistory(ctx, ticker, period)
}

// IndustryStats returns per-industry counts and averages
func (s *Service) IndustryStats(ctx context.Context) ([]models.Row, error) {
	rows, err := s.stocks.GetIndustryStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get industry stats: %w", err)
	}
	return nonNilRows(rows), nil
}

// NormalizeTicker trims and upper-cases a ticker from a request path
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// liveQuote returns nil when quotes are disabled or the provider fails
func (s *Service) liveQuote(ctx context.Context, ticker string) *models.Quote {
	if s.quotes == nil {
		return nil
	}
	q, err := s.quotes.Quote(ctx, ticker)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNoPriceData) {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Live quote failed")
		}
		return nil
	}
	return q
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilRows(rows []models.Row) []models.Row {
	if rows == nil {
		return []models.Row{}
	}
	return rows
}
