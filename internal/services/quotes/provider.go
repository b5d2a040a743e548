// Package quotes supplies live prices and price history from Yahoo Finance.
package quotes

import (
	"context"
	"fmt"
	"math"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
)

// SourceLive marks a quote that came from the live feed
const SourceLive = "live"

// BarIter walks chart bars; *chart.Iter satisfies it
type BarIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooProvider implements interfaces.QuoteProvider
type YahooProvider struct {
	logger   arbor.ILogger
	now      func() time.Time
	getQuote func(symbol string) (*finance.Quote, error)
	getChart func(params *chart.Params) BarIter
}

// NewYahooProvider creates a provider over the public Yahoo endpoints
func NewYahooProvider(logger arbor.ILogger) *YahooProvider {
	return &YahooProvider{
		logger:   logger,
		now:      time.Now,
		getQuote: quote.Get,
		getChart: func(params *chart.Params) BarIter { return chart.Get(params) },
	}
}

// Quote returns the latest price and previous close. Prices are rounded to
// cents; change is omitted when there is no previous close.
func (p *YahooProvider) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := p.getQuote(ticker)
	if err != nil {
		return nil, fmt.Errorf("quote for %s failed: %w", ticker, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return nil, interfaces.ErrNoPriceData
	}

	return LiveQuote(q.RegularMarketPrice, q.RegularMarketPreviousClose), nil
}

// LiveQuote builds a rounded quote from a price and previous close.
// A zero previous close leaves the change fields nil.
func LiveQuote(price, prevClose float64) *models.Quote {
	out := &models.Quote{
		Price:  ptr(round2(price)),
		Source: SourceLive,
	}
	if prevClose != 0 {
		change := round2(price - prevClose)
		out.PrevClose = ptr(round2(prevClose))
		out.Change = ptr(change)
		out.ChangePct = ptr(round2(change / prevClose * 100))
	}
	return out
}

// PriceHistory returns OHLCV bars for a period plus summary statistics
func (p *YahooProvider) PriceHistory(ctx context.Context, ticker, periodKey string) (*models.PriceHistory, error) {
	period, err := ParsePeriod(periodKey)
	if err != nil {
		return nil, err
	}

	end := p.now()
	start := period.Start(end)
	params := &chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(period.Interval),
	}

	iter := p.getChart(params)
	var points []models.PricePoint
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if point, ok := pricePoint(iter.Bar()); ok {
			points = append(points, point)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("price history for %s failed: %w", ticker, err)
	}
	if len(points) == 0 {
		return nil, interfaces.ErrNoPriceData
	}

	p.logger.Debug().Str("ticker", ticker).Str("period", period.Key).Int("points", len(points)).Msg("Fetched price history")
	return Summarize(ticker, period.Key, points), nil
}

// Summarize computes the summary of a non-empty series
func Summarize(ticker, period string, points []models.PricePoint) *models.PriceHistory {
	first := points[0].Close
	last := points[len(points)-1].Close
	change := round2(last - first)

	h := &models.PriceHistory{
		Ticker:       ticker,
		Period:       period,
		CurrentPrice: last,
		Change:       change,
		High:         points[0].High,
		Low:          points[0].Low,
		DataPoints:   len(points),
		Prices:       points,
	}
	if first != 0 {
		h.ChangePct = round2(change / first * 100)
	}
	for _, pt := range points[1:] {
		h.High = math.Max(h.High, pt.High)
		h.Low = math.Min(h.Low, pt.Low)
	}
	return h
}

// pricePoint converts a bar, dropping the empty bars Yahoo sends for gaps
func pricePoint(bar *finance.ChartBar) (models.PricePoint, bool) {
	if bar == nil || bar.Close.IsZero() {
		return models.PricePoint{}, false
	}
	return models.PricePoint{
		Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC().Format(time.RFC3339),
		Open:      cents(bar.Open),
		High:      cents(bar.High),
		Low:       cents(bar.Low),
		Close:     cents(bar.Close),
		Volume:    int64(bar.Volume),
	}, true
}

func cents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr(f float64) *float64 {
	return &f
}
