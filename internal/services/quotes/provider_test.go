package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
)

type sliceIter struct {
	bars []*finance.ChartBar
	pos  int
	err  error
}

func (s *sliceIter) Next() bool {
	if s.pos >= len(s.bars) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIter) Bar() *finance.ChartBar { return s.bars[s.pos-1] }
func (s *sliceIter) Err() error             { return s.err }

func bar(ts int, open, high, low, close float64, volume int) *finance.ChartBar {
	return &finance.ChartBar{
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Volume:    volume,
		Timestamp: ts,
	}
}

func newTestProvider(q *finance.Quote, qerr error, it BarIter) (*YahooProvider, *chart.Params) {
	p := NewYahooProvider(arbor.NewLogger())
	p.now = func() time.Time { return time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC) }
	p.getQuote = func(string) (*finance.Quote, error) { return q, qerr }

	captured := &chart.Params{}
	p.getChart = func(params *chart.Params) BarIter {
		*captured = *params
		return it
	}
	return p, captured
}

func TestQuote(t *testing.T) {
	p, _ := newTestProvider(&finance.Quote{RegularMarketPrice: 190.456, RegularMarketPreviousClose: 188.0}, nil, nil)

	q, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.46, *q.Price)
	assert.Equal(t, 188.0, *q.PrevClose)
	assert.Equal(t, 2.46, *q.Change)
	assert.Equal(t, 1.31, *q.ChangePct)
	assert.Equal(t, SourceLive, q.Source)
}

func TestQuote_NoData(t *testing.T) {
	p, _ := newTestProvider(&finance.Quote{}, nil, nil)
	_, err := p.Quote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, interfaces.ErrNoPriceData)

	p, _ = newTestProvider(nil, errors.New("boom"), nil)
	_, err = p.Quote(context.Background(), "ZZZZ")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrNoPriceData)
}

func TestLiveQuote_NoPrevClose(t *testing.T) {
	q := LiveQuote(10.004, 0)
	assert.Equal(t, 10.0, *q.Price)
	assert.Nil(t, q.PrevClose)
	assert.Nil(t, q.Change)
	assert.Nil(t, q.ChangePct)
}

func TestPriceHistory(t *testing.T) {
	it := &sliceIter{bars: []*finance.ChartBar{
		bar(1740960000, 100, 105, 99, 100, 1000),
		bar(1740963600, 0, 0, 0, 0, 0),
		bar(1740967200, 101, 112.345, 100, 110, 2000),
		bar(1740970800, 110, 111, 95.5, 105, 1500),
	}}
	p, params := newTestProvider(nil, nil, it)

	h, err := p.PriceHistory(context.Background(), "AAPL", "1w")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", params.Symbol)
	assert.EqualValues(t, "15m", params.Interval)

	assert.Equal(t, "1W", h.Period)
	assert.Equal(t, 3, h.DataPoints)
	assert.Equal(t, 105.0, h.CurrentPrice)
	assert.Equal(t, 5.0, h.Change)
	assert.Equal(t, 5.0, h.ChangePct)
	assert.Equal(t, 112.35, h.High)
	assert.Equal(t, 95.5, h.Low)
	assert.Equal(t, "2025-03-03T00:00:00Z", h.Prices[0].Timestamp)
	assert.Equal(t, int64(2000), h.Prices[1].Volume)
}

func TestPriceHistory_Errors(t *testing.T) {
	p, _ := newTestProvider(nil, nil, &sliceIter{})
	_, err := p.PriceHistory(context.Background(), "AAPL", "2Y")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = p.PriceHistory(context.Background(), "AAPL", "")
	assert.ErrorIs(t, err, interfaces.ErrNoPriceData)

	p, _ = newTestProvider(nil, nil, &sliceIter{err: errors.New("rate limited")})
	_, err = p.PriceHistory(context.Background(), "AAPL", "1D")
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, "1M", p.Key)
	assert.Equal(t, "1h", p.Interval)

	p, err = ParsePeriod("5y")
	require.NoError(t, err)
	assert.Equal(t, "1wk", p.Interval)

	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), mustPeriod(t, "3M").Start(end))

	assert.Equal(t, []string{"1D", "1W", "1M", "3M", "1Y", "5Y"}, PeriodKeys())
}

func mustPeriod(t *testing.T, key string) Period {
	t.Helper()
	p, err := ParsePeriod(key)
	require.NoError(t, err)
	return p
}

func TestSummarize_ZeroFirstClose(t *testing.T) {
	h := Summarize("X", "1D", []models.PricePoint{{Close: 0, High: 1, Low: 0}, {Close: 2, High: 3, Low: 1}})
	assert.Equal(t, 0.0, h.ChangePct)
	assert.Equal(t, 2.0, h.Change)
}
