package stocks

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
	"github.com/ternarybob/screener/internal/services/shortlist"
	"github.com/ternarybob/screener/internal/storage/sqlite"
)

type memoryShortlist struct {
	entries map[string]models.ShortlistEntry
}

func (m *memoryShortlist) List(ctx context.Context) ([]models.ShortlistEntry, error) {
	out := make([]models.ShortlistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (m *memoryShortlist) Add(ctx context.Context, ticker string, price *float64) error {
	if _, ok := m.entries[ticker]; !ok {
		m.entries[ticker] = models.ShortlistEntry{Ticker: ticker, AddedPrice: price}
	}
	return nil
}

func (m *memoryShortlist) Remove(ctx context.Context, ticker string) error {
	delete(m.entries, ticker)
	return nil
}

func (m *memoryShortlist) Clear(ctx context.Context) error {
	m.entries = make(map[string]models.ShortlistEntry)
	return nil
}

func (m *memoryShortlist) Close() error { return nil }

type stubQuotes struct {
	quote   *models.Quote
	err     error
	history *models.PriceHistory
}

func (q *stubQuotes) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	return q.quote, q.err
}

func (q *stubQuotes) PriceHistory(ctx context.Context, ticker, period string) (*models.PriceHistory, error) {
	return q.history, q.err
}

type fixture struct {
	svc       *Service
	shortlist *shortlist.Service
}

func newFixture(t *testing.T, quotes interfaces.QuoteProvider) *fixture {
	t.Helper()
	ctx := context.Background()
	catalog := schemas.MustLoad()
	logger := arbor.NewLogger()

	store, err := sqlite.NewStockStorage(ctx, logger, &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "stocks.db"),
		BusyTimeoutMS: 5000,
		WALMode:       true,
	}, catalog)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	at := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	seed := func(ticker string, fields map[string]models.Value) *models.Snapshot {
		row := catalog.NewStockRow(ticker)
		for name, v := range fields {
			catalog.SetStock(row, name, v)
		}
		row.LastUpdated = at
		h := catalog.HistoryFromStock(row, "2025-03-03")
		h.ScrapedAt = at
		return &models.Snapshot{Stock: row, History: h}
	}
	_, err = store.SaveSnapshots(ctx, []*models.Snapshot{
		seed("AAPL", map[string]models.Value{
			"company_name": models.Text("Apple Inc"), "industry": models.Text("Tech"), "sector": models.Text("Technology"),
			"market_cap": models.Int(3_000_000_000_000), "pe_ratio": models.Float(30), "price": models.Float(190.5), "prev_close": models.Float(188),
		}),
		seed("MSFT", map[string]models.Value{
			"company_name": models.Text("Microsoft"), "industry": models.Text("Tech"), "sector": models.Text("Technology"),
			"market_cap": models.Int(2_800_000_000_000), "pe_ratio": models.Float(34), "price": models.Float(410),
		}),
		seed("XOM", map[string]models.Value{
			"company_name": models.Text("Exxon"), "industry": models.Text("Oil"), "sector": models.Text("Energy"),
			"market_cap": models.Int(450_000_000_000), "pe_ratio": models.Float(12), "price": models.Float(110),
		}),
	}, 100)
	require.NoError(t, err)

	sl := shortlist.NewService(&memoryShortlist{entries: map[string]models.ShortlistEntry{}}, logger)
	return &fixture{
		svc:       NewService(store, sl, quotes, catalog, logger),
		shortlist: sl,
	}
}

func TestList_FlagsShortlisted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.shortlist.Update(ctx, "MSFT", shortlist.ActionAdd, nil)
	require.NoError(t, err)

	rows, err := f.svc.List(ctx, models.StockFilter{}, false)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "AAPL", rows[0]["ticker"])
	assert.Equal(t, false, rows[0]["_shortlisted"])
	assert.Equal(t, true, rows[1]["_shortlisted"])

	rows, err = f.svc.List(ctx, models.StockFilter{}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "MSFT", rows[0]["ticker"])
}

func TestList_ShortlistOnlyEmpty(t *testing.T) {
	f := newFixture(t, nil)

	rows, err := f.svc.List(context.Background(), models.StockFilter{}, true)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestDetail_StoredPriceFallback(t *testing.T) {
	f := newFixture(t, nil)

	data, err := f.svc.Detail(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc", data["company_name"])
	assert.Len(t, data["history"], 1)

	peers := data["peers"].([]models.Row)
	require.Len(t, peers, 1)
	assert.Equal(t, "MSFT", peers[0]["ticker"])

	averages := data["industry_averages"].(models.Row)
	assert.Equal(t, 32.0, averages["avg_pe"])
	assert.EqualValues(t, 2, averages["peer_count"])

	assert.Equal(t, false, data["_shortlisted"])
	assert.Equal(t, 190.5, data["live_price"])
	assert.Equal(t, 188.0, data["live_prev_close"])
	assert.Nil(t, data["live_change"])
	assert.Equal(t, SourceStored, data["price_source"])
}

func TestDetail_LiveQuote(t *testing.T) {
	price, prev, change, pct := 191.0, 190.0, 1.0, 0.53
	f := newFixture(t, &stubQuotes{quote: &models.Quote{Price: &price, PrevClose: &prev, Change: &change, ChangePct: &pct, Source: "live"}})

	data, err := f.svc.Detail(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, &price, data["live_price"])
	assert.Equal(t, &change, data["live_change"])
	assert.Equal(t, "live", data["price_source"])
}

func TestDetail_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Detail(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestQuote_FallsBackToStoredPrice(t *testing.T) {
	f := newFixture(t, &stubQuotes{err: errors.New("upstream down")})
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.5, *q.Price)
	assert.Equal(t, 2.5, *q.Change)
	assert.Equal(t, 1.33, *q.ChangePct)
	assert.Equal(t, SourceStored, q.Source)

	// no previous close: no change
	q, err = f.svc.Quote(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, q.PrevClose)
	assert.Nil(t, q.Change)

	_, err = f.svc.Quote(ctx, "ZZZZ")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestPriceHistory_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.PriceHistory(context.Background(), "AAPL", "1M")
	assert.ErrorIs(t, err, ErrQuotesDisabled)
	assert.False(t, f.svc.QuotesEnabled())
}

func TestMeta(t *testing.T) {
	f := newFixture(t, nil)

	meta, err := f.svc.Meta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Oil", "Tech"}, meta.Industries)
	assert.Equal(t, []string{"Energy", "Technology"}, meta.Sectors)
	assert.Equal(t, 3, meta.TotalStocks)
	assert.Equal(t, "identity", meta.GroupOrder[0])
	assert.Contains(t, meta.ColumnMeta, "pe_ratio")
}

func TestIndustryStats(t *testing.T) {
	f := newFixture(t, nil)

	stats, err := f.svc.IndustryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Tech", stats[0]["industry"])
	assert.EqualValues(t, 2, stats[0]["count"])
}

func TestStoredQuote_ZeroPrice(t *testing.T) {
	q := StoredQuote(models.Row{"price": 0.0, "prev_close": 5.0})
	assert.Nil(t, q.Change)
	assert.Nil(t, q.ChangePct)
	assert.Equal(t, 0.0, *q.Price)
}
