package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

func newTestStorage(t *testing.T) *StockStorage {
	t.Helper()
	config := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "stocks.db"),
		BusyTimeoutMS: 5000,
		CacheSizeMB:   8,
		WALMode:       true,
	}
	s, err := NewStockStorage(context.Background(), arbor.NewLogger(), config, schemas.MustLoad())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshot(ticker, date string, at time.Time, fields map[string]models.Value) *models.Snapshot {
	c := schemas.MustLoad()
	row := c.NewStockRow(ticker)
	for name, v := range fields {
		c.SetStock(row, name, v)
	}
	row.LastUpdated = at
	h := c.HistoryFromStock(row, date)
	h.ScrapedAt = at
	return &models.Snapshot{Stock: row, History: h}
}

func TestSaveSnapshots_HistoryIsAppendOnly(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	first := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)

	n, err := s.SaveSnapshots(ctx, []*models.Snapshot{
		snapshot("AAPL", "2025-03-03", first, map[string]models.Value{"price": models.Float(10)}),
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// same day again: current state replaced, history kept
	_, err = s.SaveSnapshots(ctx, []*models.Snapshot{
		snapshot("AAPL", "2025-03-03", first.Add(time.Hour), map[string]models.Value{"price": models.Float(11)}),
	}, 100)
	require.NoError(t, err)

	stock, err := s.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 11.0, stock["price"])
	assert.Equal(t, "2025-03-03T07:00:00Z", stock["last_updated"])

	history, err := s.GetHistory(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 10.0, history[0]["price"])
	assert.Equal(t, "2025-03-03", history[0]["date"])

	// next day appends
	_, err = s.SaveSnapshots(ctx, []*models.Snapshot{
		snapshot("AAPL", "2025-03-04", first.Add(24*time.Hour), map[string]models.Value{"price": models.Float(12)}),
	}, 100)
	require.NoError(t, err)

	history, err = s.GetHistory(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-03-04", history[1]["date"])
	assert.Equal(t, 12.0, history[1]["price"])
}

func TestSaveSnapshots_CommitsInBatches(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var snaps []*models.Snapshot
	for _, ticker := range []string{"A", "B", "C", "D", "E"} {
		snaps = append(snaps, snapshot(ticker, "2025-03-03", now, map[string]models.Value{"price": models.Float(1)}))
	}

	n, err := s.SaveSnapshots(ctx, snaps, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	count, err := s.CountStocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func seedMarket(t *testing.T, s *StockStorage) {
	t.Helper()
	now := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	snaps := []*models.Snapshot{
		snapshot("AAPL", "2025-03-03", now, map[string]models.Value{
			"company_name": models.Text("Apple Inc"), "sector": models.Text("Technology"),
			"industry": models.Text("Consumer Electronics"), "market_cap": models.Int(3_000_000_000_000),
			"pe_ratio": models.Float(30), "rsi": models.Float(55), "roe": models.Float(1.5),
		}),
		snapshot("MSFT", "2025-03-03", now, map[string]models.Value{
			"company_name": models.Text("Microsoft Corp"), "sector": models.Text("Technology"),
			"industry": models.Text("Software - Infrastructure"), "market_cap": models.Int(2_800_000_000_000),
			"pe_ratio": models.Float(35), "rsi": models.Float(60),
		}),
		snapshot("XOM", "2025-03-03", now, map[string]models.Value{
			"company_name": models.Text("Exxon Mobil"), "sector": models.Text("Energy"),
			"industry": models.Text("Oil & Gas Integrated"), "market_cap": models.Int(400_000_000_000),
			"pe_ratio": models.Float(12), "rsi": models.Float(40),
		}),
		snapshot("HPQ", "2025-03-03", now, map[string]models.Value{
			"company_name": models.Text("HP Inc"), "sector": models.Text("Technology"),
			"industry": models.Text("Consumer Electronics"), "market_cap": models.Int(30_000_000_000),
			"rsi": models.Float(45),
		}),
	}
	_, err := s.SaveSnapshots(context.Background(), snaps, 100)
	require.NoError(t, err)
}

func tickers(rows []models.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["ticker"].(string))
	}
	return out
}

func TestQueryStocks_Filters(t *testing.T) {
	s := newTestStorage(t)
	seedMarket(t, s)
	ctx := context.Background()

	minCap := int64(1_000_000_000_000)
	maxPE := 20.0
	minRSI := 50.0

	tests := []struct {
		name   string
		filter models.StockFilter
		want   []string
	}{
		{"no filter", models.StockFilter{}, []string{"AAPL", "MSFT", "XOM", "HPQ"}},
		{"sector", models.StockFilter{Sector: "Technology"}, []string{"AAPL", "MSFT", "HPQ"}},
		{"industry", models.StockFilter{Industry: "Consumer Electronics"}, []string{"AAPL", "HPQ"}},
		{"min cap", models.StockFilter{MinCap: &minCap}, []string{"AAPL", "MSFT"}},
		{"max pe skips null", models.StockFilter{MaxPE: &maxPE}, []string{"XOM"}},
		{"min rsi", models.StockFilter{MinRSI: &minRSI}, []string{"AAPL", "MSFT"}},
		{"tickers", models.StockFilter{Tickers: []string{"HPQ", "XOM"}}, []string{"XOM", "HPQ"}},
		{"empty ticker set", models.StockFilter{Tickers: []string{}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.QueryStocks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tickers(rows))
		})
	}
}

func TestGetStock_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetStock(context.Background(), "NOPE")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestPeersAndAverages(t *testing.T) {
	s := newTestStorage(t)
	seedMarket(t, s)
	ctx := context.Background()

	peers, err := s.GetPeers(ctx, "Consumer Electronics", "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"HPQ"}, tickers(peers))
	assert.Contains(t, peers[0], "revenue_growth_ttm")

	// HPQ has no P/E and is left out of the averages
	avg, err := s.GetIndustryAverages(ctx, "Consumer Electronics")
	require.NoError(t, err)
	assert.EqualValues(t, 1, avg["peer_count"])
	assert.Equal(t, 30.0, avg["avg_pe"])
	assert.Equal(t, 1.5, avg["avg_roe"])
	assert.Nil(t, avg["avg_beta"])

	stats, err := s.GetIndustryStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "Consumer Electronics", stats[0]["industry"])
	assert.EqualValues(t, 2, stats[0]["count"])
	assert.EqualValues(t, 3_030_000_000_000, stats[0]["total_market_cap"])
	assert.Equal(t, "Oil & Gas Integrated", stats[2]["industry"])
}

func TestListsAndCount(t *testing.T) {
	s := newTestStorage(t)
	seedMarket(t, s)
	ctx := context.Background()

	industries, err := s.ListIndustries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Consumer Electronics", "Oil & Gas Integrated", "Software - Infrastructure"}, industries)

	sectors, err := s.ListSectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy", "Technology"}, sectors)

	all, err := s.ListTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "HPQ", "MSFT", "XOM"}, all)

	n, err := s.CountStocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMixedTypedValueIsKept(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.SaveSnapshots(ctx, []*models.Snapshot{
		snapshot("BRK-A", "2025-03-03", time.Now(), map[string]models.Value{"market_cap": models.Text("2.95T")}),
	}, 100)
	require.NoError(t, err)

	row, err := s.GetStock(ctx, "BRK-A")
	require.NoError(t, err)
	assert.Equal(t, "2.95T", row["market_cap"])
}

func TestExportImportHistory(t *testing.T) {
	src := newTestStorage(t)
	seedMarket(t, src)
	ctx := context.Background()

	stocks, err := src.ExportStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 4)
	assert.Equal(t, "AAPL", stocks[0].Ticker)
	assert.Equal(t, models.Int(3_000_000_000_000), schemas.MustLoad().GetStock(stocks[0], "market_cap"))
	assert.False(t, stocks[0].LastUpdated.IsZero())

	history, err := src.ExportHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)

	dst := newTestStorage(t)
	n, err := dst.ImportHistory(ctx, history, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// importing again keeps the existing rows
	_, err = dst.ImportHistory(ctx, history, 3)
	require.NoError(t, err)

	again, err := dst.ExportHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 4)
	assert.Equal(t, history[0].Values, again[0].Values)
}

func TestMigrate_AddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	old, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE stocks (ticker TEXT PRIMARY KEY, price REAL)`)
	require.NoError(t, err)
	_, err = old.Exec(`INSERT INTO stocks (ticker, price) VALUES ('AAPL', 190.5)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	config := &common.SQLiteConfig{Path: path}
	s, err := NewStockStorage(context.Background(), arbor.NewLogger(), config, schemas.MustLoad())
	require.NoError(t, err)

	row, err := s.GetStock(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.5, row["price"])
	assert.Contains(t, row, "roe")
	assert.Nil(t, row["roe"])
	require.NoError(t, s.Close())

	// reopening is a no-op
	s, err = NewStockStorage(context.Background(), arbor.NewLogger(), config, schemas.MustLoad())
	require.NoError(t, err)
	defer s.Close()

	versions, err := s.appliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}
