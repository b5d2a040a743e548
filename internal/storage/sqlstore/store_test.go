package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

// pctDialect runs the Postgres naming and coercion rules on SQLite
type pctDialect struct {
	SQLiteDialect
}

func (pctDialect) ColumnName(col schemas.Column) string {
	return PostgresDialect{}.ColumnName(col)
}

func (pctDialect) Coerce(col schemas.Column, v models.Value) interface{} {
	return PostgresDialect{}.Coerce(col, v)
}

func newStore(t *testing.T, d Dialect) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	s := New(db, d, schemas.MustLoad(), arbor.NewLogger())
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PercentSuffixIsInvisibleToCallers(t *testing.T) {
	s := newStore(t, pctDialect{})
	ctx := context.Background()
	c := schemas.MustLoad()

	row := c.NewStockRow("AAPL")
	c.SetStock(row, "roe", models.Float(1.5))
	c.SetStock(row, "profit_margin", models.Float(0.24))
	c.SetStock(row, "market_cap", models.Text("2.95T"))
	c.SetStock(row, "industry", models.Text("Consumer Electronics"))
	c.SetStock(row, "pe_ratio", models.Float(30))
	row.LastUpdated = time.Now()
	h := c.HistoryFromStock(row, "2025-03-03")

	_, err := s.SaveSnapshots(ctx, []*models.Snapshot{{Stock: row, History: h}}, 10)
	require.NoError(t, err)

	got, err := s.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got["roe"])
	assert.Equal(t, 0.24, got["profit_margin"])
	assert.Nil(t, got["market_cap"])
	assert.NotContains(t, got, "roe_pct")

	var stored float64
	require.NoError(t, s.DB().QueryRow("SELECT roe_pct FROM stocks WHERE ticker = 'AAPL'").Scan(&stored))
	assert.Equal(t, 1.5, stored)

	avg, err := s.GetIndustryAverages(ctx, "Consumer Electronics")
	require.NoError(t, err)
	assert.Equal(t, 1.5, avg["avg_roe"])

	history, err := s.GetHistory(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0.24, history[0]["profit_margin"])
}

func TestStore_SchemaStatements(t *testing.T) {
	s := New(nil, PostgresDialect{}, schemas.MustLoad(), arbor.NewLogger())

	stmts := s.SchemaStatements()
	require.Len(t, stmts, 10)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS stocks"))
	assert.Contains(t, stmts[0], "roe_pct DOUBLE PRECISION")
	assert.Contains(t, stmts[0], "market_cap BIGINT")
	assert.Contains(t, stmts[1], "id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, stmts[1], "UNIQUE(ticker, date)")
	assert.Contains(t, stmts, "CREATE INDEX IF NOT EXISTS idx_stocks_industry ON stocks(industry)")
}

func TestStore_MigrateIsRepeatable(t *testing.T) {
	s := newStore(t, SQLiteDialect{})
	require.NoError(t, s.Migrate(context.Background()))

	cols, err := s.existingColumns(context.Background(), StocksTable)
	require.NoError(t, err)
	assert.True(t, cols["last_updated"])
	assert.Len(t, cols, len(schemas.MustLoad().StockColumns())+2)
}
