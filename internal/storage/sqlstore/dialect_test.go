package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

func TestPostgresDialect_SQL(t *testing.T) {
	d := PostgresDialect{}

	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t,
		"INSERT INTO stocks (ticker, price, roe_pct) VALUES ($1, $2, $3) ON CONFLICT (ticker) DO UPDATE SET price = EXCLUDED.price, roe_pct = EXCLUDED.roe_pct",
		d.UpsertSQL("stocks", []string{"ticker", "price", "roe_pct"}, "ticker"))
	assert.Equal(t,
		"INSERT INTO stock_history (ticker, date, price) VALUES ($1, $2, $3) ON CONFLICT (ticker, date) DO NOTHING",
		d.InsertIgnoreSQL("stock_history", []string{"ticker", "date", "price"}, []string{"ticker", "date"}))
}

func TestSQLiteDialect_SQL(t *testing.T) {
	d := SQLiteDialect{}

	assert.Equal(t, "INSERT OR REPLACE INTO stocks (ticker, price) VALUES (?, ?)",
		d.UpsertSQL("stocks", []string{"ticker", "price"}, "ticker"))
	assert.Equal(t, "INSERT OR IGNORE INTO stock_history (ticker, date) VALUES (?, ?)",
		d.InsertIgnoreSQL("stock_history", []string{"ticker", "date"}, []string{"ticker", "date"}))
}

func TestPostgresDialect_ColumnNaming(t *testing.T) {
	c := schemas.MustLoad()
	d := PostgresDialect{}

	roe, _ := c.Column("roe")
	price, _ := c.Column("price")
	mcap, _ := c.Column("market_cap")

	assert.Equal(t, "roe_pct", d.ColumnName(roe))
	assert.Equal(t, "price", d.ColumnName(price))
	assert.Equal(t, "DOUBLE PRECISION", d.ColumnType(roe))
	assert.Equal(t, "BIGINT", d.ColumnType(mcap))
}

func TestPostgresDialect_Coerce(t *testing.T) {
	c := schemas.MustLoad()
	d := PostgresDialect{}

	price, _ := c.Column("price")
	mcap, _ := c.Column("market_cap")
	name, _ := c.Column("company_name")

	tests := []struct {
		name string
		col  schemas.Column
		in   models.Value
		want interface{}
	}{
		{"real float", price, models.Float(190.5), 190.5},
		{"real int", price, models.Int(190), 190.0},
		{"real text leading number", price, models.Text("12.5x"), 12.5},
		{"real text negative", price, models.Text("-3.2 est"), -3.2},
		{"real text unreadable", price, models.Text("n/a"), nil},
		{"real absent", price, models.Absent(), nil},
		{"integer int", mcap, models.Int(3_000_000_000), int64(3_000_000_000)},
		{"integer float rounds", mcap, models.Float(2.6), int64(3)},
		{"integer magnitude text", mcap, models.Text("2.95T"), nil},
		{"integer text with separators", mcap, models.Text("1,234,567"), int64(1234567)},
		{"integer text trailing words", mcap, models.Text("12 est"), nil},
		{"text number", name, models.Int(7), "7"},
		{"text text", name, models.Text("Apple Inc"), "Apple Inc"},
		{"text absent", name, models.Absent(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Coerce(tt.col, tt.in))
		})
	}
}

func TestSQLiteDialect_CoerceKeepsValues(t *testing.T) {
	c := schemas.MustLoad()
	mcap, _ := c.Column("market_cap")

	assert.Equal(t, "2.95T", SQLiteDialect{}.Coerce(mcap, models.Text("2.95T")))
	assert.Nil(t, SQLiteDialect{}.Coerce(mcap, models.Absent()))
}
