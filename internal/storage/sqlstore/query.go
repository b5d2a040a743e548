package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
)

// peerColumns are the columns returned for industry peers
var peerColumns = []string{
	"ticker", "company_name", "price", "market_cap", "pe_ratio", "ps_ratio",
	"profit_margin", "roe", "rsi", "debt_to_equity", "revenue_growth_ttm",
}

type aggregate struct {
	alias  string
	fn     string
	column string
}

var industryAverages = []aggregate{
	{"avg_pe", "AVG", "pe_ratio"},
	{"avg_ps", "AVG", "ps_ratio"},
	{"avg_pb", "AVG", "pb_ratio"},
	{"avg_profit_margin", "AVG", "profit_margin"},
	{"avg_oper_margin", "AVG", "operating_margin"},
	{"avg_gross_margin", "AVG", "gross_margin"},
	{"avg_roe", "AVG", "roe"},
	{"avg_roa", "AVG", "roa"},
	{"avg_roic", "AVG", "roic"},
	{"avg_de", "AVG", "debt_to_equity"},
	{"avg_cr", "AVG", "current_ratio"},
	{"avg_rev_growth", "AVG", "revenue_growth_ttm"},
	{"avg_rsi", "AVG", "rsi"},
	{"avg_beta", "AVG", "beta"},
	{"avg_peg", "AVG", "peg_ratio"},
	{"avg_pfcf", "AVG", "pfcf_ratio"},
}

var industryStats = []aggregate{
	{"avg_pe", "AVG", "pe_ratio"},
	{"avg_ps", "AVG", "ps_ratio"},
	{"avg_pb", "AVG", "pb_ratio"},
	{"avg_profit_margin", "AVG", "profit_margin"},
	{"avg_roe", "AVG", "roe"},
	{"avg_roa", "AVG", "roa"},
	{"avg_de", "AVG", "debt_to_equity"},
	{"avg_rev_growth", "AVG", "revenue_growth_ttm"},
	{"avg_rsi", "AVG", "rsi"},
	{"avg_market_cap", "AVG", "market_cap"},
	{"total_market_cap", "SUM", "market_cap"},
}

func (s *Store) aggregateList(aggs []aggregate) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = fmt.Sprintf("%s(%s) AS %s", a.fn, s.col(a.column), a.alias)
	}
	return strings.Join(parts, ", ")
}

func (s *Store) selectStockColumns() string {
	return strings.Join(s.stockInsertColumns(), ", ")
}

func (s *Store) selectColumns(names []string) string {
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = s.col(n)
	}
	return strings.Join(cols, ", ")
}

// where accumulates AND-ed conditions with dialect placeholders
type where struct {
	d     Dialect
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", w.d.Placeholder(len(w.args)), 1))
}

func (w *where) in(column string, values []string) {
	marks := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		marks[i] = w.d.Placeholder(len(w.args))
	}
	w.conds = append(w.conds, fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ", ")))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// QueryStocks returns every stock matching the filter
func (s *Store) QueryStocks(ctx context.Context, filter models.StockFilter) ([]models.Row, error) {
	if filter.Tickers != nil && len(filter.Tickers) == 0 {
		return []models.Row{}, nil
	}

	w := &where{d: s.dialect}
	if filter.Industry != "" {
		w.add("industry = ?", filter.Industry)
	}
	if filter.Sector != "" {
		w.add("sector = ?", filter.Sector)
	}
	if filter.MinCap != nil {
		w.add(s.col("market_cap")+" >= ?", *filter.MinCap)
	}
	if filter.MaxCap != nil {
		w.add(s.col("market_cap")+" <= ?", *filter.MaxCap)
	}
	if filter.MinRSI != nil {
		w.add(s.col("rsi")+" >= ?", *filter.MinRSI)
	}
	if filter.MaxRSI != nil {
		w.add(s.col("rsi")+" <= ?", *filter.MaxRSI)
	}
	if filter.MinPE != nil {
		w.add(s.col("pe_ratio")+" >= ?", *filter.MinPE)
	}
	if filter.MaxPE != nil {
		w.add(s.col("pe_ratio")+" <= ?", *filter.MaxPE)
	}
	if len(filter.Tickers) > 0 {
		w.in("ticker", filter.Tickers)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s DESC NULLS LAST, ticker",
		s.selectStockColumns(), StocksTable, w, s.col("market_cap"))

	return s.queryRows(ctx, query, w.args...)
}

// GetStock returns one stock row or interfaces.ErrNotFound
func (s *Store) GetStock(ctx context.Context, ticker string) (models.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE ticker = %s",
		s.selectStockColumns(), StocksTable, s.dialect.Placeholder(1))

	rows, err := s.queryRows(ctx, query, ticker)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return rows[0], nil
}

// GetHistory returns the history rows of a ticker ordered by date
func (s *Store) GetHistory(ctx context.Context, ticker string) ([]models.Row, error) {
	cols := append([]string{"id"}, s.historyInsertColumns()...)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE ticker = %s ORDER BY date",
		strings.Join(cols, ", "), HistoryTable, s.dialect.Placeholder(1))
	return s.queryRows(ctx, query, ticker)
}

// GetPeers returns the largest stocks of an industry other than exclude
func (s *Store) GetPeers(ctx context.Context, industry, exclude string, limit int) ([]models.Row, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE industry = %s AND ticker != %s ORDER BY %s DESC NULLS LAST, ticker LIMIT %d",
		s.selectColumns(peerColumns), StocksTable,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.col("market_cap"), limit)
	return s.queryRows(ctx, query, industry, exclude)
}

// GetIndustryAverages averages key ratios over the industry's stocks that have a P/E
func (s *Store) GetIndustryAverages(ctx context.Context, industry string) (models.Row, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) AS peer_count FROM %s WHERE industry = %s AND %s IS NOT NULL",
		s.aggregateList(industryAverages), StocksTable, s.dialect.Placeholder(1), s.col("pe_ratio"))

	rows, err := s.queryRows(ctx, query, industry)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return models.Row{}, nil
	}
	return rows[0], nil
}

// GetIndustryStats returns per-industry counts and averages ordered by total market cap
func (s *Store) GetIndustryStats(ctx context.Context) ([]models.Row, error) {
	query := fmt.Sprintf("SELECT industry, COUNT(*) AS count, %s FROM %s WHERE industry IS NOT NULL GROUP BY industry ORDER BY total_market_cap DESC NULLS LAST, industry",
		s.aggregateList(industryStats), StocksTable)
	return s.queryRows(ctx, query)
}

// ListTickers returns every stored ticker in order
func (s *Store) ListTickers(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, fmt.Sprintf("SELECT ticker FROM %s ORDER BY ticker", StocksTable))
}

// ListIndustries returns the distinct non-empty industries
func (s *Store) ListIndustries(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT industry FROM %s WHERE industry IS NOT NULL AND industry != '' ORDER BY industry", StocksTable))
}

// ListSectors returns the distinct non-empty sectors
func (s *Store) ListSectors(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT sector FROM %s WHERE sector IS NOT NULL AND sector != '' ORDER BY sector", StocksTable))
}

// CountStocks returns the number of current-state rows
func (s *Store) CountStocks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", StocksTable)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stocks: %w", err)
	}
	return n, nil
}

// ExportStocks reads every current-state row as a fixed-width row
func (s *Store) ExportStocks(ctx context.Context) ([]*models.StockRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY ticker", s.selectStockColumns(), StocksTable)

	var out []*models.StockRow
	err := s.scan(ctx, query, nil, func(values []interface{}) {
		row := s.catalog.NewStockRow(asString(values[0]))
		for i := range s.stockCols {
			row.Values[i] = models.ValueOf(driverValue(values[i+1]))
		}
		row.LastUpdated = parseTime(values[len(values)-1])
		out = append(out, row)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExportHistory reads every history row ordered by ticker and date
func (s *Store) ExportHistory(ctx context.Context) ([]*models.HistoryRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY ticker, date",
		strings.Join(s.historyInsertColumns(), ", "), HistoryTable)

	var out []*models.HistoryRow
	err := s.scan(ctx, query, nil, func(values []interface{}) {
		row := s.catalog.NewHistoryRow(asString(values[0]), asString(values[1]))
		for i := range s.historyCols {
			row.Values[i] = models.ValueOf(driverValue(values[i+2]))
		}
		row.ScrapedAt = parseTime(values[len(values)-1])
		out = append(out, row)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	out := []string{}
	err := s.scan(ctx, query, args, func(values []interface{}) {
		out = append(out, asString(values[0]))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// queryRows runs a query and maps each row to API column names
func (s *Store) queryRows(ctx context.Context, query string, args ...interface{}) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = s.APIName(c)
	}

	out := []models.Row{}
	for rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return nil, err
		}
		row := make(models.Row, len(columns))
		for i, name := range names {
			row[name] = driverValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func (s *Store) scan(ctx context.Context, query string, args []interface{}, fn func([]interface{})) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}

	for rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return err
		}
		fn(values)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rows: %w", err)
	}
	return nil
}

func scanValues(rows *sql.Rows, n int) ([]interface{}, error) {
	values := make([]interface{}, n)
	ptrs := make([]interface{}, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

// driverValue normalizes driver output to nil, int64, float64 or string.
// Postgres returns NUMERIC aggregates as []byte.
func driverValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		s := string(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	}
	return v
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}
