// Package sqlstore implements the stock storage port over database/sql.
// The SQLite and Postgres adapters share it and differ only by Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

const (
	StocksTable  = "stocks"
	HistoryTable = "stock_history"

	// DefaultCommitEvery is used when a caller passes a non-positive batch size
	DefaultCommitEvery = 500
)

// Store is the shared SQL implementation of interfaces.StockStorage
type Store struct {
	db      *sql.DB
	dialect Dialect
	catalog *schemas.Catalog
	logger  arbor.ILogger

	stockCols   []string          // storage names in catalog order
	historyCols []string          // storage names in catalog order
	apiNames    map[string]string // storage name -> API name
}

// New creates a store over an open database
func New(db *sql.DB, dialect Dialect, catalog *schemas.Catalog, logger arbor.ILogger) *Store {
	s := &Store{
		db:       db,
		dialect:  dialect,
		catalog:  catalog,
		logger:   logger,
		apiNames: make(map[string]string),
	}

	for _, col := range catalog.StockColumns() {
		name := dialect.ColumnName(col)
		s.stockCols = append(s.stockCols, name)
		s.apiNames[name] = col.Name
	}
	for _, col := range catalog.HistoryColumns() {
		s.historyCols = append(s.historyCols, dialect.ColumnName(col))
	}

	return s
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// col returns the storage name for an API column name
func (s *Store) col(name string) string {
	c, ok := s.catalog.Column(name)
	if !ok {
		return name
	}
	return s.dialect.ColumnName(c)
}

// APIName maps a storage column name back to its API name
func (s *Store) APIName(storage string) string {
	if name, ok := s.apiNames[storage]; ok {
		return name
	}
	return storage
}

// TableStatements returns the DDL of the stocks and history tables
func (s *Store) TableStatements() []string {
	var stock strings.Builder
	fmt.Fprintf(&stock, "CREATE TABLE IF NOT EXISTS %s (\n\tticker TEXT PRIMARY KEY", StocksTable)
	for _, col := range s.catalog.StockColumns() {
		fmt.Fprintf(&stock, ",\n\t%s %s", s.dialect.ColumnName(col), s.dialect.ColumnType(col))
	}
	stock.WriteString(",\n\tlast_updated TEXT\n)")

	var history strings.Builder
	fmt.Fprintf(&history, "CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tticker TEXT NOT NULL,\n\tdate TEXT NOT NULL",
		HistoryTable, s.dialect.HistoryIDColumn())
	for _, col := range s.catalog.HistoryColumns() {
		fmt.Fprintf(&history, ",\n\t%s %s", s.dialect.ColumnName(col), s.dialect.ColumnType(col))
	}
	history.WriteString(",\n\tscraped_at TEXT,\n\tUNIQUE(ticker, date)\n)")

	return []string{stock.String(), history.String()}
}

// IndexStatements returns the DDL of the lookup indexes
func (s *Store) IndexStatements() []string {
	var stmts []string
	for _, name := range []string{"sector", "industry", "market_cap", "pe_ratio", "rsi", "price"} {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			StocksTable, name, StocksTable, s.col(name)))
	}
	return append(stmts,
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_history_ticker ON %s(ticker)", HistoryTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_history_date ON %s(date)", HistoryTable),
	)
}

// SchemaStatements returns the full DDL for an empty database
func (s *Store) SchemaStatements() []string {
	return append(s.TableStatements(), s.IndexStatements()...)
}

// CreateSchema creates the tables and indexes when missing
func (s *Store) CreateSchema(ctx context.Context) error {
	return s.exec(ctx, s.SchemaStatements())
}

func (s *Store) exec(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) stockInsertColumns() []string {
	cols := make([]string, 0, len(s.stockCols)+2)
	cols = append(cols, "ticker")
	cols = append(cols, s.stockCols...)
	return append(cols, "last_updated")
}

func (s *Store) historyInsertColumns() []string {
	cols := make([]string, 0, len(s.historyCols)+3)
	cols = append(cols, "ticker", "date")
	cols = append(cols, s.historyCols...)
	return append(cols, "scraped_at")
}

func (s *Store) stockArgs(row *models.StockRow) []interface{} {
	args := make([]interface{}, 0, len(s.stockCols)+2)
	args = append(args, row.Ticker)
	for i, col := range s.catalog.StockColumns() {
		v := models.Absent()
		if i < len(row.Values) {
			v = row.Values[i]
		}
		args = append(args, s.dialect.Coerce(col, v))
	}
	return append(args, formatTime(row.LastUpdated))
}

func (s *Store) historyArgs(row *models.HistoryRow) []interface{} {
	args := make([]interface{}, 0, len(s.historyCols)+3)
	args = append(args, row.Ticker, row.Date)
	for i, col := range s.catalog.HistoryColumns() {
		v := models.Absent()
		if i < len(row.Values) {
			v = row.Values[i]
		}
		args = append(args, s.dialect.Coerce(col, v))
	}
	return append(args, formatTime(row.ScrapedAt))
}

// batch runs fn for n items inside transactions committed every commitEvery items
func (s *Store) batch(ctx context.Context, n, commitEvery int, prepare func(tx *sql.Tx) (func(i int) error, func(), error)) (int, error) {
	if commitEvery <= 0 {
		commitEvery = DefaultCommitEvery
	}

	written := 0
	for start := 0; start < n; start += commitEvery {
		end := start + commitEvery
		if end > n {
			end = n
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return written, fmt.Errorf("failed to begin transaction: %w", err)
		}

		exec, done, err := prepare(tx)
		if err != nil {
			_ = tx.Rollback()
			return written, err
		}

		for i := start; i < end; i++ {
			if err := exec(i); err != nil {
				done()
				_ = tx.Rollback()
				return written, err
			}
		}
		done()

		if err := tx.Commit(); err != nil {
			return written, fmt.Errorf("failed to commit transaction: %w", err)
		}
		written = end

		s.logger.Debug().Int("written", written).Int("total", n).Msg("Committed batch")
	}

	return written, nil
}

// SaveSnapshots writes current-state rows (whole-row replace) and history
// rows (first write per ticker and date wins)
func (s *Store) SaveSnapshots(ctx context.Context, snaps []*models.Snapshot, commitEvery int) (int, error) {
	stockSQL := s.dialect.UpsertSQL(StocksTable, s.stockInsertColumns(), "ticker")
	historySQL := s.dialect.InsertIgnoreSQL(HistoryTable, s.historyInsertColumns(), []string{"ticker", "date"})

	return s.batch(ctx, len(snaps), commitEvery, func(tx *sql.Tx) (func(int) error, func(), error) {
		stockStmt, err := tx.PrepareContext(ctx, stockSQL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to prepare stock upsert: %w", err)
		}
		historyStmt, err := tx.PrepareContext(ctx, historySQL)
		if err != nil {
			stockStmt.Close()
			return nil, nil, fmt.Errorf("failed to prepare history insert: %w", err)
		}

		exec := func(i int) error {
			snap := snaps[i]
			if snap == nil || snap.Stock == nil {
				return nil
			}
			if _, err := stockStmt.ExecContext(ctx, s.stockArgs(snap.Stock)...); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", snap.Stock.Ticker, err)
			}
			if snap.History != nil {
				if _, err := historyStmt.ExecContext(ctx, s.historyArgs(snap.History)...); err != nil {
					return fmt.Errorf("failed to insert history for %s: %w", snap.History.Ticker, err)
				}
			}
			return nil
		}
		done := func() {
			stockStmt.Close()
			historyStmt.Close()
		}
		return exec, done, nil
	})
}

// ImportHistory inserts history rows, keeping rows that already exist
func (s *Store) ImportHistory(ctx context.Context, rows []*models.HistoryRow, commitEvery int) (int, error) {
	historySQL := s.dialect.InsertIgnoreSQL(HistoryTable, s.historyInsertColumns(), []string{"ticker", "date"})

	return s.batch(ctx, len(rows), commitEvery, func(tx *sql.Tx) (func(int) error, func(), error) {
		stmt, err := tx.PrepareContext(ctx, historySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to prepare history insert: %w", err)
		}
		exec := func(i int) error {
			if rows[i] == nil {
				return nil
			}
			if _, err := stmt.ExecContext(ctx, s.historyArgs(rows[i])...); err != nil {
				return fmt.Errorf("failed to insert history for %s: %w", rows[i].Ticker, err)
			}
			return nil
		}
		return exec, func() { stmt.Close() }, nil
	})
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v interface{}) time.Time {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case time.Time:
		return t
	default:
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
