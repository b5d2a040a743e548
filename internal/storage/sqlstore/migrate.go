package sqlstore

import (
	"context"
	"fmt"
)

// Migrate creates missing tables, adds catalog columns that an older
// database lacks, then creates missing indexes. Columns are never dropped
// or retyped.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.exec(ctx, s.TableStatements()); err != nil {
		return err
	}
	if err := s.EnsureColumns(ctx); err != nil {
		return err
	}
	return s.CreateIndexes(ctx)
}

// CreateIndexes creates the lookup indexes when missing
func (s *Store) CreateIndexes(ctx context.Context) error {
	return s.exec(ctx, s.IndexStatements())
}

// EnsureColumns adds catalog columns missing from existing tables
func (s *Store) EnsureColumns(ctx context.Context) error {
	stock := make(map[string]string, len(s.stockCols))
	for _, col := range s.catalog.StockColumns() {
		stock[s.dialect.ColumnName(col)] = s.dialect.ColumnType(col)
	}
	stock["last_updated"] = "TEXT"
	if err := s.addMissingColumns(ctx, StocksTable, s.stockInsertColumns(), stock); err != nil {
		return err
	}

	history := make(map[string]string, len(s.historyCols))
	for _, col := range s.catalog.HistoryColumns() {
		history[s.dialect.ColumnName(col)] = s.dialect.ColumnType(col)
	}
	history["scraped_at"] = "TEXT"
	return s.addMissingColumns(ctx, HistoryTable, s.historyInsertColumns(), history)
}

func (s *Store) existingColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c] = true
	}
	return out, nil
}

func (s *Store) addMissingColumns(ctx context.Context, table string, ordered []string, types map[string]string) error {
	existing, err := s.existingColumns(ctx, table)
	if err != nil {
		return err
	}

	for _, name := range ordered {
		typ, ok := types[name]
		if !ok || existing[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, typ)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", table, name, err)
		}
		s.logger.Info().Str("table", table).Str("column", name).Msg("Added column")
	}
	return nil
}
