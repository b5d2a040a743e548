package sqlstore

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

// Dialect captures what differs between the SQL backends: placeholders,
// storage column names, DDL types, conflict handling and value coercion.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder(n int) string
	// ColumnName returns the storage name of a catalog column
	ColumnName(col schemas.Column) string
	// ColumnType returns the DDL type of a catalog column
	ColumnType(col schemas.Column) string
	// HistoryIDColumn returns the surrogate key definition of the history table
	HistoryIDColumn() string
	// UpsertSQL replaces the whole row keyed by conflict
	UpsertSQL(table string, columns []string, conflict string) string
	// InsertIgnoreSQL inserts unless a row with the same conflict key exists
	InsertIgnoreSQL(table string, columns []string, conflict []string) string
	// Coerce converts a value into a driver argument for a column
	Coerce(col schemas.Column, v models.Value) interface{}
}

func placeholders(d Dialect, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

// SQLiteDialect stores plain column names and keeps mixed-typed values as-is
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) ColumnName(col schemas.Column) string { return col.Name }

func (SQLiteDialect) ColumnType(col schemas.Column) string {
	switch col.Type {
	case schemas.TypeReal:
		return "REAL"
	case schemas.TypeInteger:
		return "INTEGER"
	}
	return "TEXT"
}

func (SQLiteDialect) HistoryIDColumn() string {
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d SQLiteDialect) UpsertSQL(table string, columns []string, _ string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)))
}

func (d SQLiteDialect) InsertIgnoreSQL(table string, columns []string, _ []string) string {
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)))
}

func (SQLiteDialect) Coerce(_ schemas.Column, v models.Value) interface{} {
	return v.Interface()
}

// PctSuffix is appended to percentage columns in the Postgres schema
const PctSuffix = "_pct"

var leadingNumber = regexp.MustCompile(`^(-?\d+\.?\d*)`)

// PostgresDialect suffixes percentage columns with _pct and enforces column
// types: text in a numeric column becomes its leading number or NULL.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (PostgresDialect) ColumnName(col schemas.Column) string {
	if col.PGPercent {
		return col.Name + PctSuffix
	}
	return col.Name
}

func (PostgresDialect) ColumnType(col schemas.Column) string {
	switch col.Type {
	case schemas.TypeReal:
		return "DOUBLE PRECISION"
	case schemas.TypeInteger:
		return "BIGINT"
	}
	return "TEXT"
}

func (PostgresDialect) HistoryIDColumn() string {
	return "id BIGSERIAL PRIMARY KEY"
}

func (d PostgresDialect) UpsertSQL(table string, columns []string, conflict string) string {
	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == conflict {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)), conflict, strings.Join(updates, ", "))
}

func (d PostgresDialect) InsertIgnoreSQL(table string, columns []string, conflict []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)), strings.Join(conflict, ", "))
}

func (PostgresDialect) Coerce(col schemas.Column, v models.Value) interface{} {
	switch col.Type {
	case schemas.TypeReal:
		if f, ok := numericValue(v); ok {
			return f
		}
		return nil
	case schemas.TypeInteger:
		if v.Kind == models.KindInt {
			return v.Int
		}
		if f, ok := integerValue(v); ok {
			return int64(math.Round(f))
		}
		return nil
	}

	if v.IsAbsent() {
		return nil
	}
	return v.String()
}

// integerValue reads a number for an integer column. Text must be a whole
// number apart from thousands separators: the leading number of a
// magnitude string like "2.95T" is off by the magnitude, so it is dropped.
func integerValue(v models.Value) (float64, bool) {
	f, ok := v.Number()
	if v.Kind == models.KindText {
		var err error
		f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.Text), ",", ""), 64)
		ok = err == nil
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return f, true
}

// numericValue reads a number from a value, taking the leading number of text
func numericValue(v models.Value) (float64, bool) {
	if f, ok := v.Number(); ok {
		return f, true
	}
	if v.Kind != models.KindText {
		return 0, false
	}
	m := leadingNumber.FindString(strings.TrimSpace(v.Text))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
