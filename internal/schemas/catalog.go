package schemas

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/screener/internal/models"
)

// ColumnType is the storage type of a column
type ColumnType string

const (
	TypeReal    ColumnType = "real"
	TypeInteger ColumnType = "integer"
	TypeText    ColumnType = "text"
)

// Column describes one stock column
type Column struct {
	Name      string     `yaml:"name"`
	Type      ColumnType `yaml:"type"`
	Label     string     `yaml:"label"`
	Format    string     `yaml:"fmt"`
	Keys      []string   `yaml:"keys"`
	PGPercent bool       `yaml:"pg_pct"`
	History   bool       `yaml:"history"`
	Key       bool       `yaml:"key"`
	Group     string     `yaml:"-"`
}

// Numeric reports whether the column holds numbers
func (c Column) Numeric() bool {
	return c.Type == TypeReal || c.Type == TypeInteger
}

// Group is a display group of columns
type Group struct {
	ID      string   `yaml:"id"`
	Label   string   `yaml:"label"`
	Columns []Column `yaml:"columns"`
}

// GroupMeta is the API view of a group
type GroupMeta struct {
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
}

// ColumnMeta is the API view of a column
type ColumnMeta struct {
	Label  string `json:"label"`
	Format string `json:"fmt"`
}

// Catalog is the immutable column catalog shared by the loader, the storage
// adapters and the API. Build it once with Load and pass it by pointer.
type Catalog struct {
	groups       []Group
	all          []Column
	stock        []Column
	history      []Column
	byName       map[string]Column
	byKey        map[string]string
	stockIndex   map[string]int
	historyIndex map[string]int
}

type catalogFile struct {
	Groups []Group `yaml:"groups"`
}

var (
	defaultCatalog *Catalog
	defaultErr     error
	defaultOnce    sync.Once
)

// Load returns the catalog built from the embedded columns.yaml
func Load() (*Catalog, error) {
	defaultOnce.Do(func() {
		data, err := GetSchema("columns.yaml")
		if err != nil {
			defaultErr = fmt.Errorf("failed to read column catalog: %w", err)
			return
		}
		defaultCatalog, defaultErr = Parse(data)
	})
	return defaultCatalog, defaultErr
}

// MustLoad is Load for callers that cannot recover from a broken embed
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse column catalog: %w", err)
	}

	c := &Catalog{
		byName:       make(map[string]Column),
		byKey:        make(map[string]string),
		stockIndex:   make(map[string]int),
		historyIndex: make(map[string]int),
	}

	for gi := range file.Groups {
		group := &file.Groups[gi]
		for ci := range group.Columns {
			col := &group.Columns[ci]
			col.Group = group.ID

			if col.Name == "" {
				return nil, fmt.Errorf("column %d of group %s has no name", ci, group.ID)
			}
			switch col.Type {
			case TypeReal, TypeInteger, TypeText:
			default:
				return nil, fmt.Errorf("column %s has unknown type %q", col.Name, col.Type)
			}
			if _, exists := c.byName[col.Name]; exists {
				return nil, fmt.Errorf("duplicate column %s", col.Name)
			}

			c.byName[col.Name] = *col
			c.all = append(c.all, *col)

			for _, key := range col.Keys {
				if other, exists := c.byKey[key]; exists {
					return nil, fmt.Errorf("key %s maps to both %s and %s", key, other, col.Name)
				}
				c.byKey[key] = col.Name
			}

			if col.Key {
				continue
			}
			c.stockIndex[col.Name] = len(c.stock)
			c.stock = append(c.stock, *col)

			if col.History {
				c.historyIndex[col.Name] = len(c.history)
				c.history = append(c.history, *col)
			}
		}
	}
	c.groups = file.Groups

	return c, nil
}

// StockColumns returns the current-state data columns in order (ticker excluded)
func (c *Catalog) StockColumns() []Column {
	return c.stock
}

// HistoryColumns returns the history metric columns in order
func (c *Catalog) HistoryColumns() []Column {
	return c.history
}

// Column returns a column by name
func (c *Catalog) Column(name string) (Column, bool) {
	col, ok := c.byName[name]
	return col, ok
}

// ColumnForKey translates a normalized scrape key to its column name.
// Unknown keys return false and are dropped by the loader.
func (c *Catalog) ColumnForKey(key string) (string, bool) {
	name, ok := c.byKey[key]
	return name, ok
}

// StockIndex returns the position of a column in StockRow.Values
func (c *Catalog) StockIndex(name string) (int, bool) {
	i, ok := c.stockIndex[name]
	return i, ok
}

// HistoryIndex returns the position of a column in HistoryRow.Values
func (c *Catalog) HistoryIndex(name string) (int, bool) {
	i, ok := c.historyIndex[name]
	return i, ok
}

// NewStockRow returns a row with every column absent
func (c *Catalog) NewStockRow(ticker string) *models.StockRow {
	return &models.StockRow{
		Ticker: ticker,
		Values: make([]models.Value, len(c.stock)),
	}
}

// NewHistoryRow returns a history row with every metric absent
func (c *Catalog) NewHistoryRow(ticker, date string) *models.HistoryRow {
	return &models.HistoryRow{
		Ticker: ticker,
		Date:   date,
		Values: make([]models.Value, len(c.history)),
	}
}

// SetStock sets a column on a stock row, ignoring unknown columns
func (c *Catalog) SetStock(row *models.StockRow, name string, v models.Value) bool {
	i, ok := c.stockIndex[name]
	if !ok {
		return false
	}
	row.Values[i] = v
	return true
}

// GetStock reads a column from a stock row
func (c *Catalog) GetStock(row *models.StockRow, name string) models.Value {
	i, ok := c.stockIndex[name]
	if !ok || i >= len(row.Values) {
		return models.Absent()
	}
	return row.Values[i]
}

// HistoryFromStock copies the history subset out of a stock row
func (c *Catalog) HistoryFromStock(row *models.StockRow, date string) *models.HistoryRow {
	h := c.NewHistoryRow(row.Ticker, date)
	for i, col := range c.history {
		h.Values[i] = c.GetStock(row, col.Name)
	}
	return h
}

// GroupOrder returns the group ids in display order
func (c *Catalog) GroupOrder() []string {
	ids := make([]string, 0, len(c.groups))
	for _, g := range c.groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// GroupMeta returns the column groups keyed by group id
func (c *Catalog) GroupMeta() map[string]GroupMeta {
	out := make(map[string]GroupMeta, len(c.groups))
	for _, g := range c.groups {
		names := make([]string, 0, len(g.Columns))
		for _, col := range g.Columns {
			names = append(names, col.Name)
		}
		out[g.ID] = GroupMeta{Label: g.Label, Columns: names}
	}
	return out
}

// ColumnMeta returns label and format per column
func (c *Catalog) ColumnMeta() map[string]ColumnMeta {
	out := make(map[string]ColumnMeta, len(c.all))
	for _, col := range c.all {
		out[col.Name] = ColumnMeta{Label: col.Label, Format: col.Format}
	}
	return out
}
