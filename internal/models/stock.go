package models

import "time"

// StockRow is a fixed-width current-state row. Values is aligned with the
// stock columns of the catalog; fields that were not scraped hold Absent.
type StockRow struct {
	Ticker      string
	Values      []Value
	LastUpdated time.Time
}

// HistoryRow is one daily snapshot. Values is aligned with the history
// columns of the catalog.
type HistoryRow struct {
	Ticker    string
	Date      string
	Values    []Value
	ScrapedAt time.Time
}

// Snapshot pairs a current-state row with the history row written alongside it.
// History is nil when only the current state is written.
type Snapshot struct {
	Stock   *StockRow
	History *HistoryRow
}

// Row is an API-facing row keyed by unit-suffix-free column names
type Row map[string]interface{}

// StockFilter narrows a stock listing. Nil bounds impose no constraint.
type StockFilter struct {
	Industry string
	Sector   string
	MinCap   *int64
	MaxCap   *int64
	MinRSI   *float64
	MaxRSI   *float64
	MinPE    *float64
	MaxPE    *float64
	// Tickers restricts the listing to the given symbols when non-nil
	Tickers []string
}

// ShortlistEntry is one tracked ticker
type ShortlistEntry struct {
	Ticker     string     `json:"ticker"`
	AddedPrice *float64   `json:"added_price"`
	AddedAt    *time.Time `json:"added_at"`
}

// Quote is a price quote for one ticker
type Quote struct {
	Price     *float64 `json:"price"`
	PrevClose *float64 `json:"prev_close"`
	Change    *float64 `json:"change"`
	ChangePct *float64 `json:"change_pct"`
	Source    string   `json:"source"`
}

// PricePoint is one OHLCV bar
type PricePoint struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// PriceHistory is a price series with summary statistics
type PriceHistory struct {
	Ticker       string       `json:"ticker"`
	Period       string       `json:"period"`
	CurrentPrice float64      `json:"current_price"`
	Change       float64      `json:"change"`
	ChangePct    float64      `json:"change_pct"`
	High         float64      `json:"high"`
	Low          float64      `json:"low"`
	DataPoints   int          `json:"data_points"`
	Prices       []PricePoint `json:"prices"`
}
