package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AffiliateCompanyName is the company name the quote page shows for symbols
// that redirect to an affiliate listing
const AffiliateCompanyName = "Affiliate"

// UnknownCompanyName is used when the page carries no company link
const UnknownCompanyName = "Unknown"

// RawCell is one label/value pair read from the snapshot table.
// Fragments holds the values of distinct markup children when the page
// pre-split the cell (two or more); otherwise Text holds the flattened cell text.
type RawCell struct {
	Label     string
	Fragments []string
	Text      string
}

// PreSplit reports whether the markup supplied separate fragments
func (c RawCell) PreSplit() bool {
	return len(c.Fragments) >= 2
}

// Joined returns the cell content as one string
func (c RawCell) Joined() string {
	if len(c.Fragments) > 0 {
		return strings.Join(c.Fragments, " ")
	}
	return c.Text
}

// Page is the extraction result for one quote page
type Page struct {
	CompanyName string
	Affiliate   bool
	Cells       []RawCell
}

// Record is a normalized scrape result: canonical field keys to typed values.
// Ticker and CompanyName are always present.
type Record struct {
	Ticker      string
	CompanyName string
	Fields      map[string]Value
}

// NewRecord creates an empty record for a ticker
func NewRecord(ticker, companyName string) *Record {
	return &Record{
		Ticker:      ticker,
		CompanyName: companyName,
		Fields:      make(map[string]Value),
	}
}

// Get returns a field value, Absent when missing
func (r *Record) Get(key string) Value {
	if r.Fields == nil {
		return Absent()
	}
	return r.Fields[key]
}

// Set stores a field value
func (r *Record) Set(key string, v Value) {
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[key] = v
}

// Keys returns the field keys in sorted order
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON flattens the record into a single object
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["ticker"] = r.Ticker
	out["company_name"] = r.CompanyName
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat record object
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	r.Fields = make(map[string]Value, len(raw))
	for k, v := range raw {
		switch k {
		case "ticker":
			r.Ticker = v.String()
		case "company_name":
			r.CompanyName = v.String()
		default:
			r.Fields[k] = v
		}
	}
	return nil
}

// ScrapeResult aggregates one batch scrape
type ScrapeResult struct {
	RunID     string
	Records   []*Record
	Skipped   []string
	Failed    int
	Total     int
	StartedAt time.Time
	Duration  time.Duration
}

// Artifact is the bulk JSON document written after each batch run
type Artifact struct {
	RunID             string    `json:"run_id,omitempty"`
	ScrapedAt         time.Time `json:"scraped_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	TotalStocks       int       `json:"total_stocks"`
	Successful        int       `json:"successful"`
	AffiliatesSkipped int       `json:"affiliates_skipped"`
	Failed            int       `json:"failed"`
	Stocks            []*Record `json:"stocks"`
}

// NewArtifact builds the artifact for a scrape result
func NewArtifact(result *ScrapeResult) *Artifact {
	stocks := result.Records
	if stocks == nil {
		stocks = []*Record{}
	}
	return &Artifact{
		RunID:             result.RunID,
		ScrapedAt:         result.StartedAt,
		DurationSeconds:   result.Duration.Seconds(),
		TotalStocks:       result.Total,
		Successful:        len(result.Records),
		AffiliatesSkipped: len(result.Skipped),
		Failed:            result.Failed,
		Stocks:            stocks,
	}
}
