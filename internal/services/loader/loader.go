// Package loader translates scrape records into catalog rows and writes
// them through the stock storage port.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/interfaces"
	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/schemas"
)

// DateFormat is the layout of history dates
const DateFormat = "2006-01-02"

// record keys that are not scraped metrics
var reservedKeys = map[string]bool{
	"ticker":       true,
	"company_name": true,
	"industry":     true,
	"sector":       true,
	"scraped_at":   true,
}

// Options tunes one Load call
type Options struct {
	// CommitEvery is the number of tickers per transaction
	CommitEvery int
	// Industries overrides the record's industry and sector per ticker
	Industries IndustryMap
	// KeepExisting falls back to the stored industry and sector when neither
	// the map nor the record has one
	KeepExisting bool
}

// Service loads records into stock storage
type Service struct {
	stocks  interfaces.StockStorage
	catalog *schemas.Catalog
	logger  arbor.ILogger
	now     func() time.Time
}

// NewService creates a loader
func NewService(stocks interfaces.StockStorage, catalog *schemas.Catalog, logger arbor.ILogger) *Service {
	return &Service{
		stocks:  stocks,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for last_updated and the history date
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load writes every record as a current-state row plus today's history row
// and returns the number of tickers written
func (s *Service) Load(ctx context.Context, records []*models.Record, opts Options) (int, error) {
	now := s.now()
	today := now.Format(DateFormat)

	snaps := make([]*models.Snapshot, 0, len(records))
	dropped := make(map[string]int)
	withIndustry := 0

	for _, rec := range records {
		if rec == nil || strings.TrimSpace(rec.Ticker) == "" {
			continue
		}

		row := s.Translate(rec, opts.Industries, dropped)
		if opts.KeepExisting {
			s.fillFromExisting(ctx, row)
		}
		row.LastUpdated = now.UTC()

		if !s.catalog.GetStock(row, "industry").IsAbsent() {
			withIndustry++
		}

		history := s.catalog.HistoryFromStock(row, today)
		history.ScrapedAt = now.UTC()
		snaps = append(snaps, &models.Snapshot{Stock: row, History: history})
	}

	for key, n := range dropped {
		s.logger.Debug().Str("key", key).Int("records", n).Msg("Dropped unmapped field")
	}

	written, err := s.stocks.SaveSnapshots(ctx, snaps, opts.CommitEvery)
	if err != nil {
		return written, fmt.Errorf("failed to save stocks: %w", err)
	}

	s.logger.Info().
		Int("stocks", written).
		Int("with_industry", withIndustry).
		Str("date", today).
		Msg("Load complete")

	return written, nil
}

// Translate maps a record onto a catalog row. Keys the catalog does not know
// are counted in dropped when it is non-nil.
func (s *Service) Translate(rec *models.Record, industries IndustryMap, dropped map[string]int) *models.StockRow {
	row := s.catalog.NewStockRow(strings.TrimSpace(rec.Ticker))

	if name := CleanCompanyName(rec.CompanyName); name != "" {
		s.catalog.SetStock(row, "company_name", models.Text(name))
	}

	class := industries[row.Ticker]
	industry := class.Industry
	if industry == "" {
		industry = textField(rec, "industry")
	}
	sector := class.Sector
	if sector == "" {
		sector = textField(rec, "sector")
	}
	if industry != "" {
		s.catalog.SetStock(row, "industry", models.Text(industry))
	}
	if sector != "" {
		s.catalog.SetStock(row, "sector", models.Text(sector))
	}

	for _, key := range rec.Keys() {
		if reservedKeys[key] {
			continue
		}
		column, ok := s.catalog.ColumnForKey(key)
		if !ok {
			if dropped != nil {
				dropped[key]++
			}
			continue
		}
		v := CleanValue(rec.Fields[key])
		if v.IsAbsent() {
			continue
		}
		s.catalog.SetStock(row, column, v)
	}

	return row
}

func (s *Service) fillFromExisting(ctx context.Context, row *models.StockRow) {
	needIndustry := s.catalog.GetStock(row, "industry").IsAbsent()
	needSector := s.catalog.GetStock(row, "sector").IsAbsent()
	if !needIndustry && !needSector {
		return
	}

	existing, err := s.stocks.GetStock(ctx, row.Ticker)
	if errors.Is(err, interfaces.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", row.Ticker).Msg("Failed to read stored classification")
		return
	}

	if v, ok := existing["industry"].(string); ok && needIndustry && v != "" {
		s.catalog.SetStock(row, "industry", models.Text(v))
	}
	if v, ok := existing["sector"].(string); ok && needSector && v != "" {
		s.catalog.SetStock(row, "sector", models.Text(v))
	}
}

func textField(rec *models.Record, key string) string {
	v := CleanValue(rec.Get(key))
	if v.IsAbsent() {
		return ""
	}
	return v.String()
}

// CleanValue normalizes a value before it is stored: empty and "N/A" text
// become absent, and text that is a number once commas are removed becomes
// that number. Other text is kept trimmed.
func CleanValue(v models.Value) models.Value {
	if v.Kind != models.KindText {
		return v
	}

	s := strings.TrimSpace(v.Text)
	if s == "" || s == "N/A" || s == "-" {
		return models.Absent()
	}

	clean := strings.ReplaceAll(s, ",", "")
	if strings.Contains(clean, ".") {
		if f, err := strconv.ParseFloat(clean, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return models.Float(f)
		}
	} else if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return models.Int(n)
	}
	return models.Text(s)
}

// CleanCompanyName collapses whitespace and line breaks
func CleanCompanyName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
