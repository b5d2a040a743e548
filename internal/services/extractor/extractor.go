// Package extractor reads the snapshot table of a quote page into raw cells
// and normalizes them into records.
package extractor

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/normalize"
)

const (
	companySelector  = "a.tab-link"
	snapshotSelector = "table.snapshot-table2"
	fragmentSelector = "b, span, small"
)

// Extractor parses quote page HTML
type Extractor struct {
	logger arbor.ILogger
}

// NewExtractor creates a new extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads the company name and the label/value cells of the snapshot
// table. A page whose company link reads "Affiliate" comes back with
// Affiliate set and no cells. A page without a snapshot table yields no cells.
func (e *Extractor) Extract(r io.Reader) (*models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote page: %w", err)
	}

	page := &models.Page{CompanyName: models.UnknownCompanyName}
	if link := doc.Find(companySelector).First(); link.Length() > 0 {
		page.CompanyName = strings.TrimSpace(link.Text())
	}

	if page.CompanyName == models.AffiliateCompanyName {
		page.Affiliate = true
		return page, nil
	}

	table := doc.Find(snapshotSelector).First()
	if table.Length() == 0 {
		if e.logger != nil {
			e.logger.Debug().Str("company", page.CompanyName).Msg("Quote page has no snapshot table")
		}
		return page, nil
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := labelKey(strippedText(cells.Eq(i)))
			cell, ok := valueCell(label, cells.Eq(i+1))
			if !ok {
				continue
			}
			page.Cells = append(page.Cells, cell)
		}
	})

	return page, nil
}

// Normalize turns an extracted page into a record. Later cells overwrite
// earlier ones that resolve to the same key.
func Normalize(ticker string, page *models.Page, splitter *normalize.Splitter) *models.Record {
	rec := models.NewRecord(ticker, page.CompanyName)
	for _, cell := range page.Cells {
		splitter.Split(cell).Apply(rec)
	}
	return rec
}

// labelKey lowercases a label and replaces spaces and slashes with underscores
func labelKey(label string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(strings.ToLower(label))
}

func valueCell(label string, sel *goquery.Selection) (models.RawCell, bool) {
	cell := models.RawCell{Label: label}

	var texts []string
	if children := sel.ChildrenFiltered(fragmentSelector); children.Length() >= 2 {
		children.Each(func(_ int, child *goquery.Selection) {
			if t := strippedText(child); t != "" {
				texts = append(texts, t)
			}
		})
	}

	if len(texts) > 0 {
		cell.Fragments = texts
	} else if t := strippedText(sel); t != "" {
		texts = []string{t}
		cell.Text = t
	}

	if len(texts) == 0 || allPlaceholders(texts) {
		return cell, false
	}
	return cell, true
}

func allPlaceholders(texts []string) bool {
	for _, t := range texts {
		if t != normalize.Placeholder {
			return false
		}
	}
	return true
}

// strippedText concatenates the trimmed text nodes under a selection, so
// "<b>5.45</b> <span>-13.94%</span>" reads "5.45-13.94%"
func strippedText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &sb)
	}
	return sb.String()
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, sb)
	}
}
