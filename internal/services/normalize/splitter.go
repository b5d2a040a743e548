package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/screener/internal/models"
)

// Family identifies how a compound cell encodes its two values
type Family int

const (
	// MagnitudeDelta is a number followed by a signed percentage, "5.45-13.94%"
	MagnitudeDelta Family = iota + 1
	// DualPercent is two percentages, either of which may be a dash, "65.40%37.40%"
	DualPercent
	// AmountYield is an amount with a percentage in parentheses, "0.06 (1.28%)"
	AmountYield
)

func (f Family) String() string {
	switch f {
	case MagnitudeDelta:
		return "magnitude+delta"
	case DualPercent:
		return "dual-percent"
	case AmountYield:
		return "amount+yield"
	}
	return "unknown"
}

// Grammar maps one compound label to its two output keys
type Grammar struct {
	Label     string
	Primary   string
	Secondary string
	Family    Family
}

// DefaultGrammars lists the compound cells of the snapshot table
func DefaultGrammars() []Grammar {
	return []Grammar{
		{Label: "52w_high", Primary: "52w_high", Secondary: "52w_high_pct", Family: MagnitudeDelta},
		{Label: "52w_low", Primary: "52w_low", Secondary: "52w_low_pct", Family: MagnitudeDelta},
		{Label: "eps_past_3_5y", Primary: "eps_past_3y", Secondary: "eps_past_5y", Family: DualPercent},
		{Label: "sales_past_3_5y", Primary: "sales_past_3y", Secondary: "sales_past_5y", Family: DualPercent},
		{Label: "dividend_gr._3_5y", Primary: "dividend_gr_3y", Secondary: "dividend_gr_5y", Family: DualPercent},
		{Label: "eps_sales_surpr.", Primary: "eps_surprise", Secondary: "sales_surprise", Family: DualPercent},
		{Label: "volatility", Primary: "volatility_week", Secondary: "volatility_month", Family: DualPercent},
		{Label: "dividend_ttm", Primary: "dividend_ttm", Secondary: "dividend_yield", Family: AmountYield},
		{Label: "dividend_est.", Primary: "dividend_est", Secondary: "dividend_yield_est", Family: AmountYield},
	}
}

var (
	magnitudeDeltaRe = regexp.MustCompile(`^(\d+(?:\.\d{1,2})?)(-?\d+\.?\d*%)$`)
	percentTokenRe   = regexp.MustCompile(`-?\d+\.?\d*%|-`)
	amountYieldRe    = regexp.MustCompile(`^([\d.]+)\s*\(([\d.]+)%\)$`)
)

// Split is the outcome of splitting one cell.
// SecondaryKey is empty when no secondary value is emitted.
type Split struct {
	PrimaryKey   string
	Primary      models.Value
	SecondaryKey string
	Secondary    models.Value
}

// HasSecondary reports whether a secondary key/value should be emitted
func (s Split) HasSecondary() bool {
	return s.SecondaryKey != "" && !s.Secondary.IsAbsent()
}

// Apply writes the split into a record
func (s Split) Apply(rec *models.Record) {
	rec.Set(s.PrimaryKey, s.Primary)
	if s.HasSecondary() {
		rec.Set(s.SecondaryKey, s.Secondary)
	}
}

// Splitter resolves compound cells. It is immutable after construction and
// safe to share.
type Splitter struct {
	grammars map[string]Grammar
	order    []Grammar
}

// NewSplitter builds a splitter over the given grammars
func NewSplitter(grammars []Grammar) *Splitter {
	s := &Splitter{grammars: make(map[string]Grammar, len(grammars))}
	for _, g := range grammars {
		if _, dup := s.grammars[g.Label]; !dup {
			s.order = append(s.order, g)
		}
		s.grammars[g.Label] = g
	}
	return s
}

// NewDefaultSplitter builds a splitter over DefaultGrammars
func NewDefaultSplitter() *Splitter {
	return NewSplitter(DefaultGrammars())
}

// Grammar returns the grammar for a label
func (s *Splitter) Grammar(label string) (Grammar, bool) {
	g, ok := s.grammars[label]
	return g, ok
}

// Grammars returns the grammars in construction order
func (s *Splitter) Grammars() []Grammar {
	out := make([]Grammar, len(s.order))
	for i, g := range s.order {
		out[i] = s.grammars[g.Label]
	}
	return out
}

// IsCompound reports whether a label has a grammar
func (s *Splitter) IsCompound(label string) bool {
	_, ok := s.grammars[label]
	return ok
}

// Split resolves one cell. Scalar labels pass through the value parser
// unchanged in key. Compound labels use the markup fragments when there are
// at least two, else the family matcher on the raw text; a string the matcher
// cannot read is kept verbatim under the primary key.
func (s *Splitter) Split(cell models.RawCell) Split {
	g, ok := s.grammars[cell.Label]
	if !ok {
		return Split{PrimaryKey: cell.Label, Primary: ParseValue(cell.Joined())}
	}

	if cell.PreSplit() {
		return Split{
			PrimaryKey:   g.Primary,
			Primary:      fragmentValue(g.Family, cell.Fragments[0]),
			SecondaryKey: g.Secondary,
			Secondary:    fragmentValue(g.Family, cell.Fragments[1]),
		}.trimmed()
	}

	return s.SplitText(g, cell.Joined())
}

// SplitText applies a grammar's matcher to a single string
func (s *Splitter) SplitText(g Grammar, raw string) Split {
	var primary, secondary models.Value
	var ok bool

	text := strings.TrimSpace(raw)
	switch g.Family {
	case MagnitudeDelta:
		primary, secondary, ok = splitMagnitudeDelta(text)
	case DualPercent:
		primary, secondary, ok = splitDualPercent(text)
	case AmountYield:
		primary, secondary, ok = splitAmountYield(text)
	}

	if !ok {
		return Split{PrimaryKey: g.Primary, Primary: models.Text(raw)}
	}

	return Split{
		PrimaryKey:   g.Primary,
		Primary:      primary,
		SecondaryKey: g.Secondary,
		Secondary:    secondary,
	}.trimmed()
}

// SplitRecord re-applies the grammars to a record whose compound fields are
// still raw text, as found in artifacts written before splitting existed.
// Fields that are already typed, and scalar fields, are left alone.
func (s *Splitter) SplitRecord(rec *models.Record) *models.Record {
	out := models.NewRecord(rec.Ticker, rec.CompanyName)
	for _, key := range rec.Keys() {
		v := rec.Fields[key]
		if !s.IsCompound(key) {
			out.Set(key, v)
			continue
		}
		g := s.grammars[key]
		if v.Kind != models.KindText {
			out.Set(g.Primary, v)
			continue
		}
		s.SplitText(g, v.Text).Apply(out)
	}
	return out
}

// fragmentValue parses one markup fragment of a compound cell. The yield of
// an amount+yield cell arrives wrapped in parentheses, "(1.28%)".
func fragmentValue(family Family, fragment string) models.Value {
	text := strings.TrimSpace(fragment)
	if family == AmountYield && strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return ParseValue(text).AsFloat()
}

func (s Split) trimmed() Split {
	if s.Secondary.IsAbsent() {
		s.SecondaryKey = ""
	}
	return s
}

func splitMagnitudeDelta(text string) (models.Value, models.Value, bool) {
	m := magnitudeDeltaRe.FindStringSubmatch(text)
	if m == nil {
		return models.Value{}, models.Value{}, false
	}
	magnitude, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Value{}, models.Value{}, false
	}
	delta, ok := percentToken(m[2])
	if !ok {
		return models.Value{}, models.Value{}, false
	}
	return models.Float(magnitude), models.Float(delta), true
}

func splitDualPercent(text string) (models.Value, models.Value, bool) {
	tokens := percentTokenRe.FindAllString(text, -1)
	if len(tokens) != 2 {
		return models.Value{}, models.Value{}, false
	}

	values := make([]models.Value, 2)
	for i, tok := range tokens {
		if tok == Placeholder {
			values[i] = models.Absent()
			continue
		}
		f, ok := percentToken(tok)
		if !ok {
			return models.Value{}, models.Value{}, false
		}
		values[i] = models.Float(f)
	}
	return values[0], values[1], true
}

func splitAmountYield(text string) (models.Value, models.Value, bool) {
	m := amountYieldRe.FindStringSubmatch(text)
	if m == nil {
		return models.Value{}, models.Value{}, false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Value{}, models.Value{}, false
	}
	yield, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return models.Value{}, models.Value{}, false
	}
	return models.Float(amount), models.Float(yield / 100), true
}
