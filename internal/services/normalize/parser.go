// Package normalize turns raw snapshot cell text into typed values.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/ternarybob/screener/internal/models"
)

// Placeholder is the dash the quote page renders for a missing value
const Placeholder = "-"

var magnitudes = map[byte]float64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

// ParseValue converts one raw token into a typed value. It never fails:
// anything it cannot read comes back as Text holding the original input.
//
//	"", "-"   -> Absent
//	"7.25%"   -> Float(0.0725)
//	"12.3B"   -> Int(12300000000)
//	"1,234"   -> Int(1234)
//	"1,234.5" -> Float(1234.5)
func ParseValue(raw string) models.Value {
	s := strings.TrimSpace(raw)
	if s == "" || s == Placeholder {
		return models.Absent()
	}

	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil || !finite(f) {
			return models.Text(raw)
		}
		return models.Float(f / 100)
	}

	if mult, ok := magnitudes[s[len(s)-1]]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
		if err != nil {
			return models.Text(raw)
		}
		n := f * mult
		// float64(math.MaxInt64) rounds up to 2^63, so >= keeps the conversion in range
		if !finite(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return models.Text(raw)
		}
		return models.Int(int64(n))
	}

	clean := strings.ReplaceAll(s, ",", "")
	if strings.Contains(clean, ".") {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil || !finite(f) {
			return models.Text(raw)
		}
		return models.Float(f)
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return models.Text(raw)
	}
	return models.Int(n)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// percentToken reads a "12.5%" token as a fraction
func percentToken(tok string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
	if err != nil {
		return 0, false
	}
	return f / 100, true
}
