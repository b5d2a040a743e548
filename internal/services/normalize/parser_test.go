package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/screener/internal/models"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.Value
	}{
		{"empty", "", models.Absent()},
		{"whitespace", "   ", models.Absent()},
		{"placeholder", "-", models.Absent()},
		{"padded placeholder", " - ", models.Absent()},
		{"billions", "12.3B", models.Int(12_300_000_000)},
		{"millions", "1.5M", models.Int(1_500_000)},
		{"thousands", "950K", models.Int(950_000)},
		{"integer with commas", "1,234", models.Int(1234)},
		{"float with commas", "1,234.5", models.Float(1234.5)},
		{"negative float", "-0.85", models.Float(-0.85)},
		{"plain integer", "42", models.Int(42)},
		{"ticker text", "AAPL", models.Text("AAPL")},
		{"index list", "DJIA, NDX, S&P 500", models.Text("DJIA, NDX, S&P 500")},
		{"bad percent", "abc%", models.Text("abc%")},
		{"bad suffix", "xB", models.Text("xB")},
		{"date text", "Nov 07 BMO", models.Text("Nov 07 BMO")},
		{"magnitude beyond int64", "9999999999999B", models.Text("9999999999999B")},
		{"negative magnitude beyond int64", "-9999999999999B", models.Text("-9999999999999B")},
		{"infinite percent", "inf%", models.Text("inf%")},
		{"nan percent", "NaN%", models.Text("NaN%")},
		{"infinite magnitude", "InfB", models.Text("InfB")},
		{"nan", "NaN", models.Text("NaN")},
		{"infinity with fraction", "Inf.0", models.Text("Inf.0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.raw))
		})
	}
}

func TestParseValue_Percentage(t *testing.T) {
	v := ParseValue("7.25%")
	assert.Equal(t, models.KindFloat, v.Kind)
	assert.InDelta(t, 0.0725, v.Float, 1e-12)

	v = ParseValue("-13.94%")
	assert.Equal(t, models.KindFloat, v.Kind)
	assert.InDelta(t, -0.1394, v.Float, 1e-12)
}

func TestParseValue_MagnitudeSuffixIsInteger(t *testing.T) {
	v := ParseValue("12.3B")
	assert.Equal(t, models.KindInt, v.Kind)
	assert.Equal(t, int64(12_300_000_000), v.Int)
}

func TestParseValue_TextKeepsOriginal(t *testing.T) {
	// untrimmed input is preserved when the token cannot be read
	v := ParseValue(" n/a ")
	assert.Equal(t, models.Text(" n/a "), v)
}
