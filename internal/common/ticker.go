package common

import (
	"strings"
)

// Ticker is a parsed, optionally exchange-qualified symbol.
// Format: EXCHANGE:CODE (e.g. "NASDAQ:AAPL", "NYSE:BRK.B")
type Ticker struct {
	// Exchange is the listing exchange, empty when the input had none
	Exchange string
	// Code is the symbol used for scraping and storage (e.g. "AAPL")
	Code string
	// Raw is the original string
	Raw string
}

// KnownExchanges lists the exchange prefixes accepted with a dot separator.
// A colon separator accepts any prefix.
var KnownExchanges = map[string]bool{
	"NYSE":     true,
	"NASDAQ":   true,
	"AMEX":     true,
	"NYSEARCA": true,
	"NYSEMKT":  true,
	"BATS":     true,
	"OTC":      true,
}

// ParseTicker parses a ticker string.
//   - "NASDAQ:AAPL" -> Exchange="NASDAQ", Code="AAPL"
//   - "NYSE.KO"     -> Exchange="NYSE", Code="KO" (known exchanges only)
//   - "BRK.B"       -> Exchange="", Code="BRK.B"
//   - " aapl "      -> Exchange="", Code="AAPL"
func ParseTicker(ticker string) Ticker {
	raw := ticker
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(strings.TrimSpace(ticker[:idx])),
			Code:     strings.ToUpper(strings.TrimSpace(ticker[idx+1:])),
			Raw:      raw,
		}
	}

	if idx := strings.Index(ticker, "."); idx > 0 {
		prefix := strings.ToUpper(ticker[:idx])
		if KnownExchanges[prefix] {
			return Ticker{
				Exchange: prefix,
				Code:     strings.ToUpper(ticker[idx+1:]),
				Raw:      raw,
			}
		}
	}

	return Ticker{
		Code: strings.ToUpper(ticker),
		Raw:  raw,
	}
}

// String returns the ticker in EXCHANGE:CODE form, or just CODE
func (t Ticker) String() string {
	if t.Exchange == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// IsZero reports whether the ticker carries no code
func (t Ticker) IsZero() bool {
	return t.Code == ""
}

// TickerCodes parses each string and returns the non-empty codes in order
func TickerCodes(tickers []string) []string {
	codes := make([]string, 0, len(tickers))
	for _, s := range tickers {
		if t := ParseTicker(s); !t.IsZero() {
			codes = append(codes, t.Code)
		}
	}
	return codes
}
