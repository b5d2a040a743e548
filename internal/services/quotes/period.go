package quotes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPeriod is used when no period is requested
const DefaultPeriod = "1M"

// ErrInvalidPeriod is returned for an unknown period key
var ErrInvalidPeriod = errors.New("invalid period")

// Period is a chart window and its bar interval
type Period struct {
	Key      string
	Interval string
	back     func(time.Time) time.Time
}

// Start returns the beginning of the window ending at end
func (p Period) Start(end time.Time) time.Time {
	return p.back(end)
}

var periods = []Period{
	{Key: "1D", Interval: "5m", back: func(t time.Time) time.Time { return t.AddDate(0, 0, -1) }},
	{Key: "1W", Interval: "15m", back: func(t time.Time) time.Time { return t.AddDate(0, 0, -7) }},
	{Key: "1M", Interval: "1h", back: func(t time.Time) time.Time { return t.AddDate(0, -1, 0) }},
	{Key: "3M", Interval: "1d", back: func(t time.Time) time.Time { return t.AddDate(0, -3, 0) }},
	{Key: "1Y", Interval: "1d", back: func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) }},
	{Key: "5Y", Interval: "1wk", back: func(t time.Time) time.Time { return t.AddDate(-5, 0, 0) }},
}

// PeriodKeys lists the accepted period keys in display order
func PeriodKeys() []string {
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = p.Key
	}
	return keys
}

// ParsePeriod resolves a period key case-insensitively; empty means DefaultPeriod
func ParsePeriod(key string) (Period, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		key = DefaultPeriod
	}
	for _, p := range periods {
		if p.Key == key {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("%w %q, use one of %s", ErrInvalidPeriod, key, strings.Join(PeriodKeys(), ", "))
}
