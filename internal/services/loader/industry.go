package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/screener/internal/common"
)

// tickerColumns are the accepted ticker headers, in order of preference
var tickerColumns = []string{"Exchange:Ticker", "Ticker", "ticker"}

// Classification is the industry and sector of one ticker
type Classification struct {
	Industry string
	Sector   string
}

// IndustryMap maps ticker codes to their classification
type IndustryMap map[string]Classification

// Source is the parsed ticker list: symbols in file order and their
// classification
type Source struct {
	Tickers    []string
	Industries IndustryMap
}

// ReadSource parses the ticker CSV. Tickers are reduced to their code,
// so "NASDAQ:AAPL" and "AAPL" both key "AAPL".
func ReadSource(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Source{Industries: IndustryMap{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		// Excel writes a byte order mark in front of the first header
		index[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	src := &Source{Industries: IndustryMap{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		var raw string
		for _, col := range tickerColumns {
			if raw = field(row, col); raw != "" {
				break
			}
		}
		ticker := common.ParseTicker(raw)
		if ticker.IsZero() {
			continue
		}

		src.Tickers = append(src.Tickers, ticker.Code)
		src.Industries[ticker.Code] = Classification{
			Industry: field(row, "Industry Group"),
			Sector:   field(row, "Sector"),
		}
	}

	return src, nil
}

// LoadSource reads the ticker CSV from disk
func LoadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker csv: %w", err)
	}
	defer f.Close()
	return ReadSource(f)
}

// LoadSourceOptional is LoadSource that treats a missing file as empty
func LoadSourceOptional(path string) (*Source, error) {
	src, err := LoadSource(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return &Source{Industries: IndustryMap{}}, nil
	}
	return src, err
}
