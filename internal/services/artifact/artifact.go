// Package artifact reads and writes the bulk JSON document of a scrape run.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/normalize"
)

// Write stores an artifact as indented JSON, replacing the file atomically
func Write(path string, artifact *models.Artifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// Read loads an artifact from disk
func Read(path string) (*models.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var artifact models.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	return &artifact, nil
}

// WriteSkipped writes the skipped affiliate tickers one per line.
// An empty list writes nothing.
func WriteSkipped(path string, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}
	return writeFile(path, []byte(strings.Join(tickers, "\n")+"\n"))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// SampleField shows one compound field before and after splitting
type SampleField struct {
	Label  string
	Before models.Value
	After  map[string]models.Value
}

// Sample is the before/after view of one record
type Sample struct {
	Ticker string
	Fields []SampleField
}

// ReprocessResult summarizes a reprocess run
type ReprocessResult struct {
	Records int
	// Sample is nil when no record carried an unsplit compound field
	Sample *Sample
}

// Reprocess re-splits the compound fields of every record in an existing
// artifact and writes the result to out. Other artifact fields are kept.
func Reprocess(in, out string, splitter *normalize.Splitter) (*ReprocessResult, error) {
	artifact, err := Read(in)
	if err != nil {
		return nil, err
	}

	result := &ReprocessResult{Records: len(artifact.Stocks)}
	fixed := make([]*models.Record, 0, len(artifact.Stocks))

	for _, rec := range artifact.Stocks {
		if rec == nil {
			continue
		}
		after := splitter.SplitRecord(rec)
		if result.Sample == nil && hasRawCompound(rec, splitter) {
			result.Sample = sample(rec, after, splitter)
		}
		fixed = append(fixed, after)
	}

	artifact.Stocks = fixed
	if err := Write(out, artifact); err != nil {
		return nil, err
	}
	return result, nil
}

func hasRawCompound(rec *models.Record, splitter *normalize.Splitter) bool {
	for _, g := range splitter.Grammars() {
		if rec.Get(g.Label).Kind == models.KindText {
			return true
		}
	}
	return false
}

func sample(before, after *models.Record, splitter *normalize.Splitter) *Sample {
	s := &Sample{Ticker: before.Ticker}
	for _, g := range splitter.Grammars() {
		s.Fields = append(s.Fields, SampleField{
			Label:  g.Label,
			Before: before.Get(g.Label),
			After: map[string]models.Value{
				g.Primary:   after.Get(g.Primary),
				g.Secondary: after.Get(g.Secondary),
			},
		})
	}
	return s
}
