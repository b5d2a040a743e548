// Package badger keeps the shortlist in an embedded Badger database.
package badger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/screener/internal/common"
)

// The shortlist holds a few hundred tiny records; badger's 1GB default
// value log segment is far larger than it will ever need.
const valueLogFileSize = 16 << 20

// BadgerDB owns the badgerhold store behind the shortlist
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// NewBadgerDB opens the shortlist directory, creating it when missing
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	dir := filepath.Clean(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create shortlist directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(dir).
		WithLogger(nil).
		WithValueLogFileSize(valueLogFileSize).
		WithNumVersionsToKeep(1)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open shortlist database at %s: %w", dir, err)
	}

	logger.Debug().Str("path", dir).Msg("Shortlist database opened")

	return &BadgerDB{
		store:  store,
		logger: logger,
		path:   dir,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close compacts the value log once and closes the database
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}

	if err := b.store.Badger().RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		b.logger.Debug().Err(err).Str("path", b.path).Msg("Shortlist value log GC skipped")
	}

	err := b.store.Close()
	b.store = nil
	return err
}
