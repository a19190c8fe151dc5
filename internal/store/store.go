// Package store caches compiled table blobs in a BadgerDB directory so that
// unchanged grammars are not recompiled.
package store

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/tliron/commonlog"

	"fusor/internal/errors"
	"fusor/internal/metrics"
	"fusor/internal/table"
)

var log = commonlog.GetLogger("fusor.store")

const keyPrefix = "tables/"

// Key identifies one compilation: a grammar digest combined with the options
// it was compiled with.
type Key [32]byte

func (k Key) bytes() []byte {
	return fmt.Appendf([]byte(keyPrefix), "%x", k[:])
}

// Store is a blob cache. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates a cache in dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, stderrors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithSyncWrites(true))
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening table cache: %w", err)
	}
	return &Store{db: db}, nil
}

// badgerLogger routes badger's messages through commonlog with info
// demoted to debug.
type badgerLogger struct {
	log commonlog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.log.Warningf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.log.Debugf(format, args...) }

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached language for k. A blob written by another format
// or ABI version is dropped and reported as a miss.
func (s *Store) Get(k Key) (*table.Language, bool, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k.bytes())
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading table cache: %w", err)
	}

	lang, err := table.DecodeBytes(blob)
	if stderrors.Is(err, errors.ErrIncompatibleBlob) {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		log.Infof("dropping stale cache entry %x: %v", k[:8], err)
		if err := s.Delete(k); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return lang, true, nil
}

// Put stores the blob of lang under k, replacing any previous entry.
func (s *Store) Put(k Key, lang *table.Language) error {
	blob, err := table.EncodeBytes(lang)
	if err != nil {
		return err
	}
	return s.PutBlob(k, blob)
}

// PutBlob stores raw blob bytes under k.
func (s *Store) PutBlob(k Key, blob []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k.bytes(), blob)
	})
	if err != nil {
		return fmt.Errorf("writing table cache: %w", err)
	}
	log.Debugf("cached %d byte blob %x", len(blob), k[:8])
	return nil
}

func (s *Store) Delete(k Key) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k.bytes())
	})
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Len counts the cached blobs.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge removes every cached blob.
func (s *Store) Purge() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}
