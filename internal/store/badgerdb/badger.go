// Package badgerdb implements store.Backend on an embedded BadgerDB.
//
// Key layout:
//
//	<ns>:version       big-endian uint64
//	<ns>:r:<key>       record value
package badgerdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/babarot/stowage/internal/store"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Store is a BadgerDB-backed store.Backend
type Store struct {
	mu     sync.RWMutex
	db     *badger.DB
	closed bool
}

// Options configures Open
type Options struct {
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// Open opens (or creates) the database at opts.Dir
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.
		WithSyncWrites(true).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithLogger(newLogger(opts.Logger))

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", opts.Dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "badger" }

func versionKey(ns string) []byte {
	return []byte(ns + ":version")
}

func recordPrefix(ns string) []byte {
	return []byte(ns + ":r:")
}

func recordKey(ns, key string) []byte {
	return append(recordPrefix(ns), key...)
}

func readVersion(txn *badger.Txn, ns string) (uint64, error) {
	item, err := txn.Get(versionKey(ns))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, store.NewCorruptError(ns, "version", fmt.Errorf("version record has %d bytes", len(val)))
	}
	return binary.BigEndian.Uint64(val), nil
}

// Load implements store.Backend
func (s *Store) Load(ns string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	snap := &store.Snapshot{Records: make(map[string][]byte)}
	err := s.db.View(func(txn *badger.Txn) error {
		version, err := readVersion(txn, ns)
		if err != nil {
			return err
		}
		snap.Version = version

		prefix := recordPrefix(ns)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			snap.Records[key] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if snap.Version == 0 && len(snap.Records) > 0 {
		return nil, store.NewCorruptError(ns, "", errors.New("records present without a version"))
	}
	return snap, nil
}

// Commit implements store.Backend
func (s *Store) Commit(ns string, b *store.Batch) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readVersion(txn, ns)
		if err != nil {
			return err
		}
		if b.Version != current+1 {
			return fmt.Errorf("%w: stored %d, batch %d", store.ErrVersionMismatch, current, b.Version)
		}

		for _, key := range b.Deletes {
			if err := txn.Delete(recordKey(ns, key)); err != nil {
				return err
			}
		}
		for key, val := range b.Puts {
			if err := txn.Set(recordKey(ns, key), val); err != nil {
				return err
			}
		}

		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], b.Version)
		return txn.Set(versionKey(ns), buf[:])
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("batch of %d operations exceeds the transaction limit: %w", b.Len(), err)
	}
	return err
}

// Close implements store.Backend
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
