// Package jsonfile implements store.Backend with one JSON document per
// namespace. Every commit rewrites the document through a temp file,
// fsync and rename, so a crash leaves either the old or the new version.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/store"
)

// document is the on-disk shape of one namespace
type document struct {
	Version uint64            `json:"version"`
	Records map[string]string `json:"records"`
}

// Store keeps namespace documents below a directory
type Store struct {
	mu     sync.Mutex
	dir    string
	cache  map[string]*store.Snapshot
	closed bool
}

// Open prepares dir for use
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return &Store{
		dir:   dir,
		cache: make(map[string]*store.Snapshot),
	}, nil
}

func (s *Store) Name() string { return "json" }

func (s *Store) path(ns string) string {
	return filepath.Join(s.dir, ns+".json")
}

// Load implements store.Backend
func (s *Store) Load(ns string) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	snap, err := s.load(ns)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{Version: snap.Version, Records: maps.Clone(snap.Records)}, nil
}

func (s *Store) load(ns string) (*store.Snapshot, error) {
	if snap, ok := s.cache[ns]; ok {
		return snap, nil
	}

	snap := &store.Snapshot{Records: make(map[string][]byte)}
	data, err := os.ReadFile(s.path(ns))
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.cache[ns] = snap
		return snap, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.path(ns), err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, store.NewCorruptError(ns, "", err)
	}
	if doc.Version == 0 && len(doc.Records) > 0 {
		return nil, store.NewCorruptError(ns, "", errors.New("records present without a version"))
	}

	snap.Version = doc.Version
	for k, v := range doc.Records {
		snap.Records[k] = []byte(v)
	}
	s.cache[ns] = snap
	return snap, nil
}

// Commit implements store.Backend
func (s *Store) Commit(ns string, b *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	current, err := s.load(ns)
	if err != nil {
		return err
	}
	if b.Version != current.Version+1 {
		return fmt.Errorf("%w: stored %d, batch %d", store.ErrVersionMismatch, current.Version, b.Version)
	}

	next := maps.Clone(current.Records)
	b.Apply(next)

	doc := document{Version: b.Version, Records: make(map[string]string, len(next))}
	for k, v := range next {
		doc.Records[k] = string(v)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", ns, err)
	}
	if err := atomic.WriteFile(s.path(ns), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", ns, err)
	}

	s.cache[ns] = &store.Snapshot{Version: b.Version, Records: next}
	return nil
}

// Close implements store.Backend
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cache = nil
	return nil
}
