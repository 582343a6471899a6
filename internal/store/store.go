// Package store persists namespaced key/value records with atomic batches.
//
// Every namespace carries a version counter. A Batch is applied only when
// its Version is exactly one past the stored version, and the records plus
// the new version become durable together or not at all.
package store

import (
	"errors"
	"fmt"
	"maps"
)

// Namespaces used by stowage
const (
	NamespaceFileIDs   = "file_ids"
	NamespaceFolderIDs = "folder_ids"
	NamespaceTrash     = "trash"
	NamespaceJournal   = "journal"
	NamespaceReview    = "review"
)

var (
	// ErrCorrupt indicates persisted data that cannot be decoded
	ErrCorrupt = errors.New("persisted data is corrupt")

	// ErrVersionMismatch indicates a batch built against a stale snapshot
	ErrVersionMismatch = errors.New("batch version does not follow stored version")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("store is closed")
)

// Snapshot is the full content of one namespace
type Snapshot struct {
	Version uint64
	Records map[string][]byte
}

// Batch is a set of changes applied atomically to one namespace
type Batch struct {
	Version uint64
	Puts    map[string][]byte
	Deletes []string
}

// NewBatch starts a batch that follows version
func NewBatch(version uint64) *Batch {
	return &Batch{
		Version: version + 1,
		Puts:    make(map[string][]byte),
	}
}

// Put stages a record write
func (b *Batch) Put(key string, value []byte) {
	b.Puts[key] = value
}

// Delete stages a record removal
func (b *Batch) Delete(key string) {
	delete(b.Puts, key)
	b.Deletes = append(b.Deletes, key)
}

// Empty reports whether the batch carries no changes
func (b *Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Len returns the number of staged operations
func (b *Batch) Len() int {
	return len(b.Puts) + len(b.Deletes)
}

// Apply replays the batch onto records in place
func (b *Batch) Apply(records map[string][]byte) {
	for _, k := range b.Deletes {
		delete(records, k)
	}
	maps.Copy(records, b.Puts)
}

// Backend is implemented by the persistence engines
type Backend interface {
	// Load returns the committed state of ns. A namespace that was never
	// written loads as version 0 with no records.
	Load(ns string) (*Snapshot, error)

	// Commit durably applies b to ns
	Commit(ns string, b *Batch) error

	// Name identifies the engine in logs
	Name() string

	Close() error
}

// CorruptError wraps a decoding failure with its location
type CorruptError struct {
	Namespace string
	Key       string
	Err       error
}

func (e *CorruptError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("namespace %s: %v: %v", e.Namespace, ErrCorrupt, e.Err)
	}
	return fmt.Sprintf("namespace %s key %q: %v: %v", e.Namespace, e.Key, ErrCorrupt, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}

// NewCorruptError creates a new CorruptError
func NewCorruptError(ns, key string, err error) error {
	return &CorruptError{Namespace: ns, Key: key, Err: err}
}
