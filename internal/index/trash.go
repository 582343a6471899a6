package index

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
	"github.com/samber/lo"
)

const entryPrefix = "e:"

// TrashIndex is the persistent registry of trashed items. At most one
// entry exists per original identifier.
type TrashIndex struct {
	mu         sync.RWMutex
	backend    store.Backend
	version    uint64
	entries    map[types.ID]types.TrashEntry
	byOriginal map[types.ID]types.ID
	nextSeq    uint64
}

// OpenTrashIndex loads the trash registry from backend
func OpenTrashIndex(backend store.Backend) (*TrashIndex, error) {
	ti := &TrashIndex{
		backend:    backend,
		entries:    make(map[types.ID]types.TrashEntry),
		byOriginal: make(map[types.ID]types.ID),
		nextSeq:    1,
	}

	snap, err := backend.Load(store.NamespaceTrash)
	if err != nil {
		return nil, loadError(store.NamespaceTrash, err)
	}

	for key, val := range snap.Records {
		if !strings.HasPrefix(key, entryPrefix) {
			return nil, corrupt(store.NamespaceTrash, "unexpected key %q", key)
		}
		var e types.TrashEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return nil, corrupt(store.NamespaceTrash, "entry %s: %v", key, err)
		}
		if string(e.ID) != strings.TrimPrefix(key, entryPrefix) {
			return nil, corrupt(store.NamespaceTrash, "entry %s carries id %s", key, e.ID)
		}
		if prev, dup := ti.byOriginal[e.OriginalID]; dup {
			return nil, corrupt(store.NamespaceTrash, "entries %s and %s share original id %s", prev, e.ID, e.OriginalID)
		}
		ti.entries[e.ID] = e
		ti.byOriginal[e.OriginalID] = e.ID
		ti.nextSeq = max(ti.nextSeq, e.Seq+1)
	}
	ti.version = snap.Version

	slog.Debug("trash index loaded", "version", ti.version, "entries", len(ti.entries))
	return ti, nil
}

// Version returns the number of committed batches
func (ti *TrashIndex) Version() uint64 {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.version
}

// Len returns the number of open entries
func (ti *TrashIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.entries)
}

// AddEntry registers e and returns its trash id. A zero e.ID is replaced
// by a fresh identifier; Seq is always assigned here.
func (ti *TrashIndex) AddEntry(e types.TrashEntry) (types.ID, error) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if e.OriginalID.IsZero() {
		return "", types.NewError("add_entry", types.ErrInvalid, "", fmt.Errorf("entry has no original id"))
	}
	if open, ok := ti.byOriginal[e.OriginalID]; ok {
		return "", types.NewError("add_entry", types.ErrConflict, e.OriginalID.String(), fmt.Errorf("already trashed as %s", open))
	}
	if e.ID.IsZero() {
		e.ID = types.NewID()
	}
	if _, ok := ti.entries[e.ID]; ok {
		return "", types.NewError("add_entry", types.ErrConflict, e.ID.String(), fmt.Errorf("trash id in use"))
	}
	e.Seq = ti.nextSeq

	data, err := json.Marshal(e)
	if err != nil {
		return "", types.NewError("add_entry", types.ErrInvalid, e.ID.String(), err)
	}

	b := store.NewBatch(ti.version)
	b.Put(entryPrefix+string(e.ID), data)
	if err := ti.backend.Commit(store.NamespaceTrash, b); err != nil {
		return "", types.NewError("add_entry", types.ErrIO, e.ID.String(), err)
	}

	ti.version = b.Version
	ti.entries[e.ID] = e
	ti.byOriginal[e.OriginalID] = e.ID
	ti.nextSeq++
	return e.ID, nil
}

// List returns every entry in insertion order, oldest first
func (ti *TrashIndex) List() []types.TrashEntry {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	out := lo.Values(ti.entries)
	slices.SortFunc(out, func(a, b types.TrashEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// Get returns the entry with the given trash id
func (ti *TrashIndex) Get(id types.ID) (types.TrashEntry, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	e, ok := ti.entries[id]
	if !ok {
		return types.TrashEntry{}, types.NewError("get", types.ErrNotFound, id.String(), nil)
	}
	return e, nil
}

// FindByOriginal returns the open entry for an original identifier
func (ti *TrashIndex) FindByOriginal(original types.ID) (types.TrashEntry, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	id, ok := ti.byOriginal[original]
	if !ok {
		return types.TrashEntry{}, types.NewError("find_by_original", types.ErrNotFound, original.String(), nil)
	}
	return ti.entries[id], nil
}

// Remove deletes the entry and returns it
func (ti *TrashIndex) Remove(id types.ID) (types.TrashEntry, error) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	e, ok := ti.entries[id]
	if !ok {
		return types.TrashEntry{}, types.NewError("remove_entry", types.ErrNotFound, id.String(), nil)
	}

	b := store.NewBatch(ti.version)
	b.Delete(entryPrefix + string(id))
	if err := ti.backend.Commit(store.NamespaceTrash, b); err != nil {
		return types.TrashEntry{}, types.NewError("remove_entry", types.ErrIO, id.String(), err)
	}

	ti.version = b.Version
	delete(ti.entries, id)
	delete(ti.byOriginal, e.OriginalID)
	return e, nil
}

// Clear deletes every entry and returns how many were removed.
// It does not touch quarantined payloads.
func (ti *TrashIndex) Clear() (int, error) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	n := len(ti.entries)
	if n == 0 {
		return 0, nil
	}
	b := store.NewBatch(ti.version)
	for id := range ti.entries {
		b.Delete(entryPrefix + string(id))
	}
	if err := ti.backend.Commit(store.NamespaceTrash, b); err != nil {
		return 0, types.NewError("clear", types.ErrIO, "", err)
	}

	ti.version = b.Version
	clear(ti.entries)
	clear(ti.byOriginal)
	return n, nil
}
