package index

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
)

// Collection is a small persistent keyed set of JSON records
type Collection[T any] struct {
	mu      sync.RWMutex
	ns      string
	backend store.Backend
	version uint64
	items   map[string]T
}

// OpenCollection loads every record of ns
func OpenCollection[T any](backend store.Backend, ns string) (*Collection[T], error) {
	snap, err := backend.Load(ns)
	if err != nil {
		return nil, loadError(ns, err)
	}

	c := &Collection[T]{
		ns:      ns,
		backend: backend,
		version: snap.Version,
		items:   make(map[string]T, len(snap.Records)),
	}
	for key, val := range snap.Records {
		var item T
		if err := json.Unmarshal(val, &item); err != nil {
			return nil, corrupt(ns, "record %s: %v", key, err)
		}
		c.items[key] = item
	}
	return c, nil
}

// Get returns the record stored under key
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

// All returns a copy of every record
func (c *Collection[T]) All() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.items)
}

// Len returns the number of records
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Put durably stores item under key
func (c *Collection[T]) Put(key string, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return types.NewError("put", types.ErrInvalid, key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b := store.NewBatch(c.version)
	b.Put(key, data)
	if err := c.backend.Commit(c.ns, b); err != nil {
		return types.NewError("put", types.ErrIO, c.ns, err)
	}
	c.version = b.Version
	c.items[key] = item
	return nil
}

// Delete durably removes the listed keys; absent keys are ignored
func (c *Collection[T]) Delete(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := store.NewBatch(c.version)
	for _, k := range keys {
		if _, ok := c.items[k]; ok {
			b.Delete(k)
		}
	}
	if b.Empty() {
		return nil
	}
	if err := c.backend.Commit(c.ns, b); err != nil {
		return types.NewError("delete", types.ErrIO, c.ns, err)
	}
	c.version = b.Version
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}
