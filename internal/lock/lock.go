// Package lock serializes lifecycle operations per identifier.
//
// Two levels are used. The structure lock is taken exclusively by
// operations that move a whole folder subtree and shared by everything
// else, so a file operation never interleaves with the subtree it sits
// in being relocated. Below that, each identifier has its own mutex.
package lock

import (
	"slices"
	"sync"

	"github.com/babarot/stowage/internal/core/types"
)

// Locker hands out per-identifier locks
type Locker struct {
	structure sync.RWMutex

	mu    sync.Mutex
	locks map[types.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a Locker
func New() *Locker {
	return &Locker{locks: make(map[types.ID]*entry)}
}

// Unlock releases what a Lock call acquired
type Unlock func()

// Shared acquires the structure lock in shared mode plus the given
// identifiers. Use it for operations that touch single items.
func (l *Locker) Shared(ids ...types.ID) Unlock {
	l.structure.RLock()
	release := l.acquire(ids)
	return func() {
		release()
		l.structure.RUnlock()
	}
}

// Exclusive acquires the structure lock exclusively plus the given
// identifiers. Use it for operations that relocate folder subtrees.
func (l *Locker) Exclusive(ids ...types.ID) Unlock {
	l.structure.Lock()
	release := l.acquire(ids)
	return func() {
		release()
		l.structure.Unlock()
	}
}

// For picks Exclusive for folders and Shared for files
func (l *Locker) For(kind types.ItemType, ids ...types.ID) Unlock {
	if kind == types.ItemFolder {
		return l.Exclusive(ids...)
	}
	return l.Shared(ids...)
}

// Paths locks logical paths without touching the structure lock. Callers
// take it after Shared, Exclusive or For and never the other way round.
func (l *Locker) Paths(paths ...string) Unlock {
	ids := make([]types.ID, len(paths))
	for i, p := range paths {
		ids[i] = types.ID("path:" + p)
	}
	return Unlock(l.acquire(ids))
}

// acquire locks ids in sorted order so that callers locking overlapping
// sets never deadlock
func (l *Locker) acquire(ids []types.ID) func() {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		e := l.ref(id)
		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		for _, id := range ids {
			if !id.IsZero() {
				l.unref(id)
			}
		}
	}
}

func (l *Locker) ref(id types.ID) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{}
		l.locks[id] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(id types.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.locks[id]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
}

// Held returns the number of identifiers currently locked or awaited
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
