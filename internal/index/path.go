package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
)

const (
	pathPrefix = "p:"
	idPrefix   = "i:"
)

// PathIndex is a persistent bidirectional map between normalized storage
// paths and identifiers for one kind of item. Both directions and the
// version counter are committed in one batch before memory changes.
type PathIndex struct {
	mu       sync.RWMutex
	kind     types.ItemType
	ns       string
	backend  store.Backend
	version  uint64
	pathToID map[string]types.ID
	idToPath map[types.ID]string
	tree     *tree
}

// OpenPathIndex loads the index of the given kind from backend.
// Inconsistent persisted state yields types.ErrIndexCorrupt.
func OpenPathIndex(backend store.Backend, kind types.ItemType) (*PathIndex, error) {
	ns := store.NamespaceFileIDs
	if kind == types.ItemFolder {
		ns = store.NamespaceFolderIDs
	}

	idx := &PathIndex{
		kind:     kind,
		ns:       ns,
		backend:  backend,
		pathToID: make(map[string]types.ID),
		idToPath: make(map[types.ID]string),
		tree:     newTree(),
	}

	snap, err := backend.Load(ns)
	if err != nil {
		return nil, loadError(ns, err)
	}
	if err := idx.restore(snap); err != nil {
		return nil, err
	}

	slog.Debug("path index loaded", "namespace", ns, "version", idx.version, "entries", len(idx.pathToID))
	return idx, nil
}

func loadError(ns string, err error) error {
	if errors.Is(err, store.ErrCorrupt) {
		return types.NewError("load", types.ErrIndexCorrupt, ns, err)
	}
	return types.NewError("load", types.ErrIO, ns, err)
}

func corrupt(ns, format string, args ...any) error {
	return types.NewError("load", types.ErrIndexCorrupt, ns, fmt.Errorf(format, args...))
}

func (idx *PathIndex) restore(snap *store.Snapshot) error {
	for key, val := range snap.Records {
		switch {
		case strings.HasPrefix(key, pathPrefix):
			p := strings.TrimPrefix(key, pathPrefix)
			if norm, err := types.NormalizePath(p); err != nil || norm != p || p == "" {
				return corrupt(idx.ns, "path %q is not normalized", p)
			}
			if len(val) == 0 {
				return corrupt(idx.ns, "path %q maps to an empty identifier", p)
			}
			idx.pathToID[p] = types.ID(val)
		case strings.HasPrefix(key, idPrefix):
			id := types.ID(strings.TrimPrefix(key, idPrefix))
			if id.IsZero() {
				return corrupt(idx.ns, "empty identifier key")
			}
			idx.idToPath[id] = string(val)
		default:
			return corrupt(idx.ns, "unexpected key %q", key)
		}
	}

	if len(idx.pathToID) != len(idx.idToPath) {
		return corrupt(idx.ns, "path_to_id has %d entries but id_to_path has %d", len(idx.pathToID), len(idx.idToPath))
	}
	for p, id := range idx.pathToID {
		if back, ok := idx.idToPath[id]; !ok || back != p {
			return corrupt(idx.ns, "path %q maps to %s which maps back to %q", p, id, back)
		}
		idx.tree.set(p, id)
	}
	idx.version = snap.Version
	return nil
}

// Kind returns the item type this index tracks
func (idx *PathIndex) Kind() types.ItemType {
	return idx.kind
}

// Version returns the number of committed batches
func (idx *PathIndex) Version() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.version
}

// Len returns the number of mapped entries
func (idx *PathIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pathToID)
}

// Resolve returns the path of id
func (idx *PathIndex) Resolve(id types.ID) (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.idToPath[id]
	if !ok {
		return "", types.NewError("resolve", types.ErrNotFound, id.String(), nil)
	}
	return p, nil
}

// ResolvePath returns the identifier mapped to p
func (idx *PathIndex) ResolvePath(p string) (types.ID, error) {
	p, err := types.NormalizePath(p)
	if err != nil {
		return "", err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.pathToID[p]
	if !ok {
		return "", types.NewError("resolve_path", types.ErrNotFound, p, nil)
	}
	return id, nil
}

// Children returns the entries directly below dir
func (idx *PathIndex) Children(dir string) []types.Mapping {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.children(dir)
}

// Walk returns every entry at or below dir
func (idx *PathIndex) Walk(dir string) []types.Mapping {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.walk(dir)
}

// Insert maps p to id. Re-inserting an identical pair is a no-op.
func (idx *PathIndex) Insert(p string, id types.ID) error {
	return idx.Update(func(tx *Tx) error {
		return tx.Insert(p, id)
	})
}

// InsertMany maps every pair or none
func (idx *PathIndex) InsertMany(mappings []types.Mapping) error {
	return idx.Update(func(tx *Tx) error {
		for _, m := range mappings {
			if err := tx.Insert(m.Path, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove drops the mapping of id and returns the path it had
func (idx *PathIndex) Remove(id types.ID) (string, error) {
	var removed string
	err := idx.Update(func(tx *Tx) error {
		p, err := tx.Remove(id)
		removed = p
		return err
	})
	return removed, err
}

// RemoveMany drops every listed identifier or none
func (idx *PathIndex) RemoveMany(ids []types.ID) error {
	return idx.Update(func(tx *Tx) error {
		for _, id := range ids {
			if _, err := tx.Remove(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rename moves id to newPath
func (idx *PathIndex) Rename(id types.ID, newPath string) error {
	return idx.Update(func(tx *Tx) error {
		return tx.Rename(id, newPath)
	})
}

// RenameTree re-keys every entry at or below oldDir to sit below newDir
func (idx *PathIndex) RenameTree(oldDir, newDir string) (int, error) {
	var n int
	err := idx.Update(func(tx *Tx) error {
		var err error
		n, err = tx.RenameTree(oldDir, newDir)
		return err
	})
	return n, err
}

// Update runs fn in a transaction. The staged changes are committed as one
// batch when fn returns nil and discarded otherwise.
func (idx *PathIndex) Update(fn func(tx *Tx) error) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx := &Tx{
		idx:   idx,
		paths: make(map[string]types.ID),
		ids:   make(map[types.ID]string),
	}
	if err := fn(tx); err != nil {
		return err
	}

	batch := tx.batch()
	if batch.Empty() {
		return nil
	}
	if err := idx.backend.Commit(idx.ns, batch); err != nil {
		return types.NewError("commit", types.ErrIO, idx.ns, err)
	}

	tx.apply()
	idx.version = batch.Version
	return nil
}

// Tx stages changes on top of the committed state
type Tx struct {
	idx   *PathIndex
	paths map[string]types.ID // staged path_to_id; zero ID means removed
	ids   map[types.ID]string // staged id_to_path; present with "" means removed
}

func (tx *Tx) lookupPath(p string) (types.ID, bool) {
	if id, ok := tx.paths[p]; ok {
		return id, !id.IsZero()
	}
	id, ok := tx.idx.pathToID[p]
	return id, ok
}

func (tx *Tx) lookupID(id types.ID) (string, bool) {
	if p, ok := tx.ids[id]; ok {
		return p, p != ""
	}
	p, ok := tx.idx.idToPath[id]
	return p, ok
}

// Resolve returns the staged path of id
func (tx *Tx) Resolve(id types.ID) (string, error) {
	p, ok := tx.lookupID(id)
	if !ok {
		return "", types.NewError("resolve", types.ErrNotFound, id.String(), nil)
	}
	return p, nil
}

// ResolvePath returns the staged identifier at p
func (tx *Tx) ResolvePath(p string) (types.ID, error) {
	id, ok := tx.lookupPath(p)
	if !ok {
		return "", types.NewError("resolve_path", types.ErrNotFound, p, nil)
	}
	return id, nil
}

// Insert stages p -> id
func (tx *Tx) Insert(p string, id types.ID) error {
	p, err := types.NormalizePath(p)
	if err != nil {
		return err
	}
	if p == "" {
		return types.NewError("insert", types.ErrInvalid, p, fmt.Errorf("the root folder cannot be mapped"))
	}
	if id.IsZero() {
		return types.NewError("insert", types.ErrInvalid, p, fmt.Errorf("empty identifier"))
	}

	existingID, pathTaken := tx.lookupPath(p)
	existingPath, idTaken := tx.lookupID(id)
	switch {
	case pathTaken && existingID == id:
		return nil
	case pathTaken:
		return types.NewError("insert", types.ErrConflict, p, fmt.Errorf("path is mapped to %s", existingID))
	case idTaken:
		return types.NewError("insert", types.ErrConflict, id.String(), fmt.Errorf("identifier is mapped to %q", existingPath))
	}

	tx.paths[p] = id
	tx.ids[id] = p
	return nil
}

// Remove stages the removal of id
func (tx *Tx) Remove(id types.ID) (string, error) {
	p, ok := tx.lookupID(id)
	if !ok {
		return "", types.NewError("remove", types.ErrNotFound, id.String(), nil)
	}
	tx.paths[p] = ""
	tx.ids[id] = ""
	return p, nil
}

// Rename stages moving id to newPath
func (tx *Tx) Rename(id types.ID, newPath string) error {
	newPath, err := types.NormalizePath(newPath)
	if err != nil {
		return err
	}
	if newPath == "" {
		return types.NewError("rename", types.ErrInvalid, id.String(), fmt.Errorf("cannot rename onto the root folder"))
	}

	oldPath, ok := tx.lookupID(id)
	if !ok {
		return types.NewError("rename", types.ErrNotFound, id.String(), nil)
	}
	if oldPath == newPath {
		return nil
	}
	if other, taken := tx.lookupPath(newPath); taken && other != id {
		return types.NewError("rename", types.ErrConflict, newPath, fmt.Errorf("path is mapped to %s", other))
	}

	tx.paths[oldPath] = ""
	tx.paths[newPath] = id
	tx.ids[id] = newPath
	return nil
}

// RenameTree stages re-keying of the committed entries at or below oldDir
func (tx *Tx) RenameTree(oldDir, newDir string) (int, error) {
	if newDir != oldDir && types.IsWithin(newDir, oldDir) {
		return 0, types.NewError("rename_tree", types.ErrInvalid, newDir, fmt.Errorf("cannot move %q below itself", oldDir))
	}

	moving := tx.idx.tree.walk(oldDir)
	for _, m := range moving {
		if _, err := tx.Remove(m.ID); err != nil {
			return 0, err
		}
	}
	for _, m := range moving {
		if err := tx.Insert(types.Rebase(m.Path, oldDir, newDir), m.ID); err != nil {
			return 0, err
		}
	}
	return len(moving), nil
}

func (tx *Tx) batch() *store.Batch {
	b := store.NewBatch(tx.idx.version)
	for p, id := range tx.paths {
		committed, ok := tx.idx.pathToID[p]
		switch {
		case id.IsZero() && ok:
			b.Delete(pathPrefix + p)
		case !id.IsZero() && committed != id:
			b.Put(pathPrefix+p, []byte(id))
		}
	}
	for id, p := range tx.ids {
		committed, ok := tx.idx.idToPath[id]
		switch {
		case p == "" && ok:
			b.Delete(idPrefix + string(id))
		case p != "" && committed != p:
			b.Put(idPrefix+string(id), []byte(p))
		}
	}
	return b
}

func (tx *Tx) apply() {
	idx := tx.idx
	for p, id := range tx.paths {
		if id.IsZero() {
			if _, ok := idx.pathToID[p]; ok {
				delete(idx.pathToID, p)
				idx.tree.unset(p)
			}
		}
	}
	for p, id := range tx.paths {
		if !id.IsZero() {
			idx.pathToID[p] = id
			idx.tree.set(p, id)
		}
	}
	for id, p := range tx.ids {
		if p == "" {
			delete(idx.idToPath, id)
		} else {
			idx.idToPath[id] = p
		}
	}
}
