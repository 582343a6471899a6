// Package index holds the persistent registries that translate storage
// paths to stable identifiers and track trashed items.
package index

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
	"github.com/babarot/stowage/internal/store/badgerdb"
	"github.com/babarot/stowage/internal/store/jsonfile"
)

// Backend kinds accepted by OpenBackend
const (
	BackendBadger = "badger"
	BackendJSON   = "json"
)

// OpenBackend opens the persistence engine named kind below dir
func OpenBackend(kind, dir string, logger *slog.Logger) (store.Backend, error) {
	switch kind {
	case BackendBadger, "":
		return badgerdb.Open(badgerdb.Options{
			Dir:    filepath.Join(dir, "badger"),
			Logger: logger,
		})
	case BackendJSON:
		return jsonfile.Open(filepath.Join(dir, "json"))
	default:
		return nil, fmt.Errorf("unknown index backend %q", kind)
	}
}

// Indexes bundles the registries sharing one backend
type Indexes struct {
	Files   *PathIndex
	Folders *PathIndex
	Trash   *TrashIndex
	backend store.Backend
}

// Open loads every registry from backend. Any inconsistency aborts with
// types.ErrIndexCorrupt; nothing is reset.
func Open(backend store.Backend) (*Indexes, error) {
	files, err := OpenPathIndex(backend, types.ItemFile)
	if err != nil {
		return nil, err
	}
	folders, err := OpenPathIndex(backend, types.ItemFolder)
	if err != nil {
		return nil, err
	}
	trash, err := OpenTrashIndex(backend)
	if err != nil {
		return nil, err
	}
	return &Indexes{
		Files:   files,
		Folders: folders,
		Trash:   trash,
		backend: backend,
	}, nil
}

// Backend returns the shared persistence engine
func (x *Indexes) Backend() store.Backend {
	return x.backend
}

// Of returns the path index tracking the given kind
func (x *Indexes) Of(kind types.ItemType) *PathIndex {
	if kind == types.ItemFolder {
		return x.Folders
	}
	return x.Files
}

// Descendants lists every file and folder strictly below dir with paths
// relative to dir. Folders come first, parents before children.
func (x *Indexes) Descendants(dir string) []types.Descendant {
	var out []types.Descendant
	for _, m := range x.Folders.Walk(dir) {
		if m.Path == dir {
			continue
		}
		out = append(out, types.Descendant{RelPath: types.RelPath(m.Path, dir), ID: m.ID, Type: types.ItemFolder})
	}
	for _, m := range x.Files.Walk(dir) {
		if m.Path == dir {
			continue
		}
		out = append(out, types.Descendant{RelPath: types.RelPath(m.Path, dir), ID: m.ID, Type: types.ItemFile})
	}
	return out
}

// Occupied reports whether p is mapped in either index
func (x *Indexes) Occupied(p string) bool {
	if _, err := x.Files.ResolvePath(p); err == nil {
		return true
	}
	if _, err := x.Folders.ResolvePath(p); err == nil {
		return true
	}
	return false
}

// Close releases the backend
func (x *Indexes) Close() error {
	return x.backend.Close()
}
