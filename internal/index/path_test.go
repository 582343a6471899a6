package index

import (
	"errors"
	"sync"
	"testing"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
	"github.com/babarot/stowage/internal/store/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails commits while failing is set
type flakyBackend struct {
	store.Backend
	mu      sync.Mutex
	failing bool
}

func (f *flakyBackend) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyBackend) Commit(ns string, b *store.Batch) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.Backend.Commit(ns, b)
}

func newBackend(t *testing.T, dir string) *flakyBackend {
	t.Helper()
	s, err := jsonfile.Open(dir)
	require.NoError(t, err)
	return &flakyBackend{Backend: s}
}

func TestPathIndexRoundTrip(t *testing.T) {
	idx, err := OpenPathIndex(newBackend(t, t.TempDir()), types.ItemFile)
	require.NoError(t, err)

	id := types.NewID()
	require.NoError(t, idx.Insert("docs/a.txt", id))

	p, err := idx.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", p)

	got, err := idx.ResolvePath("/docs//a.txt")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, uint64(1), idx.Version())

	// identical pair is a no-op and does not bump the version
	require.NoError(t, idx.Insert("docs/a.txt", id))
	assert.Equal(t, uint64(1), idx.Version())
}

func TestPathIndexConflicts(t *testing.T) {
	idx, err := OpenPathIndex(newBackend(t, t.TempDir()), types.ItemFile)
	require.NoError(t, err)

	a, b := types.NewID(), types.NewID()
	require.NoError(t, idx.Insert("a.txt", a))
	require.NoError(t, idx.Insert("b.txt", b))

	assert.ErrorIs(t, idx.Insert("a.txt", b), types.ErrConflict)
	assert.ErrorIs(t, idx.Insert("c.txt", a), types.ErrConflict)
	assert.ErrorIs(t, idx.Rename(a, "b.txt"), types.ErrConflict)
	assert.ErrorIs(t, idx.Insert("", types.NewID()), types.ErrInvalid)
	assert.ErrorIs(t, idx.Insert("../x", types.NewID()), types.ErrInvalid)

	_, err = idx.Remove(types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = idx.Resolve(types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPathIndexRename(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenPathIndex(newBackend(t, dir), types.ItemFile)
	require.NoError(t, err)

	id := types.NewID()
	require.NoError(t, idx.Insert("old.txt", id))
	require.NoError(t, idx.Rename(id, "sub/new.txt"))

	_, err = idx.ResolvePath("old.txt")
	assert.ErrorIs(t, err, types.ErrNotFound)
	p, err := idx.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, "sub/new.txt", p)

	reopened, err := OpenPathIndex(newBackend(t, dir), types.ItemFile)
	require.NoError(t, err)
	p, err = reopened.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, "sub/new.txt", p)
	assert.Equal(t, idx.Version(), reopened.Version())
}

func TestPathIndexCommitFailureLeavesStateUntouched(t *testing.T) {
	backend := newBackend(t, t.TempDir())
	idx, err := OpenPathIndex(backend, types.ItemFile)
	require.NoError(t, err)

	id := types.NewID()
	require.NoError(t, idx.Insert("keep.txt", id))

	backend.setFailing(true)
	err = idx.Rename(id, "moved.txt")
	require.ErrorIs(t, err, types.ErrIO)

	p, err := idx.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, "keep.txt", p)
	assert.Equal(t, uint64(1), idx.Version())

	err = idx.InsertMany([]types.Mapping{{Path: "x", ID: types.NewID()}, {Path: "y", ID: types.NewID()}})
	require.Error(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestPathIndexInsertManyIsAllOrNothing(t *testing.T) {
	idx, err := OpenPathIndex(newBackend(t, t.TempDir()), types.ItemFile)
	require.NoError(t, err)

	taken := types.NewID()
	require.NoError(t, idx.Insert("taken.txt", taken))

	err = idx.InsertMany([]types.Mapping{
		{Path: "fresh.txt", ID: types.NewID()},
		{Path: "taken.txt", ID: types.NewID()},
	})
	require.ErrorIs(t, err, types.ErrConflict)
	_, err = idx.ResolvePath("fresh.txt")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPathIndexTree(t *testing.T) {
	idx, err := OpenPathIndex(newBackend(t, t.TempDir()), types.ItemFile)
	require.NoError(t, err)

	ids := map[string]types.ID{}
	for _, p := range []string{"a/1.txt", "a/2.txt", "a/b/3.txt", "c/4.txt", "top.txt"} {
		ids[p] = types.NewID()
		require.NoError(t, idx.Insert(p, ids[p]))
	}

	children := idx.Children("a")
	require.Len(t, children, 2)
	assert.Equal(t, "a/1.txt", children[0].Path)
	assert.Equal(t, "a/2.txt", children[1].Path)

	walked := idx.Walk("a")
	assert.Len(t, walked, 3)
	assert.Len(t, idx.Walk(""), 5)
	assert.Empty(t, idx.Walk("missing"))

	n, err := idx.RenameTree("a", "z/a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	p, err := idx.Resolve(ids["a/b/3.txt"])
	require.NoError(t, err)
	assert.Equal(t, "z/a/b/3.txt", p)
	assert.Empty(t, idx.Walk("a"))

	_, err = idx.RenameTree("z", "z/a/deeper")
	assert.ErrorIs(t, err, types.ErrInvalid)

	require.NoError(t, idx.RemoveMany([]types.ID{ids["c/4.txt"], ids["top.txt"]}))
	assert.Empty(t, idx.Children(""))
	assert.Equal(t, 3, idx.Len())
}

func TestPathIndexDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	backend := newBackend(t, dir)

	b := store.NewBatch(0)
	b.Put("p:a.txt", []byte("id-1"))
	b.Put("i:id-1", []byte("b.txt"))
	require.NoError(t, backend.Commit(store.NamespaceFileIDs, b))

	_, err := OpenPathIndex(backend, types.ItemFile)
	require.ErrorIs(t, err, types.ErrIndexCorrupt)

	b = store.NewBatch(0)
	b.Put("p:x", []byte("id-2"))
	require.NoError(t, backend.Commit(store.NamespaceFolderIDs, b))
	_, err = OpenPathIndex(backend, types.ItemFolder)
	require.ErrorIs(t, err, types.ErrIndexCorrupt)
}

func TestPathIndexConcurrentWriters(t *testing.T) {
	idx, err := OpenPathIndex(newBackend(t, t.TempDir()), types.ItemFile)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := types.NewID()
			p := types.JoinPath("dir", id.String())
			if i%2 == 0 {
				p = types.JoinPath("other", id.String())
			}
			assert.NoError(t, idx.Insert(p, id))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, idx.Len())
	assert.Equal(t, uint64(20), idx.Version())
	assert.Len(t, idx.Walk("dir"), 10)
}
