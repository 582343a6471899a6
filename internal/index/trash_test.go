package index

import (
	"testing"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(name string) types.TrashEntry {
	now := time.Now().UTC()
	return types.TrashEntry{
		OriginalID:   types.NewID(),
		Type:         types.ItemFile,
		Name:         name,
		OriginalPath: name,
		TrashedAt:    now,
		DeletionDate: now.Add(30 * 24 * time.Hour),
	}
}

func TestTrashIndexOrderAndReload(t *testing.T) {
	dir := t.TempDir()
	ti, err := OpenTrashIndex(newBackend(t, dir))
	require.NoError(t, err)

	var ids []types.ID
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		id, err := ti.AddEntry(newEntry(name))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	names := func(entries []types.TrashEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"c.txt", "a.txt", "b.txt"}, names(ti.List()))

	reopened, err := OpenTrashIndex(newBackend(t, dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt", "a.txt", "b.txt"}, names(reopened.List()))

	_, err = reopened.Remove(ids[1])
	require.NoError(t, err)
	id, err := reopened.AddEntry(newEntry("d.txt"))
	require.NoError(t, err)
	e, err := reopened.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.Seq)
}

func TestTrashIndexOneEntryPerOriginal(t *testing.T) {
	ti, err := OpenTrashIndex(newBackend(t, t.TempDir()))
	require.NoError(t, err)

	e := newEntry("x.txt")
	id, err := ti.AddEntry(e)
	require.NoError(t, err)

	_, err = ti.AddEntry(e)
	assert.ErrorIs(t, err, types.ErrConflict)

	found, err := ti.FindByOriginal(e.OriginalID)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	_, err = ti.Remove(id)
	require.NoError(t, err)
	_, err = ti.Remove(id)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = ti.FindByOriginal(e.OriginalID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTrashIndexKeepsCallerID(t *testing.T) {
	ti, err := OpenTrashIndex(newBackend(t, t.TempDir()))
	require.NoError(t, err)

	e := newEntry("slot.txt")
	e.ID = types.NewID()
	id, err := ti.AddEntry(e)
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)
}

func TestTrashIndexClear(t *testing.T) {
	backend := newBackend(t, t.TempDir())
	ti, err := OpenTrashIndex(backend)
	require.NoError(t, err)

	for _, name := range []string{"1", "2", "3"} {
		_, err := ti.AddEntry(newEntry(name))
		require.NoError(t, err)
	}

	backend.setFailing(true)
	_, err = ti.Clear()
	require.ErrorIs(t, err, types.ErrIO)
	assert.Equal(t, 3, ti.Len())

	backend.setFailing(false)
	n, err := ti.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, ti.List())
}

func TestTrashIndexCorruptEntry(t *testing.T) {
	backend := newBackend(t, t.TempDir())
	b := store.NewBatch(0)
	b.Put("e:abc", []byte("{broken"))
	require.NoError(t, backend.Commit(store.NamespaceTrash, b))

	_, err := OpenTrashIndex(backend)
	require.ErrorIs(t, err, types.ErrIndexCorrupt)
}

func TestIndexesDescendants(t *testing.T) {
	backend := newBackend(t, t.TempDir())
	x, err := Open(backend)
	require.NoError(t, err)

	docs, sub := types.NewID(), types.NewID()
	require.NoError(t, x.Folders.Insert("docs", docs))
	require.NoError(t, x.Folders.Insert("docs/sub", sub))
	f1, f2 := types.NewID(), types.NewID()
	require.NoError(t, x.Files.Insert("docs/a.txt", f1))
	require.NoError(t, x.Files.Insert("docs/sub/b.txt", f2))
	require.NoError(t, x.Files.Insert("other.txt", types.NewID()))

	got := x.Descendants("docs")
	assert.Equal(t, []types.Descendant{
		{RelPath: "sub", ID: sub, Type: types.ItemFolder},
		{RelPath: "a.txt", ID: f1, Type: types.ItemFile},
		{RelPath: "sub/b.txt", ID: f2, Type: types.ItemFile},
	}, got)

	assert.True(t, x.Occupied("docs/a.txt"))
	assert.True(t, x.Occupied("docs/sub"))
	assert.False(t, x.Occupied("docs/none"))
}
