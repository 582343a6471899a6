package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/lock"
	"github.com/babarot/stowage/internal/store/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...Option) (*Service, *index.Indexes) {
	t.Helper()
	dir := t.TempDir()
	backend, err := jsonfile.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	idx, err := index.Open(backend)
	require.NoError(t, err)
	s, err := NewService(filepath.Join(dir, "live"), idx, lock.New(), opts...)
	require.NoError(t, err)
	return s, idx
}

func upload(t *testing.T, s *Service, folder types.ID, name, content string) File {
	t.Helper()
	f, err := s.Upload(context.Background(), folder, name, strings.NewReader(content))
	require.NoError(t, err)
	return f
}

func TestUploadAndOpen(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	docs, err := s.CreateFolder(ctx, "", "docs")
	require.NoError(t, err)
	f := upload(t, s, docs.ID, "a.txt", "hello")

	assert.Equal(t, "docs/a.txt", f.Path)
	assert.Equal(t, docs.ID, f.FolderID)
	assert.Equal(t, int64(5), f.Size)

	r, meta, err := s.Open(f.ID)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, f.ID, meta.ID)

	files, err := s.ListFiles(docs.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, f.ID, files[0].ID)

	entries, err := os.ReadDir(filepath.Join(s.Root(), TempDirName))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging files must not be left behind")
}

func TestUploadErrors(t *testing.T) {
	s, _ := newService(t, WithMaxUploadSize(4))
	ctx := context.Background()
	upload(t, s, "", "a.txt", "1234")

	testCases := []struct {
		name   string
		folder types.ID
		file   string
		body   string
		kind   error
	}{
		{name: "occupied", file: "a.txt", body: "x", kind: types.ErrConflict},
		{name: "too large", file: "b.txt", body: "12345", kind: types.ErrInvalid},
		{name: "bad name", file: "../x", body: "x", kind: types.ErrInvalid},
		{name: "reserved", file: TempDirName, body: "x", kind: types.ErrInvalid},
		{name: "unknown folder", folder: types.NewID(), file: "c.txt", body: "x", kind: types.ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Upload(ctx, tc.folder, tc.file, strings.NewReader(tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.kind, types.KindOf(err))
		})
	}

	_, err := os.Stat(filepath.Join(s.Root(), "b.txt"))
	assert.True(t, os.IsNotExist(err), "oversized upload must not become visible")
}

func TestStageThenCommit(t *testing.T) {
	s, _ := newService(t, WithMaxUploadSize(16))
	ctx := context.Background()
	docs, err := s.CreateFolder(ctx, "", "docs")
	require.NoError(t, err)

	st, err := s.Stage(ctx, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size())
	f, err := st.Commit(ctx, docs.ID, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", f.Path)
	st.Discard()

	dropped, err := s.Stage(ctx, strings.NewReader("bye"))
	require.NoError(t, err)
	dropped.Discard()

	_, err = s.Stage(ctx, strings.NewReader(strings.Repeat("x", 17)))
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))

	upload(t, s, "", "taken.txt", "x")
	conflicted, err := s.Stage(ctx, strings.NewReader("y"))
	require.NoError(t, err)
	_, err = conflicted.Commit(ctx, "", "taken.txt")
	assert.True(t, types.IsConflict(err))

	entries, err := os.ReadDir(filepath.Join(s.Root(), TempDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(s.Root(), "docs", "a.txt"))
	assert.NoError(t, err)
}

func TestCreateFolderConflict(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.CreateFolder(ctx, "", "docs")
	require.NoError(t, err)
	_, err = s.CreateFolder(ctx, "", "docs")
	assert.True(t, types.IsConflict(err))

	upload(t, s, "", "notes", "x")
	_, err = s.CreateFolder(ctx, "", "notes")
	assert.True(t, types.IsConflict(err))
}

func TestUpdateFile(t *testing.T) {
	s, idx := newService(t)
	ctx := context.Background()
	docs, err := s.CreateFolder(ctx, "", "docs")
	require.NoError(t, err)
	f := upload(t, s, "", "a.txt", "a")

	name := "b.txt"
	moved, err := s.UpdateFile(ctx, f.ID, FileUpdate{Name: &name, FolderID: &docs.ID})
	require.NoError(t, err)
	assert.Equal(t, f.ID, moved.ID)
	assert.Equal(t, "docs/b.txt", moved.Path)

	p, err := idx.Files.Resolve(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "docs/b.txt", p)
	assert.FileExists(t, filepath.Join(s.Root(), "docs", "b.txt"))

	other := upload(t, s, "", "c.txt", "c")
	_, err = s.UpdateFile(ctx, other.ID, FileUpdate{FolderID: &docs.ID, Name: &name})
	assert.True(t, types.IsConflict(err))

	_, err = s.UpdateFile(ctx, types.NewID(), FileUpdate{Name: &name})
	assert.True(t, types.IsNotFound(err))
}

func TestUpdateFolderRekeysDescendants(t *testing.T) {
	s, idx := newService(t)
	ctx := context.Background()
	photos, err := s.CreateFolder(ctx, "", "photos")
	require.NoError(t, err)
	y2024, err := s.CreateFolder(ctx, photos.ID, "2024")
	require.NoError(t, err)
	f := upload(t, s, y2024.ID, "x.jpg", "x")

	name := "pictures"
	renamed, err := s.UpdateFolder(ctx, photos.ID, FolderUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "pictures", renamed.Path)

	p, err := idx.Folders.Resolve(y2024.ID)
	require.NoError(t, err)
	assert.Equal(t, "pictures/2024", p)
	p, err = idx.Files.Resolve(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "pictures/2024/x.jpg", p)
	assert.FileExists(t, filepath.Join(s.Root(), "pictures", "2024", "x.jpg"))

	// moving below itself is rejected
	_, err = s.UpdateFolder(ctx, photos.ID, FolderUpdate{ParentID: &y2024.ID})
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))
	_, err = s.UpdateFolder(ctx, photos.ID, FolderUpdate{ParentID: &photos.ID})
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))
}

func TestListFolders(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"b", "a"} {
		_, err := s.CreateFolder(ctx, "", name)
		require.NoError(t, err)
	}
	folders, err := s.ListFolders("")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "a", folders[0].Name)
	assert.Equal(t, "b", folders[1].Name)

	_, err = s.ListFolders(types.NewID())
	assert.True(t, types.IsNotFound(err))
}
