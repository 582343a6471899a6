// Package storage serves the live tree: folders and files addressed by
// stable identifiers below one storage root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/lock"
)

// staleTempAge is how old an upload leftover must be before startup removes it
const staleTempAge = time.Hour

// Service implements the live tree operations
type Service struct {
	root      string
	idx       *index.Indexes
	locks     *lock.Locker
	temp      *atomic.TempManager
	maxUpload int64
}

// Option configures a Service
type Option func(*Service)

// WithMaxUploadSize limits the size of uploaded files; zero is unlimited
func WithMaxUploadSize(n int64) Option {
	return func(s *Service) {
		s.maxUpload = n
	}
}

// NewService prepares root and removes upload leftovers of earlier runs
func NewService(root string, idx *index.Indexes, locks *lock.Locker, opts ...Option) (*Service, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	temp, err := atomic.NewTempManager(types.PhysicalPath(root, TempDirName))
	if err != nil {
		return nil, err
	}
	if n, err := temp.CleanupAll(staleTempAge); err != nil {
		slog.Warn("failed to clean up stale uploads", "error", err)
	} else if n > 0 {
		slog.Info("removed stale uploads", "count", n)
	}

	s := &Service{root: root, idx: idx, locks: locks, temp: temp}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the storage root
func (s *Service) Root() string {
	return s.root
}

func (s *Service) physical(p string) string {
	return types.PhysicalPath(s.root, p)
}

// folderPath resolves a folder identifier; the zero identifier is the root
func (s *Service) folderPath(id types.ID) (string, error) {
	if id.IsZero() {
		return "", nil
	}
	p, err := s.idx.Folders.Resolve(id)
	if err != nil {
		return "", types.NewError("resolve_folder", types.ErrNotFound, id.String(), nil)
	}
	return p, nil
}

// target validates name and builds its path below dir
func target(dir, name string) (string, error) {
	if err := types.ValidateName(name); err != nil {
		return "", err
	}
	p := types.JoinPath(dir, name)
	if p == TempDirName {
		return "", types.NewError("validate_name", types.ErrInvalid, name, fmt.Errorf("reserved name"))
	}
	return p, nil
}

func (s *Service) checkFree(op, p string) error {
	if s.idx.Occupied(p) {
		return types.NewError(op, types.ErrConflict, p, fmt.Errorf("path is occupied"))
	}
	exists, err := atomic.Exists(s.physical(p))
	if err != nil {
		return types.IOError(op, p, err)
	}
	if exists {
		return types.NewError(op, types.ErrConflict, p, fmt.Errorf("unmapped entry exists on disk"))
	}
	return nil
}

// CreateFolder creates name below parentID
func (s *Service) CreateFolder(ctx context.Context, parentID types.ID, name string) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	unlock := s.locks.Shared(parentID)
	defer unlock()

	dir, err := s.folderPath(parentID)
	if err != nil {
		return Folder{}, err
	}
	p, err := target(dir, name)
	if err != nil {
		return Folder{}, err
	}
	unlockPath := s.locks.Paths(p)
	defer unlockPath()

	if err := s.checkFree("create_folder", p); err != nil {
		return Folder{}, err
	}
	if err := os.Mkdir(s.physical(p), 0o755); err != nil {
		return Folder{}, types.IOError("create_folder", p, err)
	}
	id := types.NewID()
	if err := s.idx.Folders.Insert(p, id); err != nil {
		_ = os.Remove(s.physical(p))
		return Folder{}, err
	}

	slog.Info("folder created", "id", id, "path", p)
	return s.folder(id, p), nil
}

// ctxReader stops a copy once ctx is cancelled
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Upload stores r as name below folderID. The content is staged in a
// temporary file and only becomes visible once complete.
func (s *Service) Upload(ctx context.Context, folderID types.ID, name string, r io.Reader) (File, error) {
	if err := s.checkUpload(folderID, name); err != nil {
		return File{}, err
	}
	st, err := s.Stage(ctx, r)
	if err != nil {
		return File{}, err
	}
	return st.Commit(ctx, folderID, name)
}

// checkUpload rejects an upload before any content is read
func (s *Service) checkUpload(folderID types.ID, name string) error {
	unlock := s.locks.Shared(folderID)
	defer unlock()

	dir, err := s.folderPath(folderID)
	if err != nil {
		return err
	}
	p, err := target(dir, name)
	if err != nil {
		return err
	}
	return s.checkFree("upload", p)
}

// Staged is upload content held in the staging area. It is placed in the
// live tree by Commit or dropped by Discard.
type Staged struct {
	s *Service
	w *atomic.SafeWriter
}

// Stage copies r into the staging area, enforcing the upload size limit
func (s *Service) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	w, err := s.temp.NewSafeWriter("upload")
	if err != nil {
		return nil, types.IOError("upload", s.temp.Dir(), err)
	}
	if _, err := w.CopyFrom(ctxReader{ctx: ctx, r: r}, s.maxUpload); err != nil {
		w.Cleanup()
		switch {
		case errors.Is(err, atomic.ErrTooLarge):
			return nil, types.NewError("upload", types.ErrInvalid, "", err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		return nil, types.IOError("upload", "", err)
	}
	return &Staged{s: s, w: w}, nil
}

// Size returns the number of staged bytes
func (st *Staged) Size() int64 {
	return st.w.Size()
}

// Discard removes the staged content unless it was committed
func (st *Staged) Discard() {
	st.w.Cleanup()
}

// Commit places the staged content as name below folderID. The staged
// file is consumed whether or not the commit succeeds.
func (st *Staged) Commit(ctx context.Context, folderID types.ID, name string) (File, error) {
	s := st.s
	defer st.w.Cleanup()
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	unlock := s.locks.Shared(folderID)
	defer unlock()

	dir, err := s.folderPath(folderID)
	if err != nil {
		return File{}, err
	}
	p, err := target(dir, name)
	if err != nil {
		return File{}, err
	}
	unlockPath := s.locks.Paths(p)
	defer unlockPath()

	if err := s.checkFree("upload", p); err != nil {
		return File{}, err
	}
	if err := st.w.Commit(s.physical(p), false); err != nil {
		if atomic.IsDestinationExists(err) {
			return File{}, types.NewError("upload", types.ErrConflict, p, err)
		}
		return File{}, types.IOError("upload", p, err)
	}

	id := types.NewID()
	if err := s.idx.Files.Insert(p, id); err != nil {
		_ = os.Remove(s.physical(p))
		return File{}, err
	}

	slog.Info("file uploaded", "id", id, "path", p, "size", st.w.Size())
	return s.file(id, p), nil
}

// GetFile returns the metadata of a live file
func (s *Service) GetFile(id types.ID) (File, error) {
	p, err := s.idx.Files.Resolve(id)
	if err != nil {
		return File{}, err
	}
	return s.file(id, p), nil
}

// Open opens a live file for reading
func (s *Service) Open(id types.ID) (*os.File, File, error) {
	p, err := s.idx.Files.Resolve(id)
	if err != nil {
		return nil, File{}, err
	}
	f, err := os.Open(s.physical(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, File{}, types.NewError("open", types.ErrIO, p, fmt.Errorf("mapped file is missing on disk: %w", err))
		}
		return nil, File{}, types.IOError("open", p, err)
	}
	return f, s.file(id, p), nil
}

// ListFiles returns the files directly below folderID
func (s *Service) ListFiles(folderID types.ID) ([]File, error) {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return nil, err
	}
	children := s.idx.Files.Children(dir)
	files := make([]File, 0, len(children))
	for _, c := range children {
		files = append(files, s.file(c.ID, c.Path))
	}
	return files, nil
}

// GetFolder returns the metadata of a live folder
func (s *Service) GetFolder(id types.ID) (Folder, error) {
	p, err := s.idx.Folders.Resolve(id)
	if err != nil {
		return Folder{}, err
	}
	return s.folder(id, p), nil
}

// ListFolders returns the folders directly below parentID
func (s *Service) ListFolders(parentID types.ID) ([]Folder, error) {
	dir, err := s.folderPath(parentID)
	if err != nil {
		return nil, err
	}
	children := s.idx.Folders.Children(dir)
	folders := make([]Folder, 0, len(children))
	for _, c := range children {
		folders = append(folders, s.folder(c.ID, c.Path))
	}
	return folders, nil
}

// UpdateFile renames a file and/or moves it to another folder
func (s *Service) UpdateFile(ctx context.Context, id types.ID, u FileUpdate) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	ids := []types.ID{id}
	if u.FolderID != nil {
		ids = append(ids, *u.FolderID)
	}
	unlock := s.locks.Shared(ids...)
	defer unlock()

	old, err := s.idx.Files.Resolve(id)
	if err != nil {
		return File{}, err
	}
	dir, name := types.ParentPath(old), types.BaseName(old)
	if u.FolderID != nil {
		if dir, err = s.folderPath(*u.FolderID); err != nil {
			return File{}, err
		}
	}
	if u.Name != nil {
		name = *u.Name
	}
	p, err := target(dir, name)
	if err != nil {
		return File{}, err
	}
	if p == old {
		return s.file(id, p), nil
	}

	unlockPath := s.locks.Paths(p)
	defer unlockPath()
	if err := s.relocate("update_file", old, p); err != nil {
		return File{}, err
	}
	if err := s.idx.Files.Rename(id, p); err != nil {
		s.undoRelocate(p, old)
		return File{}, err
	}

	slog.Info("file moved", "id", id, "from", old, "to", p)
	return s.file(id, p), nil
}

// UpdateFolder renames a folder and/or moves it below another folder.
// Every descendant is re-keyed with it.
func (s *Service) UpdateFolder(ctx context.Context, id types.ID, u FolderUpdate) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	ids := []types.ID{id}
	if u.ParentID != nil {
		ids = append(ids, *u.ParentID)
	}
	unlock := s.locks.Exclusive(ids...)
	defer unlock()

	old, err := s.idx.Folders.Resolve(id)
	if err != nil {
		return Folder{}, err
	}
	dir, name := types.ParentPath(old), types.BaseName(old)
	if u.ParentID != nil {
		if *u.ParentID == id {
			return Folder{}, types.NewError("update_folder", types.ErrInvalid, old, fmt.Errorf("folder cannot contain itself"))
		}
		if dir, err = s.folderPath(*u.ParentID); err != nil {
			return Folder{}, err
		}
	}
	if u.Name != nil {
		name = *u.Name
	}
	p, err := target(dir, name)
	if err != nil {
		return Folder{}, err
	}
	if p == old {
		return s.folder(id, p), nil
	}
	if types.IsWithin(p, old) {
		return Folder{}, types.NewError("update_folder", types.ErrInvalid, p, fmt.Errorf("folder cannot move below itself"))
	}

	if err := s.relocate("update_folder", old, p); err != nil {
		return Folder{}, err
	}
	if _, err := s.idx.Folders.RenameTree(old, p); err != nil {
		s.undoRelocate(p, old)
		return Folder{}, err
	}
	n, err := s.idx.Files.RenameTree(old, p)
	if err != nil {
		if _, rbErr := s.idx.Folders.RenameTree(p, old); rbErr != nil {
			slog.Error("failed to roll back folder rename", "id", id, "error", rbErr)
			return Folder{}, errors.Join(err, rbErr)
		}
		s.undoRelocate(p, old)
		return Folder{}, err
	}

	slog.Info("folder moved", "id", id, "from", old, "to", p, "files", n)
	return s.folder(id, p), nil
}

func (s *Service) relocate(op, from, to string) error {
	if err := s.checkFree(op, to); err != nil {
		return err
	}
	if err := atomic.Move(s.physical(from), s.physical(to), atomic.MoveOptions{}); err != nil {
		switch {
		case atomic.IsDestinationExists(err):
			return types.NewError(op, types.ErrConflict, to, err)
		case errors.Is(err, atomic.ErrSourceNotFound):
			return types.NewError(op, types.ErrIO, from, fmt.Errorf("mapped entry is missing on disk: %w", err))
		}
		return types.IOError(op, from, err)
	}
	return nil
}

func (s *Service) undoRelocate(from, to string) {
	if err := atomic.Move(s.physical(from), s.physical(to), atomic.MoveOptions{}); err != nil {
		slog.Error("failed to undo move", "from", from, "to", to, "error", err)
	}
}

func (s *Service) parentID(p string) types.ID {
	parent := types.ParentPath(p)
	if parent == "" {
		return ""
	}
	id, err := s.idx.Folders.ResolvePath(parent)
	if err != nil {
		return ""
	}
	return id
}

func (s *Service) file(id types.ID, p string) File {
	f := File{ID: id, Name: types.BaseName(p), Path: p, FolderID: s.parentID(p)}
	if info, err := os.Stat(s.physical(p)); err == nil {
		f.Size = info.Size()
		f.ModTime = info.ModTime().UTC()
	}
	return f
}

func (s *Service) folder(id types.ID, p string) Folder {
	f := Folder{ID: id, Name: types.BaseName(p), Path: p, ParentID: s.parentID(p)}
	if info, err := os.Stat(s.physical(p)); err == nil {
		f.ModTime = info.ModTime().UTC()
	}
	return f
}
