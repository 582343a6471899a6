package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/lock"
	"github.com/babarot/stowage/internal/store"
)

// Manager coordinates the trash lifecycle: it keeps the path indexes,
// the trash index and the quarantine tree consistent with each other
// across trash, restore and purge.
type Manager struct {
	cfg     Config
	idx     *index.Indexes
	store   *Store
	journal *Journal
	review  *index.Collection[ReviewItem]
	locks   *lock.Locker
	now     func() time.Time
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLocker shares an existing Locker with other services
func WithLocker(l *lock.Locker) ManagerOption {
	return func(m *Manager) {
		m.locks = l
	}
}

// NewManager creates a new trash manager with the given configuration
func NewManager(cfg Config, idx *index.Indexes, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := NewStore(cfg.TrashRoot, cfg.AllowCrossDevice)
	if err != nil {
		return nil, err
	}
	journal, err := OpenJournal(idx.Backend())
	if err != nil {
		return nil, err
	}
	review, err := index.OpenCollection[ReviewItem](idx.Backend(), store.NamespaceReview)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		idx:     idx,
		store:   st,
		journal: journal,
		review:  review,
		locks:   lock.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	checkMounts(cfg.StorageRoot, cfg.TrashRoot, cfg.AllowCrossDevice)
	return m, nil
}

// Store returns the quarantine store
func (m *Manager) Store() *Store {
	return m.store
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) physical(p string) string {
	return types.PhysicalPath(m.cfg.StorageRoot, p)
}

// finish drops the journal intent; a failure only leaves work for Recover
func (m *Manager) finish(id types.ID) {
	if err := m.journal.Finish(id); err != nil {
		slog.Error("failed to clear journal intent", "id", id, "error", err)
	}
}

// Trash moves a live file or folder into the trash. For folders every
// descendant disappears from the live indexes together with the folder.
func (m *Manager) Trash(ctx context.Context, kind types.ItemType, id types.ID) (types.TrashEntry, error) {
	if err := ctx.Err(); err != nil {
		return types.TrashEntry{}, err
	}
	unlock := m.locks.For(kind, id)
	defer unlock()

	p, err := m.idx.Of(kind).Resolve(id)
	if err != nil {
		return types.TrashEntry{}, types.NewError("trash", types.ErrNotFound, id.String(), nil)
	}

	now := m.now().UTC()
	entry := types.TrashEntry{
		ID:           types.NewID(),
		OriginalID:   id,
		Type:         kind,
		Name:         types.BaseName(p),
		OriginalPath: p,
		TrashedAt:    now,
	}
	if m.cfg.Retention > 0 {
		entry.DeletionDate = now.Add(m.cfg.Retention)
	}
	if kind == types.ItemFolder {
		entry.Descendants = m.idx.Descendants(p)
	}
	src := m.physical(p)
	if size, err := DirSize(src); err == nil {
		entry.Size = size
	}

	if err := m.journal.Begin(Intent{ID: entry.ID, Operation: OperationTrash, Entry: entry, LivePath: p, CreatedAt: now}); err != nil {
		return types.TrashEntry{}, err
	}

	if _, err := m.store.Quarantine(kind, src, entry.ID); err != nil {
		m.finish(entry.ID)
		if types.IsNotFound(err) {
			err = types.NewError("trash", types.ErrIO, p, err)
		}
		return types.TrashEntry{}, err
	}

	if _, err := m.idx.Trash.AddEntry(entry); err != nil {
		return types.TrashEntry{}, m.rollbackTrash(entry, src, false, err)
	}
	if err := m.unmap(entry); err != nil {
		return types.TrashEntry{}, m.rollbackTrash(entry, src, true, err)
	}

	m.finish(entry.ID)
	slog.Info("moved to trash", "kind", kind, "id", id, "path", p, "trash_id", entry.ID, "descendants", len(entry.Descendants))
	return entry, nil
}

// rollbackTrash undoes a partially applied Trash. When the rollback
// itself fails the journal intent is kept for Recover.
func (m *Manager) rollbackTrash(entry types.TrashEntry, src string, entryAdded bool, cause error) error {
	var errs []error
	if entryAdded {
		if _, err := m.idx.Trash.Remove(entry.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.store.Release(entry.Type, entry.ID, src); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		slog.Error("failed to roll back trash", "trash_id", entry.ID, "path", entry.OriginalPath, "error", errors.Join(errs...))
		return errors.Join(append([]error{cause}, errs...)...)
	}
	m.finish(entry.ID)
	return cause
}

// Restored describes a completed restore
type Restored struct {
	Entry types.TrashEntry `json:"entry"`
	Path  string           `json:"path"`
}

// Restore moves a trashed item back into the live tree under its
// original identifier. Missing ancestor folders are recreated. An
// occupied destination is handled by the configured policy.
func (m *Manager) Restore(ctx context.Context, trashID types.ID) (Restored, error) {
	if err := ctx.Err(); err != nil {
		return Restored{}, err
	}
	entry, err := m.idx.Trash.Get(trashID)
	if err != nil {
		return Restored{}, err
	}
	unlock := m.locks.For(entry.Type, trashID, entry.OriginalID)
	defer unlock()

	// re-read under the lock, a concurrent purge or restore may have won
	entry, err = m.idx.Trash.Get(trashID)
	if err != nil {
		return Restored{}, err
	}
	if _, err := m.idx.Of(entry.Type).Resolve(entry.OriginalID); err == nil {
		return Restored{}, types.NewError("restore", types.ErrConflict, entry.OriginalID.String(), fmt.Errorf("identifier is already live"))
	}

	dest, err := m.destination(entry)
	if err != nil {
		return Restored{}, err
	}
	unlockPath := m.locks.Paths(dest)
	defer unlockPath()
	if m.occupied(dest) {
		return Restored{}, types.NewError("restore", types.ErrConflict, dest, fmt.Errorf("destination was taken concurrently"))
	}
	created, err := m.ensureAncestors(types.ParentPath(dest))
	if err != nil {
		return Restored{}, err
	}

	if err := m.journal.Begin(Intent{ID: trashID, Operation: OperationRestore, Entry: entry, LivePath: dest, CreatedAt: m.now().UTC()}); err != nil {
		m.removeAncestors(created)
		return Restored{}, err
	}

	target := m.physical(dest)
	if err := m.store.Release(entry.Type, trashID, target); err != nil {
		m.removeAncestors(created)
		m.finish(trashID)
		if types.IsNotFound(err) {
			err = types.NewError("restore", types.ErrIO, trashID.String(), err)
		}
		return Restored{}, err
	}

	if err := m.remap(entry, dest); err != nil {
		return Restored{}, m.rollbackRestore(entry, target, created, false, err)
	}
	if _, err := m.idx.Trash.Remove(trashID); err != nil {
		return Restored{}, m.rollbackRestore(entry, target, created, true, err)
	}

	m.finish(trashID)
	slog.Info("restored from trash", "kind", entry.Type, "id", entry.OriginalID, "path", dest, "trash_id", trashID)
	return Restored{Entry: entry, Path: dest}, nil
}

func (m *Manager) rollbackRestore(entry types.TrashEntry, target string, created []types.Mapping, mapped bool, cause error) error {
	var errs []error
	if mapped {
		if err := m.unmap(entry); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := m.store.Quarantine(entry.Type, target, entry.ID); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		slog.Error("failed to roll back restore", "trash_id", entry.ID, "error", errors.Join(errs...))
		return errors.Join(append([]error{cause}, errs...)...)
	}
	m.removeAncestors(created)
	m.finish(entry.ID)
	return cause
}

// Purge permanently deletes a trashed item. A payload that already
// vanished from disk does not prevent the entry from being dropped.
func (m *Manager) Purge(ctx context.Context, trashID types.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := m.locks.Shared(trashID)
	defer unlock()

	entry, err := m.idx.Trash.Get(trashID)
	if err != nil {
		return err
	}
	return m.purge(entry)
}

func (m *Manager) purge(entry types.TrashEntry) error {
	if err := m.journal.Begin(Intent{ID: entry.ID, Operation: OperationPurge, Entry: entry, CreatedAt: m.now().UTC()}); err != nil {
		return err
	}
	if err := m.store.Purge(entry.Type, entry.ID); err != nil && !types.IsNotFound(err) {
		m.finish(entry.ID)
		return err
	}
	if _, err := m.idx.Trash.Remove(entry.ID); err != nil {
		// the payload is gone; Recover drops the entry
		return err
	}
	m.finish(entry.ID)
	slog.Info("purged from trash", "kind", entry.Type, "trash_id", entry.ID, "name", entry.Name)
	return nil
}

// Empty purges every entry. Each entry is handled independently and its
// outcome recorded; cancellation stops before the next entry.
func (m *Manager) Empty(ctx context.Context) (*Report, error) {
	return m.purgeAll(ctx, m.idx.Trash.List())
}

// PurgeExpired purges the entries whose deletion date is not after now
func (m *Manager) PurgeExpired(ctx context.Context, now time.Time) (*Report, error) {
	var expired []types.TrashEntry
	for _, e := range m.idx.Trash.List() {
		if e.Expired(now) {
			expired = append(expired, e)
		}
	}
	return m.purgeAll(ctx, expired)
}

func (m *Manager) purgeAll(ctx context.Context, entries []types.TrashEntry) (*Report, error) {
	report := &Report{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return report, err
		}
		err := m.Purge(ctx, e.ID)
		switch {
		case err == nil:
			report.add(Outcome{ID: e.ID, Name: e.Name, Status: StatusPurged})
		case types.IsNotFound(err):
			report.add(Outcome{ID: e.ID, Name: e.Name, Status: StatusSkipped})
		default:
			slog.Error("failed to purge entry", "trash_id", e.ID, "name", e.Name, "error", err)
			report.add(Outcome{ID: e.ID, Name: e.Name, Status: StatusFailed, Err: err})
		}
	}
	return report, nil
}

// List returns the trash entries matching opts, oldest first
func (m *Manager) List(opts FilterOptions) []types.TrashEntry {
	return Filter(m.idx.Trash.List(), opts)
}

// Get returns one trash entry
func (m *Manager) Get(trashID types.ID) (types.TrashEntry, error) {
	return m.idx.Trash.Get(trashID)
}

// destination picks where entry is restored to
func (m *Manager) destination(entry types.TrashEntry) (string, error) {
	if !m.occupied(entry.OriginalPath) {
		return entry.OriginalPath, nil
	}
	if m.cfg.RestoreConflict == RestoreFail {
		return "", types.NewError("restore", types.ErrConflict, entry.OriginalPath, fmt.Errorf("original location is occupied"))
	}

	parent := types.ParentPath(entry.OriginalPath)
	for n := 1; n < 1000; n++ {
		candidate := types.JoinPath(parent, types.CandidateName(entry.Name, entry.Type, n))
		if !m.occupied(candidate) {
			slog.Debug("original location occupied, restoring under a new name", "original", entry.OriginalPath, "path", candidate)
			return candidate, nil
		}
	}
	return "", types.NewError("restore", types.ErrConflict, entry.OriginalPath, fmt.Errorf("no free name next to the original location"))
}

func (m *Manager) occupied(p string) bool {
	if m.idx.Occupied(p) {
		return true
	}
	exists, err := atomic.Exists(m.physical(p))
	return exists || err != nil
}

// ensureAncestors maps and creates every missing folder from the root down
// to dir and returns the ones it created
func (m *Manager) ensureAncestors(dir string) ([]types.Mapping, error) {
	if dir == "" {
		return nil, nil
	}
	var (
		created []types.Mapping
		current string
	)
	for _, seg := range types.Segments(dir) {
		current = types.JoinPath(current, seg)
		if _, err := m.idx.Folders.ResolvePath(current); err == nil {
			continue
		}
		if _, err := m.idx.Files.ResolvePath(current); err == nil {
			m.removeAncestors(created)
			return nil, types.NewError("restore", types.ErrConflict, current, fmt.Errorf("a file occupies an ancestor folder"))
		}

		if err := os.Mkdir(m.physical(current), 0o755); err != nil && !os.IsExist(err) {
			m.removeAncestors(created)
			return nil, types.IOError("restore", current, err)
		}
		id := types.NewID()
		if err := m.idx.Folders.Insert(current, id); err != nil {
			if _, resolveErr := m.idx.Folders.ResolvePath(current); resolveErr == nil {
				// created concurrently
				continue
			}
			m.removeAncestors(created)
			return nil, err
		}
		created = append(created, types.Mapping{Path: current, ID: id})
		slog.Debug("recreated ancestor folder", "path", current, "id", id)
	}
	return created, nil
}

// removeAncestors undoes ensureAncestors. A folder that gained entries
// from a concurrent operation in the meantime is kept.
func (m *Manager) removeAncestors(created []types.Mapping) {
	for i := len(created) - 1; i >= 0; i-- {
		a := created[i]
		if len(m.idx.Descendants(a.Path)) > 0 {
			slog.Debug("keeping recreated folder in use", "path", a.Path, "id", a.ID)
			continue
		}
		if _, err := m.idx.Folders.Remove(a.ID); err != nil {
			slog.Warn("failed to unmap recreated folder", "path", a.Path, "error", err)
		}
		if err := os.Remove(m.physical(a.Path)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove recreated folder", "path", a.Path, "error", err)
		}
	}
}

// mappings expands entry into the folder and file mappings it has when
// placed at base
func mappings(entry types.TrashEntry, base string) (folders, files []types.Mapping) {
	if entry.Type == types.ItemFile {
		return nil, []types.Mapping{{Path: base, ID: entry.OriginalID}}
	}
	folders = append(folders, types.Mapping{Path: base, ID: entry.OriginalID})
	for _, d := range entry.Descendants {
		m := types.Mapping{Path: types.JoinPath(base, d.RelPath), ID: d.ID}
		if d.Type == types.ItemFolder {
			folders = append(folders, m)
		} else {
			files = append(files, m)
		}
	}
	return folders, files
}

func ids(ms []types.Mapping) []types.ID {
	out := make([]types.ID, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

// remap inserts every mapping of entry at base; it is idempotent
func (m *Manager) remap(entry types.TrashEntry, base string) error {
	folders, files := mappings(entry, base)
	if err := m.idx.Folders.InsertMany(folders); err != nil {
		return err
	}
	if err := m.idx.Files.InsertMany(files); err != nil {
		if rbErr := m.idx.Folders.RemoveMany(ids(folders)); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// unmap removes every mapping of entry from the live indexes
func (m *Manager) unmap(entry types.TrashEntry) error {
	folders, files := mappings(entry, entry.OriginalPath)
	if err := m.idx.Files.RemoveMany(ids(files)); err != nil {
		return err
	}
	if err := m.idx.Folders.RemoveMany(ids(folders)); err != nil {
		if rbErr := m.idx.Files.InsertMany(files); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// unmapPresent is unmap that skips identifiers already gone
func (m *Manager) unmapPresent(entry types.TrashEntry) error {
	folders, files := mappings(entry, entry.OriginalPath)
	live := func(pidx *index.PathIndex, ms []types.Mapping) []types.ID {
		var out []types.ID
		for _, mp := range ms {
			if _, err := pidx.Resolve(mp.ID); err == nil {
				out = append(out, mp.ID)
			}
		}
		return out
	}
	if err := m.idx.Files.RemoveMany(live(m.idx.Files, files)); err != nil {
		return err
	}
	return m.idx.Folders.RemoveMany(live(m.idx.Folders, folders))
}
