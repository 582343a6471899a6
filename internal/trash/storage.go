package trash

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
)

// Store owns the quarantine tree: <root>/files/<trash_id> and
// <root>/folders/<trash_id>
type Store struct {
	root          string
	allowCrossDev bool
}

// NewStore prepares the quarantine tree below root
func NewStore(root string, allowCrossDev bool) (*Store, error) {
	for _, kind := range []types.ItemType{types.ItemFile, types.ItemFolder} {
		if err := os.MkdirAll(filepath.Join(root, kind.Dir()), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create trash directory: %w", err)
		}
	}
	return &Store{root: root, allowCrossDev: allowCrossDev}, nil
}

// Root returns the quarantine root
func (s *Store) Root() string {
	return s.root
}

// Path returns where the payload of trashID lives
func (s *Store) Path(kind types.ItemType, trashID types.ID) string {
	return filepath.Join(s.root, kind.Dir(), string(trashID))
}

// Quarantine moves the payload at src into the slot of trashID
func (s *Store) Quarantine(kind types.ItemType, src string, trashID types.ID) (string, error) {
	dst := s.Path(kind, trashID)
	err := atomic.Move(src, dst, atomic.MoveOptions{AllowCrossDev: s.allowCrossDev})
	if err != nil {
		return "", classify("quarantine", src, err)
	}
	slog.Debug("payload quarantined", "kind", kind, "src", src, "trash_id", trashID)
	return dst, nil
}

// Release moves the payload of trashID to dst. An occupied dst is a conflict.
func (s *Store) Release(kind types.ItemType, trashID types.ID, dst string) error {
	err := atomic.Move(s.Path(kind, trashID), dst, atomic.MoveOptions{AllowCrossDev: s.allowCrossDev})
	if err != nil {
		return classify("release", trashID.String(), err)
	}
	slog.Debug("payload released", "kind", kind, "trash_id", trashID, "dst", dst)
	return nil
}

// Purge permanently deletes the payload of trashID. A payload that is
// already gone is reported as not found.
func (s *Store) Purge(kind types.ItemType, trashID types.ID) error {
	p := s.Path(kind, trashID)
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("payload already gone", "kind", kind, "trash_id", trashID)
			return types.NewError("purge_payload", types.ErrNotFound, trashID.String(), ErrPayloadMissing)
		}
		return types.NewError("purge_payload", types.ErrIO, trashID.String(), err)
	}
	if err := os.RemoveAll(p); err != nil {
		return types.NewError("purge_payload", types.ErrIO, trashID.String(), err)
	}
	return nil
}

// Exists reports whether the payload of trashID is present
func (s *Store) Exists(kind types.ItemType, trashID types.ID) (bool, error) {
	return atomic.Exists(s.Path(kind, trashID))
}

// Payloads enumerates every quarantined payload
func (s *Store) Payloads() (map[types.ID]types.ItemType, error) {
	out := make(map[types.ID]types.ItemType)
	for _, kind := range []types.ItemType{types.ItemFile, types.ItemFolder} {
		entries, err := os.ReadDir(filepath.Join(s.root, kind.Dir()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", kind.Dir(), err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			out[types.ID(e.Name())] = kind
		}
	}
	return out, nil
}

// DirSize sums the sizes of the regular files at or below path
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
