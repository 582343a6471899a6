package atomic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
	"github.com/rs/xid"
)

// MoveOptions specifies options for move operations
type MoveOptions struct {
	AllowCrossDev bool // Fall back to copy when src and dst live on different devices
	Force         bool // Replace an existing destination
}

// Move relocates src to dst. When both sit on the same device this is a
// single rename(2). Otherwise the payload is copied into a staging sibling
// of dst, renamed into place and only then removed from src, so a failed
// move never leaves a partial payload at dst.
func Move(src, dst string, opts MoveOptions) error {
	if err := validatePaths(src, dst); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return NewMoveError("create_parent", src, dst, err)
	}

	if !opts.Force {
		if _, err := os.Lstat(dst); err == nil {
			return ErrDestinationExists
		}
	}

	sameDevice, err := isSamePartition(src, dst)
	if err == nil && sameDevice {
		if err := os.Rename(src, dst); err != nil {
			return NewMoveError("rename", src, dst, err)
		}
		return syncDir(filepath.Dir(dst))
	}

	if !opts.AllowCrossDev {
		return NewMoveError("rename", src, dst, ErrCrossDeviceMove)
	}
	return copyAndDelete(src, dst)
}

// copyAndDelete copies src into a staging path next to dst, renames it
// into place and then deletes src
func copyAndDelete(src, dst string) error {
	staging := filepath.Join(filepath.Dir(dst), fmt.Sprintf(".%s.%s.staging", filepath.Base(dst), xid.New().String()))

	opts := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Shallow
		},
		PreserveTimes: true,
		Sync:          true,
	}

	if err := cp.Copy(src, staging, opts); err != nil {
		_ = os.RemoveAll(staging)
		return NewMoveError("copy", src, dst, err)
	}

	if err := os.Rename(staging, dst); err != nil {
		_ = os.RemoveAll(staging)
		return NewMoveError("commit", src, dst, err)
	}
	if err := syncDir(filepath.Dir(dst)); err != nil {
		return NewMoveError("sync", src, dst, err)
	}

	if err := os.RemoveAll(src); err != nil {
		// src may be partially removed; dst holds the complete copy, keep it
		if _, statErr := os.Lstat(src); errors.Is(statErr, os.ErrNotExist) {
			return nil
		}
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			return NewMoveError("cleanup", src, dst,
				fmt.Errorf("failed to remove both source and destination: %w", errors.Join(err, rmErr)))
		}
		return NewMoveError("remove_source", src, dst, err)
	}

	return nil
}

// validatePaths performs basic path validation
func validatePaths(src, dst string) error {
	if src == "" || dst == "" {
		return ErrInvalidPath
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return ErrInvalidPath
	}

	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrSourceNotFound
		}
		return err
	}
	return nil
}

// Exists reports whether something is present at path
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
