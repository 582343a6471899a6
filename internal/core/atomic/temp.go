package atomic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const tempSuffix = ".tmp"

// TempManager hands out temporary files inside one staging directory.
// The directory must live on the same device as the files' final
// destinations so that Commit is a plain rename.
type TempManager struct {
	baseDir string
}

// NewTempManager creates a new TempManager instance
func NewTempManager(baseDir string) (*TempManager, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &TempManager{baseDir: baseDir}, nil
}

// Dir returns the staging directory
func (m *TempManager) Dir() string {
	return m.baseDir
}

// CleanupAll removes temporary files older than the specified duration.
// Leftovers come from writers interrupted by a crash.
func (m *TempManager) CleanupAll(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read temp directory: %w", err)
	}

	var (
		errs    []error
		removed int
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < olderThan {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, NewCleanupError(path, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// SafeWriter buffers content in a temporary file until Commit
type SafeWriter struct {
	path     string
	file     *os.File
	written  int64
	finished bool
}

// NewSafeWriter creates a new SafeWriter
func (m *TempManager) NewSafeWriter(prefix string) (*SafeWriter, error) {
	path := filepath.Join(m.baseDir, fmt.Sprintf("%s.%s%s", prefix, uuid.NewString(), tempSuffix))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &SafeWriter{path: path, file: file}, nil
}

// Write writes data to the temporary file
func (w *SafeWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, fmt.Errorf("write to finished writer")
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// CopyFrom copies r into the temporary file, failing once more than limit
// bytes have been read. A limit of 0 or less means unlimited.
func (w *SafeWriter) CopyFrom(r io.Reader, limit int64) (int64, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(w.file, r)
	w.written += n
	if err != nil {
		return n, err
	}
	if limit > 0 && n > limit {
		return n, ErrTooLarge
	}
	return n, nil
}

// Size returns the number of bytes written so far
func (w *SafeWriter) Size() int64 {
	return w.written
}

// Commit syncs the content and renames it onto dst. Unless force is set,
// an existing dst is left alone and ErrDestinationExists is returned.
func (w *SafeWriter) Commit(dst string, force bool) error {
	if w.finished {
		return fmt.Errorf("commit finished writer")
	}
	w.finished = true

	if err := w.file.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.path)
		return fmt.Errorf("close file: %w", err)
	}

	if !force {
		if _, err := os.Lstat(dst); err == nil {
			_ = os.Remove(w.path)
			return ErrDestinationExists
		}
	}
	if err := os.Rename(w.path, dst); err != nil {
		_ = os.Remove(w.path)
		return fmt.Errorf("rename to destination: %w", err)
	}
	return syncDir(filepath.Dir(dst))
}

// Cleanup removes the temporary file unless it was committed
func (w *SafeWriter) Cleanup() {
	if w.finished {
		return
	}
	w.finished = true
	w.discard()
}

func (w *SafeWriter) discard() {
	_ = w.file.Close()
	_ = os.Remove(w.path)
}

// ErrTooLarge is returned by CopyFrom when the input exceeds the limit
var ErrTooLarge = errors.New("content exceeds size limit")

// WriteFile durably replaces path with data: the bytes are written to a
// sibling temporary file, fsynced, renamed over path and the directory
// entry is fsynced.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return syncDir(dir)
}
