package log

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const backupLayout = "20060102-150405.000000000"

// RotateWriter appends to path and moves it aside once it would grow
// beyond maxSize, keeping at most maxFiles backups
type RotateWriter struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxSize  int64
	maxFiles int
	path     string
}

// NewRotateWriter opens path for appending. A maxSize of 0 never rotates.
func NewRotateWriter(path string, maxSize int64, maxFiles int) (*RotateWriter, error) {
	w := &RotateWriter{
		maxSize:  maxSize,
		maxFiles: maxFiles,
		path:     path,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotateWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *RotateWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	if w.file != nil {
		w.file.Close()
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// rotate renames the current file to <path>.<timestamp> and starts a new one
func (w *RotateWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	backup := w.path + "." + time.Now().Format(backupLayout)
	if err := os.Rename(w.path, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := w.prune(); err != nil {
		return err
	}
	return w.openFile()
}

// prune drops the oldest backups beyond maxFiles. Backup names sort
// chronologically because of the fixed-width timestamp.
func (w *RotateWriter) prune() error {
	if w.maxFiles <= 0 {
		return nil
	}
	backups, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return err
	}
	if len(backups) <= w.maxFiles {
		return nil
	}
	slices.Sort(backups)
	for _, f := range backups[:len(backups)-w.maxFiles] {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}
