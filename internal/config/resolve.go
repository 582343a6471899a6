package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/babarot/stowage/internal/env"
	"github.com/babarot/stowage/internal/utils/fs"
)

// Paths are the absolute directories the service works in
type Paths struct {
	DataDir   string
	Root      string
	TrashRoot string
	IndexDir  string
}

// Paths resolves the configured directories against $STOWAGE_DATA_DIR
func (c StorageConfig) Paths() (Paths, error) {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = env.STOWAGE_DATA_DIR
	}
	dataDir, err := expandPath(dataDir)
	if err != nil {
		return Paths{}, fmt.Errorf("data_dir: %w", err)
	}

	resolve := func(name, value, fallback string) (string, error) {
		if value == "" {
			return filepath.Join(dataDir, fallback), nil
		}
		p, err := expandPath(value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return p, nil
	}
	root, err := resolve("root", c.Root, "files")
	if err != nil {
		return Paths{}, err
	}
	trashRoot, err := resolve("trash_dir", c.TrashDir, "trash")
	if err != nil {
		return Paths{}, err
	}
	for name, p := range map[string]string{"data_dir": dataDir, "root": root, "trash_dir": trashRoot} {
		if fs.IsUnsafeRoot(p) {
			return Paths{}, fmt.Errorf("%s: refusing to use %q", name, p)
		}
	}
	if fs.Overlaps(root, trashRoot) {
		return Paths{}, fmt.Errorf("root %q and trash_dir %q must not contain each other", root, trashRoot)
	}
	return Paths{
		DataDir:   dataDir,
		Root:      root,
		TrashRoot: trashRoot,
		IndexDir:  filepath.Join(dataDir, "index"),
	}, nil
}

// MaxUploadBytes returns the upload limit in bytes; zero is unlimited
func (c StorageConfig) MaxUploadBytes() (int64, error) {
	return parseSize(c.MaxUploadSize)
}

// RetentionDuration returns how long entries stay in the trash; zero keeps them
func (c TrashConfig) RetentionDuration() (time.Duration, error) {
	return parseDuration(c.Retention)
}

// CleanupEvery returns the janitor period
func (c TrashConfig) CleanupEvery() (time.Duration, error) {
	return parseDuration(c.CleanupInterval)
}

// Timeouts returns the shutdown and read-header timeouts
func (c ServerConfig) Timeouts() (shutdown, readHeader time.Duration, err error) {
	if shutdown, err = parseDuration(c.ShutdownTimeout); err != nil {
		return 0, 0, err
	}
	if readHeader, err = parseDuration(c.ReadHeaderTimeout); err != nil {
		return 0, 0, err
	}
	return shutdown, readHeader, nil
}

// MaxLogBytes returns the rotation threshold of the log file
func (c RotationConfig) MaxLogBytes() (int64, error) {
	return parseSize(c.MaxSize)
}
