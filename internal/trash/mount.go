package trash

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/moby/sys/mountinfo"
)

// mountPoint returns the mount point containing path
func mountPoint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(abs))
	if err != nil {
		return "", fmt.Errorf("failed to get mount info: %w", err)
	}

	var longest string
	for _, m := range mounts {
		if strings.HasPrefix(abs, m.Mountpoint) && len(m.Mountpoint) > len(longest) {
			longest = m.Mountpoint
		}
	}
	if longest == "" {
		return "", fmt.Errorf("no mount point found for %s", path)
	}
	return longest, nil
}

// checkMounts warns when the quarantine tree cannot be reached by rename
func checkMounts(storageRoot, trashRoot string, allowCrossDev bool) {
	live, err := mountPoint(storageRoot)
	if err != nil {
		slog.Debug("cannot determine mount point", "path", storageRoot, "error", err)
		return
	}
	quarantine, err := mountPoint(trashRoot)
	if err != nil {
		slog.Debug("cannot determine mount point", "path", trashRoot, "error", err)
		return
	}
	if live == quarantine {
		return
	}
	if allowCrossDev {
		slog.Warn("trash root is on another mount, moves fall back to copy and delete",
			"storage_mount", live, "trash_mount", quarantine)
		return
	}
	slog.Warn("trash root is on another mount and cross-device moves are disabled, trashing will fail",
		"storage_mount", live, "trash_mount", quarantine)
}
