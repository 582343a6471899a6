package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// IsUnsafeRoot reports whether path must not be used as a storage or trash
// root: the filesystem root, the home directory itself, or an unresolved
// relative segment
func IsUnsafeRoot(path string) bool {
	base := filepath.Base(path)
	if base == "." || base == ".." {
		return true
	}
	if strings.HasPrefix(path, "//") {
		return true
	}

	cleaned := filepath.Clean(path)
	if cleaned == string(filepath.Separator) || cleaned == filepath.VolumeName(cleaned)+string(filepath.Separator) {
		return true
	}
	if home, err := os.UserHomeDir(); err == nil && cleaned == filepath.Clean(home) {
		return true
	}
	return false
}

// Overlaps reports whether one of a and b lies inside the other
func Overlaps(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	return within(a, b) || within(b, a)
}

func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
