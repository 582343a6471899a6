package types

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// NormalizePath converts a logical storage path into its canonical form:
// forward slashes, relative to the storage root, no "." or ".." segments.
// The empty string denotes the root folder.
func NormalizePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", NewError("normalize_path", ErrInvalid, p, fmt.Errorf("path contains NUL byte"))
	}
	if !utf8.ValidString(p) {
		return "", NewError("normalize_path", ErrInvalid, p, fmt.Errorf("path is not valid UTF-8"))
	}
	p = strings.ReplaceAll(p, `\`, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", NewError("normalize_path", ErrInvalid, p, fmt.Errorf("path escapes the storage root"))
		}
	}
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	return p, nil
}

// ValidateName checks a single path segment supplied by a client
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewError("validate_name", ErrInvalid, name, fmt.Errorf("name is empty"))
	case name == "." || name == "..":
		return NewError("validate_name", ErrInvalid, name, fmt.Errorf("reserved name"))
	case strings.ContainsAny(name, "/\\\x00"):
		return NewError("validate_name", ErrInvalid, name, fmt.Errorf("name contains a path separator"))
	}
	return nil
}

// JoinPath joins a parent path and a child name
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Segments splits a normalized path into its names; the root has none
func Segments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// ParentPath returns the parent of p; the parent of a top-level entry is the root ("")
func ParentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// BaseName returns the last segment of p
func BaseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

// IsWithin reports whether p equals dir or lies below it
func IsWithin(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// Rebase moves p from below oldDir to below newDir.
// p must satisfy IsWithin(p, oldDir).
func Rebase(p, oldDir, newDir string) string {
	if p == oldDir {
		return newDir
	}
	rel := strings.TrimPrefix(p, oldDir+"/")
	if oldDir == "" {
		rel = p
	}
	return JoinPath(newDir, rel)
}

// RelPath returns p relative to dir. p must satisfy IsWithin(p, dir).
func RelPath(p, dir string) string {
	if dir == "" {
		return p
	}
	if p == dir {
		return ""
	}
	return strings.TrimPrefix(p, dir+"/")
}

// PhysicalPath maps a normalized logical path onto the filesystem below root
func PhysicalPath(root, p string) string {
	return filepath.Join(root, filepath.FromSlash(p))
}

// CandidateName returns the n-th alternative for name used when the
// original location is occupied: "report (1).pdf", "report (2).pdf", ...
// Folder names are never split at a dot.
func CandidateName(name string, kind ItemType, n int) string {
	if n <= 0 {
		return name
	}
	stem, ext := name, ""
	if kind == ItemFile {
		if e := path.Ext(name); e != "" && e != name {
			stem, ext = strings.TrimSuffix(name, e), e
		}
	}
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}
