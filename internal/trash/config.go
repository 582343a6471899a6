package trash

import (
	"fmt"
	"path/filepath"
	"time"
)

// RestoreConflict decides what restore does when the original location
// is occupied
type RestoreConflict string

const (
	// RestoreRename restores next to the occupant as "name (n).ext"
	RestoreRename RestoreConflict = "rename"
	// RestoreFail rejects the restore with a conflict
	RestoreFail RestoreConflict = "fail"
)

// Config holds the settings of the trash lifecycle
type Config struct {
	// StorageRoot is the directory holding the live tree
	StorageRoot string

	// TrashRoot holds quarantined payloads below files/ and folders/
	TrashRoot string

	// Retention is how long an entry stays in the trash before the
	// janitor purges it. Zero keeps entries until purged by hand.
	Retention time.Duration

	// CleanupInterval is the period of the janitor
	CleanupInterval time.Duration

	// RestoreConflict selects the occupied-destination policy
	RestoreConflict RestoreConflict

	// AllowCrossDevice permits copy+delete when the trash root is on
	// another device than the storage root
	AllowCrossDevice bool
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.StorageRoot) {
		return fmt.Errorf("storage root must be an absolute path: %q", c.StorageRoot)
	}
	if !filepath.IsAbs(c.TrashRoot) {
		return fmt.Errorf("trash root must be an absolute path: %q", c.TrashRoot)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative: %s", c.Retention)
	}
	switch c.RestoreConflict {
	case RestoreRename, RestoreFail:
	case "":
		c.RestoreConflict = RestoreRename
	default:
		return fmt.Errorf("unknown restore conflict policy %q", c.RestoreConflict)
	}
	return nil
}
