package types

import (
	"math"
	"time"
)

// Descendant records an item that was nested below a trashed folder.
// RelPath is relative to the folder itself.
type Descendant struct {
	RelPath string   `json:"rel_path"`
	ID      ID       `json:"id"`
	Type    ItemType `json:"item_type"`
}

// TrashEntry describes one item sitting in the trash
type TrashEntry struct {
	ID           ID           `json:"id"`
	OriginalID   ID           `json:"original_id"`
	Type         ItemType     `json:"item_type"`
	Name         string       `json:"name"`
	OriginalPath string       `json:"original_path"`
	TrashedAt    time.Time    `json:"trashed_at"`
	DeletionDate time.Time    `json:"deletion_date"`
	Size         int64        `json:"size"`
	Seq          uint64       `json:"seq"`
	Descendants  []Descendant `json:"descendants,omitempty"`
}

// DaysUntilDeletion returns the whole days left before the entry expires, never negative
func (e TrashEntry) DaysUntilDeletion(now time.Time) int {
	if e.DeletionDate.IsZero() {
		return math.MaxInt32
	}
	d := e.DeletionDate.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Expired reports whether the entry is due for automatic purge
func (e TrashEntry) Expired(now time.Time) bool {
	return !e.DeletionDate.IsZero() && !now.Before(e.DeletionDate)
}

func (e TrashEntry) GetName() string         { return e.Name }
func (e TrashEntry) GetPath() string         { return e.OriginalPath }
func (e TrashEntry) GetDeletedAt() time.Time { return e.TrashedAt }
func (e TrashEntry) GetType() ItemType       { return e.Type }
func (e TrashEntry) GetSize() int64          { return e.Size }

// Mapping is one path/identifier pair of a PathIndex
type Mapping struct {
	Path string `json:"path"`
	ID   ID     `json:"id"`
}
