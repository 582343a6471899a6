package storage

import (
	"time"

	"github.com/babarot/stowage/internal/core/types"
)

// TempDirName is the staging directory for uploads below the storage root.
// It is never exposed as a folder.
const TempDirName = ".stowage-tmp"

// File represents a live file
type File struct {
	ID       types.ID  `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	FolderID types.ID  `json:"folder_id,omitempty"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modified_at"`
}

// Folder represents a live folder
type Folder struct {
	ID       types.ID  `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	ParentID types.ID  `json:"parent_id,omitempty"`
	ModTime  time.Time `json:"modified_at"`
}

// FileUpdate carries the optional fields of a file rename or move
type FileUpdate struct {
	Name     *string
	FolderID *types.ID
}

// FolderUpdate carries the optional fields of a folder rename or move
type FolderUpdate struct {
	Name     *string
	ParentID *types.ID
}
