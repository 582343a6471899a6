package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque identifier assigned once to a file or folder.
// It never changes across renames, moves, trash and restore.
type ID string

// NewID mints a fresh random identifier
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates s and returns it in canonical form
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", NewError("parse_id", ErrInvalid, s, fmt.Errorf("malformed identifier: %w", err))
	}
	return ID(u.String()), nil
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset
func (id ID) IsZero() bool {
	return id == ""
}

// ItemType distinguishes the two kinds of tracked items
type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

// ParseItemType accepts "file" or "folder"
func ParseItemType(s string) (ItemType, error) {
	switch t := ItemType(s); t {
	case ItemFile, ItemFolder:
		return t, nil
	default:
		return "", NewError("parse_item_type", ErrInvalid, s, fmt.Errorf("unknown item type %q", s))
	}
}

func (t ItemType) String() string {
	return string(t)
}

// Dir returns the name of the quarantine subdirectory for this kind
func (t ItemType) Dir() string {
	if t == ItemFolder {
		return "folders"
	}
	return "files"
}
