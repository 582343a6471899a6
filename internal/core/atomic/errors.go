package atomic

import (
	"errors"
	"fmt"
)

var (
	ErrDestinationExists = errors.New("destination already exists")
	ErrSourceNotFound    = errors.New("source not found")
	// ErrCrossDeviceMove is returned when a move would need a copy and
	// copying was not allowed
	ErrCrossDeviceMove = errors.New("source and destination are on different devices")
	ErrInvalidPath     = errors.New("invalid path")
)

// MoveError records the step of a move that failed
type MoveError struct {
	Op  string
	Src string
	Dst string
	Err error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %s: %v", e.Src, e.Dst, e.Op, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

func NewMoveError(op, src, dst string, err error) error {
	return &MoveError{Op: op, Src: src, Dst: dst, Err: err}
}

// CleanupError is a leftover temporary file that could not be removed
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove stale %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

func NewCleanupError(path string, err error) error {
	return &CleanupError{Path: path, Err: err}
}

func IsDestinationExists(err error) bool {
	return errors.Is(err, ErrDestinationExists)
}
