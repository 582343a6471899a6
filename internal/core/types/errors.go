package types

import (
	"errors"
	"strings"
)

// Error kinds. Every error returned by the index, trash and storage
// packages matches exactly one of these with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid argument")
	ErrIO           = errors.New("i/o failure")
	ErrIndexCorrupt = errors.New("index corrupt")
)

// Error wraps an error with the operation and the subject it failed on
type Error struct {
	Op      string // Operation that failed (e.g., "trash", "restore", "insert")
	Kind    error  // One of the kind sentinels above
	Subject string // Path or identifier the operation was working on
	Err     error  // The underlying error, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Subject != "" {
		b.WriteString(" ")
		b.WriteString(e.Subject)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil && e.Err != e.Kind {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError creates a new Error
func NewError(op string, kind error, subject string, err error) error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Subject: subject,
		Err:     err,
	}
}

// IOError classifies err as an I/O failure unless it already carries a kind
func IOError(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return NewError(op, ErrIO, subject, err)
}

// KindOf returns the kind sentinel err matches, or nil
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrInvalid, ErrIndexCorrupt, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
