package store

import (
	"errors"
	"fmt"
)

// Common errors returned by the store.
var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("connection not found")

	// ErrAmbiguousName is returned when a name matches several records.
	ErrAmbiguousName = errors.New("connection name matches several records")

	// ErrNilRecord is returned when Save receives nil.
	ErrNilRecord = errors.New("connection record is nil")
)

// StorageErrorKind classifies persistence failures.
type StorageErrorKind int

const (
	// Unavailable means the medium could not be opened, locked, read or written.
	Unavailable StorageErrorKind = iota

	// Corrupt means stored data could not be decoded.
	Corrupt
)

// String returns the kind name.
func (k StorageErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// StorageError reports a failure of the persistence medium.
type StorageError struct {
	Kind StorageErrorKind
	Op   string // operation that failed, e.g. "save"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a StorageError of the given kind.
func IsKind(err error, kind StorageErrorKind) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == kind
}
