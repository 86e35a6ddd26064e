// Package watcher reports edits to query files.
//
// Editors save files in different ways: in place, or by writing a temporary
// file and renaming it over the original. The watcher therefore watches the
// directory of each file and filters events by name, so both styles are
// seen. Bursts of events for one file are coalesced into a single Event.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 300 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"report.sql"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    if event.Op.Changed() {
//	        rerun(event.Path)
//	    }
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created (or renamed into place)
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed away
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Changed reports whether the file has new content to read.
func (op Op) Changed() bool {
	return op == OpCreate || op == OpWrite
}

// Event represents a change to a watched file.
type Event struct {
	// Path is the absolute path of the watched file.
	Path string

	// Op is the last operation seen in the debounce window.
	Op Op

	// Timestamp is when the operation occurred.
	Timestamp time.Time
}

// Watcher reports changes to a fixed set of files.
type Watcher interface {
	// Start begins watching files. It returns once the watches are in
	// place; events are delivered until ctx ends or Stop is called.
	Start(ctx context.Context, files []string) error

	// Stop ends event delivery.
	Stop() error

	// Events returns the debounced events. Closed by Close.
	Events() <-chan Event

	// Errors returns non-fatal watcher errors. Closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the quiet time required before an event is
	// emitted. Default: 300ms.
	DebounceInterval time.Duration

	// CircuitBreakerThreshold is the number of fsnotify errors after which
	// ErrCircuitBreakerOpen is reported. Default: 5.
	CircuitBreakerThreshold int
}
