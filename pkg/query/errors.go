package query

import (
	"errors"
	"fmt"
)

// Common errors returned by the executor.
var (
	// ErrEmptyDBPath is returned when no database path is given.
	ErrEmptyDBPath = errors.New("database path cannot be empty")

	// ErrNoSession is returned when Execute gets a nil runner.
	ErrNoSession = errors.New("no session")
)

// ExecErrorKind classifies an execution failure.
type ExecErrorKind int

const (
	// RemoteToolFailure means the tool ran and reported an error.
	RemoteToolFailure ExecErrorKind = iota

	// Timeout means the execution outlived its deadline.
	Timeout

	// SessionBusy means another query held the session under the Fail policy.
	SessionBusy

	// Canceled means the caller gave up.
	Canceled

	// SessionLost means the transport failed under the query.
	SessionLost
)

// String returns the kind name.
func (k ExecErrorKind) String() string {
	switch k {
	case RemoteToolFailure:
		return "remote tool failure"
	case Timeout:
		return "timeout"
	case SessionBusy:
		return "session busy"
	case Canceled:
		return "canceled"
	case SessionLost:
		return "session lost"
	default:
		return "unknown"
	}
}

// outcome is the metrics label for the kind.
func (k ExecErrorKind) outcome() string {
	switch k {
	case RemoteToolFailure:
		return "remote_tool_failure"
	case Timeout:
		return "timeout"
	case SessionBusy:
		return "session_busy"
	case Canceled:
		return "canceled"
	case SessionLost:
		return "session_lost"
	default:
		return "unknown"
	}
}

// ExecError is returned when a query could not produce output.
type ExecError struct {
	Kind ExecErrorKind

	// Diagnostic is the tool's own message, trimmed and without a leading
	// "Error: ".
	Diagnostic string

	// Raw is the tool's stderr, verbatim.
	Raw string

	// ExitStatus of the remote tool; -1 when unknown.
	ExitStatus int

	Err error
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case RemoteToolFailure:
		if e.Diagnostic != "" {
			return e.Diagnostic
		}
		return fmt.Sprintf("remote tool exited with status %d", e.ExitStatus)
	case SessionBusy:
		return "session is busy with another query"
	default:
		if e.Err != nil {
			return fmt.Sprintf("query %s: %v", e.Kind, e.Err)
		}
		return "query " + e.Kind.String()
	}
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an ExecError of the given kind.
func IsKind(err error, kind ExecErrorKind) bool {
	var ee *ExecError
	return errors.As(err, &ee) && ee.Kind == kind
}
