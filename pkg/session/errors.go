package session

import (
	"errors"
	"fmt"
)

// Common errors returned by sessions.
var (
	// ErrBusy is returned by TryRun while another command is running.
	ErrBusy = errors.New("session is busy")

	// ErrClosed is returned when running a command on a closed session.
	ErrClosed = errors.New("session is closed")

	// ErrSessionLost is returned when the transport dies under a command.
	ErrSessionLost = errors.New("session lost")

	// ErrEmptyCommand is returned when Command.Args is empty.
	ErrEmptyCommand = errors.New("command has no arguments")

	// ErrEmptyHost is returned when a target has no host.
	ErrEmptyHost = errors.New("host cannot be empty")

	// ErrEmptyUser is returned when a target has no user.
	ErrEmptyUser = errors.New("user cannot be empty")

	// ErrNoKey is returned when a target has neither key path nor material.
	ErrNoKey = errors.New("no private key given")

	// ErrHostKeyRejected is returned by host key verification.
	ErrHostKeyRejected = errors.New("host key rejected")

	// ErrInvalidHostKeyPolicy is returned by New for an unknown policy.
	ErrInvalidHostKeyPolicy = errors.New("invalid host key policy")

	// ErrNoKnownHosts is returned by New when no known_hosts path is set.
	ErrNoKnownHosts = errors.New("known_hosts path cannot be empty")
)

// ConnectErrorKind classifies why a session could not be opened.
type ConnectErrorKind int

const (
	Unknown ConnectErrorKind = iota
	HostUnreachable
	AuthenticationRejected
	KeyUnreadable
	Timeout
	HostKeyRejected
)

// String returns the kind name.
func (k ConnectErrorKind) String() string {
	switch k {
	case HostUnreachable:
		return "host unreachable"
	case AuthenticationRejected:
		return "authentication rejected"
	case KeyUnreadable:
		return "key unreadable"
	case Timeout:
		return "timeout"
	case HostKeyRejected:
		return "host key rejected"
	default:
		return "unknown"
	}
}

// ConnectError is returned by Manager.Open.
type ConnectError struct {
	Kind ConnectErrorKind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("connect failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("connect to %s failed (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ConnectError of the given kind.
func IsKind(err error, kind ConnectErrorKind) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == kind
}
