// Package session opens authenticated SSH sessions to remote hosts and runs
// commands over them.
//
// Only public-key authentication is supported. Host keys are verified
// against a known_hosts file under an explicit policy: strict (the host must
// already be listed) or trust on first use (unknown hosts are recorded, a
// changed key is always rejected). There is no mode that skips verification.
//
// A Session runs one command at a time. Run waits for the previous command
// to finish; TryRun fails with ErrBusy instead.
//
// Example usage:
//
//	mgr, err := session.New(session.Config{
//	    HostKeyPolicy:  session.TOFU,
//	    KnownHostsPath: "~/.config/metalite/known_hosts",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := mgr.Open(ctx, session.Target{
//	    Host:    "127.0.0.1",
//	    User:    "root",
//	    KeyPath: "~/.ssh/id_rsa",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	out, err := sess.Run(ctx, session.Command{Args: []string{"uname", "-a"}})
package session

import (
	"context"
	"time"
)

// HostKeyPolicy selects how unknown host keys are handled.
type HostKeyPolicy string

const (
	// Strict rejects any host that is not already in known_hosts.
	Strict HostKeyPolicy = "strict"

	// TOFU records unknown hosts in known_hosts on first contact.
	TOFU HostKeyPolicy = "tofu"
)

// DefaultPort is the SSH port used when none is given.
const DefaultPort = 22

// Config contains session manager configuration.
type Config struct {
	// Port is used when a target names none (default: 22).
	Port int

	// ConnectTimeout bounds TCP dial plus SSH handshake (default: 10s).
	ConnectTimeout time.Duration

	// KeepAliveTimeout bounds the IsAlive check (default: 5s).
	KeepAliveTimeout time.Duration

	// HostKeyPolicy is Strict or TOFU (default: TOFU).
	HostKeyPolicy HostKeyPolicy

	// KnownHostsPath is the known_hosts file. It is created when missing.
	KnownHostsPath string
}

// Target identifies the remote account to open a session against.
type Target struct {
	// Host is a hostname or IP, optionally with ":port".
	Host string

	// Port overrides both the port in Host and Config.Port when non-zero.
	Port int

	User string

	// KeyPath is the private key file. Ignored when KeyMaterial is set.
	KeyPath string

	// KeyMaterial is a PEM private key supplied directly.
	KeyMaterial []byte

	// Passphrase decrypts an encrypted private key.
	Passphrase string
}

// State is the lifecycle state of a Session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Command is a remote program invocation.
type Command struct {
	// Args is the argv. Each element is quoted before it reaches the remote
	// shell, so no element can change the structure of the command.
	Args []string

	// Stdin is fed to the remote process, then closed.
	Stdin []byte
}

// Output is what a finished remote command produced.
type Output struct {
	Stdout []byte
	Stderr []byte

	// ExitStatus is -1 when the remote side reported none.
	ExitStatus int
}

// Manager opens sessions and checks their liveness.
type Manager interface {
	// Open authenticates against target and returns a connected session.
	//
	// Failures are *ConnectError. ctx cancellation also aborts the handshake.
	Open(ctx context.Context, target Target) (*Session, error)

	// Close releases the session's transport. Closing twice is safe.
	Close(s *Session) error

	// IsAlive reports whether the session still answers a keepalive
	// request within the configured timeout.
	IsAlive(ctx context.Context, s *Session) bool
}
