package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/0xmhha/metalite/pkg/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// hostKeys verifies server keys against a known_hosts file.
type hostKeys struct {
	path   string
	policy HostKeyPolicy
	logger logger.Logger

	// mu serializes appends to the file.
	mu sync.Mutex
}

func newHostKeys(path string, policy HostKeyPolicy, log logger.Logger) (*hostKeys, error) {
	if path == "" {
		return nil, ErrNoKnownHosts
	}

	switch policy {
	case "":
		policy = TOFU
	case Strict, TOFU:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostKeyPolicy, policy)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create known_hosts directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open known_hosts: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close known_hosts: %w", err)
	}

	return &hostKeys{path: path, policy: policy, logger: log}, nil
}

// callback returns a HostKeyCallback that sets rejected when it refuses a
// key. The file is re-read on every call so earlier TOFU entries count.
func (h *hostKeys) callback(rejected *atomic.Bool) (ssh.HostKeyCallback, error) {
	h.mu.Lock()
	check, err := knownhosts.New(h.path)
	h.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if h.policy == TOFU && errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return h.trust(hostname, key)
		}

		rejected.Store(true)
		if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			h.logger.Error("host key mismatch",
				"host", hostname,
				"fingerprint", ssh.FingerprintSHA256(key))
			return fmt.Errorf("%w: key for %s changed: %w", ErrHostKeyRejected, hostname, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrHostKeyRejected, hostname, err)
	}, nil
}

// trust appends hostname's key to the file.
func (h *hostKeys) trust(hostname string, key ssh.PublicKey) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts for writing: %w", err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("failed to record host key: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close known_hosts: %w", err)
	}

	h.logger.Warn("trusting new host key",
		"host", hostname,
		"fingerprint", ssh.FingerprintSHA256(key),
		"known_hosts", h.path)

	return nil
}
