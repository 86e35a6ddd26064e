package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"golang.org/x/crypto/ssh"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultKeepAliveTimeout = 5 * time.Second
)

// sshManager implements the Manager interface using golang.org/x/crypto/ssh.
type sshManager struct {
	config   Config
	hostKeys *hostKeys
	logger   logger.Logger
}

// New creates a session manager.
//
// Parameters:
//   - cfg: Manager configuration (zero values get defaults)
//   - log: Logger instance
//
// Returns:
//   - Manager that opens SSH sessions; it holds no connections itself and
//     is safe for concurrent use
//   - Error if the known_hosts file cannot be created or read
//
// The known_hosts file is created (mode 0600) when it does not exist.
func New(cfg Config, log logger.Logger) (Manager, error) {
	// Set defaults.
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = defaultKeepAliveTimeout
	}

	// Load known hosts.
	hk, err := newHostKeys(expandHome(cfg.KnownHostsPath), cfg.HostKeyPolicy, log)
	if err != nil {
		return nil, err
	}
	cfg.HostKeyPolicy = hk.policy

	return &sshManager{
		config:   cfg,
		hostKeys: hk,
		logger:   log,
	}, nil
}

// Open implements Manager.Open.
func (m *sshManager) Open(ctx context.Context, target Target) (*Session, error) {
	if strings.TrimSpace(target.Host) == "" {
		return nil, &ConnectError{Kind: HostUnreachable, Err: ErrEmptyHost}
	}
	if strings.TrimSpace(target.User) == "" {
		return nil, &ConnectError{Kind: AuthenticationRejected, Err: ErrEmptyUser}
	}

	addr := m.resolveAddr(target)

	signer, err := loadSigner(target)
	if err != nil {
		return nil, &ConnectError{Kind: KeyUnreadable, Addr: addr, Err: err}
	}

	var rejected atomic.Bool
	hostKeyCallback, err := m.hostKeys.callback(&rejected)
	if err != nil {
		return nil, &ConnectError{Kind: Unknown, Addr: addr, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	start := time.Now()
	m.logger.Debug("opening session", "addr", addr, "user", target.User, "key_path", target.KeyPath)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, m.connectError(addr, err, false)
	}

	// Closing the conn is the only way to interrupt a handshake in progress.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close() //nolint:errcheck // unblocks the handshake
	})
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // AfterFunc still bounds the handshake
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         m.config.ConnectTimeout,
	})
	interrupted := !stop()

	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake already failed
		if interrupted && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, m.connectError(addr, err, rejected.Load())
	}
	if interrupted {
		_ = clientConn.Close() //nolint:errcheck // caller gave up
		return nil, m.connectError(addr, ctx.Err(), false)
	}

	_ = conn.SetDeadline(time.Time{}) //nolint:errcheck // clearing a deadline on a live conn

	s := newSession(ssh.NewClient(clientConn, chans, reqs), target, addr, m.logger)

	m.logger.Info("session opened",
		"addr", addr,
		"user", target.User,
		"elapsed", time.Since(start))

	return s, nil
}

// Close implements Manager.Close.
func (m *sshManager) Close(s *Session) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// IsAlive implements Manager.IsAlive.
func (m *sshManager) IsAlive(ctx context.Context, s *Session) bool {
	if s == nil || s.State() != Connected {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.KeepAliveTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		// Any reply, including a refusal, proves the peer is there.
		_, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil)
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			m.logger.Debug("keepalive failed", "addr", s.addr, "error", err)
			s.markFailed()
			return false
		}
		return true
	case <-ctx.Done():
		m.logger.Debug("keepalive timed out", "addr", s.addr)
		return false
	}
}

// resolveAddr picks the port: Target.Port, then a port in Host, then the
// configured default.
func (m *sshManager) resolveAddr(target Target) string {
	host := strings.TrimSpace(target.Host)
	port := m.config.Port

	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if n, convErr := strconv.Atoi(p); convErr == nil {
			port = n
		}
	}

	if target.Port != 0 {
		port = target.Port
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// connectError classifies a dial or handshake failure.
func (m *sshManager) connectError(addr string, err error, hostKeyRejected bool) *ConnectError {
	ce := &ConnectError{Kind: connectErrorKind(err, hostKeyRejected), Addr: addr, Err: err}

	m.logger.Warn("session open failed",
		"addr", addr,
		"kind", ce.Kind.String(),
		"error", err)

	return ce
}

func connectErrorKind(err error, hostKeyRejected bool) ConnectErrorKind {
	var (
		netErr net.Error
		opErr  *net.OpError
		dnsErr *net.DNSError
	)

	switch {
	case hostKeyRejected || errors.Is(err, ErrHostKeyRejected):
		return HostKeyRejected
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return Timeout
	case strings.Contains(err.Error(), "unable to authenticate"):
		return AuthenticationRejected
	case errors.Is(err, context.Canceled):
		return Unknown
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return HostUnreachable
	default:
		return Unknown
	}
}

// loadSigner parses the target's private key. Bytes read from disk are
// zeroed once parsed.
func loadSigner(target Target) (ssh.Signer, error) {
	material := target.KeyMaterial
	if len(material) == 0 {
		if target.KeyPath == "" {
			return nil, ErrNoKey
		}

		data, err := os.ReadFile(expandHome(target.KeyPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		defer clear(data)
		material = data
	}

	var (
		signer ssh.Signer
		err    error
	)
	if target.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(material, []byte(target.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(material)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return signer, nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
