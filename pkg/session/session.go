package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/alessio/shellescape"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/semaphore"
)

// lostGrace is how long a command that ended without an exit status waits
// for the transport to report its own death.
const lostGrace = 100 * time.Millisecond

// Session is an authenticated SSH connection owned by the caller that
// opened it.
type Session struct {
	host    string
	port    int
	user    string
	keyPath string
	addr    string

	client *ssh.Client
	logger logger.Logger

	// sem admits one command at a time.
	sem   *semaphore.Weighted
	state atomic.Int32

	// lost is closed when the transport goes away.
	lost      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSession(client *ssh.Client, target Target, addr string, log logger.Logger) *Session {
	host, portStr, _ := net.SplitHostPort(addr) //nolint:errcheck // addr was built by JoinHostPort
	port, _ := strconv.Atoi(portStr)            //nolint:errcheck // numeric port

	s := &Session{
		host:    host,
		port:    port,
		user:    target.User,
		keyPath: target.KeyPath,
		addr:    addr,
		client:  client,
		logger:  log.With("addr", addr),
		sem:     semaphore.NewWeighted(1),
		lost:    make(chan struct{}),
	}
	s.state.Store(int32(Connected))

	go func() {
		err := client.Wait()
		if s.state.CompareAndSwap(int32(Connected), int32(Failed)) {
			s.logger.Warn("session transport closed", "error", err)
		}
		close(s.lost)
	}()

	return s
}

// Host returns the remote host.
func (s *Session) Host() string { return s.host }

// Port returns the remote port.
func (s *Session) Port() int { return s.port }

// User returns the remote user.
func (s *Session) User() string { return s.user }

// KeyPath returns the key file used to authenticate, if any.
func (s *Session) KeyPath() string { return s.keyPath }

// Addr returns host:port.
func (s *Session) Addr() string { return s.addr }

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) markFailed() {
	s.state.CompareAndSwap(int32(Connected), int32(Failed))
}

// Close releases the transport. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Disconnected))

		if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
			s.closeErr = fmt.Errorf("failed to close session: %w", err)
		}

		s.logger.Info("session closed")
	})

	return s.closeErr
}

// Run executes cmd, waiting for any command already running on this session.
//
// When ctx ends first the remote process is sent SIGKILL, the channel is
// closed and ctx.Err() is returned. A non-zero exit status is not an error;
// it is reported in Output.
func (s *Session) Run(ctx context.Context, cmd Command) (*Output, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return s.run(ctx, cmd)
}

// TryRun is like Run but returns ErrBusy instead of waiting.
func (s *Session) TryRun(ctx context.Context, cmd Command) (*Output, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.sem.Release(1)

	return s.run(ctx, cmd)
}

func (s *Session) run(ctx context.Context, cmd Command) (*Output, error) {
	if len(cmd.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	switch s.State() {
	case Connected:
	case Failed:
		return nil, ErrSessionLost
	default:
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remote, err := s.client.NewSession()
	if err != nil {
		s.markFailed()
		return nil, fmt.Errorf("%w: %w", ErrSessionLost, err)
	}

	var stdout, stderr bytes.Buffer
	remote.Stdout = &stdout
	remote.Stderr = &stderr
	remote.Stdin = bytes.NewReader(cmd.Stdin)

	line := shellescape.QuoteCommand(cmd.Args)
	s.logger.Debug("running remote command", "program", cmd.Args[0], "stdin_bytes", len(cmd.Stdin))

	if err := remote.Start(line); err != nil {
		_ = remote.Close() //nolint:errcheck // start already failed
		return nil, fmt.Errorf("%w: %w", ErrSessionLost, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- remote.Wait()
	}()

	select {
	case err := <-done:
		_ = remote.Close() //nolint:errcheck // channel already finished
		return s.output(stdout.Bytes(), stderr.Bytes(), err)

	case <-ctx.Done():
		if sigErr := remote.Signal(ssh.SIGKILL); sigErr != nil {
			s.logger.Debug("failed to signal remote command", "error", sigErr)
		}
		_ = remote.Close() //nolint:errcheck // abandoning the command
		s.logger.Info("remote command aborted", "reason", ctx.Err())
		return nil, ctx.Err()
	}
}

func (s *Session) output(stdout, stderr []byte, waitErr error) (*Output, error) {
	out := &Output{Stdout: stdout, Stderr: stderr}

	var (
		exitErr    *ssh.ExitError
		missingErr *ssh.ExitMissingError
	)

	switch {
	case waitErr == nil:
		out.ExitStatus = 0
	case errors.As(waitErr, &exitErr):
		out.ExitStatus = exitErr.ExitStatus()
	case errors.As(waitErr, &missingErr):
		select {
		case <-s.lost:
			return nil, fmt.Errorf("%w: %w", ErrSessionLost, waitErr)
		case <-time.After(lostGrace):
		}
		out.ExitStatus = -1
	default:
		s.markFailed()
		return nil, fmt.Errorf("%w: %w", ErrSessionLost, waitErr)
	}

	return out, nil
}
