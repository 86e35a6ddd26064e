// Package sshtest runs an in-process SSH server for tests.
//
// The server accepts public-key authentication for a fixed set of keys and
// hands every "exec" request to a Handler, which plays the role of the
// remote program. Global requests (including keepalives) are answered with
// a failure reply, as OpenSSH does.
package sshtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Exec describes one remote command invocation.
type Exec struct {
	Command string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Handler runs a remote command and returns its exit status.
//
// ctx is canceled when the client sends a signal or closes the channel.
// A negative status closes the channel without reporting an exit status.
type Handler func(ctx context.Context, e *Exec) int

// Server is a running test server.
type Server struct {
	Addr    string
	HostKey ssh.Signer

	listener net.Listener
	config   *ssh.ServerConfig
	handler  Handler

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	commands []string
	signals  []string
	closed   bool

	wg sync.WaitGroup
}

// NewServer starts a server on a loopback port that accepts the given keys.
// It is closed automatically at the end of the test.
func NewServer(t testing.TB, handler Handler, authorized ...ssh.PublicKey) *Server {
	t.Helper()

	hostKey := GenerateKey(t).Signer

	allowed := make(map[string]bool, len(authorized))
	for _, k := range authorized {
		allowed[string(k.Marshal())] = true
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if allowed[string(key.Marshal())] {
				return &ssh.Permissions{}, nil
			}
			return nil, errors.New("unknown public key")
		},
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		Addr:     ln.Addr().String(),
		HostKey:  hostKey,
		listener: ln,
		config:   cfg,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr) //nolint:errcheck // Addr comes from the listener
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// KnownHostsLine returns a known_hosts entry for this server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{knownhosts.Normalize(s.Addr)}, s.HostKey.PublicKey())
}

// Commands returns the exec commands received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Signals returns the signal names received so far.
func (s *Server) Signals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signals...)
}

// DropConnections closes every open client connection but keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close() //nolint:errcheck // best effort
	}
}

// Close stops the server and drops all connections.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.listener.Close() //nolint:errcheck // best effort
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close() //nolint:errcheck // shutting down
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close() //nolint:errcheck // already done
	}()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sconn.Close() //nolint:errcheck // connection teardown

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only session channels") //nolint:errcheck // peer may be gone
			continue
		}

		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}

		s.wg.Add(1)
		go s.handleSession(ch, chReqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer s.wg.Done()
	defer ch.Close() //nolint:errcheck // channel teardown

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	started := false

	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				cancel()
				if started {
					<-done
				}
				return
			}

			switch req.Type {
			case "exec":
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil || started {
					_ = req.Reply(false, nil) //nolint:errcheck // peer may be gone
					continue
				}
				_ = req.Reply(true, nil) //nolint:errcheck // peer may be gone

				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				s.mu.Unlock()

				started = true
				go func() {
					done <- s.handler(ctx, &Exec{
						Command: payload.Command,
						Stdin:   ch,
						Stdout:  ch,
						Stderr:  ch.Stderr(),
					})
				}()

			case "signal":
				var payload struct{ Signal string }
				if err := ssh.Unmarshal(req.Payload, &payload); err == nil {
					s.mu.Lock()
					s.signals = append(s.signals, payload.Signal)
					s.mu.Unlock()
				}
				cancel()
				if req.WantReply {
					_ = req.Reply(true, nil) //nolint:errcheck // peer may be gone
				}

			default:
				if req.WantReply {
					_ = req.Reply(false, nil) //nolint:errcheck // peer may be gone
				}
			}

		case status := <-done:
			if status >= 0 {
				msg := struct{ Status uint32 }{uint32(status)}
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&msg)) //nolint:errcheck // peer may be gone
			}
			_ = ch.CloseWrite() //nolint:errcheck // peer may be gone
			return
		}
	}
}

// String describes the server for test logs.
func (s *Server) String() string {
	return fmt.Sprintf("sshtest server at %s", s.Addr)
}
