package sshtest

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Reply is the scripted outcome of one fake sqlite3 run.
type Reply struct {
	Stdout string
	Stderr string
	Status int

	// Delay holds the reply back; a canceled run returns status 137.
	Delay time.Duration
}

// Invocation is what a fake sqlite3 run received.
type Invocation struct {
	// Args is the command line split into words.
	Args []string

	// SQL is the last word, where the tool takes its SQL argument.
	SQL string

	Stdin string
}

// SQLite is a Handler that impersonates the sqlite3 command line tool.
//
// Replies are looked up by the exact SQL argument, the last word of the
// command line. Unknown SQL gets Default.
type SQLite struct {
	Replies map[string]Reply
	Default Reply

	mu          sync.Mutex
	invocations []Invocation
	running     int
	maxRunning  int
}

// NewSQLite returns a fake with the given replies.
func NewSQLite(replies map[string]Reply) *SQLite {
	if replies == nil {
		replies = make(map[string]Reply)
	}
	return &SQLite{Replies: replies, Default: Reply{Stdout: ""}}
}

// Handle implements Handler.
func (f *SQLite) Handle(ctx context.Context, e *Exec) int {
	input, err := io.ReadAll(e.Stdin)
	if err != nil {
		return 1
	}

	args := SplitCommand(e.Command)
	var sql string
	if len(args) > 1 {
		sql = args[len(args)-1]
	}

	f.mu.Lock()
	f.invocations = append(f.invocations, Invocation{Args: args, SQL: sql, Stdin: string(input)})
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	reply, ok := f.Replies[sql]
	if !ok {
		reply = f.Default
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return 137
		}
	}

	_, _ = io.WriteString(e.Stdout, reply.Stdout) //nolint:errcheck // peer may be gone
	_, _ = io.WriteString(e.Stderr, reply.Stderr) //nolint:errcheck // peer may be gone
	return reply.Status
}

// SetDefault replaces the reply for unknown SQL.
func (f *SQLite) SetDefault(r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Default = r
}

// SetReply scripts the reply for one SQL text.
func (f *SQLite) SetReply(sql string, r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies[sql] = r
}

// Invocations returns the runs seen so far.
func (f *SQLite) Invocations() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.invocations...)
}

// MaxConcurrent returns the highest number of overlapping runs observed.
func (f *SQLite) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

// SplitCommand splits a POSIX shell command line into words.
//
// It understands single quotes, double quotes and backslash escapes, which
// covers everything a quoting library emits.
func SplitCommand(cmd string) []string {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range cmd {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if inWord {
		words = append(words, cur.String())
	}
	return words
}
