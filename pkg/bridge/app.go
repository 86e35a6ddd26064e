// Package bridge is the boundary a user interface talks to.
//
// Its methods report failure as text so that a UI can show the message as
// is: connection and storage calls return "" on success, and RunQuery
// returns text starting with "Error" on failure. App owns the current
// session explicitly; there is no hidden global connection.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/0xmhha/metalite/pkg/query"
	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/session"
	"github.com/0xmhha/metalite/pkg/store"
)

// ErrNotConnected is returned when no session has been opened.
var ErrNotConnected = errors.New("not connected")

// App holds the current session and the components behind it.
type App struct {
	store    store.Store
	sessions session.Manager
	executor query.Executor
	logger   logger.Logger

	mu      sync.Mutex
	current *session.Session
	target  session.Target
}

// New creates an App.
func New(st store.Store, sessions session.Manager, executor query.Executor, log logger.Logger) *App {
	return &App{
		store:    st,
		sessions: sessions,
		executor: executor,
		logger:   log,
	}
}

// Connect opens a session to user@host with the key at keyPath. It
// returns "" on success, otherwise a message.
func (a *App) Connect(ctx context.Context, host, user, keyPath string) string {
	return a.ConnectTarget(ctx, session.Target{Host: host, User: user, KeyPath: keyPath})
}

// ConnectTarget is Connect with full control over the target.
func (a *App) ConnectTarget(ctx context.Context, target session.Target) string {
	if err := a.Open(ctx, target); err != nil {
		return fmt.Sprintf("Error connecting: %v", err)
	}
	return ""
}

// Open is ConnectTarget with a typed error. A previous session is closed
// once the new one is up.
func (a *App) Open(ctx context.Context, target session.Target) error {
	s, err := a.sessions.Open(ctx, target)
	if err != nil {
		return err
	}

	a.mu.Lock()
	previous := a.current
	a.current = s
	a.target = target
	a.mu.Unlock()

	if previous != nil {
		if err := a.sessions.Close(previous); err != nil {
			a.logger.Warn("failed to close previous session", "error", err)
		}
	}

	return nil
}

// Disconnect closes the current session. It returns "" on success or when
// nothing was connected.
func (a *App) Disconnect() string {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.target = session.Target{}
	a.mu.Unlock()

	if s == nil {
		return ""
	}

	if err := a.sessions.Close(s); err != nil {
		return fmt.Sprintf("Error disconnecting: %v", err)
	}
	return ""
}

// Connected reports whether a session is open.
func (a *App) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil && a.current.State() == session.Connected
}

// RunQuery runs sql against dbPath. On success it returns the tool's JSON
// output, or "" when the statement produced no rows. On failure the text
// starts with "Error".
func (a *App) RunQuery(ctx context.Context, dbPath, sql string) string {
	raw, err := a.execute(ctx, dbPath, sql)
	if err != nil {
		return fmt.Sprintf("Error executing query: %v", err)
	}
	return string(raw)
}

// Query runs sql and interprets the output. A statement without rows gives
// an empty result.
func (a *App) Query(ctx context.Context, dbPath, sql string) (*result.QueryResult, error) {
	raw, err := a.execute(ctx, dbPath, sql)
	if err != nil {
		return nil, err
	}
	return result.ParseRows(string(raw), result.AllowEmpty())
}

// Tables returns the tables of dbPath.
func (a *App) Tables(ctx context.Context, dbPath string) (*result.TableCatalog, error) {
	raw, err := a.execute(ctx, dbPath, query.TablesSQL)
	if err != nil {
		return nil, err
	}
	return result.ParseTableNames(string(raw), result.AllowEmpty())
}

// ListTables is Tables with a text error for a UI.
func (a *App) ListTables(ctx context.Context, dbPath string) ([]string, string) {
	cat, err := a.Tables(ctx, dbPath)
	if err != nil {
		return nil, fmt.Sprintf("Error listing tables: %v", err)
	}
	return cat.Tables, ""
}

// execute runs sql on a live session. The SQL is sent at most once.
func (a *App) execute(ctx context.Context, dbPath, sql string) (query.RawOutput, error) {
	s, err := a.liveSession(ctx)
	if err != nil {
		return "", err
	}

	return a.executor.Execute(ctx, s, dbPath, sql)
}

// liveSession returns the current session, reopening it once from the
// remembered target when the keepalive check fails.
//
// The check and the reconnect run without holding a.mu. A reconnected
// session is only installed if nobody replaced or dropped the current one in
// the meantime.
func (a *App) liveSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	current, target := a.current, a.target
	a.mu.Unlock()

	if current == nil {
		return nil, ErrNotConnected
	}

	if a.sessions.IsAlive(ctx, current) {
		return current, nil
	}

	a.logger.Warn("session is not responding, reconnecting", "addr", current.Addr())

	if err := a.sessions.Close(current); err != nil {
		a.logger.Debug("failed to close dead session", "error", err)
	}

	s, err := a.sessions.Open(ctx, target)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != current {
		// Connect or Disconnect ran while we were reconnecting.
		if s != nil {
			if closeErr := a.sessions.Close(s); closeErr != nil {
				a.logger.Debug("failed to close stale session", "error", closeErr)
			}
		}
		if a.current == nil {
			return nil, ErrNotConnected
		}
		return a.current, nil
	}

	if err != nil {
		a.current = nil
		return nil, fmt.Errorf("reconnect failed: %w", err)
	}

	a.current = s
	return s, nil
}

// ListSavedConnections returns the saved connections, or an empty list
// when the store cannot be read.
func (a *App) ListSavedConnections() []store.SavedConnection {
	records, err := a.store.List()
	if err != nil {
		a.logger.Error("failed to list saved connections", "error", err)
		return []store.SavedConnection{}
	}

	out := make([]store.SavedConnection, len(records))
	for i, rec := range records {
		out[i] = *rec
	}
	return out
}

// SaveConnection persists rec, filling in its ID and Name when blank.
// It returns "" on success.
func (a *App) SaveConnection(rec *store.SavedConnection) string {
	if err := a.store.Save(rec); err != nil {
		return fmt.Sprintf("Error saving: %v", err)
	}
	return ""
}

// DeleteConnection removes the connection with the given id. Deleting an
// unknown id succeeds.
func (a *App) DeleteConnection(id string) string {
	if err := a.store.Delete(id); err != nil {
		return fmt.Sprintf("Error deleting: %v", err)
	}
	return ""
}

// Close disconnects. The store is owned by the caller.
func (a *App) Close() error {
	if msg := a.Disconnect(); msg != "" {
		return errors.New(msg)
	}
	return nil
}
