package bridge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/metalite/internal/sshtest"
	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/0xmhha/metalite/pkg/query"
	"github.com/0xmhha/metalite/pkg/session"
	"github.com/0xmhha/metalite/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app     *App
	store   store.Store
	server  *sshtest.Server
	fake    *sshtest.SQLite
	keyPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()

	st, err := store.New(store.Config{DBPath: filepath.Join(dir, "connections.db")}, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() }) //nolint:errcheck // test cleanup

	mgr, err := session.New(session.Config{
		ConnectTimeout: 2 * time.Second,
		KnownHostsPath: filepath.Join(dir, "known_hosts"),
	}, logger.Noop())
	require.NoError(t, err)

	fake := sshtest.NewSQLite(map[string]sshtest.Reply{
		query.TablesSQL:         {Stdout: `[{"name":"users"},{"name":"orders"}]`},
		"SELECT * FROM foo;":    {Stderr: "Error: in prepare, no such table: foo\n", Status: 1},
		"SELECT * FROM users;":  {Stdout: `[{"id":1,"name":"ann"}]`},
		"UPDATE users SET x=1;": {},
	})

	key := sshtest.GenerateKey(t)
	srv := sshtest.NewServer(t, fake.Handle, key.PublicKey())

	app := New(st, mgr, query.New(query.Config{}, logger.Noop()), logger.Noop())
	t.Cleanup(func() { _ = app.Close() }) //nolint:errcheck // test cleanup

	return &fixture{
		app:     app,
		store:   st,
		server:  srv,
		fake:    fake,
		keyPath: sshtest.WriteKey(t, dir, key),
	}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.Equal(t, "", f.app.Connect(context.Background(), f.server.Addr, "root", f.keyPath))
}

func TestConnect(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.app.Connected())
	f.connect(t)
	assert.True(t, f.app.Connected())

	assert.Equal(t, "", f.app.Disconnect())
	assert.False(t, f.app.Connected())
	assert.Equal(t, "", f.app.Disconnect(), "disconnecting twice is fine")
}

func TestConnectFailure(t *testing.T) {
	f := newFixture(t)

	msg := f.app.Connect(context.Background(), f.server.Addr, "root", filepath.Join(t.TempDir(), "missing"))
	assert.True(t, strings.HasPrefix(msg, "Error connecting: "), msg)
	assert.Contains(t, msg, "key unreadable")
	assert.False(t, f.app.Connected())
}

func TestConnectReplacesSession(t *testing.T) {
	f := newFixture(t)

	f.connect(t)
	first := f.app.current

	f.connect(t)
	assert.NotSame(t, first, f.app.current)
	assert.Equal(t, session.Disconnected, first.State())
}

func TestRunQueryNotConnected(t *testing.T) {
	f := newFixture(t)

	out := f.app.RunQuery(context.Background(), "/var/db.sqlite", "SELECT 1;")
	assert.Equal(t, "Error executing query: not connected", out)
}

func TestRunQuery(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	out := f.app.RunQuery(ctx, "/var/db.sqlite", "SELECT * FROM users;")
	assert.Equal(t, `[{"id":1,"name":"ann"}]`, out)

	out = f.app.RunQuery(ctx, "/var/db.sqlite", "UPDATE users SET x=1;")
	assert.Equal(t, "", out)

	out = f.app.RunQuery(ctx, "/var/db.sqlite", "SELECT * FROM foo;")
	assert.Equal(t, "Error executing query: no such table: foo", out)

	out = f.app.RunQuery(ctx, "", "SELECT 1;")
	assert.True(t, strings.HasPrefix(out, "Error"), out)
}

func TestTablesScenario(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	tables, msg := f.app.ListTables(context.Background(), "/var/db.sqlite")
	assert.Empty(t, msg)
	assert.Equal(t, []string{"users", "orders"}, tables)
}

func TestTablesEmptyDatabase(t *testing.T) {
	f := newFixture(t)
	f.fake.SetReply(query.TablesSQL, sshtest.Reply{})
	f.connect(t)

	cat, err := f.app.Tables(context.Background(), "/var/empty.sqlite")
	require.NoError(t, err)
	assert.Empty(t, cat.Tables)
}

func TestQueryParses(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	res, err := f.app.Query(context.Background(), "/var/db.sqlite", "SELECT * FROM users;")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, "ann", res.Rows[0]["name"].Raw)

	res, err = f.app.Query(context.Background(), "/var/db.sqlite", "UPDATE users SET x=1;")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRunQueryReconnectsDeadSession(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	first := f.app.current

	f.server.DropConnections()
	require.Eventually(t, func() bool {
		return first.State() != session.Connected
	}, 2*time.Second, 10*time.Millisecond)

	out := f.app.RunQuery(context.Background(), "/var/db.sqlite", "SELECT * FROM users;")
	assert.Equal(t, `[{"id":1,"name":"ann"}]`, out)
	assert.NotSame(t, first, f.app.current)

	// The query reached the host exactly once.
	count := 0
	for _, inv := range f.fake.Invocations() {
		if inv.SQL == "SELECT * FROM users;" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRunQueryReconnectFails(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.server.Close()

	out := f.app.RunQuery(context.Background(), "/var/db.sqlite", "SELECT * FROM users;")
	assert.True(t, strings.HasPrefix(out, "Error executing query: reconnect failed"), out)
	assert.False(t, f.app.Connected())
}

// stallingManager holds IsAlive until release is closed.
type stallingManager struct {
	session.Manager
	entered chan struct{}
	release chan struct{}
}

func (m *stallingManager) IsAlive(ctx context.Context, s *session.Session) bool {
	close(m.entered)
	<-m.release
	return m.Manager.IsAlive(ctx, s)
}

func TestLivenessCheckDoesNotBlockApp(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	stalling := &stallingManager{
		Manager: f.app.sessions,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.app.sessions = stalling

	result := make(chan string, 1)
	go func() {
		result <- f.app.RunQuery(context.Background(), "/var/db.sqlite", "SELECT * FROM users;")
	}()
	<-stalling.entered

	calls := make(chan struct{})
	go func() {
		defer close(calls)
		assert.True(t, f.app.Connected())
		assert.Equal(t, "", f.app.Disconnect())
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Connected and Disconnect waited for the liveness check")
	}

	close(stalling.release)

	// The session was dropped during the liveness check, so the query does not run on
	// a session the caller already disconnected.
	assert.Equal(t, "Error executing query: not connected", <-result)
	assert.False(t, f.app.Connected())
	for _, inv := range f.fake.Invocations() {
		assert.NotEqual(t, "SELECT * FROM users;", inv.SQL)
	}
}

func TestSavedConnectionsScenario(t *testing.T) {
	f := newFixture(t)

	assert.Empty(t, f.app.ListSavedConnections())

	rec := &store.SavedConnection{
		Host:    "127.0.0.1",
		User:    "root",
		KeyPath: "~/.ssh/id_rsa",
		DBPath:  "/var/db.sqlite",
	}
	assert.Equal(t, "", f.app.SaveConnection(rec))

	list := f.app.ListSavedConnections()
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].ID)
	assert.Equal(t, "root@127.0.0.1", list[0].Name)

	assert.Equal(t, "", f.app.DeleteConnection(list[0].ID))
	assert.Equal(t, "", f.app.DeleteConnection(list[0].ID))
	assert.Empty(t, f.app.ListSavedConnections())
}

func TestSavedConnectionsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	list := f.app.ListSavedConnections()
	assert.NotNil(t, list)
	assert.Empty(t, list)

	msg := f.app.SaveConnection(&store.SavedConnection{Host: "h", User: "u"})
	assert.True(t, strings.HasPrefix(msg, "Error saving: "), msg)

	msg = f.app.DeleteConnection("x")
	assert.True(t, strings.HasPrefix(msg, "Error deleting: "), msg)
}
