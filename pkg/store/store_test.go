package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "connections.db")
	st, err := New(Config{DBPath: dbPath}, logger.Noop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = st.Close() //nolint:errcheck // already closed in some tests
	})

	return st, dbPath
}

func TestNewCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "connections.db")

	st, err := New(Config{DBPath: dbPath}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveThenListScenario(t *testing.T) {
	st, _ := setupTestStore(t)

	rec := &SavedConnection{
		Host:    "127.0.0.1",
		User:    "root",
		KeyPath: "~/.ssh/id_rsa",
		DBPath:  "/var/db.sqlite",
	}
	require.NoError(t, st.Save(rec))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, rec.ID, got.ID, "generated id is written back")
	assert.Equal(t, "root@127.0.0.1", got.Name)
	assert.Equal(t, "127.0.0.1", got.Host)
	assert.Equal(t, "root", got.User)
	assert.Equal(t, "~/.ssh/id_rsa", got.KeyPath)
	assert.Equal(t, "/var/db.sqlite", got.DBPath)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveKeepsExplicitName(t *testing.T) {
	st, _ := setupTestStore(t)

	rec := &SavedConnection{Name: "prod", Host: "db1", User: "app"}
	require.NoError(t, st.Save(rec))

	got, err := st.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Name)
}

func TestSaveGeneratesUniqueIDs(t *testing.T) {
	st, _ := setupTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rec := &SavedConnection{Host: "h", User: "u"}
		require.NoError(t, st.Save(rec))
		assert.False(t, seen[rec.ID], "id %s reused", rec.ID)
		seen[rec.ID] = true
	}

	list, err := st.List()
	require.NoError(t, err)
	assert.Len(t, list, 20)
}

func TestSaveEmptyFieldsAllowed(t *testing.T) {
	st, _ := setupTestStore(t)

	rec := &SavedConnection{}
	require.NoError(t, st.Save(rec))
	assert.Equal(t, "@", rec.Name)
}

func TestSaveNil(t *testing.T) {
	st, _ := setupTestStore(t)
	assert.ErrorIs(t, st.Save(nil), ErrNilRecord)
}

func TestListInsertionOrder(t *testing.T) {
	st, _ := setupTestStore(t)

	for _, host := range []string{"c-host", "a-host", "b-host"} {
		require.NoError(t, st.Save(&SavedConnection{Host: host, User: "u"}))
	}

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c-host", list[0].Host)
	assert.Equal(t, "a-host", list[1].Host)
	assert.Equal(t, "b-host", list[2].Host)
}

func TestSaveExistingIDUpdatesInPlace(t *testing.T) {
	st, _ := setupTestStore(t)

	first := &SavedConnection{Host: "one", User: "u"}
	second := &SavedConnection{Host: "two", User: "u"}
	require.NoError(t, st.Save(first))
	require.NoError(t, st.Save(second))

	created := first.CreatedAt
	time.Sleep(5 * time.Millisecond)

	edited := &SavedConnection{ID: first.ID, Name: "renamed", Host: "one-b", User: "u", DBPath: "/data/x.db"}
	require.NoError(t, st.Save(edited))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2, "re-save must not duplicate")

	assert.Equal(t, first.ID, list[0].ID, "position kept")
	assert.Equal(t, "renamed", list[0].Name)
	assert.Equal(t, "one-b", list[0].Host)
	assert.Equal(t, "/data/x.db", list[0].DBPath)
	assert.True(t, list[0].CreatedAt.Equal(created), "CreatedAt kept")
	assert.True(t, list[0].UpdatedAt.After(created))
	assert.Equal(t, "two", list[1].Host)
}

func TestSaveUnknownIDInserts(t *testing.T) {
	st, _ := setupTestStore(t)

	rec := &SavedConnection{ID: "client-minted", Host: "h", User: "u"}
	require.NoError(t, st.Save(rec))

	got, err := st.Get("client-minted")
	require.NoError(t, err)
	assert.Equal(t, "u@h", got.Name)
}

func TestDelete(t *testing.T) {
	st, _ := setupTestStore(t)

	keep := &SavedConnection{Host: "keep", User: "u"}
	drop := &SavedConnection{Host: "drop", User: "u"}
	require.NoError(t, st.Save(keep))
	require.NoError(t, st.Save(drop))

	require.NoError(t, st.Delete(drop.ID))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	_, err = st.Get(drop.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	assert.NoError(t, st.Delete(drop.ID))
	assert.NoError(t, st.Delete("never-existed"))
}

func TestDeleteThenResaveGetsNewPosition(t *testing.T) {
	st, _ := setupTestStore(t)

	a := &SavedConnection{Host: "a", User: "u"}
	b := &SavedConnection{Host: "b", User: "u"}
	require.NoError(t, st.Save(a))
	require.NoError(t, st.Save(b))
	require.NoError(t, st.Delete(a.ID))

	a.CreatedAt = time.Time{}
	require.NoError(t, st.Save(a))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestFind(t *testing.T) {
	st, _ := setupTestStore(t)

	prod := &SavedConnection{Name: "prod", Host: "db1", User: "app"}
	dup1 := &SavedConnection{Name: "dup", Host: "x", User: "u"}
	dup2 := &SavedConnection{Name: "dup", Host: "y", User: "u"}
	require.NoError(t, st.Save(prod))
	require.NoError(t, st.Save(dup1))
	require.NoError(t, st.Save(dup2))

	byID, err := st.Find(prod.ID)
	require.NoError(t, err)
	assert.Equal(t, "db1", byID.Host)

	byName, err := st.Find("prod")
	require.NoError(t, err)
	assert.Equal(t, prod.ID, byName.ID)

	_, err = st.Find("dup")
	assert.ErrorIs(t, err, ErrAmbiguousName)

	_, err = st.Find("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "connections.db")

	st, err := New(Config{DBPath: dbPath}, logger.Noop())
	require.NoError(t, err)

	rec := &SavedConnection{Name: "staging", Host: "10.0.0.5", User: "deploy", KeyPath: "/keys/id", DBPath: "/srv/app.db"}
	require.NoError(t, st.Save(rec))
	require.NoError(t, st.Close())

	reopened, err := New(Config{DBPath: dbPath}, logger.Noop())
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	got, err := reopened.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Host, got.Host)
	assert.Equal(t, rec.User, got.User)
	assert.Equal(t, rec.KeyPath, got.KeyPath)
	assert.Equal(t, rec.DBPath, got.DBPath)
}

func TestLockedFileIsUnavailable(t *testing.T) {
	_, dbPath := setupTestStore(t)

	_, err := New(Config{DBPath: dbPath, Timeout: 50 * time.Millisecond}, logger.Noop())
	require.Error(t, err)
	assert.True(t, IsKind(err, Unavailable), "got %v", err)
}

func TestGarbageFileIsCorrupt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "connections.db")
	require.NoError(t, os.WriteFile(dbPath, bytes.Repeat([]byte{0xAB}, 16384), 0600))

	_, err := New(Config{DBPath: dbPath}, logger.Noop())
	require.Error(t, err)
	assert.True(t, IsKind(err, Corrupt), "got %v", err)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	st, _ := setupTestStore(t)
	require.NoError(t, st.Close())

	err := st.Save(&SavedConnection{Host: "h", User: "u"})
	require.Error(t, err)
	assert.True(t, IsKind(err, Unavailable), "got %v", err)

	_, err = st.List()
	assert.True(t, IsKind(err, Unavailable), "got %v", err)
}

func TestExportImport(t *testing.T) {
	src, _ := setupTestStore(t)
	require.NoError(t, src.Save(&SavedConnection{Name: "a", Host: "h1", User: "u1", KeyPath: "/k1", DBPath: "/d1"}))
	require.NoError(t, src.Save(&SavedConnection{Name: "b", Host: "h2", User: "u2", KeyPath: "/k2", DBPath: "/d2"}))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))
	assert.Contains(t, buf.String(), `"keyPath": "/k1"`)

	dst, _ := setupTestStore(t)
	n, err := dst.Import(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same ids: a second import updates instead of duplicating.
	n, err = dst.Import(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	srcList, err := src.List()
	require.NoError(t, err)
	dstList, err := dst.List()
	require.NoError(t, err)
	require.Len(t, dstList, 2)

	for i := range srcList {
		assert.Equal(t, srcList[i].ID, dstList[i].ID)
		assert.Equal(t, srcList[i].Name, dstList[i].Name)
		assert.Equal(t, srcList[i].DBPath, dstList[i].DBPath)
	}
}

func TestImportLegacyFormat(t *testing.T) {
	st, _ := setupTestStore(t)

	legacy := `[
  {"id": "1700000000000", "name": "root@127.0.0.1", "host": "127.0.0.1", "user": "root", "keyPath": "/root/.ssh/id_rsa", "dbPath": "/var/db.sqlite"}
]`
	n, err := st.Import(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Get("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "/var/db.sqlite", got.DBPath)
}

func TestImportMalformed(t *testing.T) {
	st, _ := setupTestStore(t)

	_, err := st.Import(strings.NewReader(`{"not": "an array"`))
	require.Error(t, err)
	assert.True(t, IsKind(err, Corrupt))
}

func TestConcurrentSaves(t *testing.T) {
	st, _ := setupTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.Save(&SavedConnection{Host: "h", User: "u"})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	list, err := st.List()
	require.NoError(t, err)
	assert.Len(t, list, 16)
}

func TestStorageErrorMessage(t *testing.T) {
	err := &StorageError{Kind: Corrupt, Op: "get", Err: errors.New("bad bytes")}
	assert.Equal(t, "storage corrupt during get: bad bytes", err.Error())
	assert.True(t, IsKind(err, Corrupt))
	assert.False(t, IsKind(errors.New("plain"), Corrupt))
}
