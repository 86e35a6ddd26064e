// Package store provides the durable catalog of saved remote endpoints.
//
// Records live in a BoltDB file. Each mutation is a single read-write
// transaction, and bbolt syncs the file before the transaction returns, so
// a reported success survives a crash and a half-written record is never
// visible. bbolt allows one writer and many concurrent readers.
//
// Example usage:
//
//	st, err := store.New(store.Config{
//	    DBPath: "~/.config/metalite/connections.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	rec := &store.SavedConnection{
//	    Host:    "127.0.0.1",
//	    User:    "root",
//	    KeyPath: "~/.ssh/id_rsa",
//	    DBPath:  "/var/db.sqlite",
//	}
//	if err := st.Save(rec); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rec.ID, rec.Name) // generated id, "root@127.0.0.1"
package store

import (
	"io"
	"time"
)

// SavedConnection is a named bundle of host, user, key and database path.
//
// Fields are not validated here; a record with empty fields can be saved.
type SavedConnection struct {
	// ID is assigned by Save when empty and never reused.
	ID string `json:"id"`

	// Name is the display label, "<user>@<host>" when left blank.
	Name string `json:"name"`

	Host    string `json:"host"`
	User    string `json:"user"`
	KeyPath string `json:"keyPath"`
	DBPath  string `json:"dbPath"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DefaultName returns the label used for a record without a name.
func DefaultName(user, host string) string {
	return user + "@" + host
}

// Store provides catalog CRUD operations.
type Store interface {
	// List returns all records in insertion order (empty if none exist).
	List() ([]*SavedConnection, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(id string) (*SavedConnection, error)

	// Find resolves ref as an id first, then as an exact name.
	//
	// Returns ErrAmbiguousName when several records share the name.
	Find(ref string) (*SavedConnection, error)

	// Save persists rec.
	//
	// An empty ID gets a fresh one and an empty Name gets DefaultName; both
	// are written back into rec. A record whose ID already exists replaces
	// the stored one in place, keeping its position and CreatedAt.
	Save(rec *SavedConnection) error

	// Delete removes the record with the given id.
	//
	// Deleting an unknown id succeeds.
	Delete(id string) error

	// Export writes all records as a JSON array.
	Export(w io.Writer) error

	// Import saves every record of a JSON array and returns how many were
	// written. Records keep their ids, so importing twice does not duplicate.
	Import(r io.Reader) (int, error)

	// Close closes the database and releases the file lock.
	Close() error
}

// Config contains store configuration.
type Config struct {
	// DBPath is the BoltDB file path.
	DBPath string

	// Timeout bounds the wait for the file lock (default: 1 second).
	Timeout time.Duration
}
