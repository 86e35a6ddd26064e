package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	bucketRecords = []byte("connections") // sequence -> SavedConnection
	bucketIDs     = []byte("ids")         // ID -> sequence (index)
)

// boltStore implements the Store interface using BoltDB.
type boltStore struct {
	db     *bolt.DB
	logger logger.Logger
	config Config
}

// New opens (creating if needed) the catalog database.
//
// Parameters:
//   - cfg: Store configuration (DBPath may start with ~)
//   - log: Logger instance
//
// Returns:
//   - Store backed by BoltDB, safe for concurrent use
//   - *StorageError when the file cannot be opened: Unavailable when the
//     lock cannot be taken or the directory is unusable, Corrupt when the
//     file is not a valid database
func New(cfg Config, log logger.Logger) (Store, error) {
	// Set default timeout.
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	// Expand home directory in path.
	dbPath := expandHome(cfg.DBPath)

	// Create directory if it doesn't exist.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, &StorageError{Kind: Unavailable, Op: "open", Err: fmt.Errorf("failed to create database directory: %w", err)}
	}

	// Open database.
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, &StorageError{Kind: openErrorKind(err), Op: "open", Err: err}
	}

	// Initialize buckets.
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketRecords); createErr != nil {
			return fmt.Errorf("failed to create connections bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketIDs); createErr != nil {
			return fmt.Errorf("failed to create ids bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, &StorageError{Kind: Unavailable, Op: "open", Err: err}
	}

	log.Debug("connection store opened", "db_path", dbPath)

	return &boltStore{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// openErrorKind maps bolt.Open failures onto storage error kinds.
func openErrorKind(err error) StorageErrorKind {
	switch {
	case errors.Is(err, bolt.ErrInvalid),
		errors.Is(err, bolt.ErrVersionMismatch),
		errors.Is(err, bolt.ErrChecksum):
		return Corrupt
	default:
		return Unavailable
	}
}

// List implements Store.List.
func (s *boltStore) List() ([]*SavedConnection, error) {
	records := make([]*SavedConnection, 0, 10)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		return b.ForEach(func(k, v []byte) error {
			var rec SavedConnection
			if unmarshalErr := json.Unmarshal(v, &rec); unmarshalErr != nil {
				s.logger.Warn("skipping undecodable connection record",
					"seq", binary.BigEndian.Uint64(k),
					"error", unmarshalErr)
				return nil
			}

			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, &StorageError{Kind: Unavailable, Op: "list", Err: err}
	}

	return records, nil
}

// Get implements Store.Get.
func (s *boltStore) Get(id string) (*SavedConnection, error) {
	var rec *SavedConnection

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}

		data := tx.Bucket(bucketRecords).Get(key)
		if data == nil {
			return &StorageError{Kind: Corrupt, Op: "get", Err: fmt.Errorf("index entry for %s has no record", id)}
		}

		var r SavedConnection
		if unmarshalErr := json.Unmarshal(data, &r); unmarshalErr != nil {
			return &StorageError{Kind: Corrupt, Op: "get", Err: fmt.Errorf("failed to unmarshal record %s: %w", id, unmarshalErr)}
		}

		rec = &r
		return nil
	})
	if err != nil {
		return nil, classify("get", err)
	}

	return rec, nil
}

// Find implements Store.Find.
func (s *boltStore) Find(ref string) (*SavedConnection, error) {
	rec, err := s.Get(ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var match *SavedConnection
	for _, candidate := range all {
		if candidate.Name != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousName, ref)
		}
		match = candidate
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return match, nil
}

// Save implements Store.Save.
func (s *boltStore) Save(rec *SavedConnection) error {
	if rec == nil {
		return ErrNilRecord
	}

	saved := *rec
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if strings.TrimSpace(saved.Name) == "" {
		saved.Name = DefaultName(saved.User, saved.Host)
	}

	now := time.Now().UTC()
	updated := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		ids := tx.Bucket(bucketIDs)

		var key []byte
		if existing := ids.Get([]byte(saved.ID)); existing != nil {
			key = append([]byte(nil), existing...)
			updated = true

			if data := records.Get(key); data != nil {
				var prev SavedConnection
				if json.Unmarshal(data, &prev) == nil {
					saved.CreatedAt = prev.CreatedAt
				}
			}
		} else {
			seq, seqErr := records.NextSequence()
			if seqErr != nil {
				return fmt.Errorf("failed to allocate sequence: %w", seqErr)
			}
			key = seqKey(seq)

			if err := ids.Put([]byte(saved.ID), key); err != nil {
				return fmt.Errorf("failed to store id index: %w", err)
			}
		}

		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
		saved.UpdatedAt = now

		data, err := json.Marshal(&saved)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if err := records.Put(key, data); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}

		return nil
	})
	if err != nil {
		return classify("save", err)
	}

	*rec = saved

	s.logger.Info("connection saved",
		"id", saved.ID,
		"name", saved.Name,
		"updated", updated)

	return nil
}

// Delete implements Store.Delete.
func (s *boltStore) Delete(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketIDs)

		key := ids.Get([]byte(id))
		if key == nil {
			// Already gone.
			return nil
		}
		key = append([]byte(nil), key...)

		if err := tx.Bucket(bucketRecords).Delete(key); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		if err := ids.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete id index: %w", err)
		}

		return nil
	})
	if err != nil {
		return classify("delete", err)
	}

	s.logger.Info("connection deleted", "id", id)
	return nil
}

// Export implements Store.Export.
func (s *boltStore) Export(w io.Writer) error {
	records, err := s.List()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	return nil
}

// Import implements Store.Import.
func (s *boltStore) Import(r io.Reader) (int, error) {
	var records []SavedConnection
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, &StorageError{Kind: Corrupt, Op: "import", Err: fmt.Errorf("failed to decode records: %w", err)}
	}

	imported := 0
	for i := range records {
		if err := s.Save(&records[i]); err != nil {
			return imported, err
		}
		imported++
	}

	s.logger.Info("connections imported", "count", imported)
	return imported, nil
}

// Close implements Store.Close.
func (s *boltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return &StorageError{Kind: Unavailable, Op: "close", Err: err}
	}

	s.logger.Debug("connection store closed")
	return nil
}

// classify wraps transaction failures that are not already typed.
func classify(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Kind: Unavailable, Op: op, Err: err}
}

// seqKey encodes a bucket sequence so that byte order matches insertion order.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
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
