// Package badger persists enumeration entry snapshots in BadgerDB.
//
// Keys are namespaced per parent so one range scan restores a whole
// collection:
//
//	Data Type        Prefix  Key Format           Value Type
//	=========================================================
//	Entry snapshot   "e:"    e:<parent>/:<name>   Entry (JSON)
package badger

import (
	"encoding/json"
	"fmt"
	"io/fs"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/enumerate"
)

const prefixEntry = "e:"

// keyEntry builds the key for one entry: "e:<parent>/:<name>". The
// "/:" separator cannot occur inside a cleaned parent path, so parents
// sharing a prefix never collide.
func keyEntry(parent, name string) []byte {
	return []byte(prefixEntry + parent + "/:" + name)
}

func keyParentPrefix(parent string) []byte {
	return []byte(prefixEntry + parent + "/:")
}

// Store is a BadgerDB-backed enumerate.SnapshotStore.
type Store struct {
	db *badger.DB
}

// Open creates or opens a snapshot database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store at %s: %w", path, err)
	}

	logger.Debug("Opened entry snapshot store", "path", path)
	return &Store{db: db}, nil
}

// Load returns every saved entry under parent, fs.ErrNotExist when the
// parent was never snapshotted.
func (s *Store) Load(parent string) ([]enumerate.Entry, error) {
	var entries []enumerate.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyParentPrefix(parent)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e enumerate.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("failed to decode snapshot entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fs.ErrNotExist
	}
	return entries, nil
}

// Save upserts entries under parent.
func (s *Store) Save(parent string, entries []enumerate.Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot entry %s: %w", e.Name, err)
		}
		if err := wb.Set(keyEntry(parent, e.Name), val); err != nil {
			return fmt.Errorf("failed to batch snapshot entry %s: %w", e.Name, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot batch: %w", err)
	}
	return nil
}

// Delete removes every saved entry under parent.
func (s *Store) Delete(parent string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyParentPrefix(parent)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete snapshot key: %w", err)
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
