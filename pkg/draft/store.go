// Package draft persists onboarding session drafts in a local BadgerDB so an
// interrupted flow resumes at its last step instead of restarting from welcome.
package draft

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNoDraft is returned by Load when no draft exists for the user.
var ErrNoDraft = errors.New("draft: not found")

// Store is a thin key-value wrapper satisfying flow.DraftStore.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a persistent store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("draft: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a non-persistent store. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("draft: open in-memory: %w", err)
	}
	return &Store{db: db}, nil
}

func key(userID uint) []byte {
	return []byte(fmt.Sprintf("draft/%d", userID))
}

// Save stores the encoded draft for a user, overwriting any previous one.
func (s *Store) Save(userID uint, payload []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), payload)
	})
}

// Load returns the stored draft payload, or ErrNoDraft.
func (s *Store) Load(userID uint) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(userID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoDraft
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the draft for a user. Deleting a missing draft is not an error.
func (s *Store) Delete(userID uint) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(userID))
	})
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
