package backend

import (
	"errors"

	"github.com/sealbox/sealbox/pkg/sealbox"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelStore is the device-local key-value store, backed by a leveldb
// database in the client's data directory. It caches the key pair export
// between sessions.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if necessary) the local store at the given
// directory.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &LevelStore{db: db}, nil
}

// GetItem returns the value for key, reporting whether it exists.
func (s *LevelStore) GetItem(key string) (string, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return string(v), true, nil
}

// SetItem stores the value for key.
func (s *LevelStore) SetItem(key, value string) error {
	return s.db.Put([]byte(key), []byte(value), nil)
}

// Close closes the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

var _ sealbox.LocalStore = &LevelStore{}
