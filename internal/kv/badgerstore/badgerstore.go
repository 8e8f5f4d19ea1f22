// Package badgerstore implements the KVStore port on an embedded Badger
// database. This is the default backend: no external service, one directory
// on disk.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/peterkaminski/textpile/internal/domain"
)

// envelope packs value and metadata into one Badger value so both commit in
// a single key write.
type envelope struct {
	Value []byte          `json:"v"`
	Meta  json.RawMessage `json:"m,omitempty"`
}

// Store wraps a Badger DB.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database in dir. Callers must Close it.
func Open(dir string) (*Store, error) {
	opt := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (*envelope, bool, error) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.StoreError("badger get "+key, err)
	}
	return &env, true, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	env, ok, err := s.get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return env.Value, true, nil
}

func (s *Store) GetWithMetadata(_ context.Context, key string) ([]byte, []byte, bool, error) {
	env, ok, err := s.get(key)
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	return env.Value, env.Meta, true, nil
}

func (s *Store) Put(_ context.Context, key string, value, meta []byte, ttl time.Duration) error {
	raw, err := json.Marshal(envelope{Value: value, Meta: meta})
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return domain.StoreError("badger put "+key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return domain.StoreError("badger delete "+key, err)
	}
	return nil
}
