// Package memory provides an in-process KVStore used by tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     []byte
	meta      []byte
	expiresAt time.Time // zero means never
}

// Store is a mutex-guarded map implementing domain.KVStore. TTLs are honored
// lazily on read.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
}

// New returns an empty store.
func New() *Store {
	return &Store{items: make(map[string]item)}
}

func (s *Store) lookup(key string) (item, bool) {
	it, ok := s.items[key]
	if !ok {
		return item{}, false
	}
	if !it.expiresAt.IsZero() && !it.expiresAt.After(time.Now()) {
		return item{}, false
	}
	return it, true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (s *Store) GetWithMetadata(_ context.Context, key string) ([]byte, []byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.lookup(key)
	if !ok {
		return nil, nil, false, nil
	}
	return append([]byte(nil), it.value...), append([]byte(nil), it.meta...), true, nil
}

func (s *Store) Put(_ context.Context, key string, value, meta []byte, ttl time.Duration) error {
	it := item{
		value: append([]byte(nil), value...),
		meta:  append([]byte(nil), meta...),
	}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of live keys. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.items {
		if _, ok := s.lookup(key); ok {
			n++
		}
	}
	return n
}
