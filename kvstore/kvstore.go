// Package kvstore is the byte-blob persistence primitive underneath the
// upgrade state record: get and set whole values under string keys.
package kvstore

import "errors"

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("kvstore: key not found")

// Store persists opaque byte blobs under string keys. Set replaces the whole
// value atomically; readers never observe a torn write.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	m map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Get(key string) ([]byte, error) {
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	b := make([]byte, len(v))
	copy(b, v)
	return b, nil
}

func (s *MemStore) Set(key string, value []byte) error {
	b := make([]byte, len(value))
	copy(b, value)
	s.m[key] = b
	return nil
}
