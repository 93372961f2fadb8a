package inmemorystore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/lazyflow/internal/cache"
)

// Store is an in-memory cache.Store backed by sync.Map. Keys are written
// once per fingerprint and read many times, which is the access pattern
// sync.Map is tuned for.
type Store struct {
	entries sync.Map // Key: fingerprint, Value: []byte
	hits    atomic.Int64
	misses  atomic.Int64
}

var _ cache.Store = (*Store)(nil)

// New creates a new, empty in-memory result store.
func New() *Store {
	return &Store{}
}

// Get returns a copy of the stored bytes.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return append([]byte(nil), v.([]byte)...), true, nil
}

// Put stores a copy of value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.entries.Store(key, append([]byte(nil), value...))
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns the hit and miss counters.
func (s *Store) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
