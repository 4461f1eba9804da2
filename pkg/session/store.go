// Package session holds per-browser-session values that must survive between
// page views but never outlive the session itself.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNotFound is returned when a key has no value for the session.
var ErrNotFound = errors.New("session value not found")

// Store is session-scoped storage of opaque values.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
	Close() error
}

// MemoryStore keeps values in process memory. Entries expire ttl after they
// were written and the oldest are evicted past size entries.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	v, ok := s.cache.Get(storageKey(sessionID, key))
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.cache.Add(storageKey(sessionID, key), value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.cache.Remove(storageKey(sessionID, key))
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}

func storageKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}
