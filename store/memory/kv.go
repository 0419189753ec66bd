// Package memory provides in-memory implementations of store interfaces.
// The KeyValueStore implementation uses a map[string]string with sync.RWMutex
// for thread-safe access. It is suitable for tests, examples and processes
// that do not need the session to survive a restart.
package memory

import (
	"context"
	"sync"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
)

// KeyValueStore is an in-memory implementation of launchpad.KeyValueStore.
type KeyValueStore struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewKeyValueStore creates a new in-memory key-value store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key and whether it exists.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	return value, exists, nil
}

// Set stores value under key, replacing any previous value.
func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys.
func (s *KeyValueStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

// Verify that KeyValueStore implements launchpad.KeyValueStore
var _ launchpad.KeyValueStore = (*KeyValueStore)(nil)
