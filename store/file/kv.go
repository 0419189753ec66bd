// Package file provides a durable launchpad.KeyValueStore backed by a single
// JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// KeyValueStore keeps all keys in one JSON object. Every write replaces the
// file atomically through a temporary file in the same directory.
type KeyValueStore struct {
	path string
	mu   sync.Mutex
}

// NewKeyValueStore creates a store persisted at path. The file and its
// directory are created on first write.
func NewKeyValueStore(path string) *KeyValueStore {
	return &KeyValueStore{path: path}
}

// Path returns the backing file path.
func (s *KeyValueStore) Path() string {
	return s.path
}

// Get returns the value stored under key and whether it exists.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, exists := values[key]
	return value, exists, nil
}

// Set stores value under key.
func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Delete removes key. Deleting a missing key does not touch the file.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := values[key]; !exists {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// load reads the document. A missing file is empty; a malformed file is moved
// aside and treated as empty so that one bad write cannot wedge the store.
func (s *KeyValueStore) load() (map[string]string, error) {
	// #nosec G304 -- path is supplied by the embedding application
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			return nil, fmt.Errorf("store file is corrupted and could not be moved: %w", renameErr)
		}
		return make(map[string]string), nil
	}
	return values, nil
}

func (s *KeyValueStore) save(values map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

var _ launchpad.KeyValueStore = (*KeyValueStore)(nil)
