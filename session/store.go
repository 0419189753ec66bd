// Package session persists the last wallet connection so it can be resumed
// after a restart. The record lives under one well-known key of a
// launchpad.KeyValueStore and is encoded as JSON.
package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// StorageKey is the key the session record is stored under.
const StorageKey = "stellar_pump_wallet"

// Store implements launchpad.SessionStore on top of a KeyValueStore.
type Store struct {
	kv     launchpad.KeyValueStore
	key    string
	logger *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLogger sets the logger used to report discarded records.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a session store backed by kv.
func NewStore(kv launchpad.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    StorageKey,
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted session or nil when none is stored. A record that
// cannot be parsed, has no public key or names an unknown provider is deleted
// and reported as absent.
func (s *Store) Load(ctx context.Context) (*launchpad.PersistedSession, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, errors.NewWalletError(errors.STORE_ERROR, "failed to read session record", err)
	}
	if !ok {
		return nil, nil
	}

	var record struct {
		PublicKey  string `json:"publicKey"`
		WalletType string `json:"walletType"`
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.discard(ctx, "unparseable session record", err)
		return nil, nil
	}

	kind, valid := launchpad.ParseProviderKind(record.WalletType)
	if !valid || strings.TrimSpace(record.PublicKey) == "" {
		s.discard(ctx, "incomplete session record", nil)
		return nil, nil
	}

	return &launchpad.PersistedSession{
		PublicKey: record.PublicKey,
		Provider:  kind,
	}, nil
}

// Save replaces the persisted session.
func (s *Store) Save(ctx context.Context, session launchpad.PersistedSession) error {
	if !session.Provider.Valid() || strings.TrimSpace(session.PublicKey) == "" {
		return errors.NewWalletError(errors.STORE_ERROR, "refusing to persist incomplete session", nil)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return errors.NewWalletError(errors.STORE_ERROR, "failed to encode session record", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return errors.NewWalletError(errors.STORE_ERROR, "failed to write session record", err)
	}
	return nil
}

// Clear removes the persisted session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return errors.NewWalletError(errors.STORE_ERROR, "failed to delete session record", err)
	}
	return nil
}

func (s *Store) discard(ctx context.Context, reason string, cause error) {
	entry := s.logger.WithField("key", s.key)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Warn("discarding " + reason)

	if err := s.kv.Delete(ctx, s.key); err != nil {
		entry.WithError(err).Warn("failed to delete discarded session record")
	}
}

var _ launchpad.SessionStore = (*Store)(nil)
