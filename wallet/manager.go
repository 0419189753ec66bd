// Package wallet provides the Manager, the single source of truth for which
// signing provider, if any, is currently authorized.
//
// The Manager owns at most one active launchpad.SigningProvider, persists the
// connection through a launchpad.SessionStore, silently restores it once at
// construction, and notifies listeners after every connect or disconnect.
// It is the only component that invokes a provider.
//
// Example usage:
//
//	mgr := wallet.New(&signers.Factory{Freighter: ext, Network: launchpad.Testnet},
//	    session.NewStore(file.NewKeyValueStore(path)),
//	    wallet.WithListener(func(conn *launchpad.WalletConnection) {
//	        log.Printf("wallet changed: %+v", conn)
//	    }),
//	)
//	defer mgr.Close()
//	<-mgr.Restored()
//
//	conn, err := mgr.Connect(ctx, launchpad.ProviderFreighter)
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

const (
	// DefaultSignTimeout bounds how long SignTransaction waits on the
	// provider's signing prompt.
	DefaultSignTimeout = 120 * time.Second

	// DefaultRestoreTimeout bounds the silent reconnect at startup.
	DefaultRestoreTimeout = 30 * time.Second
)

// Manager mediates every connect, disconnect and sign call.
//
// State transitions are serialized; a Connect issued while another connect
// (or the startup restore) is in flight fails fast with ALREADY_CONNECTING.
// Notifications are delivered in transition order, each listener once per
// transition, in registration order. A transition triggered from inside a
// listener is delivered after the current round completes.
type Manager struct {
	factory        launchpad.ProviderFactory
	sessions       launchpad.SessionStore
	logger         *logrus.Entry
	signTimeout    time.Duration
	restoreTimeout time.Duration
	listeners      listenerRegistry

	mu          sync.RWMutex
	state       State
	provider    launchpad.SigningProvider
	conn        *launchpad.WalletConnection
	pending     []*launchpad.WalletConnection
	dispatching bool

	restored  chan struct{}
	closeOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSignTimeout overrides DefaultSignTimeout.
func WithSignTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.signTimeout = d
		}
	}
}

// WithRestoreTimeout overrides DefaultRestoreTimeout.
func WithRestoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.restoreTimeout = d
		}
	}
}

// WithListener registers a listener before the startup restore runs, so it
// observes a successful restore.
func WithListener(listener ConnectionListener) Option {
	return func(m *Manager) {
		m.listeners.add(listener)
	}
}

// New creates a Manager and starts the one-time silent restore in the
// background. The manager reports StateConnecting until Restored is closed.
func New(factory launchpad.ProviderFactory, sessions launchpad.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		factory:        factory,
		sessions:       sessions,
		logger:         logrus.NewEntry(logrus.StandardLogger()).WithField("component", "wallet"),
		signTimeout:    DefaultSignTimeout,
		restoreTimeout: DefaultRestoreTimeout,
		state:          StateConnecting,
		restored:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	go m.restore()

	return m
}

// Restored is closed once the startup restore has finished, whatever its
// outcome.
func (m *Manager) Restored() <-chan struct{} {
	return m.restored
}

// Connect instantiates a fresh provider of kind, connects it, persists the
// session and notifies listeners. Any previous connection is replaced only
// when every step succeeded; on failure the previous state is kept and the
// provider's error is returned.
func (m *Manager) Connect(ctx context.Context, kind launchpad.ProviderKind) (launchpad.WalletConnection, error) {
	m.mu.Lock()
	if err := validateTransition(m.state, StateConnecting); err != nil {
		m.mu.Unlock()
		return launchpad.WalletConnection{}, err
	}
	previous := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	log := m.logger.WithField("provider", kind)
	log.Debug("connecting wallet")

	provider, publicKey, err := m.establish(ctx, kind)
	if err == nil {
		err = m.sessions.Save(ctx, launchpad.PersistedSession{PublicKey: publicKey, Provider: kind})
		if err != nil {
			provider.Disconnect()
		}
	}
	if err != nil {
		m.mu.Lock()
		m.state = previous
		m.mu.Unlock()
		log.WithError(err).Debug("wallet connect failed")
		return launchpad.WalletConnection{}, err
	}

	conn := launchpad.WalletConnection{PublicKey: publicKey, Provider: kind}
	m.commitConnected(provider, conn)
	log.WithField("account", publicKey).Info("wallet connected")

	return conn, nil
}

// Disconnect disconnects the active provider, deletes the persisted session
// and notifies listeners with nil. It is a no-op when nothing is connected and
// fails with ALREADY_CONNECTING while a connect is in flight.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateDisconnected:
		m.mu.Unlock()
		return nil
	case StateConnecting:
		m.mu.Unlock()
		return errors.NewWalletError(errors.ALREADY_CONNECTING, "cannot disconnect while a connection is in progress", nil)
	}
	if err := validateTransition(m.state, StateDisconnected); err != nil {
		m.mu.Unlock()
		return err
	}

	if err := m.sessions.Clear(ctx); err != nil {
		m.mu.Unlock()
		return err
	}

	provider := m.provider
	provider.Disconnect()
	m.provider = nil
	m.conn = nil
	m.state = StateDisconnected
	m.pending = append(m.pending, nil)
	m.mu.Unlock()

	m.logger.WithField("provider", provider.Kind()).Info("wallet disconnected")
	m.flush()
	return nil
}

// SignTransaction signs xdr with the active provider. It fails with
// NOT_CONNECTED without touching any provider when nothing is connected.
// The signing prompt is bounded by the sign timeout; expiry or cancellation
// of ctx surfaces as SIGNING_FAILED. Provider errors are returned verbatim.
func (m *Manager) SignTransaction(ctx context.Context, xdr string) (string, error) {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return "", errors.NewWalletError(errors.NOT_CONNECTED, "no wallet connected", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, m.signTimeout)
	defer cancel()

	type signResult struct {
		signed string
		err    error
	}
	done := make(chan signResult, 1)
	go func() {
		signed, err := provider.SignTransaction(ctx, xdr)
		done <- signResult{signed: signed, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return "", m.signAbandoned(provider, ctx.Err())
		}
		return res.signed, res.err
	case <-ctx.Done():
		return "", m.signAbandoned(provider, ctx.Err())
	}
}

func (m *Manager) signAbandoned(provider launchpad.SigningProvider, cause error) error {
	m.logger.WithField("provider", provider.Kind()).WithError(cause).Warn("signing prompt abandoned")
	return errors.NewWalletError(errors.SIGNING_FAILED, "signing was cancelled or timed out", cause)
}

// IsConnected reports whether a provider is active.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider != nil && m.provider.IsConnected()
}

// PublicKey returns the connected account, or "" when none.
func (m *Manager) PublicKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return ""
	}
	return m.conn.PublicKey
}

// Connection returns a copy of the live connection, or nil.
func (m *Manager) Connection() *launchpad.WalletConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil
	}
	conn := *m.conn
	return &conn
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnConnectionChange registers listener and returns its unsubscribe function.
func (m *Manager) OnConnectionChange(listener ConnectionListener) func() {
	return m.listeners.add(listener)
}

// Close waits for the startup restore, disconnects and drops all listeners.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		<-m.restored
		err = m.Disconnect(context.Background())
		m.listeners.clear()
	})
	return err
}

func (m *Manager) establish(ctx context.Context, kind launchpad.ProviderKind) (launchpad.SigningProvider, string, error) {
	provider, err := m.factory.NewProvider(kind)
	if err != nil {
		return nil, "", err
	}
	publicKey, err := provider.Connect(ctx)
	if err != nil {
		return nil, "", err
	}
	return provider, publicKey, nil
}

// commitConnected installs provider as the active one. The previous provider,
// if any, is discarded without being reused.
func (m *Manager) commitConnected(provider launchpad.SigningProvider, conn launchpad.WalletConnection) {
	m.mu.Lock()
	m.provider = provider
	m.conn = &conn
	m.state = StateConnected
	published := conn
	m.pending = append(m.pending, &published)
	m.mu.Unlock()

	m.flush()
}

// flush delivers queued notifications. Only one goroutine dispatches at a
// time; others leave their events to it.
//
// A panicking listener releases the dispatcher role; events still queued are
// delivered by the next flush.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true

	done := false
	defer func() {
		if !done {
			m.mu.Lock()
			m.dispatching = false
			m.mu.Unlock()
		}
	}()

	for len(m.pending) > 0 {
		event := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		m.listeners.notify(event)
		m.mu.Lock()
	}
	m.dispatching = false
	done = true
	m.mu.Unlock()
}

// restore runs once from New. Only resumable providers are reconnected; every
// failure deletes the persisted session and leaves the manager disconnected
// without notifying anyone.
func (m *Manager) restore() {
	defer close(m.restored)

	ctx, cancel := context.WithTimeout(context.Background(), m.restoreTimeout)
	defer cancel()

	saved, err := m.sessions.Load(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("could not read persisted wallet session")
		m.abandonRestore(ctx)
		return
	}
	if saved == nil {
		m.setState(StateDisconnected)
		return
	}

	log := m.logger.WithField("provider", saved.Provider)
	if !saved.Provider.Resumable() {
		log.Info("wallet session cannot be resumed silently, discarding")
		m.abandonRestore(ctx)
		return
	}

	provider, publicKey, err := m.establish(ctx, saved.Provider)
	if err != nil {
		log.WithError(err).Warn("could not restore wallet connection")
		m.abandonRestore(ctx)
		return
	}

	if publicKey != saved.PublicKey {
		if err := m.sessions.Save(ctx, launchpad.PersistedSession{PublicKey: publicKey, Provider: saved.Provider}); err != nil {
			log.WithError(err).Warn("could not update restored wallet session")
			provider.Disconnect()
			m.abandonRestore(ctx)
			return
		}
	}

	m.commitConnected(provider, launchpad.WalletConnection{PublicKey: publicKey, Provider: saved.Provider})
	log.WithField("account", publicKey).Info("wallet connection restored")
}

func (m *Manager) abandonRestore(ctx context.Context) {
	if err := m.sessions.Clear(ctx); err != nil {
		m.logger.WithError(err).Warn("could not delete persisted wallet session")
	}
	m.setState(StateDisconnected)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

var _ launchpad.Signer = (*Manager)(nil)
