package signers

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// AlbedoAPI is the surface of an Albedo-style injected object.
type AlbedoAPI interface {
	// Available reports whether the object has been injected.
	Available() bool

	// PublicKey prompts the user and returns the chosen account.
	PublicKey(ctx context.Context) (string, error)

	// Tx prompts the user to sign xdr on the network identified by its
	// passphrase and returns the signed envelope.
	Tx(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// Albedo is the SigningProvider for Albedo-style injected objects.
type Albedo struct {
	api     AlbedoAPI
	network launchpad.Network

	mu        sync.RWMutex
	publicKey string
}

// NewAlbedo creates a provider over api that signs for network.
func NewAlbedo(api AlbedoAPI, network launchpad.Network) *Albedo {
	return &Albedo{api: api, network: network}
}

// Kind returns launchpad.ProviderAlbedo.
func (a *Albedo) Kind() launchpad.ProviderKind {
	return launchpad.ProviderAlbedo
}

// Connect prompts for the public key. There is no separate permission step.
func (a *Albedo) Connect(ctx context.Context) (string, error) {
	if a.api == nil || !a.api.Available() {
		return "", errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Albedo wallet not available", nil).
			With("install_url", "https://albedo.link/")
	}

	publicKey, err := a.api.PublicKey(ctx)
	if err != nil {
		if stderrors.Is(err, ErrUserDeclined) {
			return "", errors.NewProviderError(errors.PERMISSION_DENIED, "access to Albedo wallet was not granted", err)
		}
		return "", errors.NewProviderError(errors.PROVIDER_ERROR, "failed to connect to Albedo wallet", err)
	}
	if strings.TrimSpace(publicKey) == "" {
		return "", errors.NewProviderError(errors.PROVIDER_ERROR, "failed to connect to Albedo wallet", nil)
	}

	a.mu.Lock()
	a.publicKey = publicKey
	a.mu.Unlock()

	return publicKey, nil
}

// Disconnect forgets the cached key.
func (a *Albedo) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publicKey = ""
}

// PublicKey returns the cached key.
func (a *Albedo) PublicKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.publicKey
}

// IsConnected reports whether a key is cached.
func (a *Albedo) IsConnected() bool {
	return a.PublicKey() != ""
}

// SignTransaction signs through the injected object. Failures carry no detail
// from the backend.
func (a *Albedo) SignTransaction(ctx context.Context, xdr string) (string, error) {
	if a.api == nil || !a.api.Available() {
		return "", errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Albedo wallet not available", nil)
	}
	if !a.IsConnected() {
		return "", errors.NewProviderError(errors.NOT_CONNECTED, "wallet not connected", nil)
	}

	signed, err := a.api.Tx(ctx, xdr, a.network.Passphrase)
	if err != nil {
		return "", errors.NewProviderError(errors.SIGNING_FAILED, "transaction signing failed", nil)
	}
	return signed, nil
}

var _ launchpad.SigningProvider = (*Albedo)(nil)
