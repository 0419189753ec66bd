package signers

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// ErrUserDeclined is returned by backends when the user refused a prompt.
var ErrUserDeclined = stderrors.New("user declined access")

// FreighterAPI is the surface of a Freighter-style browser extension.
type FreighterAPI interface {
	// IsInstalled reports whether the extension is present.
	IsInstalled(ctx context.Context) (bool, error)

	// IsAllowed reports whether this application already holds a grant.
	IsAllowed(ctx context.Context) (bool, error)

	// SetAllowed prompts the user for a grant and reports the outcome.
	SetAllowed(ctx context.Context) (bool, error)

	// GetPublicKey returns the selected account.
	GetPublicKey(ctx context.Context) (string, error)

	// SignTransaction signs xdr for the named network ("PUBLIC" or "TESTNET").
	SignTransaction(ctx context.Context, xdr string, network string) (string, error)
}

// Freighter is the SigningProvider for Freighter-style extensions.
type Freighter struct {
	api     FreighterAPI
	network launchpad.Network

	mu        sync.RWMutex
	publicKey string
}

// NewFreighter creates a provider over api that signs for network.
func NewFreighter(api FreighterAPI, network launchpad.Network) *Freighter {
	return &Freighter{api: api, network: network}
}

// Kind returns launchpad.ProviderFreighter.
func (f *Freighter) Kind() launchpad.ProviderKind {
	return launchpad.ProviderFreighter
}

// Connect runs detect, permission check, permission request and key fetch in
// that order. The cached key is only replaced when every step succeeds.
func (f *Freighter) Connect(ctx context.Context) (string, error) {
	if f.api == nil {
		return "", errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Freighter wallet not installed", nil)
	}

	installed, err := f.api.IsInstalled(ctx)
	if err != nil {
		return "", normalizeFreighterError(err, "failed to detect Freighter wallet")
	}
	if !installed {
		return "", errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Freighter wallet not installed", nil).
			With("install_url", "https://freighter.app/")
	}

	allowed, err := f.api.IsAllowed(ctx)
	if err != nil {
		return "", normalizeFreighterError(err, "failed to check Freighter permission")
	}
	if !allowed {
		granted, err := f.api.SetAllowed(ctx)
		if err != nil {
			return "", normalizeFreighterError(err, "failed to request Freighter permission")
		}
		if !granted {
			return "", errors.NewProviderError(errors.PERMISSION_DENIED, "access to Freighter wallet was not granted", nil)
		}
	}

	publicKey, err := f.api.GetPublicKey(ctx)
	if err != nil {
		return "", normalizeFreighterError(err, "failed to fetch public key from Freighter")
	}
	if strings.TrimSpace(publicKey) == "" {
		return "", errors.NewProviderError(errors.PROVIDER_ERROR, "Freighter returned an empty public key", nil)
	}

	f.mu.Lock()
	f.publicKey = publicKey
	f.mu.Unlock()

	return publicKey, nil
}

// Disconnect forgets the cached key. The extension grant is left in place.
func (f *Freighter) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publicKey = ""
}

// PublicKey returns the cached key.
func (f *Freighter) PublicKey() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.publicKey
}

// IsConnected reports whether a key is cached.
func (f *Freighter) IsConnected() bool {
	return f.PublicKey() != ""
}

// SignTransaction asks the extension to sign xdr, passing the network
// selector alongside the envelope.
func (f *Freighter) SignTransaction(ctx context.Context, xdr string) (string, error) {
	if !f.IsConnected() {
		return "", errors.NewProviderError(errors.NOT_CONNECTED, "wallet not connected", nil)
	}

	signed, err := f.api.SignTransaction(ctx, xdr, f.network.Name)
	if err != nil {
		return "", errors.NewProviderError(errors.SIGNING_FAILED, "transaction signing failed: "+err.Error(), err)
	}
	return signed, nil
}

// normalizeFreighterError maps extension failures onto the taxonomy. Declines
// are recognised by sentinel or by the extension's own message text.
func normalizeFreighterError(err error, message string) error {
	var lerr *errors.LaunchpadError
	if errors.As(err, &lerr) {
		return lerr
	}
	if stderrors.Is(err, ErrUserDeclined) || strings.Contains(strings.ToLower(err.Error()), "user declined") {
		return errors.NewProviderError(errors.PERMISSION_DENIED, "please allow access to Freighter wallet and try again", err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "not installed") {
		return errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Freighter wallet not installed", err)
	}
	return errors.NewProviderError(errors.PROVIDER_ERROR, message, err)
}

var _ launchpad.SigningProvider = (*Freighter)(nil)
