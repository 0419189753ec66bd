package signers

import (
	"context"
	"fmt"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
)

// KeypairExtension implements FreighterAPI with a local Stellar keypair.
// It stands in for the browser extension in headless programs and tests:
// permission prompts go through an optional approval callback and envelopes
// are signed in-process.
type KeypairExtension struct {
	kp      *keypair.Full
	approve func(ctx context.Context, prompt string) bool

	mu      sync.Mutex
	allowed bool
}

// KeypairOption configures a KeypairExtension.
type KeypairOption func(*KeypairExtension)

// WithApproval sets the callback consulted for access and signing prompts.
// Without it every prompt is approved.
func WithApproval(approve func(ctx context.Context, prompt string) bool) KeypairOption {
	return func(e *KeypairExtension) {
		e.approve = approve
	}
}

// WithPreAllowed marks access as already granted, like an extension that
// remembers a previous grant.
func WithPreAllowed() KeypairOption {
	return func(e *KeypairExtension) {
		e.allowed = true
	}
}

// NewKeypairExtension creates an extension from a Stellar secret key (S...).
// Returns an error if the secret key is invalid.
func NewKeypairExtension(secret string, opts ...KeypairOption) (*KeypairExtension, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}

	ext := &KeypairExtension{kp: kp}
	for _, opt := range opts {
		opt(ext)
	}
	return ext, nil
}

// IsInstalled always reports true.
func (e *KeypairExtension) IsInstalled(ctx context.Context) (bool, error) {
	return true, nil
}

// IsAllowed reports whether access was granted.
func (e *KeypairExtension) IsAllowed(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allowed, nil
}

// SetAllowed runs the access prompt and remembers a grant.
func (e *KeypairExtension) SetAllowed(ctx context.Context) (bool, error) {
	if !e.prompt(ctx, "allow access to "+e.kp.Address()) {
		return false, ErrUserDeclined
	}

	e.mu.Lock()
	e.allowed = true
	e.mu.Unlock()
	return true, nil
}

// GetPublicKey returns the keypair's address.
func (e *KeypairExtension) GetPublicKey(ctx context.Context) (string, error) {
	return e.kp.Address(), nil
}

// SignTransaction parses the XDR, signs the transaction hash for the named
// network and returns the signed envelope as base64 XDR.
func (e *KeypairExtension) SignTransaction(ctx context.Context, xdr string, networkName string) (string, error) {
	network, ok := launchpad.NetworkByName(networkName)
	if !ok {
		return "", fmt.Errorf("unknown network %q", networkName)
	}

	parsed, err := txnbuild.TransactionFromXDR(xdr)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction XDR: %w", err)
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("expected a Transaction, got a FeeBumpTransaction")
	}

	if !e.prompt(ctx, "sign transaction for "+e.kp.Address()) {
		return "", fmt.Errorf("user declined to sign")
	}

	signedTx, err := tx.Sign(network.Passphrase, e.kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx.Base64()
}

func (e *KeypairExtension) prompt(ctx context.Context, prompt string) bool {
	if e.approve == nil {
		return true
	}
	return e.approve(ctx, prompt)
}

var _ FreighterAPI = (*KeypairExtension)(nil)
