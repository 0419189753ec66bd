// Package launchpad provides the wallet core of a token launchpad front end on
// Stellar. It multiplexes browser signing providers behind one manager,
// persists and restores the wallet session, enforces the trustline
// precondition before purchases and assembles unsigned contract invocations,
// while delegating pricing, token ledgers and graduation to the external
// launchpad contract.
package launchpad

import (
	"context"
	"strings"

	"github.com/stellar/go/network"
)

// ProviderKind identifies a signing provider variant.
type ProviderKind string

const (
	// ProviderFreighter is a browser extension with a persistent permission
	// grant. Its sessions can be resumed silently.
	ProviderFreighter ProviderKind = "freighter"

	// ProviderAlbedo is a global object injected by a separate extension or web
	// service. Every connect is a fresh permission prompt.
	ProviderAlbedo ProviderKind = "albedo"
)

// Valid reports whether k names a known provider.
func (k ProviderKind) Valid() bool {
	return k == ProviderFreighter || k == ProviderAlbedo
}

// Resumable reports whether a persisted session for k may be re-established
// without user interaction.
func (k ProviderKind) Resumable() bool {
	return k == ProviderFreighter
}

// ParseProviderKind parses a provider kind. "A" and "B" are accepted as
// aliases for freighter and albedo.
func ParseProviderKind(s string) (ProviderKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "freighter", "a":
		return ProviderFreighter, true
	case "albedo", "b":
		return ProviderAlbedo, true
	default:
		return "", false
	}
}

// WalletConnection describes the live connection. It is immutable; listeners
// receive copies.
type WalletConnection struct {
	PublicKey string
	Provider  ProviderKind
}

// SigningProvider wraps one external wallet mechanism. Each instance caches at
// most one public key; reconnecting overwrites it.
type SigningProvider interface {
	// Kind returns the provider variant.
	Kind() ProviderKind

	// Connect prompts or confirms access and returns the account's public key.
	Connect(ctx context.Context) (string, error)

	// Disconnect forgets the cached public key.
	Disconnect()

	// PublicKey returns the cached public key, or "" when not connected.
	PublicKey() string

	// IsConnected reports whether a public key is cached.
	IsConnected() bool

	// SignTransaction signs a transaction envelope (base64 XDR) and returns
	// the signed envelope.
	SignTransaction(ctx context.Context, xdr string) (string, error)
}

// ProviderFactory instantiates a fresh SigningProvider for a kind.
type ProviderFactory interface {
	NewProvider(kind ProviderKind) (SigningProvider, error)
}

// Signer is the minimal contract consumers need to authorize transactions on
// behalf of the connected account.
type Signer interface {
	// PublicKey returns the connected account (G...), or "" when none.
	PublicKey() string

	// SignTransaction signs a transaction envelope (base64 XDR).
	SignTransaction(ctx context.Context, xdr string) (string, error)
}

// PersistedSession is the durable record of the last connection.
type PersistedSession struct {
	PublicKey string       `json:"publicKey"`
	Provider  ProviderKind `json:"walletType"`
}

// SessionStore persists the last connection across restarts.
type SessionStore interface {
	// Load returns the persisted session, or nil when none is stored.
	// Corrupt records are removed and reported as absent.
	Load(ctx context.Context) (*PersistedSession, error)

	// Save replaces the persisted session.
	Save(ctx context.Context, session PersistedSession) error

	// Clear removes the persisted session. Clearing an absent session is not an error.
	Clear(ctx context.Context) error
}

// KeyValueStore is durable client-side storage for string values.
type KeyValueStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Balance is one balance line of a ledger account.
type Balance struct {
	AssetType   string // "native", "credit_alphanum4", "credit_alphanum12", ...
	AssetCode   string
	AssetIssuer string
	Balance     string // Decimal string
	Limit       string // Decimal string, empty for native
}

// Account is a snapshot of a ledger account.
type Account struct {
	ID       string
	Sequence int64
	Balances []Balance
}

// AccountLoader fetches account snapshots from the ledger.
type AccountLoader interface {
	LoadAccount(ctx context.Context, accountID string) (*Account, error)
}

// TransactionSubmitter submits signed envelopes to the ledger and returns the
// transaction hash once the ledger accepted it.
type TransactionSubmitter interface {
	SubmitTransaction(ctx context.Context, signedXDR string) (string, error)
}

// Ledger is the remote ledger account service.
type Ledger interface {
	AccountLoader
	TransactionSubmitter
}

// SimulationResult is the outcome of a contract simulation.
type SimulationResult struct {
	// Result is the base64 XDR ScVal returned by the invoked function.
	Result string

	// Auth holds base64 XDR authorization entries the invocation requires.
	Auth []string

	// TransactionData is the base64 XDR SorobanTransactionData to attach.
	TransactionData string

	// MinResourceFee is the resource fee in stroops.
	MinResourceFee int64

	// Error is set when the contract rejected the invocation.
	Error string
}

// Simulator runs a transaction against the contract without submitting it.
type Simulator interface {
	Simulate(ctx context.Context, envelopeXDR string) (*SimulationResult, error)
}

// TrustlineRecord is the state of one trust line. It is recomputed from the
// ledger on every check and never persisted.
type TrustlineRecord struct {
	AssetCode   string
	AssetIssuer string
	Balance     string // "0" when Exists is false
	Limit       string // "0" when Exists is false
	Exists      bool
}

// AbsentTrustline returns the record for a trust line that does not exist.
func AbsentTrustline(code, issuer string) TrustlineRecord {
	return TrustlineRecord{
		AssetCode:   code,
		AssetIssuer: issuer,
		Balance:     "0",
		Limit:       "0",
		Exists:      false,
	}
}

// Network identifies the target Stellar network.
type Network struct {
	// Name is the selector wallet extensions expect ("PUBLIC" or "TESTNET").
	Name string

	// Passphrase is the network passphrase used for transaction hashes.
	Passphrase string
}

var (
	// Testnet is the Stellar test network.
	Testnet = Network{Name: "TESTNET", Passphrase: network.TestNetworkPassphrase}

	// Mainnet is the Stellar public network.
	Mainnet = Network{Name: "PUBLIC", Passphrase: network.PublicNetworkPassphrase}
)

// NetworkByName resolves "testnet"/"mainnet" (or the extension selectors
// "TESTNET"/"PUBLIC") to a Network.
func NetworkByName(name string) (Network, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "testnet", "test":
		return Testnet, true
	case "mainnet", "public", "pubnet":
		return Mainnet, true
	default:
		return Network{}, false
	}
}
