// Package trustline guarantees that the connected account holds a trust line
// for an asset before it receives that asset.
//
// Reads go straight to the ledger on every call; nothing is cached. Writes
// build a ChangeTrust transaction, have the signer sign it and submit it,
// returning only once the ledger has accepted it.
package trustline

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

const (
	// DefaultTimeout is the validity window of built transactions, in seconds.
	DefaultTimeout = 30

	// RemovalLimit is the ChangeTrust limit that deletes a trust line.
	RemovalLimit = "0"

	assetTypeNative         = "native"
	assetTypeLiquidityShare = "liquidity_pool_shares"
)

var assetCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,12}$`)

// Result is the outcome of a trust line write.
type Result struct {
	// Hash is the submitted transaction hash, empty when nothing was submitted.
	Hash string

	// AlreadyExisted is true when the line was present and no transaction
	// was built.
	AlreadyExisted bool
}

// Gate checks, creates and removes trust lines for the signer's account.
type Gate struct {
	signer  launchpad.Signer
	ledger  launchpad.Ledger
	network launchpad.Network
	baseFee int64
	timeout int64
	logger  *logrus.Entry
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithBaseFee sets the per-operation fee in stroops (default: txnbuild.MinBaseFee).
func WithBaseFee(fee int64) Option {
	return func(g *Gate) {
		if fee > 0 {
			g.baseFee = fee
		}
	}
}

// WithTimeout sets the transaction validity window in seconds (default: 30).
func WithTimeout(seconds int64) Option {
	return func(g *Gate) {
		if seconds > 0 {
			g.timeout = seconds
		}
	}
}

// NewGate creates a Gate. The signer is usually the wallet.Manager.
func NewGate(signer launchpad.Signer, ledger launchpad.Ledger, network launchpad.Network, opts ...Option) *Gate {
	g := &Gate{
		signer:  signer,
		ledger:  ledger,
		network: network,
		baseFee: txnbuild.MinBaseFee,
		timeout: DefaultTimeout,
		logger:  logrus.NewEntry(logrus.StandardLogger()).WithField("component", "trustline"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check reports the trust line of publicKey for (code, issuer). A failed
// ledger read is logged and reported as an absent line.
func (g *Gate) Check(ctx context.Context, publicKey, code, issuer string) launchpad.TrustlineRecord {
	account, err := g.ledger.LoadAccount(ctx, publicKey)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"account": publicKey,
			"asset":   code,
		}).WithError(err).Warn("trustline check failed, reporting absent")
		return launchpad.AbsentTrustline(code, issuer)
	}

	for _, b := range account.Balances {
		if isCreditLine(b) && b.AssetCode == code && b.AssetIssuer == issuer {
			return launchpad.TrustlineRecord{
				AssetCode:   code,
				AssetIssuer: issuer,
				Balance:     b.Balance,
				Limit:       b.Limit,
				Exists:      true,
			}
		}
	}

	return launchpad.AbsentTrustline(code, issuer)
}

// Create adds a trust line for the signer's account. An empty limit means the
// maximum. When the line already exists nothing is submitted.
func (g *Gate) Create(ctx context.Context, code, issuer, limit string) (*Result, error) {
	publicKey, err := g.prepare(code, issuer)
	if err != nil {
		return nil, err
	}
	if limit == "" {
		limit = txnbuild.MaxTrustlineLimit
	} else if err := validateLimit(limit); err != nil {
		return nil, err
	}

	if record := g.Check(ctx, publicKey, code, issuer); record.Exists {
		return &Result{AlreadyExisted: true}, nil
	}

	return g.changeTrust(ctx, publicKey, code, issuer, limit)
}

// Remove deletes the signer's trust line. The line must exist and hold a
// balance of exactly zero.
func (g *Gate) Remove(ctx context.Context, code, issuer string) (*Result, error) {
	publicKey, err := g.prepare(code, issuer)
	if err != nil {
		return nil, err
	}

	record := g.Check(ctx, publicKey, code, issuer)
	if !record.Exists {
		return nil, errors.NewTrustlineError(errors.TRUSTLINE_NOT_FOUND, "trustline does not exist", nil).
			With("asset_code", code).
			With("asset_issuer", issuer)
	}

	balance, err := decimal.NewFromString(record.Balance)
	if err != nil || !balance.IsZero() {
		return nil, errors.NewTrustlineError(errors.NON_ZERO_BALANCE, "cannot remove trustline with non-zero balance", err).
			With("asset_code", code).
			With("balance", record.Balance)
	}

	return g.changeTrust(ctx, publicKey, code, issuer, RemovalLimit)
}

// Ensure creates the trust line only when it is absent. The line is checked
// exactly once.
func (g *Gate) Ensure(ctx context.Context, code, issuer string) (*Result, error) {
	publicKey, err := g.prepare(code, issuer)
	if err != nil {
		return nil, err
	}

	if record := g.Check(ctx, publicKey, code, issuer); record.Exists {
		return &Result{AlreadyExisted: true}, nil
	}

	return g.changeTrust(ctx, publicKey, code, issuer, txnbuild.MaxTrustlineLimit)
}

// All lists every credit trust line of publicKey. A failed ledger read yields
// an empty list.
func (g *Gate) All(ctx context.Context, publicKey string) []launchpad.TrustlineRecord {
	account, err := g.ledger.LoadAccount(ctx, publicKey)
	if err != nil {
		g.logger.WithField("account", publicKey).WithError(err).Warn("listing trustlines failed")
		return []launchpad.TrustlineRecord{}
	}

	records := make([]launchpad.TrustlineRecord, 0, len(account.Balances))
	for _, b := range account.Balances {
		if !isCreditLine(b) {
			continue
		}
		records = append(records, launchpad.TrustlineRecord{
			AssetCode:   b.AssetCode,
			AssetIssuer: b.AssetIssuer,
			Balance:     b.Balance,
			Limit:       b.Limit,
			Exists:      true,
		})
	}
	return records
}

// Balance returns the balance of the trust line, "0" when absent.
func (g *Gate) Balance(ctx context.Context, publicKey, code, issuer string) string {
	return g.Check(ctx, publicKey, code, issuer).Balance
}

// CanReceive reports whether the trust line exists and can absorb amount
// without exceeding its limit.
func (g *Gate) CanReceive(ctx context.Context, publicKey, code, issuer, amount string) bool {
	record := g.Check(ctx, publicKey, code, issuer)
	if !record.Exists {
		return false
	}

	balance, err := decimal.NewFromString(record.Balance)
	if err != nil {
		return false
	}
	limit, err := decimal.NewFromString(record.Limit)
	if err != nil {
		return false
	}
	incoming, err := decimal.NewFromString(amount)
	if err != nil || incoming.IsNegative() {
		return false
	}

	return balance.Add(incoming).LessThanOrEqual(limit)
}

// prepare returns the signer's account after validating the asset.
func (g *Gate) prepare(code, issuer string) (string, error) {
	publicKey := g.signer.PublicKey()
	if publicKey == "" {
		return "", errors.NewTrustlineError(errors.NOT_CONNECTED, "wallet not connected", nil)
	}
	if err := ValidateAsset(code, issuer); err != nil {
		return "", err
	}
	return publicKey, nil
}

func (g *Gate) changeTrust(ctx context.Context, publicKey, code, issuer, limit string) (*Result, error) {
	log := g.logger.WithFields(logrus.Fields{
		"account": publicKey,
		"asset":   code + ":" + issuer,
		"limit":   limit,
	})

	account, err := g.ledger.LoadAccount(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	line, err := txnbuild.CreditAsset{Code: code, Issuer: issuer}.ToChangeTrustAsset()
	if err != nil {
		return nil, errors.NewTrustlineError(errors.INVALID_ASSET, "invalid asset", err).
			With("asset_code", code)
	}

	source := txnbuild.NewSimpleAccount(publicKey, account.Sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.ChangeTrust{Line: line, Limit: limit},
		},
		BaseFee:       g.baseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(g.timeout)},
	})
	if err != nil {
		return nil, errors.NewTrustlineError(errors.INVALID_PARAMS, "failed to build change trust transaction", err)
	}

	envelope, err := tx.Base64()
	if err != nil {
		return nil, errors.NewTrustlineError(errors.INVALID_PARAMS, "failed to encode change trust transaction", err)
	}

	log.Debug("requesting signature for change trust")
	signed, err := g.signer.SignTransaction(ctx, envelope)
	if err != nil {
		return nil, err
	}

	hash, err := g.ledger.SubmitTransaction(ctx, signed)
	if err != nil {
		return nil, err
	}

	log.WithField("hash", hash).Info("trustline updated")
	return &Result{Hash: hash}, nil
}

// ValidateAsset checks that code is 1-12 alphanumeric characters and issuer a
// valid account address.
func ValidateAsset(code, issuer string) error {
	if !assetCodePattern.MatchString(code) {
		return errors.NewTrustlineError(errors.INVALID_ASSET, fmt.Sprintf("invalid asset code %q", code), nil).
			With("asset_code", code)
	}
	if _, err := keypair.ParseAddress(issuer); err != nil {
		return errors.NewTrustlineError(errors.INVALID_ASSET, "invalid asset issuer", err).
			With("asset_issuer", issuer)
	}
	return nil
}

func validateLimit(limit string) error {
	d, err := decimal.NewFromString(limit)
	if err != nil || d.IsNegative() {
		return errors.NewTrustlineError(errors.INVALID_PARAMS, fmt.Sprintf("invalid trustline limit %q", limit), err)
	}
	return nil
}

func isCreditLine(b launchpad.Balance) bool {
	return b.AssetType != assetTypeNative && b.AssetType != assetTypeLiquidityShare && b.AssetCode != ""
}
