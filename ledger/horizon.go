// Package ledger implements the remote ledger account service over Horizon:
// loading account snapshots and submitting signed transaction envelopes.
package ledger

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

const (
	defaultTimeout = 30 * time.Second

	notFoundProblemType = "https://stellar.org/horizon-errors/not_found"
)

// Horizon implements launchpad.Ledger using a Horizon server.
type Horizon struct {
	client horizonclient.ClientInterface
	logger *logrus.Entry
}

// Option configures Horizon.
type Option func(*Horizon)

// WithClient replaces the Horizon client, typically with a
// horizonclient.MockClient in tests.
func WithClient(client horizonclient.ClientInterface) Option {
	return func(h *Horizon) {
		h.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(h *Horizon) {
		h.logger = logger
	}
}

// NewHorizon creates a Ledger backed by the given Horizon URL.
func NewHorizon(horizonURL string, opts ...Option) *Horizon {
	h := &Horizon{
		client: &horizonclient.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: defaultTimeout},
		},
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "ledger"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// LoadAccount returns the account's sequence number and balance lines.
func (h *Horizon) LoadAccount(ctx context.Context, accountID string) (*launchpad.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "account lookup cancelled", err)
	}

	account, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "account not found", err).
				With("account", accountID).
				With("status", http.StatusNotFound)
		}
		return nil, errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, fmt.Sprintf("failed to fetch account %s", accountID), err).
			With("account", accountID)
	}

	sequence, err := account.GetSequenceNumber()
	if err != nil {
		return nil, errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "account has an invalid sequence number", err).
			With("account", accountID)
	}

	return &launchpad.Account{
		ID:       accountID,
		Sequence: sequence,
		Balances: convertBalances(account.Balances),
	}, nil
}

// SubmitTransaction submits a signed envelope and returns its hash once the
// ledger has applied it. Rejections carry Horizon's result codes in the
// error context.
func (h *Horizon) SubmitTransaction(ctx context.Context, signedXDR string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "submission cancelled", err)
	}

	tx, err := h.client.SubmitTransactionXDR(signedXDR)
	if err != nil {
		lerr := errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "transaction submission failed", err)
		if codes := resultCodes(err); codes != "" {
			lerr.Message = fmt.Sprintf("transaction submission failed: %s", codes)
			lerr.With("result_codes", codes)
		}
		h.logger.WithError(err).Debug("transaction rejected")
		return "", lerr
	}

	if !tx.Successful {
		return "", errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "transaction was not successful", nil).
			With("hash", tx.Hash)
	}

	h.logger.WithFields(logrus.Fields{
		"hash":   tx.Hash,
		"ledger": tx.Ledger,
	}).Info("transaction submitted")

	return tx.Hash, nil
}

func convertBalances(balances []hProtocol.Balance) []launchpad.Balance {
	out := make([]launchpad.Balance, 0, len(balances))
	for _, b := range balances {
		out = append(out, launchpad.Balance{
			AssetType:   b.Type,
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Balance:     b.Balance,
			Limit:       b.Limit,
		})
	}
	return out
}

func isNotFound(err error) bool {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return false
	}
	return hErr.Problem.Status == http.StatusNotFound || hErr.Problem.Type == notFoundProblemType
}

// resultCodes flattens Horizon's transaction result codes, e.g.
// "tx_failed: op_low_reserve".
func resultCodes(err error) string {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return ""
	}
	codes, cerr := hErr.ResultCodes()
	if cerr != nil || codes == nil {
		return ""
	}
	if len(codes.OperationCodes) == 0 {
		return codes.TransactionCode
	}
	return codes.TransactionCode + ": " + strings.Join(codes.OperationCodes, ", ")
}

var _ launchpad.Ledger = (*Horizon)(nil)
