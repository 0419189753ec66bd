package trustline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

const issuer = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

// keySigner signs with a local keypair.
type keySigner struct {
	kp    *keypair.Full
	empty bool
	err   error
	calls int
}

func (s *keySigner) PublicKey() string {
	if s.empty {
		return ""
	}
	return s.kp.Address()
}

func (s *keySigner) SignTransaction(_ context.Context, envelope string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	parsed, err := txnbuild.TransactionFromXDR(envelope)
	if err != nil {
		return "", err
	}
	tx, _ := parsed.Transaction()
	tx, err = tx.Sign(launchpad.Testnet.Passphrase, s.kp)
	if err != nil {
		return "", err
	}
	return tx.Base64()
}

// fakeLedger holds one account and applies submitted ChangeTrust operations.
type fakeLedger struct {
	mu        sync.Mutex
	account   launchpad.Account
	loadErr   error
	submitErr error
	submitted []*txnbuild.Transaction
}

func (l *fakeLedger) LoadAccount(_ context.Context, accountID string) (*launchpad.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	if accountID != l.account.ID {
		return nil, errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "account not found", nil)
	}
	account := l.account
	account.Balances = append([]launchpad.Balance(nil), l.account.Balances...)
	return &account, nil
}

func (l *fakeLedger) SubmitTransaction(_ context.Context, signedXDR string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}

	parsed, err := txnbuild.TransactionFromXDR(signedXDR)
	if err != nil {
		return "", err
	}
	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("unexpected fee bump")
	}
	l.submitted = append(l.submitted, tx)
	l.account.Sequence = tx.SequenceNumber()

	for _, op := range tx.Operations() {
		ct, ok := op.(*txnbuild.ChangeTrust)
		if !ok {
			continue
		}
		l.applyChangeTrust(ct.Line.GetCode(), ct.Line.GetIssuer(), ct.Limit)
	}

	return fmt.Sprintf("hash-%d", len(l.submitted)), nil
}

func (l *fakeLedger) applyChangeTrust(code, issuer, limit string) {
	for i, b := range l.account.Balances {
		if b.AssetCode == code && b.AssetIssuer == issuer {
			if limit == "0" || limit == "0.0000000" {
				l.account.Balances = append(l.account.Balances[:i], l.account.Balances[i+1:]...)
			} else {
				l.account.Balances[i].Limit = limit
			}
			return
		}
	}
	l.account.Balances = append(l.account.Balances, launchpad.Balance{
		AssetType:   "credit_alphanum4",
		AssetCode:   code,
		AssetIssuer: issuer,
		Balance:     "0.0000000",
		Limit:       limit,
	})
}

func (l *fakeLedger) submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.submitted)
}

func newFixture(t *testing.T, balances ...launchpad.Balance) (*Gate, *keySigner, *fakeLedger) {
	t.Helper()
	kp, err := keypair.Random()
	require.NoError(t, err)

	signer := &keySigner{kp: kp}
	ledger := &fakeLedger{account: launchpad.Account{
		ID:       kp.Address(),
		Sequence: 100,
		Balances: append([]launchpad.Balance{{AssetType: "native", Balance: "50.0000000"}}, balances...),
	}}

	logger, _ := test.NewNullLogger()
	gate := NewGate(signer, ledger, launchpad.Testnet, WithLogger(logrus.NewEntry(logger)))
	return gate, signer, ledger
}

func pumpLine(balance, limit string) launchpad.Balance {
	return launchpad.Balance{
		AssetType:   "credit_alphanum4",
		AssetCode:   "PUMP",
		AssetIssuer: issuer,
		Balance:     balance,
		Limit:       limit,
	}
}

func TestCheck(t *testing.T) {
	gate, signer, ledger := newFixture(t, pumpLine("12.5000000", "1000.0000000"))
	ctx := context.Background()

	record := gate.Check(ctx, signer.PublicKey(), "PUMP", issuer)
	assert.Equal(t, launchpad.TrustlineRecord{
		AssetCode:   "PUMP",
		AssetIssuer: issuer,
		Balance:     "12.5000000",
		Limit:       "1000.0000000",
		Exists:      true,
	}, record)

	record = gate.Check(ctx, signer.PublicKey(), "PUMP", "GCFXHS4GXL6BVUCXBWXGTITROWLVYXQKQLF4YH5O5JT3YZXCYPAFBJZB")
	assert.False(t, record.Exists)

	ledger.loadErr = errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "horizon down", nil)
	record = gate.Check(ctx, signer.PublicKey(), "PUMP", issuer)
	assert.Equal(t, launchpad.AbsentTrustline("PUMP", issuer), record)
}

func TestEnsureCreatesOnceThenShortCircuits(t *testing.T) {
	gate, signer, ledger := newFixture(t)
	ctx := context.Background()

	first, err := gate.Ensure(ctx, "PUMP", issuer)
	require.NoError(t, err)
	assert.False(t, first.AlreadyExisted)
	assert.Equal(t, "hash-1", first.Hash)

	second, err := gate.Ensure(ctx, "PUMP", issuer)
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Empty(t, second.Hash)

	assert.Equal(t, 1, ledger.submissions())
	assert.Equal(t, 1, signer.calls)

	record := gate.Check(ctx, signer.PublicKey(), "PUMP", issuer)
	assert.True(t, record.Exists)
	assert.Equal(t, txnbuild.MaxTrustlineLimit, record.Limit)
}

func TestCreateBuildsChangeTrust(t *testing.T) {
	gate, signer, ledger := newFixture(t)

	res, err := gate.Create(context.Background(), "PUMP", issuer, "5000")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", res.Hash)

	require.Len(t, ledger.submitted, 1)
	tx := ledger.submitted[0]
	assert.Equal(t, int64(101), tx.SequenceNumber())
	assert.Equal(t, signer.PublicKey(), tx.SourceAccount().AccountID)
	assert.Equal(t, int64(txnbuild.MinBaseFee), tx.BaseFee())
	require.Len(t, tx.Signatures(), 1)

	ops := tx.Operations()
	require.Len(t, ops, 1)
	ct, ok := ops[0].(*txnbuild.ChangeTrust)
	require.True(t, ok)
	assert.Equal(t, "PUMP", ct.Line.GetCode())
	assert.Equal(t, issuer, ct.Line.GetIssuer())
	assert.Equal(t, "5000.0000000", ct.Limit)
}

func TestCreateWhenLineExists(t *testing.T) {
	gate, signer, ledger := newFixture(t, pumpLine("1.0000000", "100.0000000"))

	res, err := gate.Create(context.Background(), "PUMP", issuer, "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyExisted)
	assert.Equal(t, 0, ledger.submissions())
	assert.Equal(t, 0, signer.calls)
}

func TestWritesRequireConnectedSigner(t *testing.T) {
	gate, signer, ledger := newFixture(t)
	signer.empty = true
	ctx := context.Background()

	_, err := gate.Create(ctx, "PUMP", issuer, "")
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	_, err = gate.Ensure(ctx, "PUMP", issuer)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	_, err = gate.Remove(ctx, "PUMP", issuer)
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	assert.Equal(t, 0, ledger.submissions())
}

func TestInvalidAsset(t *testing.T) {
	gate, _, ledger := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		code   string
		issuer string
	}{
		{name: "empty code", code: "", issuer: issuer},
		{name: "code too long", code: "ABCDEFGHIJKLM", issuer: issuer},
		{name: "non alphanumeric code", code: "PU-MP", issuer: issuer},
		{name: "bad issuer", code: "PUMP", issuer: "GNOTANADDRESS"},
		{name: "seed as issuer", code: "PUMP", issuer: "SBSZ4BOS2QFWCSYTXQRD7V2ZXNHZCIMKLDE7NSJZQHVKLDNQZQTPHVYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Ensure(ctx, tt.code, tt.issuer)
			assert.ErrorIs(t, err, errors.ErrInvalidAsset)
		})
	}
	assert.Equal(t, 0, ledger.submissions())
}

func TestCreateRejectsBadLimit(t *testing.T) {
	gate, _, _ := newFixture(t)

	_, err := gate.Create(context.Background(), "PUMP", issuer, "-5")
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name     string
		balances []launchpad.Balance
		wantCode errors.Code
	}{
		{
			name:     "absent line",
			wantCode: errors.TRUSTLINE_NOT_FOUND,
		},
		{
			name:     "smallest unit held",
			balances: []launchpad.Balance{pumpLine("0.0000001", "100.0000000")},
			wantCode: errors.NON_ZERO_BALANCE,
		},
		{
			name:     "whole tokens held",
			balances: []launchpad.Balance{pumpLine("3.0000000", "100.0000000")},
			wantCode: errors.NON_ZERO_BALANCE,
		},
		{
			name:     "unparseable balance",
			balances: []launchpad.Balance{pumpLine("n/a", "100.0000000")},
			wantCode: errors.NON_ZERO_BALANCE,
		},
		{
			name:     "zero balance",
			balances: []launchpad.Balance{pumpLine("0.0000000", "100.0000000")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, signer, ledger := newFixture(t, tt.balances...)
			ctx := context.Background()

			res, err := gate.Remove(ctx, "PUMP", issuer)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				assert.Equal(t, 0, ledger.submissions())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "hash-1", res.Hash)
			assert.False(t, gate.Check(ctx, signer.PublicKey(), "PUMP", issuer).Exists)

			ct := ledger.submitted[0].Operations()[0].(*txnbuild.ChangeTrust)
			assert.Equal(t, "0.0000000", ct.Limit)
		})
	}
}

func TestSignAndSubmitErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	gate, signer, ledger := newFixture(t)
	signer.err = errors.NewProviderError(errors.SIGNING_FAILED, "user rejected", nil)
	_, err := gate.Ensure(ctx, "PUMP", issuer)
	assert.Same(t, signer.err, err)
	assert.Equal(t, 0, ledger.submissions())

	gate, _, ledger = newFixture(t)
	ledger.submitErr = errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "tx_failed", nil)
	_, err = gate.Ensure(ctx, "PUMP", issuer)
	assert.Same(t, ledger.submitErr, err)
}

func TestEnsureWhenLedgerUnavailable(t *testing.T) {
	gate, signer, ledger := newFixture(t)
	ledger.loadErr = errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "horizon down", nil)

	_, err := gate.Ensure(context.Background(), "PUMP", issuer)
	assert.ErrorIs(t, err, errors.ErrRemoteUnavailable)
	assert.Equal(t, 0, signer.calls)
}

func TestAllBalanceAndCanReceive(t *testing.T) {
	gate, signer, ledger := newFixture(t,
		pumpLine("90.0000000", "100.0000000"),
		launchpad.Balance{AssetType: "liquidity_pool_shares", Balance: "1.0000000", Limit: "10.0000000"},
	)
	ctx := context.Background()
	pk := signer.PublicKey()

	all := gate.All(ctx, pk)
	require.Len(t, all, 1)
	assert.Equal(t, "PUMP", all[0].AssetCode)

	assert.Equal(t, "90.0000000", gate.Balance(ctx, pk, "PUMP", issuer))
	assert.Equal(t, "0", gate.Balance(ctx, pk, "MOON", issuer))

	assert.True(t, gate.CanReceive(ctx, pk, "PUMP", issuer, "10"))
	assert.False(t, gate.CanReceive(ctx, pk, "PUMP", issuer, "10.0000001"))
	assert.False(t, gate.CanReceive(ctx, pk, "PUMP", issuer, "garbage"))
	assert.False(t, gate.CanReceive(ctx, pk, "MOON", issuer, "1"))

	ledger.loadErr = errors.NewLedgerError(errors.REMOTE_UNAVAILABLE, "horizon down", nil)
	assert.Empty(t, gate.All(ctx, pk))
}
