package signers

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// fakeFreighter is a scripted FreighterAPI.
type fakeFreighter struct {
	installed    bool
	installedErr error
	allowed      bool
	grant        bool
	grantErr     error
	publicKey    string
	keyErr       error
	signErr      error

	setAllowedCalls int
	signedNetwork   string
}

func (f *fakeFreighter) IsInstalled(context.Context) (bool, error) { return f.installed, f.installedErr }
func (f *fakeFreighter) IsAllowed(context.Context) (bool, error)   { return f.allowed, nil }
func (f *fakeFreighter) SetAllowed(context.Context) (bool, error) {
	f.setAllowedCalls++
	return f.grant, f.grantErr
}
func (f *fakeFreighter) GetPublicKey(context.Context) (string, error) { return f.publicKey, f.keyErr }
func (f *fakeFreighter) SignTransaction(_ context.Context, xdr, network string) (string, error) {
	f.signedNetwork = network
	if f.signErr != nil {
		return "", f.signErr
	}
	return xdr + ":signed", nil
}

type fakeAlbedo struct {
	available bool
	publicKey string
	keyErr    error
	txErr     error
	passphr   string
}

func (f *fakeAlbedo) Available() bool                           { return f.available }
func (f *fakeAlbedo) PublicKey(context.Context) (string, error) { return f.publicKey, f.keyErr }
func (f *fakeAlbedo) Tx(_ context.Context, xdr, passphrase string) (string, error) {
	f.passphr = passphrase
	if f.txErr != nil {
		return "", f.txErr
	}
	return xdr + ":albedo", nil
}

func TestFreighterConnect(t *testing.T) {
	tests := []struct {
		name     string
		api      *fakeFreighter
		wantCode errors.Code
		wantKey  string
		wantAsk  int
	}{
		{
			name:     "extension missing",
			api:      &fakeFreighter{installed: false},
			wantCode: errors.PROVIDER_UNAVAILABLE,
		},
		{
			name:     "detection reports not installed",
			api:      &fakeFreighter{installedErr: stderrors.New("Freighter not installed")},
			wantCode: errors.PROVIDER_UNAVAILABLE,
		},
		{
			name:     "already allowed skips prompt",
			api:     &fakeFreighter{installed: true, allowed: true, publicKey: "GAAA"},
			wantKey: "GAAA",
			wantAsk: 0,
		},
		{
			name:     "grant requested and given",
			api:     &fakeFreighter{installed: true, grant: true, publicKey: "GBBB"},
			wantKey: "GBBB",
			wantAsk: 1,
		},
		{
			name:     "grant refused",
			api:      &fakeFreighter{installed: true, grant: false},
			wantCode: errors.PERMISSION_DENIED,
			wantAsk:  1,
		},
		{
			name:     "user declined message",
			api:      &fakeFreighter{installed: true, grantErr: stderrors.New("User declined access")},
			wantCode: errors.PERMISSION_DENIED,
			wantAsk:  1,
		},
		{
			name:     "key fetch fails",
			api:      &fakeFreighter{installed: true, allowed: true, keyErr: stderrors.New("boom")},
			wantCode: errors.PROVIDER_ERROR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFreighter(tt.api, launchpad.Testnet)
			key, err := p.Connect(context.Background())

			assert.Equal(t, tt.wantAsk, tt.api.setAllowedCalls)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				assert.False(t, p.IsConnected())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantKey, p.PublicKey())
			assert.True(t, p.IsConnected())
		})
	}
}

func TestFreighterSign(t *testing.T) {
	ctx := context.Background()
	api := &fakeFreighter{installed: true, allowed: true, publicKey: "GAAA"}
	p := NewFreighter(api, launchpad.Mainnet)

	_, err := p.SignTransaction(ctx, "AAAA")
	assert.Equal(t, errors.NOT_CONNECTED, errors.CodeOf(err))

	_, err = p.Connect(ctx)
	require.NoError(t, err)

	signed, err := p.SignTransaction(ctx, "AAAA")
	require.NoError(t, err)
	assert.Equal(t, "AAAA:signed", signed)
	assert.Equal(t, "PUBLIC", api.signedNetwork)

	api.signErr = stderrors.New("window closed")
	_, err = p.SignTransaction(ctx, "AAAA")
	require.Error(t, err)
	assert.Equal(t, errors.SIGNING_FAILED, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "window closed")

	p.Disconnect()
	assert.False(t, p.IsConnected())
	assert.Empty(t, p.PublicKey())
}

func TestAlbedo(t *testing.T) {
	ctx := context.Background()

	t.Run("not injected", func(t *testing.T) {
		p := NewAlbedo(&fakeAlbedo{available: false}, launchpad.Testnet)
		_, err := p.Connect(ctx)
		assert.Equal(t, errors.PROVIDER_UNAVAILABLE, errors.CodeOf(err))
	})

	t.Run("prompt declined", func(t *testing.T) {
		p := NewAlbedo(&fakeAlbedo{available: true, keyErr: ErrUserDeclined}, launchpad.Testnet)
		_, err := p.Connect(ctx)
		assert.Equal(t, errors.PERMISSION_DENIED, errors.CodeOf(err))
	})

	t.Run("prompt fails", func(t *testing.T) {
		p := NewAlbedo(&fakeAlbedo{available: true, keyErr: stderrors.New("popup blocked")}, launchpad.Testnet)
		_, err := p.Connect(ctx)
		assert.Equal(t, errors.PROVIDER_ERROR, errors.CodeOf(err))
	})

	t.Run("sign passes passphrase and hides failure detail", func(t *testing.T) {
		api := &fakeAlbedo{available: true, publicKey: "GCCC"}
		p := NewAlbedo(api, launchpad.Testnet)

		key, err := p.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, "GCCC", key)
		assert.Equal(t, launchpad.ProviderAlbedo, p.Kind())

		signed, err := p.SignTransaction(ctx, "BBBB")
		require.NoError(t, err)
		assert.Equal(t, "BBBB:albedo", signed)
		assert.Equal(t, launchpad.Testnet.Passphrase, api.passphr)

		api.txErr = stderrors.New("secret internal detail")
		_, err = p.SignTransaction(ctx, "BBBB")
		require.Error(t, err)
		assert.Equal(t, errors.SIGNING_FAILED, errors.CodeOf(err))
		assert.NotContains(t, err.Error(), "secret internal detail")
	})
}

func TestAlbedoFromCallback(t *testing.T) {
	api := AlbedoFromCallback(nil, nil)
	assert.False(t, api.Available())

	api = AlbedoFromCallback(
		func(context.Context) (string, error) { return "GDDD", nil },
		func(_ context.Context, xdr, _ string) (string, error) { return xdr, nil },
	)
	assert.True(t, api.Available())

	key, err := api.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GDDD", key)
}

func TestFactory(t *testing.T) {
	f := &Factory{Freighter: &fakeFreighter{}, Network: launchpad.Testnet}

	p, err := f.NewProvider(launchpad.ProviderFreighter)
	require.NoError(t, err)
	assert.Equal(t, launchpad.ProviderFreighter, p.Kind())

	p2, err := f.NewProvider(launchpad.ProviderFreighter)
	require.NoError(t, err)
	assert.NotSame(t, p, p2)

	_, err = f.NewProvider(launchpad.ProviderAlbedo)
	assert.Equal(t, errors.PROVIDER_UNAVAILABLE, errors.CodeOf(err))

	_, err = f.NewProvider("ledger")
	assert.Equal(t, errors.PROVIDER_UNAVAILABLE, errors.CodeOf(err))
}

func buildTestTransaction(t *testing.T, source string) string {
	t.Helper()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: source, Sequence: 1},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{&txnbuild.BumpSequence{BumpTo: 10}},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	require.NoError(t, err)
	xdr, err := tx.Base64()
	require.NoError(t, err)
	return xdr
}

func TestKeypairExtensionSignsThroughFreighter(t *testing.T) {
	ctx := context.Background()
	kp := keypair.MustRandom()

	ext, err := NewKeypairExtension(kp.Seed())
	require.NoError(t, err)

	p := NewFreighter(ext, launchpad.Testnet)
	key, err := p.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), key)

	allowed, err := ext.IsAllowed(ctx)
	require.NoError(t, err)
	assert.True(t, allowed, "connect must have stored the grant")

	signedXDR, err := p.SignTransaction(ctx, buildTestTransaction(t, kp.Address()))
	require.NoError(t, err)

	parsed, err := txnbuild.TransactionFromXDR(signedXDR)
	require.NoError(t, err)
	tx, ok := parsed.Transaction()
	require.True(t, ok)
	require.Len(t, tx.Signatures(), 1)

	hash, err := tx.Hash(launchpad.Testnet.Passphrase)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(hash[:], tx.Signatures()[0].Signature))
}

func TestKeypairExtensionApproval(t *testing.T) {
	ctx := context.Background()
	kp := keypair.MustRandom()

	ext, err := NewKeypairExtension(kp.Seed(), WithApproval(func(context.Context, string) bool { return false }))
	require.NoError(t, err)

	_, err = NewFreighter(ext, launchpad.Testnet).Connect(ctx)
	assert.Equal(t, errors.PERMISSION_DENIED, errors.CodeOf(err))

	ext, err = NewKeypairExtension(kp.Seed(), WithPreAllowed(), WithApproval(func(context.Context, string) bool { return false }))
	require.NoError(t, err)

	p := NewFreighter(ext, launchpad.Testnet)
	_, err = p.Connect(ctx)
	require.NoError(t, err)

	_, err = p.SignTransaction(ctx, buildTestTransaction(t, kp.Address()))
	assert.Equal(t, errors.SIGNING_FAILED, errors.CodeOf(err))
}

func TestNewKeypairExtensionRejectsBadSecret(t *testing.T) {
	_, err := NewKeypairExtension("not-a-secret")
	assert.Error(t, err)
}
