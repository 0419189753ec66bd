package signers

import (
	"context"
)

// callbackAlbedo wraps plain functions as an AlbedoAPI.
type callbackAlbedo struct {
	publicKeyFunc func(context.Context) (string, error)
	txFunc        func(context.Context, string, string) (string, error)
}

// AlbedoFromCallback creates an AlbedoAPI from a public-key prompt and a
// signing function. Intended for bridging a real injected object, a custodial
// API or any external signing service. Nil functions make the object
// unavailable.
func AlbedoFromCallback(
	publicKeyFunc func(ctx context.Context) (string, error),
	txFunc func(ctx context.Context, xdr string, networkPassphrase string) (string, error),
) AlbedoAPI {
	return &callbackAlbedo{
		publicKeyFunc: publicKeyFunc,
		txFunc:        txFunc,
	}
}

// Available reports whether both callbacks are set.
func (c *callbackAlbedo) Available() bool {
	return c.publicKeyFunc != nil && c.txFunc != nil
}

// PublicKey delegates to the public-key callback.
func (c *callbackAlbedo) PublicKey(ctx context.Context) (string, error) {
	return c.publicKeyFunc(ctx)
}

// Tx delegates to the signing callback.
func (c *callbackAlbedo) Tx(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	return c.txFunc(ctx, xdr, networkPassphrase)
}
