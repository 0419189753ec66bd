package signers

import (
	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// Factory builds a fresh provider per connect. A nil backend means the
// corresponding wallet is not present in this environment.
type Factory struct {
	Freighter FreighterAPI
	Albedo    AlbedoAPI
	Network   launchpad.Network
}

// NewProvider returns a new, unconnected provider of the requested kind.
func (f *Factory) NewProvider(kind launchpad.ProviderKind) (launchpad.SigningProvider, error) {
	switch kind {
	case launchpad.ProviderFreighter:
		if f.Freighter == nil {
			return nil, errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Freighter wallet not installed", nil)
		}
		return NewFreighter(f.Freighter, f.Network), nil
	case launchpad.ProviderAlbedo:
		if f.Albedo == nil {
			return nil, errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "Albedo wallet not available", nil)
		}
		return NewAlbedo(f.Albedo, f.Network), nil
	default:
		return nil, errors.NewProviderError(errors.PROVIDER_UNAVAILABLE, "unknown wallet provider: "+string(kind), nil)
	}
}

var _ launchpad.ProviderFactory = (*Factory)(nil)
