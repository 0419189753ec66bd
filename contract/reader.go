package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/xdr"

	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// TokenInfo is the contract's view of a launched token. Native amounts are
// in XLM.
type TokenInfo struct {
	ID                    string
	Name                  string
	Symbol                string
	TotalSupply           decimal.Decimal
	TokensSold            decimal.Decimal
	XLMRaised             decimal.Decimal
	CurrentPrice          decimal.Decimal
	LaunchProgressPercent uint32
	IsLaunched            bool
	Creator               string
	CreationTime          time.Time
}

// TokenInfo reads a token's state by simulating get_token_info.
func (a *Assembler) TokenInfo(ctx context.Context, tokenID string) (*TokenInfo, error) {
	ret, err := a.read(ctx, MethodGetTokenInfo, scString(tokenID))
	if err != nil {
		return nil, err
	}

	info, err := decodeTokenInfo(ret)
	if err != nil {
		return nil, errors.NewContractError(errors.SIMULATION_FAILED, "unexpected token info value", err).
			With("token_id", tokenID)
	}
	info.ID = tokenID
	return info, nil
}

// CurrentPrice reads a token's current price in XLM.
func (a *Assembler) CurrentPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	ret, err := a.read(ctx, MethodGetCurrentPrice, scString(tokenID))
	if err != nil {
		return decimal.Zero, err
	}

	price, err := i128Decimal(ret, 7)
	if err != nil {
		return decimal.Zero, errors.NewContractError(errors.SIMULATION_FAILED, "unexpected price value", err).
			With("token_id", tokenID)
	}
	return price, nil
}

// TokenCount reads how many tokens have been created.
func (a *Assembler) TokenCount(ctx context.Context) (uint32, error) {
	ret, err := a.read(ctx, MethodGetTokenCount)
	if err != nil {
		return 0, err
	}

	count, err := u32Value(ret)
	if err != nil {
		return 0, errors.NewContractError(errors.SIMULATION_FAILED, "unexpected token count value", err)
	}
	return count, nil
}

// read simulates a call from the simulation source and returns its value.
// Nothing is signed and no fee is spent.
func (a *Assembler) read(ctx context.Context, method string, args ...xdr.ScVal) (xdr.ScVal, error) {
	envelope, err := a.build(a.source, 0, a.invocation(method, xdr.ScVec(args)), a.baseFee)
	if err != nil {
		return xdr.ScVal{}, err
	}

	sim, err := a.simulate(ctx, envelope)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if sim.Result == "" {
		return xdr.ScVal{}, errors.NewContractError(errors.SIMULATION_FAILED, fmt.Sprintf("%s returned no value", method), nil)
	}

	ret, err := decodeScVal(sim.Result)
	if err != nil {
		return xdr.ScVal{}, errors.NewContractError(errors.SIMULATION_FAILED, "invalid return value", err)
	}
	return ret, nil
}

func decodeTokenInfo(v xdr.ScVal) (*TokenInfo, error) {
	fields, err := structFields(v)
	if err != nil {
		return nil, err
	}

	field := func(name string) (xdr.ScVal, error) {
		f, ok := fields[name]
		if !ok {
			return xdr.ScVal{}, fmt.Errorf("missing field %s", name)
		}
		return f, nil
	}

	var info TokenInfo
	var f xdr.ScVal

	if f, err = field("name"); err != nil {
		return nil, err
	}
	if info.Name, err = stringValue(f); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if f, err = field("symbol"); err != nil {
		return nil, err
	}
	if info.Symbol, err = stringValue(f); err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}

	amounts := []struct {
		name   string
		exp    int32
		target *decimal.Decimal
	}{
		{"total_supply", 0, &info.TotalSupply},
		{"tokens_sold", 0, &info.TokensSold},
		{"xlm_raised", 7, &info.XLMRaised},
		{"current_price", 7, &info.CurrentPrice},
	}
	for _, amt := range amounts {
		if f, err = field(amt.name); err != nil {
			return nil, err
		}
		if *amt.target, err = i128Decimal(f, amt.exp); err != nil {
			return nil, fmt.Errorf("%s: %w", amt.name, err)
		}
	}

	if f, err = field("launch_progress_percent"); err != nil {
		return nil, err
	}
	if info.LaunchProgressPercent, err = u32Value(f); err != nil {
		return nil, fmt.Errorf("launch_progress_percent: %w", err)
	}
	if f, err = field("is_launched"); err != nil {
		return nil, err
	}
	if info.IsLaunched, err = boolValue(f); err != nil {
		return nil, fmt.Errorf("is_launched: %w", err)
	}
	if f, err = field("creator"); err != nil {
		return nil, err
	}
	if info.Creator, err = addressValue(f); err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}
	if f, err = field("creation_time"); err != nil {
		return nil, err
	}
	created, err := u64Value(f)
	if err != nil {
		return nil, fmt.Errorf("creation_time: %w", err)
	}
	info.CreationTime = time.Unix(int64(created), 0).UTC()

	return &info, nil
}
