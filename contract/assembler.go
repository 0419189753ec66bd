// Package contract assembles unsigned invocations of the launchpad contract
// and reads contract state through simulation.
//
// The Assembler never signs or submits: it returns base64 envelopes that the
// caller passes to the wallet for signing and then submits itself.
package contract

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// DefaultContractID is the launchpad contract deployed on testnet.
const DefaultContractID = "CDHPDLT7KVICFAGYUO4ICTC5TGGR2XN5ZYT56TWZMNM6ATFVKXKU57HI"

// Contract method names.
const (
	MethodCreateToken     = "create_token"
	MethodBuyTokens       = "buy_tokens"
	MethodGetTokenInfo    = "get_token_info"
	MethodGetCurrentPrice = "get_current_price"
	MethodGetTokenCount   = "get_token_count"
)

// Platform parameters enforced by the contract front end.
const (
	MinTokenSupply        = 1_000_000
	MaxTokenSupply        = 1_000_000_000
	PlatformFeePercent    = 1
	GraduationThreshold   = 85_000 // XLM
	DefaultLaunchXLM      = 10
	DefaultLaunchPercent  = 80
	DefaultTimeoutSeconds = 30

	// StroopsPerXLM is the fixed-point scale of native amounts.
	StroopsPerXLM = 10_000_000
)

// CurveType selects the bonding curve shape.
type CurveType string

const (
	CurveLinear    CurveType = "Linear"
	CurveQuadratic CurveType = "Quadratic"
)

// CurveParams configures the bonding curve. Prices are in stroops.
type CurveParams struct {
	Type            CurveType
	BasePrice       int64
	PriceMultiplier int64
}

// DefaultCurve is a linear curve starting at 0.0001 XLM.
var DefaultCurve = CurveParams{Type: CurveLinear, BasePrice: 1000, PriceMultiplier: 9000}

// CreateTokenParams describes a token launch. Zero values select defaults.
type CreateTokenParams struct {
	Name                   string
	Symbol                 string
	TotalSupply            int64
	LaunchThresholdXLM     decimal.Decimal
	LaunchThresholdPercent uint32
	Curve                  *CurveParams
}

// Assembler builds unsigned contract invocations.
type Assembler struct {
	contract  xdr.ScAddress
	accounts  launchpad.AccountLoader
	simulator launchpad.Simulator
	network   launchpad.Network
	baseFee   int64
	timeout   int64
	source    string
	logger    *logrus.Entry
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithBaseFee sets the inclusion fee in stroops (default: txnbuild.MinBaseFee).
func WithBaseFee(fee int64) Option {
	return func(a *Assembler) {
		if fee > 0 {
			a.baseFee = fee
		}
	}
}

// WithSimulationSource sets the account used as source of read-only
// simulations. It need not exist on the ledger.
func WithSimulationSource(address string) Option {
	return func(a *Assembler) {
		if address != "" {
			a.source = address
		}
	}
}

// NewAssembler creates an Assembler for the contract contractID.
func NewAssembler(contractID string, accounts launchpad.AccountLoader, simulator launchpad.Simulator, network launchpad.Network, opts ...Option) (*Assembler, error) {
	addr, err := contractAddress(contractID)
	if err != nil {
		return nil, errors.NewContractError(errors.INVALID_PARAMS, fmt.Sprintf("invalid contract id %q", contractID), err)
	}

	a := &Assembler{
		contract:  addr,
		accounts:  accounts,
		simulator: simulator,
		network:   network,
		baseFee:   txnbuild.MinBaseFee,
		timeout:   DefaultTimeoutSeconds,
		source:    keypair.Master(network.Passphrase).Address(),
		logger:    logrus.NewEntry(logrus.StandardLogger()).WithField("component", "contract"),
	}

	for _, opt := range opts {
		opt(a)
	}

	if _, err := keypair.ParseAddress(a.source); err != nil {
		return nil, errors.NewContractError(errors.INVALID_PARAMS, "invalid simulation source", err)
	}

	return a, nil
}

// BuildCreateToken returns the unsigned, simulated create_token envelope with
// creator as source and fee payer.
func (a *Assembler) BuildCreateToken(ctx context.Context, creator string, params CreateTokenParams) (string, error) {
	creatorVal, err := validateAccount(creator)
	if err != nil {
		return "", err
	}
	params, err = params.withDefaults()
	if err != nil {
		return "", err
	}

	threshold, err := toStroops(params.LaunchThresholdXLM)
	if err != nil {
		return "", err
	}

	args := xdr.ScVec{
		creatorVal,
		scString(params.Name),
		scString(params.Symbol),
		scI128(params.TotalSupply),
		scI128(threshold),
		scU32(params.LaunchThresholdPercent),
		scStruct(map[string]xdr.ScVal{
			"curve_type":       scUnitVariant(string(params.Curve.Type)),
			"base_price":       scI128(params.Curve.BasePrice),
			"price_multiplier": scI128(params.Curve.PriceMultiplier),
		}),
	}

	return a.prepare(ctx, creator, MethodCreateToken, args)
}

// BuildBuyTokens returns the unsigned, simulated buy_tokens envelope spending
// xlmAmount XLM from buyer.
func (a *Assembler) BuildBuyTokens(ctx context.Context, buyer, tokenID string, xlmAmount decimal.Decimal) (string, error) {
	buyerVal, err := validateAccount(buyer)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tokenID) == "" {
		return "", errors.NewContractError(errors.INVALID_PARAMS, "token id is required", nil)
	}
	if !xlmAmount.IsPositive() {
		return "", errors.NewContractError(errors.INVALID_PARAMS, "xlm amount must be positive", nil).
			With("amount", xlmAmount.String())
	}
	stroops, err := toStroops(xlmAmount)
	if err != nil {
		return "", err
	}

	args := xdr.ScVec{
		buyerVal,
		scString(tokenID),
		scI128(stroops),
	}

	return a.prepare(ctx, buyer, MethodBuyTokens, args)
}

// prepare builds the invocation from source's current sequence, simulates it
// and rebuilds it with the returned resources, auth entries and fee.
func (a *Assembler) prepare(ctx context.Context, source, method string, args xdr.ScVec) (string, error) {
	log := a.logger.WithFields(logrus.Fields{
		"method": method,
		"source": source,
	})

	account, err := a.accounts.LoadAccount(ctx, source)
	if err != nil {
		return "", err
	}

	op := a.invocation(method, args)
	draft, err := a.build(account.ID, account.Sequence, op, a.baseFee)
	if err != nil {
		return "", err
	}

	sim, err := a.simulate(ctx, draft)
	if err != nil {
		return "", err
	}

	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(sim.TransactionData, &data); err != nil {
		return "", errors.NewContractError(errors.SIMULATION_FAILED, "invalid soroban transaction data", err)
	}
	auth := make([]xdr.SorobanAuthorizationEntry, 0, len(sim.Auth))
	for _, entry := range sim.Auth {
		var e xdr.SorobanAuthorizationEntry
		if err := xdr.SafeUnmarshalBase64(entry, &e); err != nil {
			return "", errors.NewContractError(errors.SIMULATION_FAILED, "invalid authorization entry", err)
		}
		auth = append(auth, e)
	}

	op.Auth = auth
	op.Ext = xdr.TransactionExt{V: 1, SorobanData: &data}

	// txnbuild adds data.ResourceFee on top of the inclusion fee.
	envelope, err := a.build(account.ID, account.Sequence, op, a.baseFee)
	if err != nil {
		return "", err
	}

	log.WithField("resource_fee", int64(data.ResourceFee)).Info("contract invocation assembled")
	return envelope, nil
}

// simulate runs envelope and converts a contract-side failure into
// SIMULATION_FAILED.
func (a *Assembler) simulate(ctx context.Context, envelope string) (*launchpad.SimulationResult, error) {
	sim, err := a.simulator.Simulate(ctx, envelope)
	if err != nil {
		return nil, err
	}
	if sim.Error != "" {
		return nil, errors.NewContractError(errors.SIMULATION_FAILED, sim.Error, nil)
	}
	return sim, nil
}

func (a *Assembler) invocation(method string, args xdr.ScVec) *txnbuild.InvokeHostFunction {
	return &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: a.contract,
				FunctionName:    xdr.ScSymbol(method),
				Args:            args,
			},
		},
	}
}

func (a *Assembler) build(source string, sequence int64, op *txnbuild.InvokeHostFunction, fee int64) (string, error) {
	account := txnbuild.NewSimpleAccount(source, sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(a.timeout)},
	})
	if err != nil {
		return "", errors.NewContractError(errors.INVALID_PARAMS, "failed to build contract invocation", err)
	}

	envelope, err := tx.Base64()
	if err != nil {
		return "", errors.NewContractError(errors.INVALID_PARAMS, "failed to encode contract invocation", err)
	}
	return envelope, nil
}

func (p CreateTokenParams) withDefaults() (CreateTokenParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Symbol = strings.TrimSpace(p.Symbol)

	if p.Name == "" {
		return p, errors.NewContractError(errors.INVALID_PARAMS, "token name is required", nil)
	}
	if p.Symbol == "" {
		return p, errors.NewContractError(errors.INVALID_PARAMS, "token symbol is required", nil)
	}
	if p.TotalSupply < MinTokenSupply || p.TotalSupply > MaxTokenSupply {
		return p, errors.NewContractError(
			errors.INVALID_PARAMS,
			fmt.Sprintf("total supply must be between %d and %d", MinTokenSupply, MaxTokenSupply),
			nil,
		).With("total_supply", p.TotalSupply)
	}

	if p.LaunchThresholdXLM.IsZero() {
		p.LaunchThresholdXLM = decimal.NewFromInt(DefaultLaunchXLM)
	}
	if p.LaunchThresholdXLM.IsNegative() {
		return p, errors.NewContractError(errors.INVALID_PARAMS, "launch threshold must be positive", nil)
	}
	if p.LaunchThresholdPercent == 0 {
		p.LaunchThresholdPercent = DefaultLaunchPercent
	}
	if p.LaunchThresholdPercent > 100 {
		return p, errors.NewContractError(errors.INVALID_PARAMS, "launch threshold percent must not exceed 100", nil).
			With("percent", p.LaunchThresholdPercent)
	}

	if p.Curve == nil {
		curve := DefaultCurve
		p.Curve = &curve
	}
	if p.Curve.Type != CurveLinear && p.Curve.Type != CurveQuadratic {
		return p, errors.NewContractError(errors.INVALID_PARAMS, fmt.Sprintf("unknown curve type %q", p.Curve.Type), nil)
	}
	if p.Curve.BasePrice <= 0 || p.Curve.PriceMultiplier < 0 {
		return p, errors.NewContractError(errors.INVALID_PARAMS, "curve prices must be positive", nil)
	}

	return p, nil
}

func validateAccount(address string) (xdr.ScVal, error) {
	val, err := scAccountAddress(address)
	if err != nil {
		return xdr.ScVal{}, errors.NewContractError(errors.INVALID_PARAMS, "invalid account address", err).
			With("account", address)
	}
	return val, nil
}

// toStroops converts an XLM amount to stroops. Amounts finer than one stroop
// are rejected.
func toStroops(xlm decimal.Decimal) (int64, error) {
	stroops := xlm.Shift(7)
	if !stroops.IsInteger() {
		return 0, errors.NewContractError(errors.INVALID_PARAMS, "amount has more than 7 decimal places", nil).
			With("amount", xlm.String())
	}
	if !stroops.BigInt().IsInt64() {
		return 0, errors.NewContractError(errors.INVALID_PARAMS, "amount out of range", nil).
			With("amount", xlm.String())
	}
	return stroops.IntPart(), nil
}
