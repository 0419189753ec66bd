package contract

import (
	"github.com/shopspring/decimal"

	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// sellSlippage is the discount applied to sell estimates.
var sellSlippage = decimal.RequireFromString("0.99")

// EstimateTokensForXLM estimates how many tokens xlm buys at price (XLM per
// token). It ignores the curve's movement during the purchase and is only a
// display hint; the contract decides the real amount.
func EstimateTokensForXLM(xlm, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, errors.NewContractError(errors.INVALID_PARAMS, "price must be positive", nil)
	}
	if xlm.IsNegative() {
		return decimal.Zero, errors.NewContractError(errors.INVALID_PARAMS, "amount must not be negative", nil)
	}
	return xlm.Div(price), nil
}

// EstimateXLMForTokens estimates the XLM received for selling tokens at price,
// less 1% slippage. Like EstimateTokensForXLM it is a display hint only.
func EstimateXLMForTokens(tokens, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, errors.NewContractError(errors.INVALID_PARAMS, "price must not be negative", nil)
	}
	if tokens.IsNegative() {
		return decimal.Zero, errors.NewContractError(errors.INVALID_PARAMS, "amount must not be negative", nil)
	}
	return tokens.Mul(price).Mul(sellSlippage).Round(7), nil
}
