package contract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

func TestEstimateTokensForXLM(t *testing.T) {
	tokens, err := EstimateTokensForXLM(decimal.NewFromInt(10), decimal.RequireFromString("0.0001"))
	require.NoError(t, err)
	assert.Equal(t, "100000", tokens.String())

	_, err = EstimateTokensForXLM(decimal.NewFromInt(10), decimal.Zero)
	assert.ErrorIs(t, err, errors.ErrInvalidParams)

	_, err = EstimateTokensForXLM(decimal.NewFromInt(-1), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestEstimateXLMForTokensAppliesSlippage(t *testing.T) {
	xlm, err := EstimateXLMForTokens(decimal.NewFromInt(100_000), decimal.RequireFromString("0.0001"))
	require.NoError(t, err)
	assert.Equal(t, "9.9", xlm.String())

	_, err = EstimateXLMForTokens(decimal.NewFromInt(-1), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}
