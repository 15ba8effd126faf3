package portfolio

import (
	"testing"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAndWeights(t *testing.T) {
	balances := model.Balances{
		"BTC":  decimal.NewFromInt(1),
		"USDT": decimal.NewFromInt(10000),
	}
	prices := model.PriceEstimates{
		"BTC":  decimal.NewFromInt(10000),
		"USDT": decimal.NewFromInt(1),
	}

	value := Value(balances, prices)
	assert.True(t, decimal.NewFromInt(20000).Equal(value))

	weights, err := Weights(balances, prices)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(0.5).Equal(weights["BTC"]))
	assert.True(t, decimal.NewFromFloat(0.5).Equal(weights["USDT"]))
}

func TestWeightsRejectsZeroValue(t *testing.T) {
	_, err := Weights(model.Balances{}, model.PriceEstimates{})
	assert.Error(t, err)
}

func TestCompleteWeightsFillsPadding(t *testing.T) {
	partial := model.Weights{"LTC": decimal.NewFromFloat(0.6)}
	out, err := CompleteWeights(partial, "BTC")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(0.6).Equal(out["LTC"]))
	assert.True(t, decimal.NewFromFloat(0.4).Equal(out["BTC"]))
}

func TestCompleteWeightsAddsToExistingPadding(t *testing.T) {
	partial := model.Weights{"LTC": decimal.NewFromFloat(0.5), "BTC": decimal.NewFromFloat(0.1)}
	out, err := CompleteWeights(partial, "BTC")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(0.5).Equal(out["BTC"]))
}

func TestCompleteWeightsRejectsOverallocation(t *testing.T) {
	partial := model.Weights{"LTC": decimal.NewFromFloat(1.5)}
	_, err := CompleteWeights(partial, "BTC")
	assert.Error(t, err)
}

func TestSpreadToFee(t *testing.T) {
	ob := model.NewOrderBookFromBidAsk(model.Pair{Commodity: "BTC", Base: "USDT"}, decimal.NewFromInt(99), decimal.NewFromInt(100))
	fee, err := SpreadToFee(ob)
	require.NoError(t, err)
	assert.True(t, fee.IsPositive())
	assert.True(t, fee.LessThan(decimal.NewFromFloat(0.01)))
}

func TestSpreadToFeeNoSpreadIsZero(t *testing.T) {
	ob := model.NewOrderBookFromScalar(model.Pair{Commodity: "BTC", Base: "USDT"}, decimal.NewFromInt(100))
	fee, err := SpreadToFee(ob)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestTotalFeeComposesMultiplicatively(t *testing.T) {
	fee := TotalFee(decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.1))
	// 1 - (0.9 * 0.9) = 0.19
	assert.True(t, decimal.NewFromFloat(0.19).Equal(fee))
}
