package planner

import (
	"testing"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSingleHopTransfer(t *testing.T) {
	initial := model.Weights{"BTC": decimal.NewFromInt(1)}
	final := model.Weights{"USDT": decimal.NewFromInt(1)}
	fees := []PairFee{
		{From: "BTC", To: "USDT", Fee: decimal.NewFromFloat(0.999)},
		{From: "USDT", To: "BTC", Fee: decimal.NewFromFloat(0.999)},
	}

	transfers, err := Plan(initial, final, fees)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, model.Asset("BTC"), transfers[0].From)
	assert.Equal(t, model.Asset("USDT"), transfers[0].To)
	assert.True(t, transfers[0].AmountInBase.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.NewFromFloat(0.001)))
}

func TestPlanPrefersCheaperRoute(t *testing.T) {
	// Moving BTC->USDT directly costs more than the two-hop BTC->ETH->USDT
	// route; the planner should prefer the cheaper total cost.
	initial := model.Weights{"BTC": decimal.NewFromInt(1)}
	final := model.Weights{"USDT": decimal.NewFromInt(1)}
	fees := []PairFee{
		{From: "BTC", To: "USDT", Fee: decimal.NewFromFloat(0.90)},
		{From: "USDT", To: "BTC", Fee: decimal.NewFromFloat(0.90)},
		{From: "BTC", To: "ETH", Fee: decimal.NewFromFloat(0.999)},
		{From: "ETH", To: "BTC", Fee: decimal.NewFromFloat(0.999)},
		{From: "ETH", To: "USDT", Fee: decimal.NewFromFloat(0.999)},
		{From: "USDT", To: "ETH", Fee: decimal.NewFromFloat(0.999)},
	}

	transfers, err := Plan(initial, final, fees)
	require.NoError(t, err)

	var sawBTCETH, sawETHUSDT, sawBTCUSDT bool
	for _, tr := range transfers {
		if tr.From == "BTC" && tr.To == "ETH" {
			sawBTCETH = true
		}
		if tr.From == "ETH" && tr.To == "USDT" {
			sawETHUSDT = true
		}
		if tr.From == "BTC" && tr.To == "USDT" {
			sawBTCUSDT = true
		}
	}
	assert.True(t, sawBTCETH)
	assert.True(t, sawETHUSDT)
	assert.False(t, sawBTCUSDT)
}

func TestPlanRejectsFeeOutOfRange(t *testing.T) {
	initial := model.Weights{"BTC": decimal.NewFromInt(1)}
	final := model.Weights{"USDT": decimal.NewFromInt(1)}
	fees := []PairFee{{From: "BTC", To: "USDT", Fee: decimal.NewFromInt(1)}}

	_, err := Plan(initial, final, fees)
	assert.Error(t, err)
}

func TestPlanNoOpWhenAlreadyBalanced(t *testing.T) {
	initial := model.Weights{"BTC": decimal.NewFromInt(1)}
	final := model.Weights{"BTC": decimal.NewFromInt(1)}

	transfers, err := Plan(initial, final, nil)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}
