// Package portfolio converts balances and price estimates into portfolio
// weights and composes trading costs (spread and fee) into a single retained
// fraction per pair. Grounded on the original implementation's
// get_weights_from_resources, get_portfolio_value_from_resources,
// spread_to_fee, and get_total_fee.
package portfolio

import (
	"fmt"
	"math"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
)

// Value returns the total portfolio value: sum of balance*price per asset.
// Assets with no price estimate contribute zero.
func Value(balances model.Balances, prices model.PriceEstimates) decimal.Decimal {
	total := decimal.Zero
	for asset, bal := range balances {
		total = total.Add(bal.Mul(prices.Get(asset)))
	}
	return total
}

// Weights converts balances into a fractional allocation of total value.
func Weights(balances model.Balances, prices model.PriceEstimates) (model.Weights, error) {
	total := Value(balances, prices)
	if !total.IsPositive() {
		return nil, fmt.Errorf("portfolio: zero or negative total value")
	}
	out := make(model.Weights, len(balances))
	for asset, bal := range balances {
		out[asset] = bal.Mul(prices.Get(asset)).Div(total)
	}
	return out, nil
}

// CompleteWeights fills the gap between the sum of a partial weight map and 1
// by assigning the remainder to padding. Errors if the partial sum already
// exceeds 1 beyond model.WeightEpsilon.
func CompleteWeights(partial model.Weights, padding model.Asset) (model.Weights, error) {
	sum := decimal.Zero
	for _, w := range partial {
		sum = sum.Add(w)
	}
	remainder := decimal.NewFromInt(1).Sub(sum)
	if remainder.LessThan(model.WeightEpsilon.Neg()) {
		return nil, fmt.Errorf("portfolio: partial weights sum to %s, exceeds 1", sum)
	}
	out := make(model.Weights, len(partial)+1)
	for asset, w := range partial {
		out[asset] = w
	}
	if remainder.IsPositive() {
		out[padding] = out[padding].Add(remainder)
	}
	return out, nil
}

// SpreadToFee models the one-way cost of crossing a spread once: 1 - sqrt(bid/ask).
func SpreadToFee(ob model.OrderBook) (decimal.Decimal, error) {
	if !ob.WallAsk.IsPositive() {
		return decimal.Zero, fmt.Errorf("portfolio: non-positive ask for %s", ob.Pair)
	}
	ratio, _ := ob.WallBid.Div(ob.WallAsk).Float64()
	if ratio < 0 {
		return decimal.Zero, fmt.Errorf("portfolio: negative bid/ask ratio for %s", ob.Pair)
	}
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(math.Sqrt(ratio))), nil
}

// TotalFee composes independent multiplicative cost factors into a single
// retained-fraction complement: 1 - product(1-fee_i).
func TotalFee(fees ...decimal.Decimal) decimal.Decimal {
	retained := decimal.NewFromInt(1)
	for _, f := range fees {
		retained = retained.Mul(decimal.NewFromInt(1).Sub(f))
	}
	return decimal.NewFromInt(1).Sub(retained)
}
