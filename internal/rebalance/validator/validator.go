// Package validator clips and quantizes an order against exchange rules and
// available balances, recursing when a balance ceiling forces a size
// reduction. Grounded on the original implementation's
// _validate_market_order (exchange/binance.py): commodity = baseAsset and
// base = quoteAsset in the exchange's own filter terminology.
package validator

import (
	"fmt"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
)

// maxRecursion bounds the balance-shrinkage recursion; each recursive call
// strictly decreases quantity, so this is a generous safety cap, not an
// expected depth.
const maxRecursion = 8

// balanceSlack is the 1bp cushion applied to BUY notional checks against
// available base balance, avoiding a race against last-moment price moves.
var balanceSlack = decimal.RequireFromString("1.0001")

// Validate clips order against rules and balances, returning nil (not an
// error) when the order cannot be sized into anything tradeable.
func Validate(order model.Order, rules model.PairRules, balances model.Balances, prices model.PriceEstimates) (*model.Order, error) {
	return validate(order, rules, balances, prices, 0)
}

func validate(order model.Order, rules model.PairRules, balances model.Balances, prices model.PriceEstimates, depth int) (*model.Order, error) {
	if depth > maxRecursion {
		return nil, nil
	}

	if order.Quantity.LessThan(rules.MinSize) {
		return nil, nil
	}
	if order.Quantity.GreaterThan(rules.MaxSize) {
		order.Quantity = rules.MaxSize
	}

	quantized, err := model.Quantize(order.Quantity, rules.SizeStep, true)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	order.Quantity = quantized
	if !order.Quantity.IsPositive() {
		return nil, nil
	}

	if order.Type == model.LIMIT {
		if order.Price.LessThan(rules.MinPrice) || order.Price.GreaterThan(rules.MaxPrice) {
			return nil, nil
		}
		// SELL rounds its resting price up, BUY rounds down: both preserve
		// post-only intent by never crossing the book further than quoted.
		down := order.Side == model.BUY
		priceQuantized, err := model.Quantize(order.Price, rules.PriceStep, down)
		if err != nil {
			return nil, fmt.Errorf("validator: %w", err)
		}
		order.Price = priceQuantized
	}

	value := notionalValue(order, prices)
	if value.LessThan(rules.MinNotional) {
		return nil, nil
	}

	commodity := order.Pair.Commodity
	base := order.Pair.Base

	switch order.Side {
	case model.SELL:
		available := balances.Get(commodity)
		if available.LessThan(order.Quantity) {
			if !available.IsPositive() {
				return nil, nil
			}
			order.Quantity = available
			return validate(order, rules, balances, prices, depth+1)
		}
	case model.BUY:
		refPrice := order.Price
		if refPrice.IsZero() {
			cp := prices.Get(commodity)
			bp := prices.Get(base)
			if !bp.IsPositive() {
				return nil, fmt.Errorf("validator: no price estimate for base %s", base)
			}
			refPrice = cp.Div(bp)
		}
		priceWithSlack := refPrice.Mul(balanceSlack)
		cost := order.Quantity.Mul(priceWithSlack)
		available := balances.Get(base)
		if available.LessThan(cost) {
			if !priceWithSlack.IsPositive() || !available.IsPositive() {
				return nil, nil
			}
			order.Quantity = available.Div(priceWithSlack)
			return validate(order, rules, balances, prices, depth+1)
		}
	default:
		return nil, fmt.Errorf("validator: unknown side %q", order.Side)
	}

	return &order, nil
}

func notionalValue(order model.Order, prices model.PriceEstimates) decimal.Decimal {
	if !order.Price.IsZero() {
		return order.Price.Mul(order.Quantity)
	}
	cp := prices.Get(order.Pair.Commodity)
	bp := prices.Get(order.Pair.Base)
	if !bp.IsPositive() {
		return decimal.Zero
	}
	return cp.Div(bp).Mul(order.Quantity)
}
