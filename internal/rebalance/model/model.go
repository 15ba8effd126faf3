// Package model holds the shared data types of the rebalancer: assets, pairs,
// order books, exchange rules, orders, and the abstract transfers produced by
// the planner.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Asset is an opaque currency code, e.g. "BTC" or "USDT".
type Asset string

// Pair is an ordered trading product: Commodity priced in units of Base.
// String form is "COMMODITY_BASE".
type Pair struct {
	Commodity Asset
	Base      Asset
}

func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Commodity, p.Base)
}

// Reverse returns the pair with commodity and base swapped.
func (p Pair) Reverse() Pair {
	return Pair{Commodity: p.Base, Base: p.Commodity}
}

// Direction is the side of a trade relative to a Pair.
type Direction string

const (
	// SELL exchanges Commodity for Base.
	SELL Direction = "SELL"
	// BUY exchanges Base for Commodity.
	BUY Direction = "BUY"
)

// OrderType distinguishes market orders (price discovered at execution) from
// limit orders (price fixed at submission).
type OrderType string

const (
	MARKET OrderType = "MARKET"
	LIMIT  OrderType = "LIMIT"
)

// OrderBook is a top-of-book snapshot for a Pair.
type OrderBook struct {
	Pair    Pair
	WallBid decimal.Decimal
	WallAsk decimal.Decimal
}

// NewOrderBookFromScalar builds an order book with no spread: bid = ask = mid.
func NewOrderBookFromScalar(pair Pair, mid decimal.Decimal) OrderBook {
	return OrderBook{Pair: pair, WallBid: mid, WallAsk: mid}
}

// NewOrderBookFromBidAsk builds an order book from an explicit bid/ask pair.
func NewOrderBookFromBidAsk(pair Pair, bid, ask decimal.Decimal) OrderBook {
	return OrderBook{Pair: pair, WallBid: bid, WallAsk: ask}
}

// NewOrderBookFromTwo builds an order book from two unordered values,
// assigning the smaller to the bid and the larger to the ask.
func NewOrderBookFromTwo(pair Pair, a, b decimal.Decimal) OrderBook {
	if a.GreaterThan(b) {
		a, b = b, a
	}
	return OrderBook{Pair: pair, WallBid: a, WallAsk: b}
}

// Mid returns the arithmetic mean of the bid and ask. It fails if either wall
// is the zero value.
func (ob OrderBook) Mid() (decimal.Decimal, error) {
	if ob.WallBid.IsZero() || ob.WallAsk.IsZero() {
		return decimal.Zero, fmt.Errorf("orderbook %s: missing bid or ask", ob.Pair)
	}
	return ob.WallBid.Add(ob.WallAsk).Div(decimal.NewFromInt(2)), nil
}

// Valid reports whether the book satisfies 0 < bid <= ask.
func (ob OrderBook) Valid() bool {
	return ob.WallBid.IsPositive() && ob.WallAsk.IsPositive() && ob.WallBid.LessThanOrEqual(ob.WallAsk)
}

// PairRules captures the trading constraints an exchange imposes on a Pair.
type PairRules struct {
	MinSize     decimal.Decimal
	MaxSize     decimal.Decimal
	SizeStep    decimal.Decimal
	PriceStep   decimal.Decimal
	MinNotional decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
}

// Order is a single trade instruction, market or limit.
type Order struct {
	Pair     Pair
	Type     OrderType
	Side     Direction
	Quantity decimal.Decimal
	Price    decimal.Decimal // zero value means "unset"; required for LIMIT
}

// Validate checks the structural invariant on Price vs Type.
func (o Order) Validate() error {
	hasPrice := !o.Price.IsZero()
	if o.Type == LIMIT && !hasPrice {
		return fmt.Errorf("limit order on %s missing price", o.Pair)
	}
	if o.Type == MARKET && hasPrice {
		return fmt.Errorf("market order on %s must not specify price", o.Pair)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("order on %s has non-positive quantity %s", o.Pair, o.Quantity)
	}
	return nil
}

// Balances maps an asset to its free balance. Only non-zero balances need be
// present.
type Balances map[Asset]decimal.Decimal

// Get returns the balance of an asset, defaulting to zero.
func (b Balances) Get(a Asset) decimal.Decimal {
	if v, ok := b[a]; ok {
		return v
	}
	return decimal.Zero
}

// Weights maps an asset to its fractional share of portfolio value. A
// complete weight vector sums to 1 within WeightEpsilon.
type Weights map[Asset]decimal.Decimal

// WeightEpsilon is the tolerance used when validating that weights sum to 1.
var WeightEpsilon = decimal.New(1, -9)

// PriceEstimates maps an asset to its price in units of some implicit base.
type PriceEstimates map[Asset]decimal.Decimal

// Get returns the price estimate of an asset, defaulting to zero.
func (p PriceEstimates) Get(a Asset) decimal.Decimal {
	if v, ok := p[a]; ok {
		return v
	}
	return decimal.Zero
}

// AbstractTransfer is the planner's output before materialization into real
// orders: a directed movement of value, denominated in the base currency.
type AbstractTransfer struct {
	From        Asset
	To          Asset
	AmountInBase decimal.Decimal
}

// Statistics is the host-persisted record produced for every executed order.
type Statistics struct {
	MidMarketPrice   float64 `json:"mid_market_price"`
	AverageExecPrice float64 `json:"average_exec_price"`
	Volume           float64 `json:"volume"`
	Pair             string  `json:"pair"`
	FeeInBase        float64 `json:"fee_in_base"`
	Action           string  `json:"action"`
}
