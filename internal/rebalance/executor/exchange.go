// Package executor drives concrete orders to completion under two modes:
// market (fire, retry, move on) and limit (round-based placement, wait,
// cancel, reconcile). Grounded on the original implementation's
// market_order_rebalancer.py and limit_order_rebalancer.py.
package executor

import (
	"context"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
)

// RetryableError marks an exchange failure the caller should retry rather
// than treat as fatal.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// ExecutionResult is the normalized response to a placed order, aggregated
// across any partial fills the exchange reports.
type ExecutionResult struct {
	OrderID          string
	Pair             model.Pair
	Side             model.Direction
	ExecutedQuantity decimal.Decimal
	OrigQuantity     decimal.Decimal
	MeanPrice        decimal.Decimal
	Commission       map[model.Asset]decimal.Decimal
}

// LimitOrderHandle identifies a resting limit order for later cancellation
// or status lookup.
type LimitOrderHandle struct {
	OrderID string
	Pair    model.Pair
}

// OrderStatus is the terminal or interim state of a previously placed limit
// order.
type OrderStatus struct {
	OrigQuantity     decimal.Decimal
	ExecutedQuantity decimal.Decimal
	MeanPrice        decimal.Decimal
	Commission       map[model.Asset]decimal.Decimal
}

// Exchange is the capability set the executors require of a trading venue.
// Any concrete exchange adapter (see internal/exchange) must implement this.
type Exchange interface {
	GetBalances(ctx context.Context) (model.Balances, error)
	GetOrderBooks(ctx context.Context, pairs []model.Pair) ([]model.OrderBook, error)
	GetExchangeRules(ctx context.Context) (map[model.Pair]model.PairRules, error)

	PlaceMarketOrder(ctx context.Context, order model.Order, prices model.PriceEstimates) (*ExecutionResult, error)
	PlaceLimitOrder(ctx context.Context, order model.Order) (*LimitOrderHandle, error)
	CancelOrder(ctx context.Context, handle LimitOrderHandle) error
	GetOrder(ctx context.Context, handle LimitOrderHandle) (*OrderStatus, error)
}
