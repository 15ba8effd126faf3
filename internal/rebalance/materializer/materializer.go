// Package materializer turns the planner's abstract currency transfers into
// concrete orders on real pairs, and orders market-mode batches so that a
// producing trade always runs before the trade consuming its output.
//
// Grounded on the original implementation's parse_order and
// topological_sort/dfs (rebalancer/utils.py).
package materializer

import (
	"fmt"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
)

// Materialize converts a single AbstractTransfer into a concrete Order.
// knownPairs is the set of pairs the exchange actually supports; prices
// supplies the estimate used to convert the base-denominated amount into
// commodity units. orderType/price follow the caller's execution mode:
// MARKET orders pass a zero price, LIMIT orders must supply one.
func Materialize(t model.AbstractTransfer, knownPairs map[model.Pair]struct{}, prices model.PriceEstimates, orderType model.OrderType, limitPrice model.PriceEstimates) (model.Order, error) {
	forward := model.Pair{Commodity: t.From, Base: t.To}
	reverse := model.Pair{Commodity: t.To, Base: t.From}

	var pair model.Pair
	var side model.Direction
	switch {
	case pairKnown(knownPairs, forward):
		pair, side = forward, model.SELL
	case pairKnown(knownPairs, reverse):
		pair, side = reverse, model.BUY
	default:
		return model.Order{}, fmt.Errorf("materializer: no pair found for transfer %s->%s", t.From, t.To)
	}

	commodityPrice := prices.Get(pair.Commodity)
	basePrice := prices.Get(pair.Base)
	if !commodityPrice.IsPositive() || !basePrice.IsPositive() {
		return model.Order{}, fmt.Errorf("materializer: missing price estimate for pair %s", pair)
	}
	quantity := t.AmountInBase.Mul(basePrice).Div(commodityPrice)

	order := model.Order{
		Pair:     pair,
		Type:     orderType,
		Side:     side,
		Quantity: quantity,
	}
	if orderType == model.LIMIT {
		if limitPrice == nil {
			return model.Order{}, fmt.Errorf("materializer: limit order for %s requires a seed price", pair)
		}
		seed := limitPrice.Get(pair.Commodity)
		if !seed.IsPositive() {
			return model.Order{}, fmt.Errorf("materializer: no seed price for %s", pair)
		}
		order.Price = seed
	}
	return order, order.Validate()
}

func pairKnown(known map[model.Pair]struct{}, p model.Pair) bool {
	_, ok := known[p]
	return ok
}

// TopologicalSort orders market-mode orders so that every order producing an
// asset runs before every order consuming it. A synthetic "start" node is
// connected to assets that appear only as sources (never consumed). If the
// transfer graph is not a DAG, the input order is returned unchanged — C5's
// contract guarantees acyclicity under normal operation, so this is a
// defensive fallback, not the expected path.
func TopologicalSort(orders []model.Order) []model.Order {
	adjacency := make(map[model.Asset]map[model.Asset]struct{})
	ordersByFrom := make(map[model.Asset][]model.Order)

	addAdj := func(from, to model.Asset) {
		if adjacency[from] == nil {
			adjacency[from] = make(map[model.Asset]struct{})
		}
		adjacency[from][to] = struct{}{}
	}

	for _, o := range orders {
		from, to := sourceDestination(o)
		addAdj(from, to)
		ordersByFrom[from] = append(ordersByFrom[from], o)
	}

	currenciesTo := make(map[model.Asset]struct{})
	for _, targets := range adjacency {
		for t := range targets {
			currenciesTo[t] = struct{}{}
		}
	}

	const start = model.Asset("__start__")
	adjacency[start] = make(map[model.Asset]struct{})
	for from := range adjacency {
		if from == start {
			continue
		}
		if _, consumed := currenciesTo[from]; !consumed {
			adjacency[start][from] = struct{}{}
		}
	}

	visited := make(map[model.Asset]bool)
	var postorder []model.Asset
	var visit func(model.Asset) bool
	onStack := make(map[model.Asset]bool)
	visit = func(a model.Asset) bool {
		if onStack[a] {
			return false // cycle detected
		}
		if visited[a] {
			return true
		}
		visited[a] = true
		onStack[a] = true
		for next := range adjacency[a] {
			if !visit(next) {
				return false
			}
		}
		onStack[a] = false
		postorder = append(postorder, a)
		return true
	}

	if !visit(start) {
		return orders // cyclic: defensive fallback, preserve submission order
	}

	// Reverse postorder, dropping the synthetic start sentinel.
	result := make([]model.Order, 0, len(orders))
	for i := len(postorder) - 1; i >= 0; i-- {
		asset := postorder[i]
		if asset == start {
			continue
		}
		result = append(result, ordersByFrom[asset]...)
	}
	if len(result) != len(orders) {
		return orders // mismatch: be conservative and preserve submission order
	}
	return result
}

// sourceDestination returns the (producing, consuming) asset pair for an
// order: a SELL produces Base from Commodity; a BUY produces Commodity from
// Base.
func sourceDestination(o model.Order) (from, to model.Asset) {
	if o.Side == model.SELL {
		return o.Pair.Commodity, o.Pair.Base
	}
	return o.Pair.Base, o.Pair.Commodity
}
