// Package planner computes the minimum-cost sequence of abstract currency
// transfers that moves a portfolio from its initial weights to its target
// weights, given the retained fraction (1-fee) of each tradeable pair.
//
// Grounded on the original implementation's create_flow_digraph and
// rebalance_orders (rebalancer/utils.py): weights are scaled to integers by
// Precision, a SOURCE/SINK demand graph is built, and a min-cost flow is
// solved over it. Because every edge cost is -round(log10(fee)*inv_precision)
// with fee in (0,1), all costs are non-negative by construction.
package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
)

// Precision is the scaling factor used to turn fractional weights into
// integer flow capacities. Matches the original's default precision=1e-8
// (inv_precision=1e8).
var Precision = decimal.New(1, -8)

// PairFee is the retained-fraction input for one direction of a tradeable
// pair: the cost of moving value from From to To. The reverse direction is a
// separate PairFee.
type PairFee struct {
	From, To model.Asset
	Fee      decimal.Decimal // fraction retained after fees+spread, in (0,1)
}

// Plan computes the abstract transfers moving initial towards final, using
// pairFees as the available trade routes between assets.
func Plan(initial, final model.Weights, pairFees []PairFee) ([]model.AbstractTransfer, error) {
	invPrecision := decimal.NewFromInt(1).Div(Precision) // 1e8

	assets := make(map[model.Asset]struct{})
	for a := range initial {
		assets[a] = struct{}{}
	}
	for a := range final {
		assets[a] = struct{}{}
	}
	for _, pf := range pairFees {
		assets[pf.From] = struct{}{}
		assets[pf.To] = struct{}{}
	}

	ordered := make([]model.Asset, 0, len(assets))
	for a := range assets {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	index := make(map[model.Asset]int, len(ordered))
	for i, a := range ordered {
		index[a] = i
	}
	const (
		sourceOffset = 0
		sinkOffset   = 1
	)
	source := len(ordered) + sourceOffset
	sink := len(ordered) + sinkOffset
	n := len(ordered) + 2

	g := newMCMF(n)

	scale := func(w decimal.Decimal) int64 {
		scaled := w.Mul(invPrecision)
		f, _ := scaled.Float64()
		return int64(math.Round(f))
	}

	var totalInitial, totalFinal int64
	for asset, idx := range index {
		ic := scale(initial[asset])
		if ic > 0 {
			g.addEdge(source, idx, ic, 0)
			totalInitial += ic
		}
		fc := scale(final[asset])
		if fc > 0 {
			g.addEdge(idx, sink, fc, 0)
			totalFinal += fc
		}
	}

	type pairEdgeRef struct {
		from, to model.Asset
		callIdx  int
		cap      int64
	}
	var refs []pairEdgeRef

	// Capacity large enough never to bind: bounded by total mass in the system.
	bigCap := totalInitial
	if totalFinal > bigCap {
		bigCap = totalFinal
	}
	if bigCap <= 0 {
		bigCap = 1
	}

	// Count how many addEdge calls happened above (one per non-zero source
	// edge plus one per non-zero sink edge) so flowOn offsets line up with
	// the deterministic order pairFees is appended in below.
	nCallsSoFar := 0
	for asset := range index {
		if scale(initial[asset]) > 0 {
			nCallsSoFar++
		}
		if scale(final[asset]) > 0 {
			nCallsSoFar++
		}
	}

	for _, pf := range pairFees {
		if !pf.Fee.IsPositive() || pf.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("planner: fee for %s->%s must be in (0,1), got %s", pf.From, pf.To, pf.Fee)
		}
		fromIdx, ok1 := index[pf.From]
		toIdx, ok2 := index[pf.To]
		if !ok1 || !ok2 {
			continue
		}
		fee, _ := pf.Fee.Float64()
		invPrecF, _ := invPrecision.Float64()
		cost := int64(math.Round(-math.Log10(fee) * invPrecF))
		if cost < 0 {
			return nil, fmt.Errorf("planner: internal error, negative edge cost for %s->%s", pf.From, pf.To)
		}
		g.addEdge(fromIdx, toIdx, bigCap, cost)
		refs = append(refs, pairEdgeRef{from: pf.From, to: pf.To, callIdx: nCallsSoFar, cap: bigCap})
		nCallsSoFar++
	}

	demand := totalInitial
	if totalFinal < demand {
		demand = totalFinal
	}
	if demand <= 0 {
		return nil, nil
	}

	flowed, err := g.run(source, sink, demand)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if flowed < demand {
		return nil, fmt.Errorf("planner: infeasible plan, moved %d of %d required units", flowed, demand)
	}

	var transfers []model.AbstractTransfer
	for _, r := range refs {
		amount := g.flowOn(r.callIdx, r.cap)
		if amount <= 0 {
			continue
		}
		amountInBase := decimal.NewFromInt(amount).Mul(Precision)
		if amountInBase.LessThanOrEqual(decimal.New(1, -18)) {
			continue
		}
		transfers = append(transfers, model.AbstractTransfer{
			From:         r.from,
			To:           r.to,
			AmountInBase: amountInBase,
		})
	}
	return transfers, nil
}
