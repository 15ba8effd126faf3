// Package prices estimates a single price per asset, denominated in a chosen
// base currency, from a set of possibly-disconnected order books.
//
// Estimation runs a breadth-layered cheapest-path search over a graph whose
// edge weight from u to v is -log10(mid(u_v)); summing weights along a path
// is equivalent to multiplying prices along it, so the cheapest path
// maximizes the product of conversion rates. Grounded on the original
// implementation's bfs()/get_price_estimates_from_orderbooks(), including its
// depth-preferring tie-break: a candidate update is only accepted if it both
// strictly improves the known distance AND shares the current best depth, so
// a numerically "shorter" but much-longer-hop route never displaces a
// shallow one.
package prices

import (
	"fmt"
	"math"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
)

type edge struct {
	to     model.Asset
	weight float64 // -log10(mid)
}

// Estimate computes PriceEstimates for every asset reachable from base across
// the given order books. price[base] = 1.
func Estimate(books []model.OrderBook, base model.Asset) (model.PriceEstimates, error) {
	graph := make(map[model.Asset][]edge)
	addEdge := func(from, to model.Asset, mid decimal.Decimal) error {
		if !mid.IsPositive() {
			return fmt.Errorf("prices: non-positive mid for %s_%s", from, to)
		}
		f, _ := mid.Float64()
		graph[from] = append(graph[from], edge{to: to, weight: -math.Log10(f)})
		return nil
	}

	for _, ob := range books {
		mid, err := ob.Mid()
		if err != nil {
			continue
		}
		if err := addEdge(ob.Pair.Commodity, ob.Pair.Base, mid); err != nil {
			return nil, err
		}
		inv := decimal.NewFromInt(1).Div(mid)
		if err := addEdge(ob.Pair.Base, ob.Pair.Commodity, inv); err != nil {
			return nil, err
		}
	}

	if _, ok := graph[base]; !ok {
		graph[base] = nil
	}

	dist := map[model.Asset]float64{base: 0}
	depth := map[model.Asset]int{base: 0}
	type queueItem struct {
		asset model.Asset
		d     int
	}
	queue := []queueItem{{asset: base, d: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDist := dist[cur.asset]

		for _, e := range graph[cur.asset] {
			candidate := curDist + e.weight
			knownDist, seen := dist[e.to]
			knownDepth, hasDepth := depth[e.to]

			if !seen {
				dist[e.to] = candidate
				depth[e.to] = cur.d + 1
				queue = append(queue, queueItem{asset: e.to, d: cur.d + 1})
				continue
			}
			// Depth-preferring tie-break: only accept an update that shares
			// the already-discovered depth AND strictly improves distance.
			if hasDepth && knownDepth == cur.d+1 && candidate < knownDist {
				dist[e.to] = candidate
				queue = append(queue, queueItem{asset: e.to, d: cur.d + 1})
			}
		}
	}

	out := make(model.PriceEstimates, len(dist))
	for asset, d := range dist {
		out[asset] = decimal.NewFromFloat(math.Pow(10, d))
	}
	out[base] = decimal.NewFromInt(1)
	return out, nil
}

// Unreachable reports which of the wanted assets have no price estimate in
// estimates.
func Unreachable(estimates model.PriceEstimates, wanted []model.Asset) []model.Asset {
	var missing []model.Asset
	for _, a := range wanted {
		if _, ok := estimates[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}
