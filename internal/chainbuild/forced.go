package chainbuild

import "propeller/internal/cfgmodel"

// findMutuallyForcedEdges identifies spec.md §3's mutually-forced
// edges: an edge whose source has exactly one profiled (weight > 0)
// out-edge (this one) and whose sink has exactly one profiled in-edge
// (this one).
func findMutuallyForcedEdges(cfg *cfgmodel.CFG) []int {
	var forced []int
	for ei := range cfg.Edges {
		e := &cfg.Edges[ei]
		if e.Weight == 0 {
			continue
		}
		if singleWeightedOut(cfg, e.Source) != ei {
			continue
		}
		if singleWeightedIn(cfg, e.Sink) != ei {
			continue
		}
		forced = append(forced, ei)
	}
	return forced
}

// singleWeightedOut returns the edge index if node has exactly one
// outgoing edge with weight > 0, else -1.
func singleWeightedOut(cfg *cfgmodel.CFG, node int) int {
	found := -1
	for _, idx := range cfg.OutEdgeIndices(node) {
		if cfg.Edges[idx].Weight > 0 {
			if found != -1 {
				return -1
			}
			found = idx
		}
	}
	return found
}

func singleWeightedIn(cfg *cfgmodel.CFG, node int) int {
	found := -1
	for _, idx := range cfg.InEdgeIndices(node) {
		if cfg.Edges[idx].Weight > 0 {
			if found != -1 {
				return -1
			}
			found = idx
		}
	}
	return found
}

// breakForcedCycles removes, from each cycle formed purely of
// mutually-forced edges, the edge whose sink has the smallest address
// — spec.md §4.3.2's loop-back-edge heuristic. Returns the surviving
// forced edges as source -> sink node maps.
func breakForcedCycles(cfg *cfgmodel.CFG, forced []int) (out map[int]int, in map[int]int) {
	out = make(map[int]int, len(forced))
	for _, ei := range forced {
		e := &cfg.Edges[ei]
		out[e.Source] = e.Sink
	}

	// Walk from every node; a cycle exists wherever a path revisits a
	// node before exhausting the chain. Each node has out-degree <= 1
	// in this graph, so a cycle, once entered, is inescapable without
	// cutting an edge.
	state := make(map[int]int, len(out)) // 0=unvisited,1=in-progress,2=done
	for start := range out {
		if state[start] == 2 {
			continue
		}
		path := []int{}
		n := start
		for {
			if state[n] == 2 {
				break
			}
			if state[n] == 1 {
				// Found a cycle: n is revisited. Extract the cycle
				// portion of path starting at n.
				ci := indexOf(path, n)
				cycle := path[ci:]
				cutCycleEdge(cfg, out, cycle)
				break
			}
			state[n] = 1
			path = append(path, n)
			next, ok := out[n]
			if !ok {
				break
			}
			n = next
		}
		for _, p := range path {
			if state[p] == 1 {
				state[p] = 2
			}
		}
	}

	in = make(map[int]int, len(out))
	for s, t := range out {
		in[t] = s
	}
	return out, in
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// cutCycleEdge removes, from the cycle (a list of nodes in path order,
// each edging to the next and the last back to the first), the edge
// whose sink has the smallest address.
func cutCycleEdge(cfg *cfgmodel.CFG, out map[int]int, cycle []int) {
	bestSrc := -1
	var bestSinkAddr uint64
	for i, src := range cycle {
		sink := cycle[(i+1)%len(cycle)]
		addr := cfg.Nodes[sink].Address
		if bestSrc == -1 || addr < bestSinkAddr {
			bestSrc, bestSinkAddr = src, addr
		}
	}
	if bestSrc != -1 {
		delete(out, bestSrc)
	}
}
