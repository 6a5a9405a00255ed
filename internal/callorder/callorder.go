// Package callorder implements S4, Call-Chain-Clustering: a greedy
// global ordering of a program's functions driven by inter-function
// call weight. It operates on the callgraph package's CGPoint/CGLink
// shape, matching PLOFuncOrdering.h's model where a point accumulates a
// list of merged functions rather than collapsing to a flat name
// immediately.
package callorder

import (
	"container/heap"
	"sort"

	"propeller/internal/callgraph"
)

// cluster is the merge-time working form of a CGPoint: an ordered list
// of the sub-points it has absorbed and its neighbor link weights, keyed
// by neighbor cluster and summed across parallel edges in both
// directions. A merge appends the second cluster's points after the
// first's; which side was the caller does not affect that order.
type cluster struct {
	points    []*callgraph.CGPoint
	neighbors map[*cluster]uint64
	freq      uint64
	size      uint64
	live      bool
	order     int // insertion order, used as a deterministic tiebreak
}

func (c *cluster) density() float64 {
	if c.size == 0 {
		return 0
	}
	return float64(c.freq) / float64(c.size)
}

func (c *cluster) isCold() bool { return c.freq == 0 }

// candEdge is one pending candidate merge in the priority queue.
type candEdge struct {
	a, b   *cluster
	weight uint64
}

type edgeHeap []*candEdge

func (h edgeHeap) Len() int { return len(h) }
func (h edgeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight > h[j].weight
	}
	if h[i].a.order != h[j].a.order {
		return h[i].a.order < h[j].a.order
	}
	return h[i].b.order < h[j].b.order
}
func (h edgeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *edgeHeap) Push(x any)   { *h = append(*h, x.(*candEdge)) }
func (h *edgeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Cluster is S4's output unit: a run of functions to be emitted
// contiguously, in the order their chain-build results should be
// concatenated into the final binary layout.
type Cluster struct {
	Points []*callgraph.CGPoint
}

// Order runs Call-Chain-Clustering to completion and returns the
// resulting clusters ordered by descending execution density with cold
// clusters grouped at the end, per spec.md §4.4.
func Order(cg *callgraph.CallGraph) []Cluster {
	byPoint := make(map[*callgraph.CGPoint]*cluster, len(cg.Points))
	for i, p := range cg.Points {
		byPoint[p] = &cluster{
			points:    []*callgraph.CGPoint{p},
			neighbors: make(map[*cluster]uint64),
			freq:      pointFreq(p),
			size:      pointSize(p),
			live:      true,
			order:     i,
		}
	}

	for _, l := range cg.Links {
		a, b := byPoint[l.From], byPoint[l.To]
		if a == nil || b == nil || a == b || l.Weight == 0 {
			continue
		}
		a.neighbors[b] += l.Weight
		b.neighbors[a] += l.Weight
	}

	h := &edgeHeap{}
	heap.Init(h)
	pushed := make(map[[2]*cluster]bool)
	pushBest := func(a, b *cluster) {
		if a == b {
			return
		}
		w := a.neighbors[b]
		if w == 0 {
			return
		}
		key := normKey(a, b)
		if pushed[key] {
			return
		}
		pushed[key] = true
		heap.Push(h, &candEdge{a: a, b: b, weight: w})
	}
	for _, a := range byPoint {
		for b := range a.neighbors {
			pushBest(a, b)
		}
	}
	clearPushed := func(a, b *cluster) { delete(pushed, normKey(a, b)) }

	nextOrder := len(cg.Points)
	for h.Len() > 0 {
		e := heap.Pop(h).(*candEdge)
		if !e.a.live || !e.b.live {
			continue
		}
		cur := e.a.neighbors[e.b]
		if cur == 0 || cur != e.weight {
			// Stale: weight changed since this edge was pushed, or the
			// pair was already re-pushed with the fresh value. Re-check
			// against the live weight and push a corrected entry once.
			clearPushed(e.a, e.b)
			if cur > 0 {
				pushBest(e.a, e.b)
			}
			continue
		}

		survivor := mergeClusters(e.a, e.b, nextOrder)
		nextOrder++
		other := e.a
		if survivor == e.a {
			other = e.b
		}
		other.live = false

		for n, w := range other.neighbors {
			if n == survivor || !n.live {
				continue
			}
			survivor.neighbors[n] += w
			n.neighbors[survivor] += w
			delete(n.neighbors, other)
			clearPushed(other, n)
			pushBest(survivor, n)
		}
		delete(survivor.neighbors, other)
	}

	var out []*cluster
	for _, c := range byPoint {
		if c.live {
			out = append(out, c)
		}
	}
	// byPoint holds one entry per original point; dedupe survivors.
	seen := make(map[*cluster]bool, len(out))
	var clustersOut []*cluster
	for _, c := range out {
		if seen[c] {
			continue
		}
		seen[c] = true
		clustersOut = append(clustersOut, c)
	}

	sort.SliceStable(clustersOut, func(i, j int) bool {
		ci, cj := clustersOut[i].isCold(), clustersOut[j].isCold()
		if ci != cj {
			return !ci
		}
		di, dj := clustersOut[i].density(), clustersOut[j].density()
		if di != dj {
			return di > dj
		}
		return clustersOut[i].order < clustersOut[j].order
	})

	result := make([]Cluster, len(clustersOut))
	for i, c := range clustersOut {
		result[i] = Cluster{Points: c.points}
	}
	return result
}

// mergeClusters merges b into a, appending b's points after a's, and
// returns the surviving cluster. a keeps its identity (the same
// pointer), and its order is reset to the given value.
func mergeClusters(a, b *cluster, order int) *cluster {
	survivor, absorbed := a, b
	survivor.points = append(append([]*callgraph.CGPoint{}, a.points...), b.points...)
	survivor.freq += absorbed.freq
	survivor.size += absorbed.size
	survivor.order = order
	return survivor
}

func normKey(a, b *cluster) [2]*cluster {
	if a.order < b.order {
		return [2]*cluster{a, b}
	}
	return [2]*cluster{b, a}
}

func pointFreq(p *callgraph.CGPoint) uint64 { return p.Freq() }

func pointSize(p *callgraph.CGPoint) uint64 { return p.Size() }
