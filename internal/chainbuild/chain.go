// Package chainbuild implements S3, the Extended-TSP node-chain builder
// described in spec.md §4.3. It operates on one function's CFG at a
// time: §4.3.2 initializes one chain per node and attaches
// mutually-forced edges, §4.3.3–4.3.4 run the priority-driven merge
// loop, and §4.3.5 coalesces the surviving chains into the function's
// final layout.
package chainbuild

import "propeller/internal/cfgmodel"

// Chain is an ordered sequence of node indices intended to be emitted
// contiguously, spec.md §3's Node Chain. Delegate is the node whose
// section index keys this chain in the builder's map — stable across
// merges, per spec.md §9 ("chain identity through mutation").
type Chain struct {
	Delegate int
	Nodes    []int
	Size     uint64
	Freq     uint64
	Score    float64
}

func newSingletonChain(node int, cfg *cfgmodel.CFG) *Chain {
	n := &cfg.Nodes[node]
	return &Chain{
		Delegate: node,
		Nodes:    []int{node},
		Size:     uint64(n.Size),
		Freq:     n.Freq,
	}
}

// ExecDensity is frequency per byte, the sort key spec.md §4.3.5 and
// §4.4 both use for final ordering.
func (c *Chain) ExecDensity() float64 {
	if c.Size == 0 {
		return 0
	}
	return float64(c.Freq) / float64(c.Size)
}

// First and Last return the chain's first and last node indices.
func (c *Chain) First() int { return c.Nodes[0] }
func (c *Chain) Last() int  { return c.Nodes[len(c.Nodes)-1] }

// offsets returns the cumulative byte offset of every node in the
// chain, in chain order, using the CFG's node sizes.
func offsets(nodes []int, cfg *cfgmodel.CFG) map[int]uint64 {
	off := make(map[int]uint64, len(nodes))
	var cur uint64
	for _, n := range nodes {
		off[n] = cur
		cur += uint64(cfg.Nodes[n].Size)
	}
	return off
}
