package chainbuild

import (
	"propeller/internal/cfgmodel"
	"propeller/internal/options"
)

// edgeScore evaluates spec.md §4.3.1's ExtTSP contribution of a single
// edge given its weight and the signed byte distance from the end of
// its source to the start of its sink in some placement.
func edgeScore(weight uint64, d int64, opts options.Options) float64 {
	if weight == 0 {
		return 0
	}
	w := float64(weight)
	switch {
	case d == 0:
		return w * opts.FallthroughWeight
	case d > 0 && float64(d) < opts.ForwardDistance:
		return w * opts.ForwardWeight * (1 - float64(d)/opts.ForwardDistance)
	case d < 0 && float64(-d) < opts.BackwardDistance:
		return w * opts.BackwardWeight * (1 - float64(-d)/opts.BackwardDistance)
	default:
		return 0
	}
}

// scoreOverNodeSet sums edgeScore over every CFG edge whose source and
// sink both appear in placement, using placement's offsets. This is
// spec.md §4.3.1's chain score generalized to an arbitrary placement of
// an arbitrary node set — used both for a chain's own score and for a
// candidate assembly's score (placement there spans two chains'
// combined nodes).
func scoreOverNodeSet(cfg *cfgmodel.CFG, placement map[int]uint64, opts options.Options) float64 {
	var total float64
	for i := range cfg.Edges {
		e := &cfg.Edges[i]
		if e.Weight == 0 {
			continue
		}
		srcOff, ok1 := placement[e.Source]
		sinkOff, ok2 := placement[e.Sink]
		if !ok1 || !ok2 {
			continue
		}
		d := int64(sinkOff) - int64(srcOff) - int64(cfg.Nodes[e.Source].Size)
		total += edgeScore(e.Weight, d, opts)
	}
	return total
}

// chainScore computes a chain's own ExtTSP score from its current node
// order.
func chainScore(c *Chain, cfg *cfgmodel.CFG, opts options.Options) float64 {
	return scoreOverNodeSet(cfg, offsets(c.Nodes, cfg), opts)
}
