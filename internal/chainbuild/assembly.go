package chainbuild

import (
	"propeller/internal/cfgmodel"
	"propeller/internal/options"
)

// order names the merge order of a candidate assembly, per spec.md
// §4.3.2: for a split chain X (prefix X1, suffix X2) and an unsplit
// chain Y, orderWhole{XY,YX} are the two orders considered when X is
// not split at all (chain_split_threshold exceeded, or the candidate
// position leaves one side empty); the other four are the splits.
type order int

const (
	orderWholeXY order = iota // X . Y   (no split)
	orderWholeYX              // Y . X   (no split)
	orderX2X1Y                // X2 . X1 . Y
	orderX1YX2                // X1 . Y . X2
	orderX2YX1                // X2 . Y . X1
	orderYX2X1                // Y . X2 . X1
)

// assembly is a candidate merge of SplitKey (X) and UnsplitKey (Y),
// spec.md §3's Node-Chain Assembly. SplitPos is the index into X.Nodes
// where the split falls (0 and len(X.Nodes) both mean "no split" and
// are only produced via orderWholeXY/orderWholeYX).
type assembly struct {
	SplitKey, UnsplitKey int
	SplitPos             int
	Order                order
	Nodes                []int // the resulting node order if applied
	Score                float64
	Gain                 float64
}

// buildAssembly materializes the node order implied by (x, y, pos, o).
func buildAssembly(x, y *Chain, pos int, o order) assembly {
	x1 := x.Nodes[:pos]
	x2 := x.Nodes[pos:]

	var nodes []int
	switch o {
	case orderWholeXY:
		nodes = concat(x.Nodes, y.Nodes)
	case orderWholeYX:
		nodes = concat(y.Nodes, x.Nodes)
	case orderX2X1Y:
		nodes = concat(x2, x1, y.Nodes)
	case orderX1YX2:
		nodes = concat(x1, y.Nodes, x2)
	case orderX2YX1:
		nodes = concat(x2, y.Nodes, x1)
	case orderYX2X1:
		nodes = concat(y.Nodes, x2, x1)
	}
	return assembly{SplitKey: x.Delegate, UnsplitKey: y.Delegate, SplitPos: pos, Order: o, Nodes: nodes}
}

func concat(parts ...[]int) []int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]int, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// legalSplitPositions returns the internal split positions (1..N-1) of
// x that do not separate two nodes joined by a mutually-forced edge.
func legalSplitPositions(x *Chain, forcedNext map[int]int) []int {
	var out []int
	for pos := 1; pos < len(x.Nodes); pos++ {
		prev, next := x.Nodes[pos-1], x.Nodes[pos]
		if fn, ok := forcedNext[prev]; ok && fn == next {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// enumerate produces every candidate assembly for (x as split chain, y
// as unsplit chain) per spec.md §4.3.3, scores each, and returns the
// single best one (by score, ties broken by first-seen — the caller
// decides whether to keep it based on gain).
func enumerate(x, y *Chain, cfg *cfgmodel.CFG, opts options.Options, forcedNext map[int]int) *assembly {
	var best *assembly
	consider := func(a assembly) {
		if opts.FunctionEntryFirst && cfg.Entry >= 0 {
			if !entryIsFirst(a.Nodes, cfg.Entry) {
				return
			}
		}
		placement := offsets(a.Nodes, cfg)
		a.Score = scoreOverNodeSet(cfg, placement, opts)
		if best == nil || a.Score > best.Score {
			ac := a
			best = &ac
		}
	}

	consider(buildAssembly(x, y, len(x.Nodes), orderWholeXY))
	consider(buildAssembly(x, y, len(x.Nodes), orderWholeYX))

	if x.Size <= uint64(opts.ChainSplitThreshold) {
		for _, pos := range legalSplitPositions(x, forcedNext) {
			consider(buildAssembly(x, y, pos, orderX2X1Y))
			consider(buildAssembly(x, y, pos, orderX1YX2))
			consider(buildAssembly(x, y, pos, orderX2YX1))
			consider(buildAssembly(x, y, pos, orderYX2X1))
		}
	}

	return best
}

// entryIsFirst reports whether cfg's entry node, if present in nodes at
// all, is the first element.
func entryIsFirst(nodes []int, entry int) bool {
	for i, n := range nodes {
		if n == entry {
			return i == 0
		}
	}
	return true // entry not part of this assembly; no constraint
}
