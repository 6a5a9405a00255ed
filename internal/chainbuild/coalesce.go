package chainbuild

import "sort"

// attachFallthroughs implements spec.md §4.3.4's closing step: after the
// merge loop is exhausted (no positive-gain assembly remains), any chain
// whose last node falls straight through to another chain's first node
// in the original program order is still appended to it even at zero or
// negative ExtTSP gain, so that an unprofiled fallthrough edge is never
// needlessly split. This only fires for chains that are otherwise
// unconstrained by §4.3.6's hot/cold rule.
func (b *builder) attachFallthroughs() {
	for {
		merged := false
		for key, x := range b.chains {
			last := x.Last()
			for ei := range b.cfg.Edges {
				e := &b.cfg.Edges[ei]
				if e.Source != last || e.Kind.String() != "fallthrough" {
					continue
				}
				yKey, ok := b.nodeChain[e.Sink]
				if !ok {
					continue
				}
				y, ok := b.chains[yKey]
				if !ok || yKey == key || y.First() != e.Sink {
					continue
				}
				if b.opts.SeparateHotCold && chainIsHot(x, b.cfg) != chainIsHot(y, b.cfg) {
					continue
				}
				b.mergeInto(key, yKey, concat(x.Nodes, y.Nodes))
				merged = true
				break
			}
			if merged {
				break
			}
		}
		if !merged {
			return
		}
	}
}

// coalesce implements spec.md §4.3.5: order the surviving chains by
// descending execution density, with the chain containing the function
// entry forced first and (when hot/cold separation is enabled) cold
// chains forced last, and concatenate their node sequences.
func (b *builder) coalesce() []int {
	keys := make([]int, 0, len(b.chains))
	for k := range b.chains {
		keys = append(keys, k)
	}

	entryKey := b.nodeChain[b.cfg.Entry]

	isCold := func(k int) bool {
		if !b.opts.SeparateHotCold {
			return false
		}
		return b.chains[k].Freq == 0
	}

	sort.SliceStable(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki == entryKey {
			return true
		}
		if kj == entryKey {
			return false
		}
		ci, cj := isCold(ki), isCold(kj)
		if ci != cj {
			return !ci
		}
		di, dj := b.chains[ki].ExecDensity(), b.chains[kj].ExecDensity()
		if di != dj {
			return di > dj
		}
		return b.cfg.Nodes[ki].Address < b.cfg.Nodes[kj].Address
	})

	layout := make([]int, 0, len(b.cfg.Nodes))
	for _, k := range keys {
		layout = append(layout, b.chains[k].Nodes...)
	}
	return layout
}
