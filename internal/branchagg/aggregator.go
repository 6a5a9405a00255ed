// Package branchagg implements S2, the Branch Aggregator: it streams
// LBR records against the frozen CFGs from S1 and populates edge
// weights and node frequencies, per spec.md §4.2.
package branchagg

import (
	"propeller/internal/binmeta"
	"propeller/internal/branchsample"
	"propeller/internal/cfgmodel"
)

// Aggregator holds the frozen per-function CFGs and the address
// resolver used to map LBR addresses to (function, block) pairs.
type Aggregator struct {
	cfgs     map[string]*cfgmodel.CFG
	resolver *Resolver
	Stats    Stats
}

// New builds an Aggregator over the given frozen CFGs.
func New(cfgs map[string]*cfgmodel.CFG, funcIdx *binmeta.AddrIndex) *Aggregator {
	const lruCacheSize = 4096 // spec.md §4.2: "a few thousand entries"
	return &Aggregator{
		cfgs:     cfgs,
		resolver: NewResolver(cfgs, funcIdx, lruCacheSize),
	}
}

// AddRecords processes a batch of LBR records per spec.md §4.2's
// algorithm: each record's samples are walked oldest-to-newest (the
// wire order is newest-first), each sample is classified and weighted,
// and a fallthrough path is credited between consecutive samples whose
// function matches.
func (a *Aggregator) AddRecords(records []branchsample.Record) {
	for _, rec := range records {
		a.addRecord(rec)
	}
}

// AddFrequencies applies the frequencies_proto path: pre-aggregated
// (from, to, weight) tuples with no fallthrough reconstruction, per
// PLOProfile.cpp's handling of that profile kind (SPEC_FULL.md
// "supplemented features").
func (a *Aggregator) AddFrequencies(samples []branchsample.FrequencySample) {
	for _, s := range samples {
		a.recordTransition(s.From, s.To, s.Weight)
	}
}

func (a *Aggregator) addRecord(rec branchsample.Record) {
	var prev Resolved
	havePrev := false

	for i := len(rec.Entries) - 1; i >= 0; i-- {
		e := rec.Entries[i]

		fromRes, fromOk := a.resolver.Resolve(e.From)
		toRes, toOk := a.resolver.Resolve(e.To)

		// Counts the sample as unmarked if either endpoint is unknown.
		a.recordTransition(e.From, e.To, 1)

		// Fallthrough credit only needs this sample's From and the
		// previous sample's To, so an unknown other endpoint does not
		// cancel it.
		if havePrev && fromOk && prev.Func == fromRes.Func {
			a.creditFallthrough(fromRes.Func, prev.Node, fromRes.Node)
		}

		prev, havePrev = toRes, toOk
	}
}

// recordTransition resolves and weights a single (from, to) transition,
// classifying it per spec.md §4.2 steps 2–3.
func (a *Aggregator) recordTransition(from, to uint64, weight uint64) {
	fromRes, fromOk := a.resolver.Resolve(from)
	toRes, toOk := a.resolver.Resolve(to)
	if !fromOk || !toOk {
		a.Stats.UnmarkedInter++
		return
	}

	if fromRes.Func == toRes.Func {
		a.creditIntraEdge(fromRes.Func, fromRes.Node, toRes.Node, weight)
		a.Stats.IntraMapped++
		return
	}

	a.creditInterEdge(fromRes, toRes, weight)
	a.Stats.InterMapped++
}

// creditIntraEdge adds weight to the edge from src to sink within cfg,
// creating an intra-dynamic edge if no static edge exists for this pair
// (spec.md §4.2 step 2), and credits the sink's frequency.
func (a *Aggregator) creditIntraEdge(funcName string, src, sink int, weight uint64) {
	cfg := a.cfgs[funcName]
	if cfg == nil {
		return
	}
	idx := cfg.FindEdge(src, sink)
	if idx < 0 {
		idx = cfg.AddEdge(cfgmodel.Edge{Source: src, Sink: sink, Kind: cfgmodel.DynamicIntra})
	}
	cfg.Edges[idx].Weight += weight
	cfg.Nodes[sink].Freq += weight
}

// creditInterEdge classifies an inter-function transition as a call or
// a return (spec.md §4.2 step 3) and accumulates its weight on the
// appropriate CFG's inter-function edge list.
func (a *Aggregator) creditInterEdge(from, to Resolved, weight uint64) {
	fromCFG := a.cfgs[from.Func]
	toCFG := a.cfgs[to.Func]
	if fromCFG == nil || toCFG == nil {
		return
	}

	if fromCFG.Nodes[from.Node].Meta.IsReturn {
		for i := range toCFG.InReturns {
			r := &toCFG.InReturns[i]
			if r.FromFunc == from.Func && r.ToNode == to.Node {
				r.Weight += weight
				return
			}
		}
		toCFG.InReturns = append(toCFG.InReturns, cfgmodel.ReturnEdge{
			FromFunc: from.Func, ToNode: to.Node, Weight: weight,
		})
		return
	}

	for i := range fromCFG.OutCalls {
		c := &fromCFG.OutCalls[i]
		if c.ToFunc == to.Func && c.ToNode == to.Node {
			c.Weight += weight
			return
		}
	}
	fromCFG.OutCalls = append(fromCFG.OutCalls, cfgmodel.CallEdge{
		FromNode: from.Node, ToFunc: to.Func, ToNode: to.Node, Weight: weight,
	})
}

// creditFallthrough walks the unique straight-line path from the end of
// prevToNode to fromNode (inclusive of neither; the edge into the first
// step and out of the last step are credited along with every
// intermediate edge) and credits every traversed edge and intermediate
// node, per spec.md §4.2 step 4. If the path does not exist — the two
// blocks are not connected by an unbroken run of fallthrough/taken-here
// adjacency in original layout order — the record is counted as
// unmarked instead.
func (a *Aggregator) creditFallthrough(funcName string, prevToNode, fromNode int) {
	cfg := a.cfgs[funcName]
	if cfg == nil {
		a.Stats.UnmarkedIntra++
		return
	}
	if prevToNode == fromNode {
		return // already adjacent, nothing to credit
	}
	if prevToNode > fromNode {
		a.Stats.UnmarkedIntra++
		return
	}

	// Verify and credit every step prevToNode -> prevToNode+1 -> ... -> fromNode.
	for n := prevToNode; n < fromNode; n++ {
		idx := cfg.FindEdge(n, n+1)
		if idx < 0 {
			a.Stats.UnmarkedIntra++
			return
		}
	}
	for n := prevToNode; n < fromNode; n++ {
		idx := cfg.FindEdge(n, n+1)
		cfg.Edges[idx].Weight++
		if n+1 != fromNode {
			cfg.Nodes[n+1].Freq++
		}
	}
}
