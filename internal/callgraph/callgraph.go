// Package callgraph builds the whole-program call graph that feeds S4.
// A CGPoint holds one function's chain-build result; a CGLink is an
// aggregated, directed weight between two points. The shape follows
// PLOFuncOrdering.h: a point holds a *list* of results rather than a
// single function name. New gives every point exactly one result, and
// S4 (callorder) groups points into its own clusters without modifying
// the points themselves.
package callgraph

import (
	"sort"

	"propeller/internal/cfgmodel"
	"propeller/internal/chainbuild"
)

// CGPoint is one node of the call graph: a single function's
// chain-build result as created by New.
type CGPoint struct {
	Results []*chainbuild.Result
	Links   []*CGLink

	freq uint64
	size uint64
}

// CGLink is a directed, weighted edge between two points.
type CGLink struct {
	From, To *CGPoint
	Weight   uint64
}

// CallGraph owns every point and link created for one program.
type CallGraph struct {
	Points []*CGPoint
	Links  []*CGLink

	byFunc map[string]*CGPoint
}

// New builds the initial call graph: one point per function result, and
// one aggregated link per (caller, callee) pair with weight summed
// across every call site, resolved against each CFG's OutCalls. Calls
// that never resolved to a known function (Unresolved, or naming a
// function without a result) are dropped and counted; the count is the
// second return value, which the pipeline records as
// Stats.CallGraphUnresolvedEdges.
func New(results []*chainbuild.Result, cfgs map[string]*cfgmodel.CFG) (*CallGraph, uint64) {
	cg := &CallGraph{byFunc: make(map[string]*CGPoint, len(results))}

	for _, r := range results {
		p := &CGPoint{Results: []*chainbuild.Result{r}}
		cfg := cfgs[r.FuncName]
		if cfg != nil {
			p.size = cfg.TotalSize()
			for i := range cfg.Nodes {
				p.freq += cfg.Nodes[i].Freq
			}
		}
		cg.Points = append(cg.Points, p)
		cg.byFunc[r.FuncName] = p
	}

	type key struct{ from, to string }
	weights := make(map[key]uint64)
	var unresolved uint64
	for _, r := range results {
		cfg := cfgs[r.FuncName]
		if cfg == nil {
			continue
		}
		for _, ce := range cfg.OutCalls {
			if ce.Unresolved {
				unresolved++
				continue
			}
			if _, ok := cg.byFunc[ce.ToFunc]; !ok {
				unresolved++
				continue
			}
			weights[key{r.FuncName, ce.ToFunc}] += ce.Weight
		}
	}

	for k, w := range weights {
		if w == 0 || k.from == k.to {
			continue
		}
		from, to := cg.byFunc[k.from], cg.byFunc[k.to]
		link := &CGLink{From: from, To: to, Weight: w}
		cg.Links = append(cg.Links, link)
		from.Links = append(from.Links, link)
		to.Links = append(to.Links, link)
	}

	sort.Slice(cg.Links, func(i, j int) bool {
		if cg.Links[i].Weight != cg.Links[j].Weight {
			return cg.Links[i].Weight > cg.Links[j].Weight
		}
		return funcNames(cg.Links[i].From) < funcNames(cg.Links[j].From)
	})

	return cg, unresolved
}

func funcNames(p *CGPoint) string {
	if len(p.Results) == 0 {
		return ""
	}
	return p.Results[0].FuncName
}

// ExecDensity is a point's aggregated frequency per byte.
func (p *CGPoint) ExecDensity() float64 {
	if p.size == 0 {
		return 0
	}
	return float64(p.freq) / float64(p.size)
}

// IsCold reports whether the point carries zero execution frequency.
func (p *CGPoint) IsCold() bool { return p.freq == 0 }

// Freq and Size expose the point's aggregated counters to callorder,
// which tracks its own cluster-level totals as points merge.
func (p *CGPoint) Freq() uint64 { return p.freq }
func (p *CGPoint) Size() uint64 { return p.size }

// FuncNames returns the ordered function names this point represents.
func (p *CGPoint) FuncNames() []string {
	names := make([]string, len(p.Results))
	for i, r := range p.Results {
		names[i] = r.FuncName
	}
	return names
}
