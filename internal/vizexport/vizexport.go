// Package vizexport renders the per-function chain graph and the global
// call/cluster graph to DOT for debugging, wired behind the layout
// subcommand's -dot flag. It is pure presentation over S3/S4 output and
// makes no layout decisions; grounded on the teacher's
// internal/callgraph package (lattice.Graph/CFGGraph construction) and
// cmd/unflutter/disasm.go's render.DOT/render.DOTCFG call sites.
package vizexport

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"propeller/internal/callgraph"
	"propeller/internal/callorder"
	"propeller/internal/cfgmodel"
	"propeller/internal/chainbuild"
)

// WriteChainDOT renders one function's post-layout chain graph (nodes in
// final layout order, edges from the CFG restricted to that function) to
// a DOT file at dir/<funcName>.dot.
func WriteChainDOT(dir string, cfg *cfgmodel.CFG, result *chainbuild.Result) error {
	lcfg := &lattice.FuncCFG{Name: cfg.FuncName}
	pos := make(map[int]int, len(result.Layout))
	for i, n := range result.Layout {
		pos[n] = i
	}
	for _, n := range result.Layout {
		node := &cfg.Nodes[n]
		bb := &lattice.BasicBlock{ID: pos[n], Start: int(node.Address), End: int(node.Address) + int(node.Size)}
		for _, e := range cfg.OutEdges(n) {
			bb.Succs = append(bb.Succs, lattice.Successor{BlockID: pos[e.Sink]})
		}
		lcfg.Blocks = append(lcfg.Blocks, bb)
	}

	g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}
	dot := render.DOTCFG(g, cfg.FuncName)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, cfg.FuncName+".dot")
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteCallGraphDOT renders the whole-program call/cluster graph: one
// node per S4 cluster (labeled by its first function, the cluster's
// representative) and one edge per cross-cluster call weight surviving
// in cg.Links.
func WriteCallGraphDOT(path string, cg *callgraph.CallGraph, clusters []callorder.Cluster) error {
	g := &lattice.Graph{}
	clusterOf := make(map[string]string, len(clusters))
	for _, c := range clusters {
		label := c.Points[0].FuncNames()[0]
		g.Nodes = append(g.Nodes, label)
		for _, p := range c.Points {
			for _, name := range p.FuncNames() {
				clusterOf[name] = label
			}
		}
	}
	seen := make(map[[2]string]bool)
	for _, l := range cg.Links {
		from, to := clusterOf[firstName(l.From)], clusterOf[firstName(l.To)]
		if from == "" || to == "" || from == to {
			continue
		}
		key := [2]string{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true
		g.Edges = append(g.Edges, lattice.Edge{Caller: from, Callee: to})
	}
	g.Dedup()

	dot := render.DOT(g, "propeller-clusters")
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func firstName(p *callgraph.CGPoint) string {
	names := p.FuncNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
