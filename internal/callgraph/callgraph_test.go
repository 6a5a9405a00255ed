package callgraph

import (
	"testing"

	"propeller/internal/cfgmodel"
	"propeller/internal/chainbuild"
)

func cfgWithCall(funcName string, freq uint64, size uint32, calls ...cfgmodel.CallEdge) *cfgmodel.CFG {
	c := cfgmodel.NewCFG(funcName, 1)
	c.Entry = c.AddNode(cfgmodel.Node{Size: size, Freq: freq})
	c.OutCalls = calls
	return c
}

func TestNew_AggregatesWeightAcrossCallSites(t *testing.T) {
	cfgs := map[string]*cfgmodel.CFG{
		"caller": cfgWithCall("caller", 100, 16,
			cfgmodel.CallEdge{FromNode: 0, ToFunc: "callee", Weight: 30},
			cfgmodel.CallEdge{FromNode: 0, ToFunc: "callee", Weight: 70},
		),
		"callee": cfgWithCall("callee", 100, 8),
	}
	results := []*chainbuild.Result{
		{FuncName: "caller", Layout: []int{0}, ColdStartsAt: 1},
		{FuncName: "callee", Layout: []int{0}, ColdStartsAt: 1},
	}

	cg, unresolved := New(results, cfgs)
	if unresolved != 0 {
		t.Fatalf("expected 0 unresolved calls, got %d", unresolved)
	}
	if len(cg.Links) != 1 {
		t.Fatalf("expected 1 aggregated link, got %d", len(cg.Links))
	}
	l := cg.Links[0]
	if l.Weight != 100 {
		t.Fatalf("expected aggregated weight 100, got %d", l.Weight)
	}
	if funcNames(l.From) != "caller" || funcNames(l.To) != "callee" {
		t.Fatalf("link endpoints wrong: %s -> %s", funcNames(l.From), funcNames(l.To))
	}
}

func TestNew_DropsUnresolvedAndUnknownCallees(t *testing.T) {
	cfgs := map[string]*cfgmodel.CFG{
		"caller": cfgWithCall("caller", 50, 16,
			cfgmodel.CallEdge{FromNode: 0, Weight: 10, Unresolved: true},
			cfgmodel.CallEdge{FromNode: 0, ToFunc: "missing", Weight: 5},
		),
	}
	results := []*chainbuild.Result{
		{FuncName: "caller", Layout: []int{0}, ColdStartsAt: 1},
	}

	cg, unresolved := New(results, cfgs)
	if unresolved != 2 {
		t.Fatalf("expected 2 unresolved calls, got %d", unresolved)
	}
	if len(cg.Links) != 0 {
		t.Fatalf("expected no links, got %d", len(cg.Links))
	}
}

func TestNew_DropsSelfLoops(t *testing.T) {
	cfgs := map[string]*cfgmodel.CFG{
		"recursive": cfgWithCall("recursive", 10, 16,
			cfgmodel.CallEdge{FromNode: 0, ToFunc: "recursive", Weight: 40},
		),
	}
	results := []*chainbuild.Result{
		{FuncName: "recursive", Layout: []int{0}, ColdStartsAt: 1},
	}

	cg, unresolved := New(results, cfgs)
	if unresolved != 0 {
		t.Fatalf("expected 0 unresolved (self-loop is resolved, just dropped), got %d", unresolved)
	}
	if len(cg.Links) != 0 {
		t.Fatalf("expected self-loop to be dropped, got %d links", len(cg.Links))
	}
}

func TestCGPoint_ExecDensityAndIsCold(t *testing.T) {
	cfgs := map[string]*cfgmodel.CFG{
		"hot":  cfgWithCall("hot", 200, 20),
		"cold": cfgWithCall("cold", 0, 10),
	}
	results := []*chainbuild.Result{
		{FuncName: "hot", Layout: []int{0}, ColdStartsAt: 1},
		{FuncName: "cold", Layout: []int{0}, ColdStartsAt: 0},
	}

	cg, _ := New(results, cfgs)
	hot, cold := cg.byFunc["hot"], cg.byFunc["cold"]

	if hot.IsCold() {
		t.Fatalf("hot point reported cold")
	}
	if !cold.IsCold() {
		t.Fatalf("cold point reported hot")
	}
	if got, want := hot.ExecDensity(), float64(200)/float64(20); got != want {
		t.Fatalf("ExecDensity: got %v want %v", got, want)
	}
	if hot.Freq() != 200 || hot.Size() != 20 {
		t.Fatalf("Freq/Size accessors wrong: freq=%d size=%d", hot.Freq(), hot.Size())
	}
}
