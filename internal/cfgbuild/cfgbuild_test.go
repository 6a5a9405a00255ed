package cfgbuild

import (
	"testing"

	"propeller/internal/binmeta"
	"propeller/internal/cfgmodel"
)

func TestBuild_Diamond(t *testing.T) {
	// f: B0 --fallthrough--> B1 --branch--> B3
	//     \--branch--> B2 --fallthrough--> B3
	fn := binmeta.FunctionRecord{
		Name:         "f",
		EntryAddress: 0x1000,
		Blocks: []binmeta.BlockRecord{
			{OffsetFromEntry: 0, Size: 16, Term: binmeta.TermConditionalBranch, BranchTarget: 0x1020},
			{OffsetFromEntry: 16, Size: 16, Term: binmeta.TermUnconditionalBranch, BranchTarget: 0x1030},
			{OffsetFromEntry: 32, Size: 16, Term: binmeta.TermFallthrough},
			{OffsetFromEntry: 48, Size: 16, Term: binmeta.TermReturn, IsReturn: true},
		},
	}

	cfg, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cfg.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(cfg.Nodes))
	}
	if cfg.Entry != 0 {
		t.Fatalf("expected entry node 0, got %d", cfg.Entry)
	}

	want := map[[2]int]cfgmodel.EdgeKind{
		{0, 1}: cfgmodel.FallThrough,
		{0, 2}: cfgmodel.Branch,
		{1, 3}: cfgmodel.Branch,
		{2, 3}: cfgmodel.FallThrough,
	}
	if len(cfg.Edges) != len(want) {
		t.Fatalf("expected %d edges, got %d: %+v", len(want), len(cfg.Edges), cfg.Edges)
	}
	for _, e := range cfg.Edges {
		kind, ok := want[[2]int{e.Source, e.Sink}]
		if !ok {
			t.Errorf("unexpected edge %d->%d", e.Source, e.Sink)
			continue
		}
		if kind != e.Kind {
			t.Errorf("edge %d->%d: want kind %v, got %v", e.Source, e.Sink, kind, e.Kind)
		}
	}
}

func TestBuild_SingleBlock(t *testing.T) {
	fn := binmeta.FunctionRecord{
		Name:         "trivial",
		EntryAddress: 0x2000,
		Blocks: []binmeta.BlockRecord{
			{OffsetFromEntry: 0, Size: 4, Term: binmeta.TermReturn, IsReturn: true},
		},
	}
	cfg, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cfg.Nodes) != 1 || len(cfg.Edges) != 0 {
		t.Fatalf("expected trivial single-node CFG, got %d nodes %d edges", len(cfg.Nodes), len(cfg.Edges))
	}
}

func TestBuild_EmptyBlocksIsStructuralError(t *testing.T) {
	fn := binmeta.FunctionRecord{Name: "empty", EntryAddress: 0x3000}
	_, err := Build(fn)
	if err == nil {
		t.Fatal("expected error for function with no blocks")
	}
}

func TestBuild_UnconditionalBranchOutOfFunctionIsTerminal(t *testing.T) {
	fn := binmeta.FunctionRecord{
		Name:         "tailcall",
		EntryAddress: 0x4000,
		Blocks: []binmeta.BlockRecord{
			{OffsetFromEntry: 0, Size: 8, Term: binmeta.TermUnconditionalBranch, BranchTarget: 0x9000},
		},
	}
	cfg, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cfg.Edges) != 0 {
		t.Fatalf("expected no intra-function edges, got %+v", cfg.Edges)
	}
}
