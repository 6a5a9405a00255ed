package branchagg

import (
	"testing"

	"propeller/internal/binmeta"
	"propeller/internal/branchsample"
	"propeller/internal/cfgbuild"
	"propeller/internal/cfgmodel"
)

// buildChain constructs a 4-block straight-line function B0,B1,B2,B3 at
// addresses 0x1000, 0x1010, 0x1020, 0x1030 (16 bytes each), every block
// falling through to the next except the last, which returns.
func buildChain(t *testing.T) (*cfgmodel.CFG, *binmeta.AddrIndex) {
	t.Helper()
	fn := binmeta.FunctionRecord{
		Name:         "f",
		EntryAddress: 0x1000,
		Blocks: []binmeta.BlockRecord{
			{OffsetFromEntry: 0x00, Size: 16, Term: binmeta.TermFallthrough},
			{OffsetFromEntry: 0x10, Size: 16, Term: binmeta.TermFallthrough},
			{OffsetFromEntry: 0x20, Size: 16, Term: binmeta.TermFallthrough},
			{OffsetFromEntry: 0x30, Size: 16, Term: binmeta.TermReturn, IsReturn: true},
		},
	}
	cfg, err := cfgbuild.Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	idx := binmeta.BuildAddrIndex([]binmeta.FunctionRecord{fn})
	return cfg, idx
}

func TestAggregator_FallthroughCredit(t *testing.T) {
	cfg, idx := buildChain(t)
	cfgs := map[string]*cfgmodel.CFG{"f": cfg}
	agg := New(cfgs, idx)

	// Oldest (A,B) = (0x0ff0 external, 0x1000=B0), newest (C,D) = (0x1030=B3, 0x2000 external).
	// B0 and B3 share the function; the straight-line path is B0->B1->B2->B3.
	rec := branchsample.Record{
		Entries: []branchsample.Entry{
			{From: 0x1030, To: 0x2000}, // newest, index 0
			{From: 0x0ff0, To: 0x1000}, // oldest, index 1
		},
	}
	agg.AddRecords([]branchsample.Record{rec})

	wantWeights := map[[2]int]uint64{{0, 1}: 1, {1, 2}: 1, {2, 3}: 1}
	for pair, want := range wantWeights {
		idx := cfg.FindEdge(pair[0], pair[1])
		if idx < 0 {
			t.Fatalf("missing edge %v", pair)
		}
		if got := cfg.Edges[idx].Weight; got != want {
			t.Errorf("edge %v weight = %d, want %d", pair, got, want)
		}
	}
	if cfg.Nodes[1].Freq != 1 || cfg.Nodes[2].Freq != 1 {
		t.Errorf("intermediate node freq = %d,%d want 1,1", cfg.Nodes[1].Freq, cfg.Nodes[2].Freq)
	}
}

func TestAggregator_Additivity(t *testing.T) {
	recA := branchsample.Record{Entries: []branchsample.Entry{{From: 0x1000, To: 0x1010}}}
	recB := branchsample.Record{Entries: []branchsample.Entry{{From: 0x1010, To: 0x1020}}}

	cfgA, idxA := buildChain(t)
	aggA := New(map[string]*cfgmodel.CFG{"f": cfgA}, idxA)
	aggA.AddRecords([]branchsample.Record{recA})

	cfgB, idxB := buildChain(t)
	aggB := New(map[string]*cfgmodel.CFG{"f": cfgB}, idxB)
	aggB.AddRecords([]branchsample.Record{recB})

	cfgU, idxU := buildChain(t)
	aggU := New(map[string]*cfgmodel.CFG{"f": cfgU}, idxU)
	aggU.AddRecords([]branchsample.Record{recA, recB})

	for i := range cfgU.Edges {
		want := cfgA.Edges[i].Weight + cfgB.Edges[i].Weight
		if cfgU.Edges[i].Weight != want {
			t.Errorf("edge %d: union weight %d != sum of separate runs %d", i, cfgU.Edges[i].Weight, want)
		}
	}
}

func TestAggregator_IdempotentDoubling(t *testing.T) {
	cfg, idx := buildChain(t)
	agg := New(map[string]*cfgmodel.CFG{"f": cfg}, idx)
	rec := branchsample.Record{Entries: []branchsample.Entry{{From: 0x1000, To: 0x1010}}}
	agg.AddRecords([]branchsample.Record{rec})
	w1 := cfg.Edges[cfg.FindEdge(0, 1)].Weight
	agg.AddRecords([]branchsample.Record{rec})
	w2 := cfg.Edges[cfg.FindEdge(0, 1)].Weight
	if w2 != 2*w1 {
		t.Errorf("adding the same record twice should double the weight: got %d want %d", w2, 2*w1)
	}
}
