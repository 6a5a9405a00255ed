package chainbuild

import (
	"testing"

	"propeller/internal/cfgmodel"
	"propeller/internal/options"
)

func node(addr uint64, size uint32, freq uint64) cfgmodel.Node {
	return cfgmodel.Node{Address: addr, Size: size, Freq: freq}
}

func layoutNames(layout []int, names []string) []string {
	out := make([]string, len(layout))
	for i, n := range layout {
		out[i] = names[n]
	}
	return out
}

func assertLayout(t *testing.T, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("layout length = %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("layout = %v, want %v", got, want)
		}
	}
}

// TestBuild_SimpleDiamondHotFallthrough is scenario 1: a diamond where
// the B0->B1->B3 path carries nearly all the weight and B2 is cold by
// comparison, so the optimal layout routes the hot path fallthrough and
// tucks B2 at the end.
func TestBuild_SimpleDiamondHotFallthrough(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 4)
	cfg.AddNode(node(0, 16, 1000))  // B0
	cfg.AddNode(node(16, 16, 1000)) // B1
	cfg.AddNode(node(32, 16, 5))    // B2
	cfg.AddNode(node(48, 16, 1000)) // B3
	cfg.Entry = 0

	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.FallThrough, Weight: 1000})
	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 2, Kind: cfgmodel.Branch, Weight: 5})
	cfg.AddEdge(cfgmodel.Edge{Source: 1, Sink: 3, Kind: cfgmodel.Branch, Weight: 1000})
	cfg.AddEdge(cfgmodel.Edge{Source: 2, Sink: 3, Kind: cfgmodel.FallThrough, Weight: 5})

	res, err := Build(cfg, options.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := []string{"B0", "B1", "B2", "B3"}
	assertLayout(t, layoutNames(res.Layout, names), []string{"B0", "B1", "B3", "B2"})
}

// TestBuild_MutuallyForcedCycleBroken is scenario 2: a 3-node cycle
// where every edge is mutually forced. The algorithm must cut the edge
// whose sink has the smallest address before the remaining forced path
// can be attached as a single chain.
func TestBuild_MutuallyForcedCycleBroken(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 3)
	cfg.AddNode(node(0, 8, 100))  // B0
	cfg.AddNode(node(8, 8, 100))  // B1
	cfg.AddNode(node(16, 8, 100)) // B2
	cfg.Entry = 0

	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.Branch, Weight: 100})
	cfg.AddEdge(cfgmodel.Edge{Source: 1, Sink: 2, Kind: cfgmodel.Branch, Weight: 100})
	cfg.AddEdge(cfgmodel.Edge{Source: 2, Sink: 0, Kind: cfgmodel.Branch, Weight: 50})

	res, err := Build(cfg, options.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := []string{"B0", "B1", "B2"}
	assertLayout(t, layoutNames(res.Layout, names), []string{"B0", "B1", "B2"})
}

// TestBuild_HotColdSeparation is scenario 3: B0 and B2 are joined by a
// mutually-forced hot edge; B1 is cold and unreachable through any
// weighted edge, so it must land after the hot chain even though it sits
// between B0 and B2 in program order.
func TestBuild_HotColdSeparation(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 3)
	cfg.AddNode(node(0, 8, 100)) // B0, hot
	cfg.AddNode(node(8, 8, 0))   // B1, cold
	cfg.AddNode(node(16, 8, 100)) // B2, hot
	cfg.Entry = 0

	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.Branch, Weight: 0})
	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 2, Kind: cfgmodel.Branch, Weight: 100})

	opts := options.Default()
	opts.SeparateHotCold = true
	res, err := Build(cfg, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := []string{"B0", "B1", "B2"}
	assertLayout(t, layoutNames(res.Layout, names), []string{"B0", "B2", "B1"})

	if res.ColdStartsAt != 2 {
		t.Fatalf("ColdStartsAt = %d, want 2", res.ColdStartsAt)
	}
}

// TestBuild_FallthroughAttachmentAfterMergeLoop is scenario 5: two
// forced hot chains joined only by a zero-weight static fallthrough edge
// never earn a positive ExtTSP gain, so the merge loop leaves them apart
// and the closing fallthrough-attachment step must join them.
func TestBuild_FallthroughAttachmentAfterMergeLoop(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 4)
	cfg.AddNode(node(0, 8, 10))  // B0
	cfg.AddNode(node(8, 8, 10))  // B2
	cfg.AddNode(node(16, 8, 10)) // B3
	cfg.AddNode(node(24, 8, 10)) // B4
	cfg.Entry = 0

	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.Branch, Weight: 100})
	cfg.AddEdge(cfgmodel.Edge{Source: 2, Sink: 3, Kind: cfgmodel.Branch, Weight: 100})
	cfg.AddEdge(cfgmodel.Edge{Source: 1, Sink: 2, Kind: cfgmodel.FallThrough, Weight: 0})

	res, err := Build(cfg, options.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := []string{"B0", "B2", "B3", "B4"}
	assertLayout(t, layoutNames(res.Layout, names), []string{"B0", "B2", "B3", "B4"})
}

// TestBuild_LongFunctionSuppressesSplits is scenario 4's end-to-end
// half: a six-block, 384-byte function whose every edge is mutually
// forced, so it becomes one chain before the merge loop and no
// assembly is ever enumerated. Only layout completeness is checked
// here; the split/no-split boundary itself is checked directly by
// TestEnumerate_SplitSuppressedAboveThreshold.
func TestBuild_LongFunctionSuppressesSplits(t *testing.T) {
	const n = 6
	cfg := cfgmodel.NewCFG("f", n)
	for i := 0; i < n; i++ {
		cfg.AddNode(node(uint64(i)*64, 64, uint64(10*(i+1))))
	}
	cfg.Entry = 0
	for i := 0; i < n-1; i++ {
		cfg.AddEdge(cfgmodel.Edge{Source: i, Sink: i + 1, Kind: cfgmodel.Branch, Weight: uint64(50 + i)})
	}

	opts := options.Default()
	opts.ChainSplitThreshold = 128
	res, err := Build(cfg, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Layout) != n {
		t.Fatalf("layout length = %d, want %d", len(res.Layout), n)
	}
	seen := make(map[int]bool, n)
	var total uint64
	for _, idx := range res.Layout {
		if seen[idx] {
			t.Fatalf("duplicate node %d in layout %v", idx, res.Layout)
		}
		seen[idx] = true
		total += uint64(cfg.Nodes[idx].Size)
	}
	if total != cfg.TotalSize() {
		t.Fatalf("layout total size = %d, want %d", total, cfg.TotalSize())
	}
}

// TestEnumerate_SplitSuppressedAboveThreshold checks the split/no-split
// boundary directly: when x.Size exceeds the threshold, enumerate must
// only return candidates reachable via the whole-chain orders.
func TestEnumerate_SplitSuppressedAboveThreshold(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 3)
	cfg.AddNode(node(0, 100, 10))
	cfg.AddNode(node(100, 100, 10))
	cfg.AddNode(node(200, 8, 10))
	cfg.Entry = 0
	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.Branch, Weight: 10})
	cfg.AddEdge(cfgmodel.Edge{Source: 1, Sink: 2, Kind: cfgmodel.Branch, Weight: 10})

	opts := options.Default()
	opts.ChainSplitThreshold = 128

	x := &Chain{Delegate: 0, Nodes: []int{0, 1}, Size: 200}
	y := &Chain{Delegate: 2, Nodes: []int{2}, Size: 8}

	best := enumerate(x, y, cfg, opts, nil)
	if best == nil {
		t.Fatal("enumerate returned nil")
	}
	if best.Order != orderWholeXY && best.Order != orderWholeYX {
		t.Fatalf("expected a whole-chain order above threshold, got order %d", best.Order)
	}
}

// TestBuild_SplitFuncsSuppressesBoundary reuses the hot/cold separation
// scenario but with split_funcs off: merging must still keep B1 out of
// the hot chain, but ColdStartsAt must report no boundary at all since
// split_funcs governs whether a per-function cold partition is emitted,
// independent of separate_hot_cold.
func TestBuild_SplitFuncsSuppressesBoundary(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 3)
	cfg.AddNode(node(0, 8, 100))  // B0, hot
	cfg.AddNode(node(8, 8, 0))    // B1, cold
	cfg.AddNode(node(16, 8, 100)) // B2, hot
	cfg.Entry = 0

	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.Branch, Weight: 0})
	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 2, Kind: cfgmodel.Branch, Weight: 100})

	opts := options.Default()
	opts.SeparateHotCold = true
	opts.SplitFuncs = false
	res, err := Build(cfg, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := []string{"B0", "B1", "B2"}
	assertLayout(t, layoutNames(res.Layout, names), []string{"B0", "B2", "B1"})

	if res.ColdStartsAt != len(res.Layout) {
		t.Fatalf("ColdStartsAt = %d, want %d (no boundary reported)", res.ColdStartsAt, len(res.Layout))
	}
	if res.AllCold {
		t.Fatal("AllCold = true, want false: function has hot blocks")
	}
}

func TestBuild_AllColdFunctionReportsAllCold(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 2)
	cfg.AddNode(node(0, 8, 0))
	cfg.AddNode(node(8, 8, 0))
	cfg.Entry = 0
	cfg.AddEdge(cfgmodel.Edge{Source: 0, Sink: 1, Kind: cfgmodel.FallThrough, Weight: 0})

	opts := options.Default()
	res, err := Build(cfg, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.AllCold {
		t.Fatal("AllCold = false, want true: every node has zero frequency")
	}
}

func TestBuild_SingleBlockFunction(t *testing.T) {
	cfg := cfgmodel.NewCFG("f", 1)
	cfg.AddNode(node(0, 16, 0))
	cfg.Entry = 0

	res, err := Build(cfg, options.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Layout) != 1 || res.Layout[0] != 0 {
		t.Fatalf("layout = %v, want [0]", res.Layout)
	}
}
