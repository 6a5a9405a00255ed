package chainbuild

import (
	"propeller/internal/cfgmodel"
	"propeller/internal/options"
	"propeller/internal/perror"
)

// builder holds the per-function mutable state of the merge loop:
// chains keyed by stable delegate node, each node's current chain and
// offset, the candidate adjacency sets, and the priority queue.
type builder struct {
	cfg  *cfgmodel.CFG
	opts options.Options

	chains     map[int]*Chain
	nodeChain  map[int]int
	nodeOffset map[int]uint64
	generation map[int]int
	adjacency  map[int]map[int]bool
	forcedNext map[int]int
	forcedPrev map[int]int

	pq *pqueue
}

// Result is S3's per-function output: the final node order (a
// permutation of the CFG's nodes) and, when both hot/cold separation
// and per-function cold-partition emission are enabled, the index at
// which the cold partition begins. AllCold is independent of
// split_funcs: it reports whether the function ever executed at all,
// which the emitter uses to decide whether to list the function in
// the cluster profile regardless of whether a boundary is emitted.
type Result struct {
	FuncName     string
	Layout       []int
	ColdStartsAt int // index into Layout; len(Layout) if no cold partition is emitted
	AllCold      bool
}

// Build runs S3 end to end for one function's CFG: initialization
// (§4.3.2), the merge loop (§4.3.4), fallthrough attachment, and
// coalescing (§4.3.5).
func Build(cfg *cfgmodel.CFG, opts options.Options) (*Result, error) {
	if len(cfg.Nodes) == 0 {
		return nil, perror.New(perror.Invariant, "cannot build chains for empty CFG").WithContext("function", cfg.FuncName)
	}
	if len(cfg.Nodes) == 1 {
		allCold := cfg.Nodes[0].IsCold()
		coldAt := 1
		if opts.SeparateHotCold && opts.SplitFuncs && allCold {
			coldAt = 0
		}
		return &Result{FuncName: cfg.FuncName, Layout: []int{0}, ColdStartsAt: coldAt, AllCold: allCold}, nil
	}

	b := newBuilder(cfg, opts)
	b.initialize()
	if err := b.mergeLoop(); err != nil {
		return nil, err
	}
	b.attachFallthroughs()

	layout := b.coalesce()
	return &Result{FuncName: cfg.FuncName, Layout: layout, ColdStartsAt: coldPartitionBoundary(cfg, layout, opts), AllCold: allNodesCold(cfg, layout)}, nil
}

// coldPartitionBoundary returns the index in layout where the cold
// partition begins, per spec.md §6.4's separate_hot_cold (reject
// hot/cold merges) and split_funcs (emit a separate cold partition per
// function) options. Both must be on for a boundary short of
// len(layout) to be reported; split_funcs=false means the function is
// emitted as a single undivided partition even if merging already kept
// hot and cold blocks apart.
func coldPartitionBoundary(cfg *cfgmodel.CFG, layout []int, opts options.Options) int {
	if !opts.SeparateHotCold || !opts.SplitFuncs {
		return len(layout)
	}
	for i, n := range layout {
		if cfg.Nodes[n].IsCold() {
			return i
		}
	}
	return len(layout)
}

func allNodesCold(cfg *cfgmodel.CFG, layout []int) bool {
	for _, n := range layout {
		if !cfg.Nodes[n].IsCold() {
			return false
		}
	}
	return true
}

func newBuilder(cfg *cfgmodel.CFG, opts options.Options) *builder {
	return &builder{
		cfg:        cfg,
		opts:       opts,
		chains:     make(map[int]*Chain, len(cfg.Nodes)),
		nodeChain:  make(map[int]int, len(cfg.Nodes)),
		nodeOffset: make(map[int]uint64, len(cfg.Nodes)),
		generation: make(map[int]int, len(cfg.Nodes)),
		adjacency:  make(map[int]map[int]bool),
		pq:         newPQueue(),
	}
}

// initialize implements spec.md §4.3.2: one chain per node, then attach
// mutually-forced edges (after breaking cycles), then seed the priority
// queue from every chain-to-chain edge with positive weight.
func (b *builder) initialize() {
	forced := findMutuallyForcedEdges(b.cfg)
	b.forcedNext, b.forcedPrev = breakForcedCycles(b.cfg, forced)

	for n := range b.cfg.Nodes {
		b.chains[n] = newSingletonChain(n, b.cfg)
		b.nodeChain[n] = n
		b.nodeOffset[n] = 0
	}

	// Attach forced edges by walking each path from its head (a node
	// with no forced predecessor) forward, merging as we go.
	for n := range b.cfg.Nodes {
		if _, hasPred := b.forcedPrev[n]; hasPred {
			continue // not a path head
		}
		cur := n
		for {
			next, ok := b.forcedNext[cur]
			if !ok {
				break
			}
			b.mergeInto(b.nodeChain[cur], b.nodeChain[next], concat(b.chains[b.nodeChain[cur]].Nodes, b.chains[b.nodeChain[next]].Nodes))
			cur = next
		}
	}

	for n := range b.chains {
		b.chains[n].Score = chainScore(b.chains[n], b.cfg, b.opts)
	}

	b.seedAdjacency()
}

// mergeInto performs the mechanical merge of the chain keyed by
// otherKey into the chain keyed by survivorKey, applying the given
// final node order (already validated by the caller). Used both by
// forced-edge attachment (order is simply concatenation) and by the
// main merge loop (order comes from the winning assembly).
func (b *builder) mergeInto(survivorKey, otherKey int, nodes []int) {
	survivor := b.chains[survivorKey]
	other := b.chains[otherKey]

	survivor.Nodes = nodes
	survivor.Size += other.Size
	survivor.Freq += other.Freq

	var cur uint64
	for _, n := range nodes {
		b.nodeChain[n] = survivorKey
		b.nodeOffset[n] = cur
		cur += uint64(b.cfg.Nodes[n].Size)
	}

	if survivorKey != otherKey {
		delete(b.chains, otherKey)
	}
	b.generation[survivorKey]++
	delete(b.generation, otherKey)

	survivor.Score = chainScore(survivor, b.cfg, b.opts)
}

// seedAdjacency builds the initial chain-to-chain candidate sets from
// every positive-weight intra-function edge and pushes the best
// positive-gain assembly for each adjacent pair into the queue.
func (b *builder) seedAdjacency() {
	seen := make(map[[2]int]bool)
	for i := range b.cfg.Edges {
		e := &b.cfg.Edges[i]
		if e.Weight == 0 {
			continue
		}
		ca, cb := b.nodeChain[e.Source], b.nodeChain[e.Sink]
		if ca == cb {
			continue
		}
		for _, pair := range [][2]int{{ca, cb}, {cb, ca}} {
			if seen[pair] {
				continue
			}
			seen[pair] = true
			b.linkAdjacency(pair[0], pair[1])
			b.proposeAndPush(pair[0], pair[1])
		}
	}
}

func (b *builder) linkAdjacency(a, c int) {
	if b.adjacency[a] == nil {
		b.adjacency[a] = make(map[int]bool)
	}
	b.adjacency[a][c] = true
}

// proposeAndPush computes the best assembly for (splitKey as X,
// unsplitKey as Y) and, if its gain is positive, pushes it.
func (b *builder) proposeAndPush(splitKey, unsplitKey int) {
	x, y := b.chains[splitKey], b.chains[unsplitKey]
	if x == nil || y == nil {
		return
	}
	best := enumerate(x, y, b.cfg, b.opts, b.forcedNext)
	if best == nil {
		return
	}
	best.Gain = best.Score - x.Score - y.Score
	if best.Gain <= 0 {
		return
	}
	b.pq.push(pqItem{
		asm:            *best,
		genSplit:       b.generation[splitKey],
		genUnsplit:     b.generation[unsplitKey],
		tieAddr:        b.cfg.Nodes[splitKey].Address,
		tieSec:         splitKey,
		tieUnsplitAddr: b.cfg.Nodes[unsplitKey].Address,
		tieUnsplitSec:  unsplitKey,
	})
}

// mergeLoop implements spec.md §4.3.4.
func (b *builder) mergeLoop() error {
	for {
		it, ok := b.pq.pop()
		if !ok {
			return nil
		}
		if !b.stillValid(it) {
			continue
		}
		if err := b.applyAssembly(it.asm); err != nil {
			return err
		}
	}
}

func (b *builder) stillValid(it pqItem) bool {
	if _, ok := b.chains[it.asm.SplitKey]; !ok {
		return false
	}
	if _, ok := b.chains[it.asm.UnsplitKey]; !ok {
		return false
	}
	if b.generation[it.asm.SplitKey] != it.genSplit {
		return false
	}
	if b.generation[it.asm.UnsplitKey] != it.genUnsplit {
		return false
	}
	return true
}

// applyAssembly performs one merge step: reject hot/cold crossings
// (spec.md §4.3.6), splice the node sequence, fold adjacency, and
// reseed candidates touching either side.
func (b *builder) applyAssembly(asm assembly) error {
	x, y := b.chains[asm.SplitKey], b.chains[asm.UnsplitKey]
	if x == nil || y == nil {
		return perror.New(perror.Invariant, "assembly references a merged-away chain").
			WithContext("function", b.cfg.FuncName)
	}
	if b.opts.SeparateHotCold && chainIsHot(x, b.cfg) != chainIsHot(y, b.cfg) {
		return nil // rejected merge; the rejection is neither logged nor counted
	}
	if len(x.Nodes) == 0 || len(y.Nodes) == 0 {
		return perror.New(perror.Invariant, "chain with zero nodes").WithContext("function", b.cfg.FuncName)
	}

	neighbors := make(map[int]bool)
	for c := range b.adjacency[asm.SplitKey] {
		neighbors[c] = true
	}
	for c := range b.adjacency[asm.UnsplitKey] {
		neighbors[c] = true
	}
	delete(neighbors, asm.SplitKey)
	delete(neighbors, asm.UnsplitKey)

	b.mergeInto(asm.SplitKey, asm.UnsplitKey, asm.Nodes)

	// Fold adjacency: redirect the merged-away chain's links to the
	// survivor, dropping the now-intra-chain self loop.
	survivorAdj := b.adjacency[asm.SplitKey]
	if survivorAdj == nil {
		survivorAdj = make(map[int]bool)
		b.adjacency[asm.SplitKey] = survivorAdj
	}
	delete(survivorAdj, asm.UnsplitKey)
	for c := range b.adjacency[asm.UnsplitKey] {
		if c == asm.SplitKey {
			continue
		}
		survivorAdj[c] = true
		if b.adjacency[c] != nil {
			delete(b.adjacency[c], asm.UnsplitKey)
			b.adjacency[c][asm.SplitKey] = true
		}
	}
	delete(b.adjacency, asm.UnsplitKey)

	for c := range neighbors {
		if _, ok := b.chains[c]; !ok {
			continue
		}
		b.proposeAndPush(c, asm.SplitKey)
		b.proposeAndPush(asm.SplitKey, c)
	}
	return nil
}

func chainIsHot(c *Chain, cfg *cfgmodel.CFG) bool {
	return c.Freq > 0
}
