package chainbuild

import (
	"sort"

	"propeller/internal/cfgmodel"
	"propeller/internal/options"
	"propeller/internal/perror"
)

// BuildInterProcedural runs S3 across every function at once, per
// spec.md §6.4's reorder_ip option and §4.3.2's note that, when it is
// on, non-return inter-function edges join the nonzero-weight
// intra-function edges that seed chain-to-chain candidates. It merges
// every function's CFG into one shared node space with one shared
// chain map and priority queue, exactly the "global chain map" spec.md
// §5 says reorder_ip requires — which is also why §5 calls for serial
// execution here instead of the per-function worker pool plain Build
// uses.
//
// A function's entry node is no longer the sole anchor function_entry_first
// can pin against once chains span functions, so that constraint is not
// enforced during the shared merge loop; see DESIGN.md.
func BuildInterProcedural(cfgs map[string]*cfgmodel.CFG, opts options.Options) (map[string]*Result, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	combined, owner, local, entryGID := combineCFGs(names, cfgs)
	if len(combined.Nodes) == 0 {
		return map[string]*Result{}, nil
	}

	b := newBuilder(combined, opts)
	b.initialize()
	if err := b.mergeLoop(); err != nil {
		return nil, err
	}
	b.attachFallthroughs()

	return finalizeInterProcedural(b, names, cfgs, owner, local, entryGID, opts)
}

// combineCFGs concatenates every function's nodes into one global node
// space (in sorted function-name order, for determinism) and carries
// over both the intra-function edges and, translated to global ids,
// every resolved, nonzero-weight, non-return call edge (spec.md
// §4.3.2's reorder_ip carve-out; Return edges are excluded exactly as
// they are for the single-function case). owner and local map a global
// id back to its originating function name and local section index.
func combineCFGs(names []string, cfgs map[string]*cfgmodel.CFG) (combined *cfgmodel.CFG, owner []string, local []int, entryGID map[int]bool) {
	total := 0
	for _, name := range names {
		total += len(cfgs[name].Nodes)
	}
	combined = cfgmodel.NewCFG("<interprocedural>", total)
	owner = make([]string, 0, total)
	local = make([]int, 0, total)
	entryGID = make(map[int]bool)
	base := make(map[string]int, len(names))

	for _, name := range names {
		cfg := cfgs[name]
		base[name] = len(combined.Nodes)
		for i := range cfg.Nodes {
			src := cfg.Nodes[i]
			gid := combined.AddNode(cfgmodel.Node{
				Name:    src.Name,
				Size:    src.Size,
				Address: src.Address,
				Meta:    src.Meta,
				Freq:    src.Freq,
			})
			owner = append(owner, name)
			local = append(local, i)
			if i == cfg.Entry {
				entryGID[gid] = true
			}
		}
	}

	for _, name := range names {
		cfg := cfgs[name]
		off := base[name]
		for i := range cfg.Edges {
			e := cfg.Edges[i]
			combined.AddEdge(cfgmodel.Edge{
				Source: e.Source + off,
				Sink:   e.Sink + off,
				Kind:   e.Kind,
				Weight: e.Weight,
			})
		}
	}

	for _, name := range names {
		cfg := cfgs[name]
		fromOff := base[name]
		for _, ce := range cfg.OutCalls {
			if ce.Unresolved || ce.ToNode < 0 || ce.Weight == 0 {
				continue
			}
			toOff, ok := base[ce.ToFunc]
			if !ok {
				continue
			}
			combined.AddEdge(cfgmodel.Edge{
				Source: ce.FromNode + fromOff,
				Sink:   ce.ToNode + toOff,
				Kind:   cfgmodel.Call,
				Weight: ce.Weight,
			})
		}
	}

	return combined, owner, local, entryGID
}

// fragment is one contiguous run, within a single final global chain,
// of nodes owned by one function.
type fragment struct {
	gids    []int
	freq    uint64
	size    uint64
	isEntry bool
}

func (f fragment) density() float64 {
	if f.size == 0 {
		return 0
	}
	return float64(f.freq) / float64(f.size)
}

// finalizeInterProcedural walks every surviving chain, splits it back
// into per-function fragments, and orders each function's fragments
// (entry fragment first, then the same hot-before-cold/density/address
// rule spec.md §4.3.5 uses for single-function coalescing) to produce
// one Result per function.
func finalizeInterProcedural(b *builder, names []string, cfgs map[string]*cfgmodel.CFG, owner []string, local []int, entryGID map[int]bool, opts options.Options) (map[string]*Result, error) {
	keys := make([]int, 0, len(b.chains))
	for k := range b.chains {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return b.cfg.Nodes[keys[i]].Address < b.cfg.Nodes[keys[j]].Address
	})

	perFunc := make(map[string][]fragment, len(names))
	for _, k := range keys {
		nodes := b.chains[k].Nodes
		var curOwner string
		var cur fragment
		flush := func() {
			if len(cur.gids) == 0 {
				return
			}
			perFunc[curOwner] = append(perFunc[curOwner], cur)
		}
		for _, gid := range nodes {
			o := owner[gid]
			if o != curOwner {
				flush()
				curOwner, cur = o, fragment{}
			}
			cur.gids = append(cur.gids, gid)
			cur.size += uint64(b.cfg.Nodes[gid].Size)
			cur.freq += b.cfg.Nodes[gid].Freq
			if entryGID[gid] {
				cur.isEntry = true
			}
		}
		flush()
	}

	results := make(map[string]*Result, len(names))
	for _, name := range names {
		cfg := cfgs[name]
		frags := perFunc[name]

		sort.SliceStable(frags, func(i, j int) bool {
			fi, fj := frags[i], frags[j]
			if fi.isEntry != fj.isEntry {
				return fi.isEntry
			}
			if opts.SeparateHotCold {
				ci, cj := fi.freq == 0, fj.freq == 0
				if ci != cj {
					return !ci
				}
			}
			if di, dj := fi.density(), fj.density(); di != dj {
				return di > dj
			}
			return b.cfg.Nodes[fi.gids[0]].Address < b.cfg.Nodes[fj.gids[0]].Address
		})

		layout := make([]int, 0, len(cfg.Nodes))
		for _, f := range frags {
			for _, gid := range f.gids {
				layout = append(layout, local[gid])
			}
		}
		if len(layout) != len(cfg.Nodes) {
			return nil, interProceduralInvariantError(name)
		}

		results[name] = &Result{
			FuncName:     name,
			Layout:       layout,
			ColdStartsAt: coldPartitionBoundary(cfg, layout, opts),
			AllCold:      allNodesCold(cfg, layout),
		}
	}
	return results, nil
}

// interProceduralInvariantError is returned when a function's fragments
// do not account for every one of its nodes, which would indicate
// combineCFGs or the merge
// loop lost track of a node — a logic bug, not an input problem.
func interProceduralInvariantError(name string) error {
	return perror.New(perror.Invariant, "function produced no layout fragments in interprocedural build").
		WithContext("function", name)
}
