// Package cfgbuild implements S1, the Program CFG Builder: from a
// function's bb-address-map (binmeta.FunctionRecord) it materializes a
// cfgmodel.CFG whose nodes are in original-layout order and whose edges
// are classified per spec.md §3. The pass structure — locate leaders
// (here: blocks are already leader-delimited by the collaborator),
// partition, then compute successors from each block's terminator — is
// the same shape as the teacher's three-pass disasm.BuildCFG, adapted
// to a pre-partitioned block list instead of a raw instruction stream.
package cfgbuild

import (
	"propeller/internal/binmeta"
	"propeller/internal/cfgmodel"
	"propeller/internal/perror"
)

// Build constructs one CFG from a function's address-map record. Each
// call site becomes a zero-weight placeholder CallEdge, marked
// Unresolved only when it carries neither a target symbol nor a target
// address; call targets are not checked against other functions here.
func Build(fn binmeta.FunctionRecord) (*cfgmodel.CFG, error) {
	if len(fn.Blocks) == 0 {
		return nil, perror.New(perror.Structural, "function has no blocks in address map").
			WithContext("function", fn.Name)
	}

	cfg := cfgmodel.NewCFG(fn.Name, len(fn.Blocks))

	// offsetToIdx resolves a block's own offset to its eventual node
	// index; blocks are added in the order given, so offset order ==
	// node order as long as the address map is itself sorted, which
	// spec.md §4.1 assumes and we verify here.
	offsetToIdx := make(map[uint64]int, len(fn.Blocks))
	var prevOffset uint64
	for i, b := range fn.Blocks {
		if i > 0 && b.OffsetFromEntry <= prevOffset {
			return nil, perror.New(perror.Structural, "address map blocks are not strictly increasing").
				WithContext("function", fn.Name).WithContext("offset", b.OffsetFromEntry)
		}
		prevOffset = b.OffsetFromEntry

		idx := cfg.AddNode(cfgmodel.Node{
			Name:    fn.Name,
			Size:    uint32(b.Size),
			Address: fn.EntryAddress + b.OffsetFromEntry,
			Meta: cfgmodel.NodeMeta{
				IsReturn:     b.IsReturn,
				IsLandingPad: b.IsLandingPad,
				IsThunk:      b.IsThunk,
			},
		})
		offsetToIdx[b.OffsetFromEntry] = idx
	}
	cfg.Entry = 0 // block 0 always starts at offset 0, the function's entry

	funcEnd := fn.EntryAddress
	for _, b := range fn.Blocks {
		funcEnd = fn.EntryAddress + b.OffsetFromEntry + b.Size
	}

	for i, b := range fn.Blocks {
		node := i
		next := -1
		if i+1 < len(fn.Blocks) {
			next = i + 1
		}

		switch b.Term {
		case binmeta.TermFallthrough:
			if next >= 0 {
				cfg.AddEdge(cfgmodel.Edge{Source: node, Sink: next, Kind: cfgmodel.FallThrough})
			}
		case binmeta.TermUnconditionalBranch:
			if target, ok := resolveTarget(b.BranchTarget, fn.EntryAddress, funcEnd, offsetToIdx); ok {
				cfg.AddEdge(cfgmodel.Edge{Source: node, Sink: target, Kind: cfgmodel.Branch})
			}
			// A resolved-out-of-function or unresolved unconditional
			// branch has no intra-function successor; the block is
			// terminal within this CFG.
		case binmeta.TermConditionalBranch:
			if target, ok := resolveTarget(b.BranchTarget, fn.EntryAddress, funcEnd, offsetToIdx); ok {
				cfg.AddEdge(cfgmodel.Edge{Source: node, Sink: target, Kind: cfgmodel.Branch})
			}
			if next >= 0 {
				cfg.AddEdge(cfgmodel.Edge{Source: node, Sink: next, Kind: cfgmodel.FallThrough})
			}
		case binmeta.TermReturn:
			// No intra-function successor; return edges are recorded
			// by S2 (branchagg) from profiled samples.
		case binmeta.TermDynamic:
			// No static successor known; S2 may add a DynamicIntra
			// edge if a profile sample resolves one.
		}

		for _, call := range b.Calls {
			cfg.OutCalls = append(cfg.OutCalls, cfgmodel.CallEdge{
				FromNode:   node,
				ToFunc:     call.TargetSymbol,
				ToNode:     -1,
				Unresolved: call.TargetSymbol == "" && call.TargetAddress == 0,
			})
		}
	}

	return cfg, nil
}

// resolveTarget maps an absolute branch target address to a node index
// within this function, if the target lands inside it at a known block
// boundary.
func resolveTarget(target, funcStart, funcEnd uint64, offsetToIdx map[uint64]int) (int, bool) {
	if target < funcStart || target >= funcEnd {
		return 0, false
	}
	idx, ok := offsetToIdx[target-funcStart]
	return idx, ok
}
