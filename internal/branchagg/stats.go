package branchagg

// Stats accumulates the per-run counters spec.md §4.2/§7 requires the
// aggregator to expose without aborting on them, extended with the
// unresolved-call-edge and cross-module counters PLO.cpp's statistics
// dump additionally tracks (see SPEC_FULL.md's supplemented features).
type Stats struct {
	IntraMapped   uint64 // samples resolved to an intra-function edge
	InterMapped   uint64 // samples resolved to a call or return edge
	UnmarkedIntra uint64 // fallthrough-credit attempts with no straight-line path
	UnmarkedInter uint64 // samples whose from/to could not both resolve

	UnresolvedCallEdges uint64 // call edges whose callee symbol never resolved (never incremented by the aggregator; see pipeline.Stats.CallGraphUnresolvedEdges)
	CrossModuleSamples  uint64 // samples whose from/to spans differing load modules (always 0 here: single-module manifests)
}

// Add merges another Stats into the receiver, for combining per-worker
// partial results.
func (s *Stats) Add(o Stats) {
	s.IntraMapped += o.IntraMapped
	s.InterMapped += o.InterMapped
	s.UnmarkedIntra += o.UnmarkedIntra
	s.UnmarkedInter += o.UnmarkedInter
	s.UnresolvedCallEdges += o.UnresolvedCallEdges
	s.CrossModuleSamples += o.CrossModuleSamples
}
