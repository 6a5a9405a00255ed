// Package cfgmodel holds the core data model shared by every pipeline
// stage: functions, basic blocks, CFG edges, and the per-function control
// flow graph. Values here are owned by their CFG and referenced by index,
// never by pointer cycles, so the graph can be treated as plain data once
// S1 has built it.
package cfgmodel

// EdgeKind classifies a directed edge between two nodes.
type EdgeKind int

const (
	// FallThrough connects two blocks that are consecutive in the
	// original layout with no branch between them.
	FallThrough EdgeKind = iota
	// Branch is any intra-function control transfer, conditional or not.
	Branch
	// DynamicIntra is an intra-function edge inferred only from profile
	// data: the static pass in S1 found no edge for this transition.
	DynamicIntra
	// Call is an inter-function edge originating at a call site.
	Call
	// Return is an inter-function edge originating at a return.
	Return
)

func (k EdgeKind) String() string {
	switch k {
	case FallThrough:
		return "fallthrough"
	case Branch:
		return "branch"
	case DynamicIntra:
		return "dynamic-intra"
	case Call:
		return "call"
	case Return:
		return "return"
	default:
		return "unknown"
	}
}

// IsIntra reports whether the edge kind stays within one function.
func (k EdgeKind) IsIntra() bool {
	return k == FallThrough || k == Branch || k == DynamicIntra
}

// NodeMeta carries the metadata bits the binary-parsing collaborator
// attaches to a block record (spec.md §6.1).
type NodeMeta struct {
	IsReturn     bool
	IsLandingPad bool
	IsThunk      bool
}

// Node is one basic block of a function's CFG. Section index is its
// stable identity within the function; it never changes after S1.
type Node struct {
	SectionIndex int
	Name         string
	Size         uint32
	Address      uint64
	Meta         NodeMeta

	// Freq is the node's execution frequency, populated by S2 as the
	// sum of the weights of sampled intra-function transitions into it
	// plus one per credited fallthrough traversal through it (see
	// branchagg).
	Freq uint64

	out []int // edge indices into CFG.Edges, outgoing from this node
	in  []int // edge indices into CFG.Edges, incoming to this node
}

// IsCold reports whether the node was never observed executing.
// Derived, not stored — mirrors PLOELFCfg.h's ELFCfgNode::isCold(),
// which is likewise computed from zero frequency rather than cached.
func (n *Node) IsCold() bool { return n.Freq == 0 }

// Edge is a directed edge between two nodes. Source and Sink are
// indices into the owning CFG's node table; only the combined CFG that
// chainbuild.BuildInterProcedural builds holds Call edges joining nodes
// of different functions.
type Edge struct {
	Source int
	Sink   int
	Kind   EdgeKind
	Weight uint64
}

// CFG is one function's control flow graph. It owns its nodes and edges;
// everything else refers to them by index.
type CFG struct {
	FuncName string
	Nodes    []Node
	Edges    []Edge // intra-function edges only
	Entry    int    // index into Nodes

	// OutCalls and InReturns hold inter-function edges whose source (for
	// calls) or sink (for returns) is a node of this CFG. OutCalls gets
	// one zero-weight placeholder per static call site from S1 and
	// weighted entries from S2; InReturns is populated by S2 only. The
	// call-graph builder reads OutCalls; nothing downstream reads
	// InReturns.
	OutCalls  []CallEdge
	InReturns []ReturnEdge
}

// CallEdge is an inter-function edge originating at a call site in this
// CFG, landing in another function.
type CallEdge struct {
	FromNode   int
	ToFunc     string
	ToNode     int // -1 if unresolved
	Weight     uint64
	Unresolved bool
}

// ReturnEdge is an inter-function edge originating at a return in some
// other function, landing in this CFG.
type ReturnEdge struct {
	FromFunc string
	ToNode   int
	Weight   uint64
}

// NewCFG allocates a CFG with pre-sized node storage. Nodes must then be
// appended in original-layout order via AddNode.
func NewCFG(funcName string, nodeCount int) *CFG {
	return &CFG{
		FuncName: funcName,
		Nodes:    make([]Node, 0, nodeCount),
		Entry:    -1,
	}
}

// AddNode appends a node and returns its section index (== its position
// in Nodes, by convention of S1).
func (c *CFG) AddNode(n Node) int {
	n.SectionIndex = len(c.Nodes)
	c.Nodes = append(c.Nodes, n)
	return n.SectionIndex
}

// AddEdge appends an intra-function edge and wires it into both
// endpoints' adjacency lists. Returns the edge's index.
func (c *CFG) AddEdge(e Edge) int {
	idx := len(c.Edges)
	c.Edges = append(c.Edges, e)
	c.Nodes[e.Source].out = append(c.Nodes[e.Source].out, idx)
	c.Nodes[e.Sink].in = append(c.Nodes[e.Sink].in, idx)
	return idx
}

// FindEdge returns the index of the intra-function edge from src to
// sink, or -1 if none exists yet.
func (c *CFG) FindEdge(src, sink int) int {
	for _, idx := range c.Nodes[src].out {
		if c.Edges[idx].Sink == sink {
			return idx
		}
	}
	return -1
}

// OutEdges returns the outgoing intra-function edges of a node, in the
// order they were added.
func (c *CFG) OutEdges(node int) []Edge {
	idxs := c.Nodes[node].out
	out := make([]Edge, len(idxs))
	for i, idx := range idxs {
		out[i] = c.Edges[idx]
	}
	return out
}

// InEdges returns the incoming intra-function edges of a node.
func (c *CFG) InEdges(node int) []Edge {
	idxs := c.Nodes[node].in
	out := make([]Edge, len(idxs))
	for i, idx := range idxs {
		out[i] = c.Edges[idx]
	}
	return out
}

// OutEdgeIndices and InEdgeIndices expose the raw adjacency lists for
// callers (e.g. branchagg, chainbuild) that need to mutate Edges in
// place via the returned indices rather than copies.
func (c *CFG) OutEdgeIndices(node int) []int { return c.Nodes[node].out }
func (c *CFG) InEdgeIndices(node int) []int  { return c.Nodes[node].in }

// TotalSize sums the size of every node in the CFG.
func (c *CFG) TotalSize() uint64 {
	var total uint64
	for i := range c.Nodes {
		total += uint64(c.Nodes[i].Size)
	}
	return total
}
