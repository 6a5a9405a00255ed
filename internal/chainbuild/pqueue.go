package chainbuild

import "container/heap"

// pqItem is one pending candidate merge, keyed by the (split, unsplit)
// chain pair. genSplit/genUnsplit capture each chain's generation
// counter at insertion time; a pop is discarded if either generation
// has since advanced, per spec.md §9's "priority queue with updates"
// pattern: a max-heap that may contain stale entries, paired with a
// generation counter per (chain, chain) pair.
type pqItem struct {
	asm                  assembly
	genSplit, genUnsplit int
	// tie-break key for determinism, spec.md §9: lowest delegate-node
	// address, then lowest section index, of the split chain, then the
	// same pair for the unsplit chain — two assemblies sharing a split
	// chain but differing in unsplit chain would otherwise compare
	// equal on an exact gain tie.
	tieAddr       uint64
	tieSec        int
	tieUnsplitAddr uint64
	tieUnsplitSec  int
}

type pqueue struct {
	items []pqItem
}

func (q *pqueue) Len() int { return len(q.items) }

func (q *pqueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.asm.Gain != b.asm.Gain {
		return a.asm.Gain > b.asm.Gain // max-heap
	}
	if a.tieAddr != b.tieAddr {
		return a.tieAddr < b.tieAddr
	}
	if a.tieSec != b.tieSec {
		return a.tieSec < b.tieSec
	}
	if a.tieUnsplitAddr != b.tieUnsplitAddr {
		return a.tieUnsplitAddr < b.tieUnsplitAddr
	}
	return a.tieUnsplitSec < b.tieUnsplitSec
}

func (q *pqueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pqueue) Push(x any) { q.items = append(q.items, x.(pqItem)) }

func (q *pqueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it
}

func newPQueue() *pqueue {
	q := &pqueue{}
	heap.Init(q)
	return q
}

func (q *pqueue) push(it pqItem) { heap.Push(q, it) }

func (q *pqueue) pop() (pqItem, bool) {
	if q.Len() == 0 {
		return pqItem{}, false
	}
	return heap.Pop(q).(pqItem), true
}
