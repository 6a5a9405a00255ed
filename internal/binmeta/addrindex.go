package binmeta

import "sort"

// FuncSpan is the address range owned by one function, used by the
// address index to resolve an arbitrary virtual address to its
// containing function.
type FuncSpan struct {
	Name  string
	Start uint64
	End   uint64 // exclusive
}

// AddrIndex resolves a virtual address to the function that contains
// it. Built once from the manifest's function records (entry address +
// sum of block sizes) and frozen for the rest of the pipeline, per
// spec.md §5 ("the global symbol-to-address index ... frozen after S1").
type AddrIndex struct {
	spans []FuncSpan // sorted by Start
}

// BuildAddrIndex computes one FuncSpan per function from its entry
// address and total block size.
func BuildAddrIndex(funcs []FunctionRecord) *AddrIndex {
	spans := make([]FuncSpan, 0, len(funcs))
	for _, f := range funcs {
		var size uint64
		for _, b := range f.Blocks {
			size += b.Size
		}
		spans = append(spans, FuncSpan{Name: f.Name, Start: f.EntryAddress, End: f.EntryAddress + size})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return &AddrIndex{spans: spans}
}

// Lookup returns the function span containing addr, if any.
func (a *AddrIndex) Lookup(addr uint64) (FuncSpan, bool) {
	i := sort.Search(len(a.spans), func(i int) bool { return a.spans[i].Start > addr })
	if i == 0 {
		return FuncSpan{}, false
	}
	span := a.spans[i-1]
	if addr >= span.Start && addr < span.End {
		return span, true
	}
	return FuncSpan{}, false
}
