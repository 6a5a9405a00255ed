package branchagg

import (
	"container/list"
	"sort"

	"propeller/internal/binmeta"
	"propeller/internal/cfgmodel"
)

// Resolved identifies the basic block containing a sampled address.
type Resolved struct {
	Func string
	Node int
}

// Resolver maps virtual addresses to their containing (function, block)
// pair. It wraps the frozen per-function CFGs with a sorted per-function
// block index and a small LRU in front of the search, per spec.md §4.2
// ("a small LRU cache ... to avoid re-searching the sorted address
// index"). No pack repo imports an LRU library for this kind of narrow,
// single-purpose cache, so the classic container/list + map
// implementation is used directly — the same technique general-purpose
// LRU packages build on internally.
type Resolver struct {
	funcIdx  *binmeta.AddrIndex
	byFunc   map[string][]uint64 // sorted node start addresses
	cfgs     map[string]*cfgmodel.CFG
	cache    *lruCache
}

// NewResolver builds a resolver over the given frozen CFGs. cacheSize
// bounds the LRU (spec.md §4.2 says "a few thousand entries").
func NewResolver(cfgs map[string]*cfgmodel.CFG, funcIdx *binmeta.AddrIndex, cacheSize int) *Resolver {
	r := &Resolver{
		funcIdx: funcIdx,
		byFunc:  make(map[string][]uint64, len(cfgs)),
		cfgs:    cfgs,
		cache:   newLRUCache(cacheSize),
	}
	for name, cfg := range cfgs {
		addrs := make([]uint64, len(cfg.Nodes))
		for i, n := range cfg.Nodes {
			addrs[i] = n.Address
		}
		r.byFunc[name] = addrs
	}
	return r
}

// Resolve returns the (function, block) pair containing addr, or false
// if addr is outside every known function.
func (r *Resolver) Resolve(addr uint64) (Resolved, bool) {
	if v, ok := r.cache.get(addr); ok {
		return v, true
	}

	span, ok := r.funcIdx.Lookup(addr)
	if !ok {
		return Resolved{}, false
	}
	addrs := r.byFunc[span.Name]
	i := sort.Search(len(addrs), func(i int) bool { return addrs[i] > addr })
	if i == 0 {
		return Resolved{}, false
	}
	res := Resolved{Func: span.Name, Node: i - 1}
	r.cache.put(addr, res)
	return res, true
}

// lruCache is a fixed-capacity least-recently-used cache from uint64
// address to Resolved.
type lruCache struct {
	cap   int
	ll    *list.List
	items map[uint64]*list.Element
}

type lruEntry struct {
	key uint64
	val Resolved
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &lruCache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[uint64]*list.Element, capacity),
	}
}

func (c *lruCache) get(key uint64) (Resolved, bool) {
	el, ok := c.items[key]
	if !ok {
		return Resolved{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).val, true
}

func (c *lruCache) put(key uint64, val Resolved) {
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).val = val
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, val: val})
	c.items[key] = el
	if c.ll.Len() > c.cap {
		back := c.ll.Back()
		if back != nil {
			c.ll.Remove(back)
			delete(c.items, back.Value.(*lruEntry).key)
		}
	}
}
