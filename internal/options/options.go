// Package options holds the immutable, process-wide tunables of
// spec.md §6.4. A single Options value is constructed once from flags
// (or defaults) and threaded through the pipeline by parameter; the core
// never mutates it and holds no package-level state of its own, per
// spec.md §9.
package options

// Options is the full set of tunables from spec.md §6.4.
type Options struct {
	SeparateHotCold    bool
	FunctionEntryFirst bool

	FallthroughWeight float64 // F_w
	ForwardWeight     float64 // FW_w
	BackwardWeight    float64 // BW_w
	ForwardDistance   float64 // FW_d, bytes
	BackwardDistance  float64 // BW_d, bytes

	ChainSplitThreshold uint32

	ReorderIP  bool
	SplitFuncs bool
}

// Default returns the defaults table of spec.md §6.4.
func Default() Options {
	return Options{
		SeparateHotCold:     true,
		FunctionEntryFirst:  true,
		FallthroughWeight:   1.0,
		ForwardWeight:       0.1,
		BackwardWeight:      0.1,
		ForwardDistance:     1024,
		BackwardDistance:    640,
		ChainSplitThreshold: 128,
		ReorderIP:           false,
		SplitFuncs:          true,
	}
}
