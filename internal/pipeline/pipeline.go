// Package pipeline orchestrates S1 through S5 end to end: building one
// CFG per function, aggregating profile samples onto them, running S3's
// chain builder across functions with a bounded worker pool (spec.md
// §5's "embarrassingly parallel" model), then running S4's single
// global clustering pass and handing the result to S5's emitter.
package pipeline

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"propeller/internal/binmeta"
	"propeller/internal/branchagg"
	"propeller/internal/branchsample"
	"propeller/internal/callgraph"
	"propeller/internal/callorder"
	"propeller/internal/cfgbuild"
	"propeller/internal/cfgmodel"
	"propeller/internal/chainbuild"
	"propeller/internal/options"
	"propeller/internal/perror"
)

// Stats accumulates every discard-and-count and structural counter that
// crosses a pipeline stage boundary, per spec.md §7. The collaborator
// CLI prints this after a run; the core never writes it anywhere itself.
type Stats struct {
	FunctionsBuilt  int
	FunctionsFailed int
	branchagg.Stats

	// CallGraphUnresolvedEdges counts S4 call edges whose callee never
	// resolved to a known function. It is distinct from branchagg.Stats'
	// UnresolvedCallEdges, which the aggregator never increments.
	CallGraphUnresolvedEdges uint64
}

// Result is everything S5 needs to write its two output files.
type Result struct {
	CFGs     map[string]*cfgmodel.CFG
	Layouts  []*chainbuild.Result
	CG       *callgraph.CallGraph
	Clusters []callorder.Cluster
	Stats    Stats
}

// Workers bounds the S3 fan-out; zero means "let errgroup.SetLimit pick
// an unbounded pool", which the caller should avoid for large binaries.
type Config struct {
	Opts    options.Options
	Workers int
}

// Run executes the full pipeline against one binary's metadata and one
// or more decoded profile sources.
func Run(ctx context.Context, manifest *binmeta.Manifest, profiles []*branchsample.Source, cfg Config) (*Result, error) {
	cfgs := make(map[string]*cfgmodel.CFG, len(manifest.Functions))
	var stats Stats

	for _, fn := range manifest.Functions {
		c, err := cfgbuild.Build(fn)
		if err != nil {
			if pe, ok := err.(*perror.Error); ok && pe.Kind.Fatal() {
				return nil, err
			}
			stats.FunctionsFailed++
			continue
		}
		cfgs[fn.Name] = c
		stats.FunctionsBuilt++
	}

	addrIdx := binmeta.BuildAddrIndex(manifest.Functions)
	agg := branchagg.New(cfgs, addrIdx)
	for _, src := range profiles {
		agg.AddRecords(src.Records)
		agg.AddFrequencies(src.Frequencies)
	}
	stats.Stats = agg.Stats

	funcNames := make([]string, 0, len(cfgs))
	for name := range cfgs {
		funcNames = append(funcNames, name)
	}
	sort.Strings(funcNames)

	var results []*chainbuild.Result
	if cfg.Opts.ReorderIP {
		// spec.md §5: reorder_ip shares one chain map across every
		// function, so S3 runs serially here instead of fanning out
		// across the worker pool plain per-function Build uses.
		byFunc, err := chainbuild.BuildInterProcedural(cfgs, cfg.Opts)
		if err != nil {
			return nil, err
		}
		results = make([]*chainbuild.Result, len(funcNames))
		for i, name := range funcNames {
			results[i] = byFunc[name]
		}
	} else {
		results = make([]*chainbuild.Result, len(funcNames))
		g, gctx := errgroup.WithContext(ctx)
		if cfg.Workers > 0 {
			g.SetLimit(cfg.Workers)
		}
		for i, name := range funcNames {
			i, name := i, name
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				r, err := chainbuild.Build(cfgs[name], cfg.Opts)
				if err != nil {
					return err
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	cg, unresolved := callgraph.New(results, cfgs)
	stats.CallGraphUnresolvedEdges = unresolved
	clusters := callorder.Order(cg)

	return &Result{CFGs: cfgs, Layouts: results, CG: cg, Clusters: clusters, Stats: stats}, nil
}
