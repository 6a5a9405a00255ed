package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"propeller/internal/binmeta"
	"propeller/internal/branchsample"
	"propeller/internal/emit"
	"propeller/internal/options"
	"propeller/internal/pipeline"
	"propeller/internal/vizexport"
)

func cmdLayout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("layout", flag.ExitOnError)

	binmetaPath := fs.String("binmeta", "", "path to binary-metadata JSONL manifest")
	profileFlags := fs.String("profile", "", "comma-separated type=path pairs, e.g. perf_lbr=a.jsonl,frequencies_proto=b.jsonl")
	clusterOut := fs.String("cluster-out", "", "output path for the cluster profile")
	symbolOrderOut := fs.String("symbol-order-out", "", "output path for the symbol-order profile")
	dotDir := fs.String("dot", "", "if set, write DOT debug graphs to this directory")
	workers := fs.Int("workers", 0, "S3 worker pool size (0 = unbounded)")

	opts := options.Default()
	fs.BoolVar(&opts.SeparateHotCold, "separate-hot-cold", opts.SeparateHotCold, "reject hot/cold chain merges")
	fs.BoolVar(&opts.FunctionEntryFirst, "function-entry-first", opts.FunctionEntryFirst, "keep entry block first in its chain")
	fs.Float64Var(&opts.FallthroughWeight, "fallthrough-weight", opts.FallthroughWeight, "ExtTSP fallthrough weight")
	fs.Float64Var(&opts.ForwardWeight, "forward-weight", opts.ForwardWeight, "ExtTSP forward jump weight")
	fs.Float64Var(&opts.BackwardWeight, "backward-weight", opts.BackwardWeight, "ExtTSP backward jump weight")
	fs.Float64Var(&opts.ForwardDistance, "forward-distance", opts.ForwardDistance, "ExtTSP forward distance threshold, bytes")
	fs.Float64Var(&opts.BackwardDistance, "backward-distance", opts.BackwardDistance, "ExtTSP backward distance threshold, bytes")
	var splitThreshold uint
	fs.UintVar(&splitThreshold, "chain-split-threshold", uint(opts.ChainSplitThreshold), "max chain size eligible for mid-split")
	fs.BoolVar(&opts.ReorderIP, "reorder-ip", opts.ReorderIP, "extend chain merging across function boundaries")
	fs.BoolVar(&opts.SplitFuncs, "split-funcs", opts.SplitFuncs, "emit a separate cold partition per function")

	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.ChainSplitThreshold = uint32(splitThreshold)

	if *binmetaPath == "" || *clusterOut == "" || *symbolOrderOut == "" {
		return fmt.Errorf("layout: -binmeta, -cluster-out, and -symbol-order-out are required")
	}

	mf, err := os.Open(*binmetaPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", *binmetaPath, err)
	}
	defer mf.Close()
	manifest, err := binmeta.DecodeJSONL(mf)
	if err != nil {
		return err
	}

	profiles, err := loadProfiles(*profileFlags)
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx, manifest, profiles, pipeline.Config{Opts: opts, Workers: *workers})
	if err != nil {
		return err
	}

	if err := writeFile(*clusterOut, func(f *os.File) error {
		return emit.WriteClusterProfile(f, result.Layouts)
	}); err != nil {
		return err
	}
	if err := writeFile(*symbolOrderOut, func(f *os.File) error {
		return emit.WriteSymbolOrder(f, result.Clusters)
	}); err != nil {
		return err
	}

	if *dotDir != "" {
		for _, r := range result.Layouts {
			cfg := result.CFGs[r.FuncName]
			if cfg == nil {
				continue
			}
			if err := vizexport.WriteChainDOT(*dotDir, cfg, r); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(*dotDir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", *dotDir, err)
		}
		if err := vizexport.WriteCallGraphDOT(filepath.Join(*dotDir, "callgraph.dot"), result.CG, result.Clusters); err != nil {
			return err
		}
	}

	s := result.Stats
	fmt.Fprintf(os.Stderr, "functions built: %d, failed: %d\n", s.FunctionsBuilt, s.FunctionsFailed)
	fmt.Fprintf(os.Stderr, "intra mapped: %d, inter mapped: %d, unmarked intra: %d, unmarked inter: %d\n",
		s.IntraMapped, s.InterMapped, s.UnmarkedIntra, s.UnmarkedInter)
	fmt.Fprintf(os.Stderr, "unresolved call edges: %d\n", s.CallGraphUnresolvedEdges)
	fmt.Fprintf(os.Stderr, "wrote %s and %s\n", *clusterOut, *symbolOrderOut)
	return nil
}

func loadProfiles(spec string) ([]*branchsample.Source, error) {
	if spec == "" {
		return nil, nil
	}
	var out []*branchsample.Source
	for _, pair := range strings.Split(spec, ",") {
		kind, path, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed -profile entry %q, want type=path", pair)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		src, err := decodeProfile(kind, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s (%s): %w", path, kind, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func decodeProfile(kind string, f *os.File) (*branchsample.Source, error) {
	switch kind {
	case "perf_lbr", "perf_spe":
		src, err := branchsample.DecodeLBRJSONL(f)
		if err != nil {
			return nil, err
		}
		if kind == "perf_spe" {
			src.Kind = branchsample.KindPerfSPE
		}
		return src, nil
	case "frequencies_proto":
		return branchsample.DecodeFrequenciesJSONL(f)
	default:
		return nil, fmt.Errorf("unknown profile type %q", kind)
	}
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return fn(f)
}
