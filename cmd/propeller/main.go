// Command propeller runs the post-link basic-block layout pipeline
// (S1-S5) over a binary's address-map metadata and one or more profile
// files, and writes the cluster and symbol-order profiles a linker
// collaborator consumes. Subcommand dispatch follows the teacher's
// os.Args[1] + flag.NewFlagSet pattern; there is no CLI framework
// dependency anywhere in the pack.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "layout":
		err = cmdLayout(context.Background(), os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `propeller — post-link basic-block layout optimizer

Usage:
  propeller layout --binmeta <path> --profile type=path[,type=path...] \
                    --cluster-out <path> --symbol-order-out <path> [options]

Profile types: perf_lbr, perf_spe, frequencies_proto

Options:
  -separate-hot-cold=true|false
  -function-entry-first=true|false
  -fallthrough-weight <float>
  -forward-weight <float>
  -backward-weight <float>
  -forward-distance <float>
  -backward-distance <float>
  -chain-split-threshold <uint>
  -reorder-ip=true|false
  -split-funcs=true|false
  -workers <int>
  -dot <dir>           write DOT debug graphs (chain graphs + cluster graph) to <dir>
`)
}
