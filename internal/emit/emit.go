// Package emit implements S5, the profile emitter. It writes the two
// text outputs described in spec.md §4.5 and §6.2: a cluster profile
// (per hot function, its block layout plus the hot/cold boundary) and a
// symbol-order profile (the global function order). Both are fully
// determined by upstream results; this package makes no decisions of
// its own, following the write-only role of the teacher's
// internal/output/output.go.
package emit

import (
	"bufio"
	"fmt"
	"io"

	"propeller/internal/callorder"
	"propeller/internal/chainbuild"
)

// WriteClusterProfile writes three lines per hot function: "!name",
// "!!" followed by the ordered section indices of its layout, and
// "!boundary N" with the index at which the cold partition begins
// (len(Layout) when no cold partition is reported). Functions whose entire
// layout is cold are skipped, matching §4.5's "for each hot function".
func WriteClusterProfile(w io.Writer, results []*chainbuild.Result) error {
	bw := bufio.NewWriter(w)
	for _, r := range results {
		if r.AllCold {
			continue // never executed, nothing to report
		}
		fmt.Fprintf(bw, "!%s\n", r.FuncName)
		fmt.Fprint(bw, "!!")
		for i, n := range r.Layout {
			if i > 0 {
				fmt.Fprint(bw, " ")
			}
			fmt.Fprintf(bw, "%d", n)
		}
		fmt.Fprintf(bw, "\n!boundary %d\n", r.ColdStartsAt)
	}
	return bw.Flush()
}

// WriteSymbolOrder writes the global function order, one name per line,
// derived from S4's clusters by concatenating each cluster's function
// names in cluster order.
func WriteSymbolOrder(w io.Writer, clusters []callorder.Cluster) error {
	bw := bufio.NewWriter(w)
	for _, c := range clusters {
		for _, p := range c.Points {
			for _, name := range p.FuncNames() {
				if _, err := fmt.Fprintln(bw, name); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

