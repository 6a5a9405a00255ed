package emit

import (
	"bytes"
	"testing"

	"propeller/internal/callgraph"
	"propeller/internal/callorder"
	"propeller/internal/chainbuild"
)

func TestWriteClusterProfile(t *testing.T) {
	results := []*chainbuild.Result{
		{FuncName: "hot_fn", Layout: []int{0, 2, 1}, ColdStartsAt: 2},
		{FuncName: "all_cold_fn", Layout: []int{0, 1}, ColdStartsAt: 0, AllCold: true},
	}

	var buf bytes.Buffer
	if err := WriteClusterProfile(&buf, results); err != nil {
		t.Fatalf("WriteClusterProfile: %v", err)
	}

	want := "!hot_fn\n!!0 2 1\n!boundary 2\n"
	if got := buf.String(); got != want {
		t.Fatalf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestWriteClusterProfile_AllEntirelyCold(t *testing.T) {
	results := []*chainbuild.Result{
		{FuncName: "dead_fn", Layout: []int{0}, ColdStartsAt: 0, AllCold: true},
	}

	var buf bytes.Buffer
	if err := WriteClusterProfile(&buf, results); err != nil {
		t.Fatalf("WriteClusterProfile: %v", err)
	}
	if got := buf.String(); got != "" {
		t.Fatalf("expected no output for entirely-cold functions, got %q", got)
	}
}

func TestWriteSymbolOrder(t *testing.T) {
	a := &chainbuild.Result{FuncName: "a"}
	b := &chainbuild.Result{FuncName: "b"}
	c := &chainbuild.Result{FuncName: "c"}

	clusters := []callorder.Cluster{
		{Points: []*callgraph.CGPoint{
			{Results: []*chainbuild.Result{a, b}},
		}},
		{Points: []*callgraph.CGPoint{
			{Results: []*chainbuild.Result{c}},
		}},
	}

	var buf bytes.Buffer
	if err := WriteSymbolOrder(&buf, clusters); err != nil {
		t.Fatalf("WriteSymbolOrder: %v", err)
	}

	want := "a\nb\nc\n"
	if got := buf.String(); got != want {
		t.Fatalf("output mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}
