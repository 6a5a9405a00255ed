// Package binmeta defines the binary-metadata input contract the core
// consumes from the (out of scope) binary/DWARF-parsing collaborator:
// per-function basic-block address maps and a symbol table. Nothing in
// this package opens or parses an object file — that responsibility sits
// entirely with the collaborator, per spec.md §1 and §6.1. A JSONL loader
// is provided for fixtures and for collaborators that choose to hand off
// metadata as a file rather than in-process.
package binmeta

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Terminator classifies how a block's last instruction transfers
// control. The binary-parsing collaborator resolves this (and any
// branch/call target) from relocations at parse time, per spec.md §4.1
// ("branch edges inferred from relocation/branch targets") — the core
// never decodes an instruction to discover it.
type Terminator int

const (
	// TermFallthrough means the block does not end in a control
	// transfer; control falls into the next block in original layout.
	TermFallthrough Terminator = iota
	TermUnconditionalBranch
	TermConditionalBranch
	TermReturn
	// TermDynamic is an indirect branch whose target relocations could
	// not resolve statically (e.g. a computed jump table).
	TermDynamic
)

// CallSite is a call instruction found inside a block. Calls do not end
// a basic block (control returns to the next instruction), so a block
// may carry any number of them independent of its Terminator.
type CallSite struct {
	TargetAddress uint64 `json:"target_address,omitempty"`
	TargetSymbol  string `json:"target_symbol,omitempty"`
}

// BlockRecord is one basic block as extracted from a function's
// bb-address-map section.
type BlockRecord struct {
	OffsetFromEntry uint64     `json:"offset"`
	Size            uint64     `json:"size"`
	IsReturn        bool       `json:"is_return,omitempty"`
	IsLandingPad    bool       `json:"is_landing_pad,omitempty"`
	IsThunk         bool       `json:"is_thunk,omitempty"`
	Term            Terminator `json:"term"`
	// BranchTarget is the absolute target address for
	// TermUnconditionalBranch/TermConditionalBranch; zero for other
	// terminators or when TermDynamic could not resolve one.
	BranchTarget uint64     `json:"branch_target,omitempty"`
	Calls        []CallSite `json:"calls,omitempty"`
}

// FunctionRecord is one function's entry in the bb-address-map, exactly
// the shape spec.md §6.1 describes: a name, an entry address, and an
// ordered list of block records.
type FunctionRecord struct {
	Name         string        `json:"name"`
	EntryAddress uint64        `json:"entry_address"`
	SectionIndex uint32        `json:"section_index,omitempty"`
	Blocks       []BlockRecord `json:"blocks"`
}

// Binding mirrors the coarse ELF symbol binding classes relevant to
// layout (local vs global); anything else collapses to Other.
type Binding int

const (
	Local Binding = iota
	Global
	Weak
	Other
)

// Symbol is one entry of the collaborator's symbol table.
type Symbol struct {
	Name    string  `json:"name"`
	Address uint64  `json:"address"`
	Size    uint64  `json:"size"`
	Binding Binding `json:"binding"`
}

// SymbolTable maps names to symbols and supports lookup by name.
type SymbolTable struct {
	byName []Symbol
	index  map[string]int
}

// NewSymbolTable builds a lookup table from a flat symbol list.
func NewSymbolTable(syms []Symbol) *SymbolTable {
	st := &SymbolTable{
		byName: syms,
		index:  make(map[string]int, len(syms)),
	}
	for i, s := range syms {
		st.index[s.Name] = i
	}
	return st
}

// Lookup returns the symbol with the given name, if any.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	i, ok := st.index[name]
	if !ok {
		return Symbol{}, false
	}
	return st.byName[i], true
}

// Manifest is the complete per-binary metadata payload: every function's
// address map plus the symbol table, exactly what S1 consumes.
type Manifest struct {
	Functions []FunctionRecord `json:"functions"`
	Symbols   []Symbol         `json:"symbols"`
}

// DecodeJSONL reads a manifest from a JSONL stream: one function record
// per line, followed by a single trailing line holding the symbol table
// under the key "symbols". This mirrors the line-oriented JSON the
// teacher's own output stages (internal/output) write and read, chosen
// here as the fixture/interchange format rather than inventing a new one.
func DecodeJSONL(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Symbols []Symbol `json:"symbols"`
		}
		if err := json.Unmarshal(line, &probe); err == nil && probe.Symbols != nil {
			m.Symbols = probe.Symbols
			continue
		}
		var fr FunctionRecord
		if err := json.Unmarshal(line, &fr); err != nil {
			return nil, fmt.Errorf("binmeta: decode line %d: %w", lineNo, err)
		}
		m.Functions = append(m.Functions, fr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("binmeta: scan: %w", err)
	}
	return m, nil
}
