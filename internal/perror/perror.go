// Package perror is the typed error result described in spec.md §7: the
// core never writes diagnostics to a global channel, it returns a kind,
// a message, and optional context, and lets the collaborator decide how
// to report it.
package perror

import "fmt"

// Kind classifies an error per spec.md §7's four categories.
type Kind int

const (
	// Structural is a malformed or missing required input section.
	// Fatal at the point of discovery.
	Structural Kind = iota
	// Mismatch is a profile/binary mismatch: a discard-and-count
	// condition, never fatal on its own.
	Mismatch
	// Invariant is an algorithmic invariant violation: always fatal,
	// indicates a logic bug in the core.
	Invariant
	// Staleness is an accepted-but-counted profile staleness signal.
	Staleness
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Mismatch:
		return "mismatch"
	case Invariant:
		return "invariant"
	case Staleness:
		return "staleness"
	default:
		return "unknown"
	}
}

// Error is the typed result the core returns. Context is free-form
// (function name, node id, ...) and is meant for collaborator logging,
// never parsed by the core itself.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Context)
}

// New builds an Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithContext attaches a context key/value pair and returns the
// receiver, for fluent construction at the call site.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Fatal reports whether errors of this kind abort the pipeline rather
// than being discarded and counted.
func (k Kind) Fatal() bool {
	return k == Structural || k == Invariant
}
