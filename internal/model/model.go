// Package model defines the data types shared across the pipeline stages
// described in the design: the helper set H, the dependency graph G, call
// sites Q/P, and the result map R.
package model

import "strconv"

// Kind is the representable kind of a captured value (the value kinds a
// literal, and therefore a result-map entry, can take).
type Kind string

const (
	KindString          Kind = "string"
	KindInteger          Kind = "integer"
	KindFractional       Kind = "fractional"
	KindBoolean          Kind = "boolean"
	KindNull             Kind = "null"
	KindAbsent           Kind = "absent"
	KindUnrepresentable  Kind = "unrepresentable"
)

// Value is a captured literal or evaluation result. Exactly one of the
// payload fields is meaningful, selected by Kind. JSON tags let a Value
// cross the sandbox worker's process boundary unchanged.
type Value struct {
	Kind Kind    `json:"kind"`
	Str  string  `json:"str,omitempty"`
	Int  int64   `json:"int,omitempty"`
	Frac float64 `json:"frac,omitempty"`
	Bool bool    `json:"bool,omitempty"`
}

func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func Integer(n int64) Value     { return Value{Kind: KindInteger, Int: n} }
func Fractional(f float64) Value { return Value{Kind: KindFractional, Frac: f} }
func Boolean(b bool) Value      { return Value{Kind: KindBoolean, Bool: b} }
func Null() Value               { return Value{Kind: KindNull} }
func Absent() Value             { return Value{Kind: KindAbsent} }
func Unrepresentable() Value    { return Value{Kind: KindUnrepresentable} }

// Literal renders v as target-language source text suitable for splicing
// into a rewritten program or for driving the evaluation harness.
func (v Value) Literal() string {
	switch v.Kind {
	case KindString:
		return strconv.Quote(v.Str)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFractional:
		return strconv.FormatFloat(v.Frac, 'g', -1, 64)
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNull:
		return "null"
	case KindAbsent:
		return "undefined"
	default:
		return ""
	}
}

// Span is a half-open byte range [Start, End) into the original source,
// used instead of a node pointer so this package does not need to import
// the syntax tree implementation (see DESIGN.md on printed-form keying).
type Span struct {
	Start uint32
	End   uint32
}

// HelperKind distinguishes a named function declaration from a
// function-valued binding.
type HelperKind string

const (
	HelperDeclaration HelperKind = "declaration"
	HelperBinding      HelperKind = "binding"
)

// Helper is one entry of H: a name matched by intercept_pattern together
// with the definition that must be shipped to the evaluator if the helper
// ends up in the extracted set E.
type Helper struct {
	Name string
	Kind HelperKind
	Span Span
	// ParamCount is the declared parameter count. No pipeline stage
	// consults it: extraction's and rewriting's argument-count windows
	// apply to each call's own argument count. Kept here for diagnostics.
	ParamCount int
}

// CallSite is one entry of Q: a call node, its resolved callee name, and
// its captured arguments when every argument was a literal.
type CallSite struct {
	Span Span
	Name string
	// Args is nil when at least one argument failed literal capture.
	Args []Value
	// Literal is true iff every argument captured (len(Args) == syntactic
	// argument count and none were rejected).
	Literal bool
	// Initializer is true iff the call lies in an initializer context
	// and must never be rewritten.
	Initializer bool
	// Key is the stable printed form of the call node, used both as R's
	// key and to correlate P entries back to their source location.
	Key string
}

// Pure reports whether a call site belongs to P: every argument literal
// and outside any initializer context.
func (c CallSite) Pure() bool {
	return c.Literal && !c.Initializer
}
