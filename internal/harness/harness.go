// Package harness assembles a single self-contained program from the
// extracted helper set, the source's initializer blocks, and the driver
// calls for every pure call site, then hands that program to the sandbox
// evaluator and copies its results back into the result map.
package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phobologic/unfoldgo/internal/callctx"
	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/corefail"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/resolve"
	"github.com/phobologic/unfoldgo/internal/sandbox"
	"github.com/phobologic/unfoldgo/internal/syntax"
	"github.com/phobologic/unfoldgo/internal/trace"
)

// DefaultTimeout is the wall-clock bound assigned to the sandbox call
// when the configuration does not override it.
const DefaultTimeout = 30 * time.Second

// Result is the harness's output: the results map and the diagnostic
// trace log, both empty together whenever the sandbox call itself
// failed. Diagnostics carries one corefail entry per contained failure —
// a sandbox-level timeout/crash, or a single call that threw or never
// landed a representable value — none of which abort the run.
type Result struct {
	Values      map[string]model.Value
	Trace       []sandbox.TraceEntry
	Status      sandbox.Status
	Diagnostics []error
}

// isInitializerStatement reports the top-level statement shapes treated
// as initializer contexts: immediately-invoked blocks, do/while loops, and
// try/catch, emitted verbatim into the context body.
func isInitializerStatement(n *syntax.Node) bool {
	switch n.Type() {
	case "do_statement", "while_statement", "try_statement":
		return true
	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return false
		}
		child := n.NamedChild(0)
		return child.Type() == "call_expression" && callctx.IsImmediatelyInvoked(child)
	default:
		return false
	}
}

// Assemble builds the evaluator program text: preamble, context body,
// driver.
func Assemble(root *syntax.Node, source []byte, helpers classify.Result, dep resolve.Result, pure []model.CallSite) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n// -- context body --\n")

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if isInitializerStatement(stmt) {
			b.WriteString(syntax.Print(stmt, source))
			b.WriteString("\n")
		}
	}

	for _, name := range dep.Order {
		h, ok := helpers.ByName[name]
		if !ok {
			continue
		}
		node := findHelperNode(root, h)
		if node == nil {
			continue
		}
		if h.Kind == "binding" {
			// node is the variable_declarator, whose text already starts
			// with the bound name.
			b.WriteString("var ")
			b.WriteString(syntax.Print(node, source))
			b.WriteString(";\n")
		} else {
			b.WriteString(syntax.Print(node, source))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n// -- driver --\n")
	for _, cs := range pure {
		b.WriteString("safe_call(")
		b.WriteString(cs.Name)
		b.WriteString(", [")
		for i, a := range cs.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Literal())
		}
		b.WriteString("], ")
		b.WriteString(quoteKey(cs.Key))
		b.WriteString(");\n")
	}

	return b.String()
}

// findHelperNode re-locates the definition node behind a classified helper
// by its recorded byte span; classify only records spans (see model.Span's
// doc comment) precisely so callers like this one can walk back to a node
// when they actually need one.
func findHelperNode(root *syntax.Node, h model.Helper) *syntax.Node {
	var found *syntax.Node
	syntax.Traverse(root, func(n *syntax.Node, _ []*syntax.Node) bool {
		if found != nil {
			return false
		}
		if n.StartByte() == h.Span.Start && n.EndByte() == h.Span.End {
			found = n
			return false
		}
		return true
	})
	return found
}

func quoteKey(key string) string {
	return fmt.Sprintf("%q", key)
}

// preamble declares the results map, a trace log, and safe_call. The text
// lives in internal/sandbox (sandbox.Preamble) since that package's
// interpreter is what has to agree on the __results/__trace contract; this
// package only splices it into the assembled program.
const preamble = sandbox.Preamble

// Run assembles the program and hands it to the sandbox evaluator,
// enforcing timeout as the pipeline's sole suspension point. traceLines
// opens one span per call-site trace entry, attributed with its elapsed
// time and outcome, when set.
func Run(ctx context.Context, root *syntax.Node, source []byte, helpers classify.Result, dep resolve.Result, pure []model.CallSite, timeout time.Duration, traceLines bool) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	program := Assemble(root, source, helpers, dep, pure)

	outcome, err := sandbox.Evaluate(ctx, program, timeout)
	if err != nil {
		return Result{
			Values:      map[string]model.Value{},
			Status:      outcome.Status,
			Diagnostics: []error{corefail.SandboxCrash{Cause: err}},
		}
	}

	switch outcome.Status {
	case sandbox.StatusTimeout:
		return Result{
			Values:      map[string]model.Value{},
			Status:      outcome.Status,
			Diagnostics: []error{corefail.SandboxTimeout{Timeout: timeout.String()}},
		}
	case sandbox.StatusFatal:
		return Result{
			Values:      map[string]model.Value{},
			Status:      outcome.Status,
			Diagnostics: []error{corefail.SandboxCrash{Cause: errors.New(outcome.Fatal)}},
		}
	}

	if traceLines {
		for _, entry := range outcome.Trace {
			_, end := trace.CallSite(ctx, entry.Call)
			end(trace.String("call.status", callStatus(entry)), trace.Int("call.elapsed_ms", int(entry.ElapsedMs)))
		}
	}

	values := make(map[string]model.Value, len(outcome.Results))
	for key, v := range outcome.Results {
		values[key] = v
	}

	var diagnostics []error
	traceByKey := make(map[string]sandbox.TraceEntry, len(outcome.Trace))
	for _, entry := range outcome.Trace {
		traceByKey[entry.Call] = entry
	}
	for _, cs := range pure {
		if _, ok := values[cs.Key]; ok {
			continue
		}
		if entry, ok := traceByKey[cs.Key]; ok && entry.Error != "" {
			diagnostics = append(diagnostics, corefail.PerCallFailure{Key: cs.Key, Cause: errors.New(entry.Error)})
			continue
		}
		diagnostics = append(diagnostics, corefail.PerCallFailure{Key: cs.Key, Cause: errors.New("call did not produce a representable value")})
	}

	return Result{Values: values, Trace: outcome.Trace, Status: outcome.Status, Diagnostics: diagnostics}
}

func callStatus(entry sandbox.TraceEntry) string {
	if entry.Error != "" {
		return "error"
	}
	return "ok"
}
