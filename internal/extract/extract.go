// Package extract enumerates candidate call sites, resolves their callee,
// captures literal arguments, and produces the pure call set plus the set
// of helper names that must still seed the dependency resolver even when a
// call falls outside the rewrite window.
package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/callctx"
	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/corefail"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
	"github.com/phobologic/unfoldgo/internal/trace"
)

// Config is the subset of the pipeline configuration the extractor
// consults.
type Config struct {
	InterceptPattern   *coregex.Regexp
	FunctionNameFilter *coregex.Regexp // nil when not configured
	MinArgs            int
	MaxArgs            int
	// TraceLines opens one span per candidate call site when set.
	TraceLines bool
}

// Result holds the pure call set (usable for rewriting), the additional
// helper names that passed every extraction test except the
// argument-count window, and any classifier inconsistencies noticed along
// the way.
type Result struct {
	Pure        []model.CallSite
	SeedNames   []string
	Diagnostics []error
}

// CallSites runs one traversal of root, yielding Result. helpers is the
// already-classified helper set; a call whose callee matches
// intercept_pattern but names no classified definition is reported as a
// corefail.ClassifierInconsistency and otherwise ignored — extraction has
// nothing to ship for a helper the source never defines.
func CallSites(ctx context.Context, root *syntax.Node, source []byte, cfg Config, helpers classify.Result) Result {
	var res Result

	syntax.Traverse(root, func(n *syntax.Node, ancestors []*syntax.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		if !isCandidateContext(n) {
			return true
		}

		name, ok := callctx.CalleeName(n, source)
		if !ok {
			return true
		}
		if !cfg.InterceptPattern.MatchString(name) {
			return true
		}
		if cfg.FunctionNameFilter != nil && !cfg.FunctionNameFilter.MatchString(name) {
			return true
		}

		if cfg.TraceLines {
			_, end := trace.CallSite(ctx, syntax.Print(n, source))
			defer end()
		}

		if _, ok := helpers.ByName[name]; !ok {
			res.Diagnostics = append(res.Diagnostics, corefail.ClassifierInconsistency{Name: name})
			return true
		}

		if callctx.InInitializerContext(ancestors) {
			return true
		}

		args, ok := captureArgs(n, source)
		if !ok {
			return true
		}

		if len(args) < cfg.MinArgs || len(args) > cfg.MaxArgs {
			res.SeedNames = append(res.SeedNames, name)
			return true
		}

		res.Pure = append(res.Pure, model.CallSite{
			Span:    model.Span{Start: n.StartByte(), End: n.EndByte()},
			Name:    name,
			Args:    args,
			Literal: true,
			Key:     syntax.Print(n, source),
		})
		return true
	})

	return res
}

// isCandidateContext reports whether call appears in one of the eligible
// syntactic positions: plain statement expression, binding/assignment
// right-hand side, object-field value, array element, or nested call
// argument.
func isCandidateContext(call *syntax.Node) bool {
	parent := call.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "expression_statement", "array", "arguments":
		return true
	case "variable_declarator":
		return sameSpan(parent.ChildByFieldName("value"), call)
	case "assignment_expression":
		return sameSpan(parent.ChildByFieldName("right"), call)
	case "pair":
		return sameSpan(parent.ChildByFieldName("value"), call)
	default:
		return false
	}
}

func sameSpan(a, b *syntax.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// captureArgs attempts literal capture for every syntactic argument. A
// single non-literal argument rejects the whole call.
func captureArgs(call *syntax.Node, source []byte) ([]model.Value, bool) {
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil, false
	}

	n := int(argsNode.NamedChildCount())
	values := make([]model.Value, 0, n)
	for i := 0; i < n; i++ {
		arg := argsNode.NamedChild(i)
		v, ok := captureLiteral(arg, source)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// captureLiteral captures a single literal argument, including the unary
// negation of a numeric literal, which yields its negated value.
func captureLiteral(n *syntax.Node, source []byte) (model.Value, bool) {
	switch n.Type() {
	case "string":
		s, err := unquoteJS(syntax.Print(n, source))
		if err != nil {
			return model.Value{}, false
		}
		return model.String(s), true

	case "number":
		return captureNumber(syntax.Print(n, source), false)

	case "true":
		return model.Boolean(true), true
	case "false":
		return model.Boolean(false), true
	case "null":
		return model.Null(), true

	case "identifier":
		if syntax.Print(n, source) == "undefined" {
			return model.Absent(), true
		}
		return model.Value{}, false

	case "unary_expression":
		opNode := n.ChildByFieldName("operator")
		argNode := n.ChildByFieldName("argument")
		if opNode == nil || argNode == nil {
			return model.Value{}, false
		}
		if syntax.Print(opNode, source) != "-" || argNode.Type() != "number" {
			return model.Value{}, false
		}
		return captureNumber(syntax.Print(argNode, source), true)

	default:
		return model.Value{}, false
	}
}

func captureNumber(text string, negate bool) (model.Value, bool) {
	if strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return model.Value{}, false
		}
		if negate {
			f = -f
		}
		return model.Fractional(f), true
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return model.Value{}, false
		}
		if negate {
			f = -f
		}
		return model.Fractional(f), true
	}
	if negate {
		i = -i
	}
	return model.Integer(i), true
}

// unquoteJS strips the surrounding quotes (single, double, or backtick) and
// resolves the small set of escapes the target language's literal grammar
// supports.
func unquoteJS(raw string) (string, error) {
	if len(raw) < 2 {
		return "", strconv.ErrSyntax
	}
	quote := raw[0]
	body := raw[1 : len(raw)-1]

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"', '`':
			b.WriteByte(esc)
		default:
			b.WriteByte(esc)
		}
	}
	_ = quote
	return b.String(), nil
}
