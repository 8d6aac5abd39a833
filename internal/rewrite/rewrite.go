// Package rewrite walks the tree once more and splices in a literal
// wherever a call's printed form is a key of the results map.
package rewrite

import (
	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/callctx"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// Config mirrors the slice of the pipeline configuration the rewriter
// consults: the same helper pattern and argument-count window the
// extractor used, so a call is only ever rewritten under the rules that
// made it eligible in the first place.
type Config struct {
	InterceptPattern *coregex.Regexp
	MinArgs, MaxArgs int
}

// Result reports how many call sites were actually replaced, which the
// cleanup stage needs to decide whether a helper has zero live uses
// left.
type Result struct {
	RewrittenKeys map[string]bool
	Output        []byte
}

// Apply performs the single traversal-and-splice pass. When
// disableReplace is set, it is a no-op that returns source unchanged: the
// traversal is not performed at all.
func Apply(root *syntax.Node, source []byte, cfg Config, values map[string]model.Value, disableReplace bool) (Result, error) {
	if disableReplace {
		return Result{RewrittenKeys: map[string]bool{}, Output: source}, nil
	}

	edits := &syntax.EditSet{}
	rewritten := make(map[string]bool)

	syntax.Traverse(root, func(n *syntax.Node, ancestors []*syntax.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}

		name, ok := callctx.CalleeName(n, source)
		if !ok || !cfg.InterceptPattern.MatchString(name) {
			return true
		}

		if callctx.InInitializerContext(ancestors) {
			return true
		}

		argCount := argumentCount(n)
		if argCount < cfg.MinArgs || argCount > cfg.MaxArgs {
			return true
		}

		key := syntax.Print(n, source)
		v, ok := values[key]
		if !ok || v.Kind == model.KindUnrepresentable {
			return true
		}

		edits.Replace(n, v.Literal())
		rewritten[key] = true
		return true
	})

	out, err := edits.Apply(source)
	if err != nil {
		return Result{}, err
	}
	return Result{RewrittenKeys: rewritten, Output: out}, nil
}

func argumentCount(call *syntax.Node) int {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}
