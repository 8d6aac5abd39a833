// Package classify runs one traversal collecting every node that defines a
// name matched by intercept_pattern, as either a named declaration or a
// function-valued binding.
package classify

import (
	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// Result is the classified helper set together with a lookup from name to
// its defining node span.
type Result struct {
	Helpers []model.Helper
	ByName  map[string]model.Helper
}

// Helpers classifies every definition in root whose name matches pattern.
// Parameter-count constraints are deliberately not consulted here: they
// gate rewriting, not extraction.
func Helpers(root *syntax.Node, source []byte, pattern *coregex.Regexp) Result {
	var res Result

	syntax.Traverse(root, func(n *syntax.Node, ancestors []*syntax.Node) bool {
		switch n.Type() {
		case "function_declaration":
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			name := syntax.Print(nameNode, source)
			if !pattern.MatchString(name) {
				return true
			}
			res.Helpers = append(res.Helpers, newHelper(name, model.HelperDeclaration, n))

		case "variable_declarator":
			nameNode := n.ChildByFieldName("name")
			valueNode := n.ChildByFieldName("value")
			if nameNode == nil || valueNode == nil {
				return true
			}
			if !isRoutineLiteral(valueNode) {
				return true
			}
			name := syntax.Print(nameNode, source)
			if !pattern.MatchString(name) {
				return true
			}
			res.Helpers = append(res.Helpers, newHelper(name, model.HelperBinding, n))
		}
		return true
	})

	res.ByName = make(map[string]model.Helper, len(res.Helpers))
	for _, h := range res.Helpers {
		res.ByName[h.Name] = h
	}

	return res
}

// isRoutineLiteral reports whether n is an anonymous routine literal: a
// function expression or an arrow function.
func isRoutineLiteral(n *syntax.Node) bool {
	switch n.Type() {
	case "function", "function_expression", "arrow_function":
		return true
	default:
		return false
	}
}

func newHelper(name string, kind model.HelperKind, defNode *syntax.Node) model.Helper {
	h := model.Helper{
		Name: name,
		Kind: kind,
		Span: model.Span{Start: defNode.StartByte(), End: defNode.EndByte()},
	}
	if params := findParameters(defNode); params != nil {
		h.ParamCount = int(params.NamedChildCount())
	}
	return h
}

// findParameters locates the parameter list for a helper's defining node,
// whether it is a function_declaration directly or a variable_declarator
// whose value is a routine literal.
func findParameters(n *syntax.Node) *syntax.Node {
	switch n.Type() {
	case "function_declaration":
		return n.ChildByFieldName("parameters")
	case "variable_declarator":
		value := n.ChildByFieldName("value")
		if value == nil {
			return nil
		}
		if p := value.ChildByFieldName("parameters"); p != nil {
			return p
		}
		return value.ChildByFieldName("parameter")
	default:
		return nil
	}
}
