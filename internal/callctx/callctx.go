// Package callctx holds the call-site rules shared by the dependency
// resolver and the call-site extractor: how a callee name is resolved and
// what counts as an initializer context.
package callctx

import (
	"github.com/phobologic/unfoldgo/internal/reserved"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// CalleeName resolves a call node's callee name: a plain identifier
// resolves to its own name; a member access resolves to the property name
// unless that name is a reserved word, in which case the call is rejected
// outright.
func CalleeName(call *syntax.Node, source []byte) (string, bool) {
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return "", false
	}
	return resolveCallee(callee, source)
}

func resolveCallee(n *syntax.Node, source []byte) (string, bool) {
	switch n.Type() {
	case "identifier":
		return syntax.Print(n, source), true

	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil {
			return "", false
		}
		name := syntax.Print(prop, source)
		if reserved.Is(name) {
			return "", false
		}
		return name, true

	case "parenthesized_expression":
		if inner := unwrapParens(n); inner != nil {
			return resolveCallee(inner, source)
		}
		return "", false

	default:
		return "", false
	}
}

func unwrapParens(n *syntax.Node) *syntax.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		return n.NamedChild(i)
	}
	return nil
}

// IsImmediatelyInvoked reports whether call is an immediately-invoked
// routine block: its callee is an inline function/arrow literal, optionally
// wrapped in parentheses.
func IsImmediatelyInvoked(call *syntax.Node) bool {
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return false
	}
	return isRoutineLiteral(unwrapToLiteral(callee))
}

func unwrapToLiteral(n *syntax.Node) *syntax.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		n = unwrapParens(n)
	}
	return n
}

func isRoutineLiteral(n *syntax.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "function", "function_expression", "arrow_function":
		return true
	default:
		return false
	}
}

// InInitializerContext reports whether a node with the given ancestor chain
// (root-first, as produced by syntax.Traverse) lies in an initializer
// context: inside an IIFE, inside a do/while loop, or inside a try/catch
// block.
func InInitializerContext(ancestors []*syntax.Node) bool {
	for _, a := range ancestors {
		switch a.Type() {
		case "do_statement", "while_statement":
			return true
		case "try_statement", "catch_clause":
			return true
		case "call_expression":
			if IsImmediatelyInvoked(a) {
				return true
			}
		}
	}
	return false
}
