// Package cleanup runs after the rewriter: it finds helpers and
// initializer blocks that are now dead weight and applies the configured
// action to them.
package cleanup

import (
	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// Mode is one of the three actions available for a node marked dead.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeComment Mode = "comment"
	ModeRemove  Mode = "remove"
)

// Report lists what cleanup decided, independent of which Mode was applied,
// so callers (and tests) can inspect the decision without re-deriving it.
type Report struct {
	DeadHelpers     []string
	DeadInitializer []bool // parallel to the initializer statements found
}

// Apply runs dead-code analysis over the post-rewrite tree and returns the
// final source. mode == ModeNone still computes the same Report; it just
// never edits.
func Apply(root *syntax.Node, source []byte, helpers classify.Result, rewrittenKeys map[string]bool, mode Mode) ([]byte, Report, error) {
	edits := &syntax.EditSet{}
	report := Report{}

	for _, h := range helpers.Helpers {
		defNode := findDefinitionNode(root, h)
		if defNode == nil {
			continue
		}
		if isExportedTopLevel(root, source, h.Name) {
			continue
		}

		nameNode := defNode.ChildByFieldName("name")
		var excludeStart, excludeEnd uint32
		if nameNode != nil {
			excludeStart, excludeEnd = nameNode.StartByte(), nameNode.EndByte()
		}

		// root is the post-rewrite tree: rewritten call sites are already
		// gone from it, so any reference still counted here is a live use.
		liveRefs := countIdentifierRefs(root, source, h.Name, excludeStart, excludeEnd)

		if liveRefs == 0 {
			report.DeadHelpers = append(report.DeadHelpers, h.Name)
			applyAction(edits, defNode, source, mode)
		}
	}

	syntax.Traverse(root, func(n *syntax.Node, _ []*syntax.Node) bool {
		if !isTopLevelInitializer(root, n) {
			return true
		}
		if initializerFullyRewritten(n, source, helpers, rewrittenKeys) {
			report.DeadInitializer = append(report.DeadInitializer, true)
			applyAction(edits, n, source, mode)
		} else {
			report.DeadInitializer = append(report.DeadInitializer, false)
		}
		return false // initializer blocks are not nested in one another
	})

	out, err := edits.Apply(source)
	if err != nil {
		return nil, Report{}, err
	}
	return out, report, nil
}

func applyAction(edits *syntax.EditSet, n *syntax.Node, source []byte, mode Mode) {
	switch mode {
	case ModeComment:
		edits.Comment(n, source, "[cleanup]")
	case ModeRemove:
		edits.Remove(n)
	case ModeNone:
		// leave intact
	}
}

func findDefinitionNode(root *syntax.Node, h model.Helper) *syntax.Node {
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

// isExportedTopLevel treats a helper as exported when its name appears in a
// top-level `export` statement, or when a top-level assignment stores the
// bare helper name into module.exports itself or into a property of
// module.exports/exports/window/globalThis (whatever the property is
// called) — the common ways a single-file script keeps a binding reachable
// from outside itself.
func isExportedTopLevel(root *syntax.Node, source []byte, name string) bool {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() == "export_statement" {
			if containsIdentifier(stmt, source, name) {
				return true
			}
			continue
		}
		if stmt.Type() != "expression_statement" {
			continue
		}
		if stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment_expression" {
			continue
		}
		left := assign.ChildByFieldName("left")
		right := assign.ChildByFieldName("right")
		if right == nil || right.Type() != "identifier" || syntax.Print(right, source) != name {
			continue
		}
		if left == nil {
			continue
		}
		switch left.Type() {
		case "identifier":
			continue // plain rebind, not an export surface
		case "member_expression":
			obj := left.ChildByFieldName("object")
			if obj == nil {
				continue
			}
			objName := syntax.Print(obj, source)
			if objName == "module" || objName == "module.exports" || objName == "exports" || objName == "window" || objName == "globalThis" {
				return true
			}
		}
	}
	return false
}

func containsIdentifier(n *syntax.Node, source []byte, name string) bool {
	found := false
	syntax.Traverse(n, func(c *syntax.Node, _ []*syntax.Node) bool {
		if found {
			return false
		}
		if c.Type() == "identifier" && syntax.Print(c, source) == name {
			found = true
			return false
		}
		return true
	})
	return found
}

func countIdentifierRefs(root *syntax.Node, source []byte, name string, excludeStart, excludeEnd uint32) int {
	count := 0
	syntax.Traverse(root, func(n *syntax.Node, _ []*syntax.Node) bool {
		if n.Type() != "identifier" {
			return true
		}
		if syntax.Print(n, source) != name {
			return true
		}
		if n.StartByte() == excludeStart && n.EndByte() == excludeEnd {
			return true
		}
		count++
		return true
	})
	return count
}

// countRewritesFor counts the keys of rewrittenKeys whose callee name is
// name, one per distinct call text the rewriter replaced; the tree is not
// walked.
func countRewritesFor(rewrittenKeys map[string]bool, name string, _ *syntax.Node, _ []byte) int {
	count := 0
	for key := range rewrittenKeys {
		if keyCalleeName(key) == name {
			count++
		}
	}
	return count
}

// keyCalleeName recovers the callee name from a call site's printed form
// ("name(args)") without re-parsing it; call keys are always produced by
// syntax.Print on a call_expression, so the name is everything up to the
// first '('.
func keyCalleeName(key string) string {
	for i, c := range key {
		if c == '(' {
			return key[:i]
		}
	}
	return key
}

func isTopLevelInitializer(root *syntax.Node, n *syntax.Node) bool {
	if n.Parent() == nil {
		return false
	}
	if n.Parent().StartByte() != root.StartByte() || n.Parent().EndByte() != root.EndByte() {
		return false
	}
	switch n.Type() {
	case "do_statement", "while_statement", "try_statement":
		return true
	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return false
		}
		return n.NamedChild(0).Type() == "call_expression"
	default:
		return false
	}
}

// initializerFullyRewritten reports whether every call inside n whose
// callee resolves to a classified helper has already had its key consumed
// by the rewriter — no call node inside it still has a callee whose key
// isn't already in the rewritten set.
func initializerFullyRewritten(n *syntax.Node, source []byte, helpers classify.Result, rewrittenKeys map[string]bool) bool {
	allRewritten := true
	sawAny := false
	syntax.Traverse(n, func(c *syntax.Node, _ []*syntax.Node) bool {
		if c.Type() != "call_expression" {
			return true
		}
		callee := c.ChildByFieldName("function")
		if callee == nil || callee.Type() != "identifier" {
			return true
		}
		name := syntax.Print(callee, source)
		if _, ok := helpers.ByName[name]; !ok {
			return true
		}
		sawAny = true
		key := syntax.Print(c, source)
		if !rewrittenKeys[key] {
			allRewritten = false
		}
		return true
	})
	return sawAny && allRewritten
}
