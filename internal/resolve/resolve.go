// Package resolve computes the transitive closure of helpers that must be
// shipped to the evaluator, and a best-effort topological order over it.
package resolve

import (
	"sort"

	"github.com/phobologic/unfoldgo/internal/callctx"
	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// Result is the resolver's output: the extracted helper set, a
// linearization of it (callees before their callers when the call graph
// restricted to that set is acyclic), and whether a cycle was detected
// (reported, not fatal).
type Result struct {
	Extracted  map[string]bool
	Order      []string
	HasCycle   bool
	CycleNames []string
}

// Closure computes the extracted helper set from the classified helpers,
// the call graph, the pure call set, and the additional seed names the
// extractor retains for out-of-window calls.
//
// Seeds:
//  1. every call in an initializer context whose callee is a helper;
//  2. every callee name appearing in pureCallees or in extraSeeds.
func Closure(root *syntax.Node, source []byte, helpers classify.Result, pureCallees []string, extraSeeds []string) Result {
	graph := buildGraph(root, source, helpers)

	seeds := make(map[string]bool)
	collectInitializerSeeds(root, source, helpers, seeds)
	for _, name := range pureCallees {
		if _, ok := helpers.ByName[name]; ok {
			seeds[name] = true
		}
	}
	for _, name := range extraSeeds {
		if _, ok := helpers.ByName[name]; ok {
			seeds[name] = true
		}
	}

	extracted := closure(seeds, graph)

	order, hasCycle, cycleNames := linearize(extracted, graph)

	return Result{
		Extracted:  extracted,
		Order:      order,
		HasCycle:   hasCycle,
		CycleNames: cycleNames,
	}
}

// buildGraph builds the call graph: an edge a → b iff a's body contains a
// call whose callee name is b and b is a classified helper.
func buildGraph(root *syntax.Node, source []byte, helpers classify.Result) map[string]map[string]bool {
	graph := make(map[string]map[string]bool, len(helpers.Helpers))
	for _, h := range helpers.Helpers {
		graph[h.Name] = make(map[string]bool)
	}

	syntax.Traverse(root, func(n *syntax.Node, ancestors []*syntax.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		name, ok := callctx.CalleeName(n, source)
		if !ok {
			return true
		}
		if _, ok := helpers.ByName[name]; !ok {
			return true
		}
		caller := enclosingHelper(ancestors, helpers)
		if caller == "" {
			return true
		}
		graph[caller][name] = true
		return true
	})

	return graph
}

// enclosingHelper finds the nearest ancestor that is itself a helper
// definition, by byte-range containment against each helper's span.
func enclosingHelper(ancestors []*syntax.Node, helpers classify.Result) string {
	for i := len(ancestors) - 1; i >= 0; i-- {
		a := ancestors[i]
		for _, h := range helpers.Helpers {
			if a.StartByte() == h.Span.Start && a.EndByte() == h.Span.End {
				return h.Name
			}
		}
	}
	return ""
}

// collectInitializerSeeds walks the tree once, seeding from every call
// inside an initializer context whose callee is a classified helper.
func collectInitializerSeeds(root *syntax.Node, source []byte, helpers classify.Result, seeds map[string]bool) {
	syntax.Traverse(root, func(n *syntax.Node, ancestors []*syntax.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		if !callctx.InInitializerContext(ancestors) {
			return true
		}
		name, ok := callctx.CalleeName(n, source)
		if !ok {
			return true
		}
		if _, ok := helpers.ByName[name]; ok {
			seeds[name] = true
		}
		return true
	})
}

// closure computes the fixed point of seeds under graph, using a
// visited-set so cycles (including self-edges) terminate.
func closure(seeds map[string]bool, graph map[string]map[string]bool) map[string]bool {
	visited := make(map[string]bool)
	var stack []string
	for s := range seeds {
		stack = append(stack, s)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		for succ := range graph[n] {
			if !visited[succ] {
				stack = append(stack, succ)
			}
		}
	}
	return visited
}

// linearize orders the extracted set so each helper comes after the
// helpers it calls, when possible (Kahn's algorithm, reversed); any helper
// left over once no more zero-in-degree nodes exist is on a cycle or is
// called from one, and is appended in a deterministic (sorted) order
// instead.
func linearize(extracted map[string]bool, graph map[string]map[string]bool) ([]string, bool, []string) {
	names := make([]string, 0, len(extracted))
	for n := range extracted {
		names = append(names, n)
	}
	sort.Strings(names)

	inDegree := make(map[string]int, len(names))
	for _, n := range names {
		inDegree[n] = 0
	}
	for _, n := range names {
		for succ := range graph[n] {
			if succ == n {
				continue // self-edge, silently absorbed
			}
			if _, ok := inDegree[succ]; ok {
				inDegree[succ]++
			}
		}
	}

	var queue []string
	for _, n := range names {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	removed := make(map[string]bool)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if removed[n] {
			continue
		}
		removed[n] = true
		order = append(order, n)

		var freed []string
		for succ := range graph[n] {
			if succ == n || removed[succ] {
				continue
			}
			if _, ok := inDegree[succ]; !ok {
				continue
			}
			inDegree[succ]--
			if inDegree[succ] == 0 {
				freed = append(freed, succ)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	// Kahn's pass emits callers before callees; reverse it so every helper
	// follows the helpers it calls.
	for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
		order[l], order[r] = order[r], order[l]
	}

	if len(order) == len(names) {
		return order, false, nil
	}

	var remaining []string
	for _, n := range names {
		if !removed[n] {
			remaining = append(remaining, n)
		}
	}
	sort.Strings(remaining)
	order = append(order, remaining...)
	return order, true, remaining
}
