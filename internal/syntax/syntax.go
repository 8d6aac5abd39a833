// Package syntax is the Syntax Analyzer: it parses source into a
// traversable tree, prints subtrees back to text, and accumulates
// in-place-looking replacements that are applied as one pass over the
// original bytes.
//
// It is built directly on go-tree-sitter, narrowed from a multi-language
// tag extractor to a single-grammar (javascript-family) analyzer with a
// rewrite facility a tag extractor never needed.
package syntax

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Node is the tree-sitter node type re-exported so callers outside this
// package never import smacker/go-tree-sitter directly.
type Node = sitter.Node

var language = javascript.GetLanguage()

// Tree wraps a parsed program together with the source it was parsed
// from. Parsing the printed form of any subtree reproduces that subtree
// up to whitespace/comments, because Print never normalizes anything; it
// only slices the original bytes.
type Tree struct {
	source []byte
	tree   *sitter.Tree
}

// Parse builds a Tree from source. Parse failure is fatal; the error
// wraps enough of the tree-sitter diagnostics to name an offending
// offset.
func Parse(ctx context.Context, source []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(language)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		if n := firstErrorNode(root); n != nil {
			return nil, fmt.Errorf("syntax error at byte offset %d", n.StartByte())
		}
		return nil, fmt.Errorf("syntax error (offset unknown)")
	}

	return &Tree{source: source, tree: tree}, nil
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
	}
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.tree.RootNode() }

// Source returns the original bytes T was parsed from. Callers must treat
// this as read-only; rewriting goes through EditSet, never direct mutation.
func (t *Tree) Source() []byte { return t.source }

func firstErrorNode(n *Node) *Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// Print returns the exact source text spanned by n — the deterministic
// printer used both to form result-map keys and to emit the revised
// program.
func Print(n *Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

// Visitor is called for every node in a depth-first traversal, with the
// chain of ancestors (root first, immediate parent last). Returning false
// skips the node's children.
type Visitor func(n *Node, ancestors []*Node) bool

// Traverse walks the tree depth-first, read-only, giving each visitor
// call knowledge of its parent chain.
func Traverse(root *Node, visit Visitor) {
	traverse(root, nil, visit)
}

func traverse(n *Node, ancestors []*Node, visit Visitor) {
	if !visit(n, ancestors) {
		return
	}
	next := make([]*Node, len(ancestors)+1)
	copy(next, ancestors)
	next[len(ancestors)] = n
	for i := 0; i < int(n.ChildCount()); i++ {
		traverse(n.Child(i), next, visit)
	}
}

// Edit is one accumulated byte-range substitution.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
}

// EditSet accumulates the substitutions rewriting and cleanup decide on
// during a read-only traversal of the tree, so mutation happens in
// exactly one pass over the source rather than node-by-node (tree-sitter
// trees are not mutable in place).
type EditSet struct {
	edits []Edit
}

// Replace records that the text spanned by n should become text.
func (es *EditSet) Replace(n *Node, text string) {
	es.edits = append(es.edits, Edit{Start: n.StartByte(), End: n.EndByte(), Text: text})
}

// Remove records that the text spanned by n should be deleted.
func (es *EditSet) Remove(n *Node) {
	es.Replace(n, "")
}

// Comment records that the text spanned by n should be wrapped in a block
// comment, for the "comment" cleanup action.
func (es *EditSet) Comment(n *Node, source []byte, prefix string) {
	original := Print(n, source)
	es.Replace(n, "/* "+prefix+" "+original+" */")
}

// Len reports the number of pending edits.
func (es *EditSet) Len() int { return len(es.edits) }

// Apply splices every accumulated edit into source in one pass: edits are
// sorted by start offset and written into a new buffer, with the untouched
// bytes between them copied across, so every offset refers to the
// original source.
// Overlapping edits are a programmer error (two stages both decided to
// replace the same node) and are rejected rather than silently resolved.
func (es *EditSet) Apply(source []byte) ([]byte, error) {
	edits := make([]Edit, len(es.edits))
	copy(edits, es.edits)
	sort.Slice(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })

	for i := 1; i < len(edits); i++ {
		if edits[i].Start < edits[i-1].End {
			return nil, fmt.Errorf("overlapping edits at byte %d and %d", edits[i-1].Start, edits[i].Start)
		}
	}

	out := make([]byte, 0, len(source))
	cursor := uint32(0)
	for _, e := range edits {
		out = append(out, source[cursor:e.Start]...)
		out = append(out, []byte(e.Text)...)
		cursor = e.End
	}
	out = append(out, source[cursor:]...)
	return out, nil
}
