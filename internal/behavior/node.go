package behavior

import "strings"

// Kind tags the variant of a Node.
type Kind uint8

const (
	KindSequence Kind = iota
	KindSelector
	KindIfElse
	KindNot
	KindClosure
	KindSub
)

// Leaf is the function behind a Closure node. It runs to completion
// synchronously and may read and write the context it is given.
type Leaf[C any] func(ctx C) Status

// unresolved marks a Sub node whose name has not been resolved to an index.
const unresolved TreeID = -1

// Node is an immutable behavior-tree definition parameterized by the context
// type its leaves receive. Construct nodes with the functions below; the zero
// Node is an empty Sequence.
type Node[C any] struct {
	kind     Kind
	name     string // Closure label or Sub target
	children []Node[C]
	leaf     Leaf[C]
	tree     TreeID // Sub target after Resolve
}

// Sequence succeeds if every child succeeds, ticking them in order and
// stopping at the first child that does not succeed.
func Sequence[C any](children ...Node[C]) Node[C] {
	return Node[C]{kind: KindSequence, children: clone(children)}
}

// Selector succeeds at the first child that succeeds, ticking them in order.
// It fails only if every child fails.
func Selector[C any](children ...Node[C]) Node[C] {
	return Node[C]{kind: KindSelector, children: clone(children)}
}

// IfElse ticks cond, then exactly one of then or els depending on its result,
// and returns that branch's status. A Running cond returns Running without
// ticking either branch.
func IfElse[C any](cond, then, els Node[C]) Node[C] {
	return Node[C]{kind: KindIfElse, children: []Node[C]{cond, then, els}}
}

// Not swaps Success and Failure. Running passes through.
func Not[C any](child Node[C]) Node[C] {
	return Node[C]{kind: KindNot, children: []Node[C]{child}}
}

// Closure wraps a leaf function. The name is used for diagnostics only.
func Closure[C any](name string, fn func(ctx C) Status) Node[C] {
	return Node[C]{kind: KindClosure, name: name, leaf: fn}
}

// Sub refers to another tree in the same Registry by name.
func Sub[C any](name string) Node[C] {
	return Node[C]{kind: KindSub, name: name, tree: unresolved}
}

// Kind returns the node's variant.
func (n Node[C]) Kind() Kind { return n.kind }

// Name returns the closure label or sub-tree name; empty for combinators.
func (n Node[C]) Name() string { return n.name }

// Children returns a copy of the node's children.
func (n Node[C]) Children() []Node[C] { return clone(n.children) }

// String renders the tree in constructor notation, e.g.
// "Selector(a, Not(b))". Sub-trees are shown by name, not expanded.
func (n Node[C]) String() string {
	var sb strings.Builder
	n.format(&sb)
	return sb.String()
}

func (n Node[C]) format(sb *strings.Builder) {
	switch n.kind {
	case KindClosure:
		sb.WriteString(n.name)
		return
	case KindSub:
		sb.WriteString(`Sub("`)
		sb.WriteString(n.name)
		sb.WriteString(`")`)
		return
	case KindSequence:
		sb.WriteString("Sequence(")
	case KindSelector:
		sb.WriteString("Selector(")
	case KindIfElse:
		sb.WriteString("IfElse(")
	case KindNot:
		sb.WriteString("Not(")
	}
	for i, c := range n.children {
		if i > 0 {
			sb.WriteString(", ")
		}
		c.format(sb)
	}
	sb.WriteByte(')')
}

func clone[C any](nodes []Node[C]) []Node[C] {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Node[C], len(nodes))
	copy(out, nodes)
	return out
}
