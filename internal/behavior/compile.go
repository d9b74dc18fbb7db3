package behavior

import (
	"fmt"
	"log/slog"

	bt "github.com/joeycumines/go-behaviortree"
)

// Instantiate compiles tree id into a go-behaviortree node whose leaves are
// bound to ctx. Each instance compiles a sub-tree at most once, on first use,
// so recursive trees are allowed.
func (r *Registry[C]) Instantiate(id TreeID, ctx C) (bt.Node, error) {
	if !r.resolved {
		return nil, ErrUnresolved
	}
	if id < 0 || int(id) >= len(r.roots) {
		return nil, fmt.Errorf("instantiate tree %d: %w", id, ErrUnknownTree)
	}
	in := &instance[C]{
		reg:   r,
		ctx:   ctx,
		trees: make([]bt.Node, len(r.roots)),
	}
	return in.tree(id), nil
}

// InstantiateNamed is Instantiate by tree name.
func (r *Registry[C]) InstantiateNamed(name string, ctx C) (bt.Node, error) {
	id, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("instantiate %q: %w", name, ErrUnknownTree)
	}
	return r.Instantiate(id, ctx)
}

type instance[C any] struct {
	reg   *Registry[C]
	ctx   C
	trees []bt.Node
}

func (in *instance[C]) tree(id TreeID) bt.Node {
	if in.trees[id] == nil {
		in.trees[id] = in.compile(in.reg.roots[id])
	}
	return in.trees[id]
}

func (in *instance[C]) compile(n Node[C]) bt.Node {
	switch n.kind {
	case KindSelector:
		return bt.New(bt.Selector, in.compileAll(n.children)...)
	case KindIfElse:
		return bt.New(ifElse, in.compileAll(n.children)...)
	case KindNot:
		return bt.New(bt.Not(bt.Sequence), in.compile(n.children[0]))
	case KindClosure:
		leaf, ctx := n.leaf, in.ctx
		return bt.New(func([]bt.Node) (bt.Status, error) {
			return leaf(ctx).bt(), nil
		})
	case KindSub:
		id := n.tree
		return func() (bt.Tick, []bt.Node) {
			return in.tree(id)()
		}
	default:
		return bt.New(bt.Sequence, in.compileAll(n.children)...)
	}
}

func (in *instance[C]) compileAll(nodes []Node[C]) []bt.Node {
	out := make([]bt.Node, len(nodes))
	for i, n := range nodes {
		out[i] = in.compile(n)
	}
	return out
}

// ifElse ticks children[0] and then children[1] on Success or children[2]
// on Failure.
func ifElse(children []bt.Node) (bt.Status, error) {
	status, err := children[0].Tick()
	if err != nil {
		return bt.Failure, err
	}
	switch status {
	case bt.Running:
		return bt.Running, nil
	case bt.Success:
		return children[1].Tick()
	default:
		return children[2].Tick()
	}
}

// Run ticks root once. Errors raised while ticking are logged and reported as
// Failure so they never propagate past the root.
func Run(root bt.Node, logger *slog.Logger) Status {
	status, err := root.Tick()
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("behavior tick failed", "error", err)
		return Failure
	}
	return fromBT(status)
}
