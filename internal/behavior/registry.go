package behavior

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateTree is returned by Define for a name already in use.
	ErrDuplicateTree = errors.New("behavior tree already defined")
	// ErrUnknownTree is returned by Resolve when a Sub names no defined tree.
	ErrUnknownTree = errors.New("unknown behavior tree")
	// ErrUnresolved is returned by Instantiate before a successful Resolve.
	ErrUnresolved = errors.New("behavior registry not resolved")
)

// TreeID is the arena index of a tree in a Registry.
type TreeID int

// Registry is an arena of named trees sharing one context type. Define every
// tree, call Resolve once, then Instantiate per agent. A Registry must not be
// modified concurrently with Instantiate.
type Registry[C any] struct {
	names    []string
	roots    []Node[C]
	byName   map[string]TreeID
	resolved bool
}

// NewRegistry returns an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{byName: make(map[string]TreeID)}
}

// Define stores a tree under name and returns its ID. Sub references inside
// root may name trees that are defined later.
func (r *Registry[C]) Define(name string, root Node[C]) (TreeID, error) {
	if _, dup := r.byName[name]; dup {
		return unresolved, fmt.Errorf("define %q: %w", name, ErrDuplicateTree)
	}
	id := TreeID(len(r.roots))
	r.names = append(r.names, name)
	r.roots = append(r.roots, root)
	r.byName[name] = id
	r.resolved = false
	return id, nil
}

// Resolve rewrites every Sub(name) into a direct tree index. It reports every
// unknown name, wrapped around ErrUnknownTree.
func (r *Registry[C]) Resolve() error {
	var errs []error
	for i, root := range r.roots {
		resolvedRoot, err := r.resolve(root, r.names[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.roots[i] = resolvedRoot
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.resolved = true
	return nil
}

func (r *Registry[C]) resolve(n Node[C], tree string) (Node[C], error) {
	if n.kind == KindSub {
		id, ok := r.byName[n.name]
		if !ok {
			return n, fmt.Errorf("tree %q: Sub(%q): %w", tree, n.name, ErrUnknownTree)
		}
		n.tree = id
		return n, nil
	}
	if len(n.children) == 0 {
		return n, nil
	}
	children := make([]Node[C], len(n.children))
	var errs []error
	for i, c := range n.children {
		rc, err := r.resolve(c, tree)
		if err != nil {
			errs = append(errs, err)
		}
		children[i] = rc
	}
	n.children = children
	return n, errors.Join(errs...)
}

// Lookup returns the ID of a named tree.
func (r *Registry[C]) Lookup(name string) (TreeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Tree returns the definition stored under id.
func (r *Registry[C]) Tree(id TreeID) (Node[C], bool) {
	if id < 0 || int(id) >= len(r.roots) {
		return Node[C]{}, false
	}
	return r.roots[id], true
}

// Names returns the defined tree names, sorted.
func (r *Registry[C]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	sort.Strings(out)
	return out
}

// Resolved reports whether the registry is ready to instantiate.
func (r *Registry[C]) Resolved() bool {
	return r.resolved
}
