// Package blackboard provides the per-agent scratch store that carries state
// across ticks and across behavior-tree nodes.
//
// Keys form a closed, process-wide set declared at package init with NewKey.
// Each key is bound to one value type at compile time, so reading a key as the
// wrong type cannot be expressed. Every key owns a dense slot index assigned at
// declaration; a Blackboard is a slice of optional values indexed by that slot.
package blackboard

import (
	"fmt"
	"sync"
)

var registry = struct {
	mu    sync.Mutex
	names []string
	slots map[string]int
}{slots: make(map[string]int)}

// AnyKey is implemented by every Key regardless of value type. It is accepted
// by the type-agnostic Blackboard methods.
type AnyKey interface {
	Name() string
	slot() int
}

// Key addresses one typed slot of every Blackboard.
type Key[T any] struct {
	name string
	idx  int
}

// NewKey declares a key. Names are unique per process; declaring the same name
// twice is a programming error and panics.
func NewKey[T any](name string) Key[T] {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, dup := registry.slots[name]; dup {
		panic(fmt.Sprintf("blackboard: key %q declared twice", name))
	}
	idx := len(registry.names)
	registry.names = append(registry.names, name)
	registry.slots[name] = idx
	return Key[T]{name: name, idx: idx}
}

// Name returns the key's declared name.
func (k Key[T]) Name() string { return k.name }

func (k Key[T]) slot() int { return k.idx }

func (k Key[T]) String() string { return k.name }

// Declared returns the names of all declared keys in slot order.
func Declared() []string {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]string, len(registry.names))
	copy(out, registry.names)
	return out
}
