package blackboard

// Blackboard holds one agent's scratch values. The zero value is empty and
// ready to use. It is not safe for concurrent use; each agent owns its own.
type Blackboard struct {
	// slots[i] is nil when key i is absent, otherwise a *T for the key's T.
	slots []any
	count int
}

// New returns an empty blackboard.
func New() *Blackboard {
	return &Blackboard{}
}

func (b *Blackboard) at(i int) any {
	if i >= len(b.slots) {
		return nil
	}
	return b.slots[i]
}

func (b *Blackboard) put(i int, v any) {
	if i >= len(b.slots) {
		grown := make([]any, i+1, max(i+1, 2*len(b.slots)))
		copy(grown, b.slots)
		b.slots = grown
	}
	if b.slots[i] == nil {
		b.count++
	}
	b.slots[i] = v
}

// Insert stores v under k, replacing any previous value, and returns the
// previous value if there was one.
func Insert[T any](b *Blackboard, k Key[T], v T) (T, bool) {
	old, had := Get(b, k)
	p := new(T)
	*p = v
	b.put(k.idx, p)
	return old, had
}

// Get returns the value stored under k.
func Get[T any](b *Blackboard, k Key[T]) (T, bool) {
	if p := GetMut(b, k); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// GetMut returns a pointer to the value stored under k for in-place updates,
// or nil if absent. The pointer is invalidated by Insert or Remove of k.
func GetMut[T any](b *Blackboard, k Key[T]) *T {
	v := b.at(k.idx)
	if v == nil {
		return nil
	}
	return v.(*T)
}

// RemoveGet removes the value stored under k and returns it.
func RemoveGet[T any](b *Blackboard, k Key[T]) (T, bool) {
	v, ok := Get(b, k)
	if ok {
		b.Remove(k)
	}
	return v, ok
}

// Contains reports whether k holds a value.
func (b *Blackboard) Contains(k AnyKey) bool {
	return b.at(k.slot()) != nil
}

// Remove deletes the value under k, if any.
func (b *Blackboard) Remove(k AnyKey) {
	i := k.slot()
	if b.at(i) == nil {
		return
	}
	b.slots[i] = nil
	b.count--
}

// Len returns the number of keys holding a value.
func (b *Blackboard) Len() int {
	return b.count
}

// Keys returns the names of the keys holding a value, in slot order.
func (b *Blackboard) Keys() []string {
	if b.count == 0 {
		return nil
	}
	names := Declared()
	out := make([]string, 0, b.count)
	for i, v := range b.slots {
		if v != nil {
			out = append(out, names[i])
		}
	}
	return out
}
