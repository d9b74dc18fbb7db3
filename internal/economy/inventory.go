package economy

// Inventory is a fixed-size array holding quantities of each good.
type Inventory [NumGoods]int

// IsEmpty returns true if all quantities are zero.
func (inv Inventory) IsEmpty() bool {
	for _, qty := range inv {
		if qty != 0 {
			return false
		}
	}
	return true
}

// Total returns the sum of all quantities.
func (inv Inventory) Total() int {
	n := 0
	for _, qty := range inv {
		n += qty
	}
	return n
}

// Add puts count units of g into the inventory.
func (inv *Inventory) Add(g Good, count int) {
	inv[g] += count
}

// Take removes up to count units of g and returns how many were removed.
func (inv *Inventory) Take(g Good, count int) int {
	if count > inv[g] {
		count = inv[g]
	}
	if count < 0 {
		return 0
	}
	inv[g] -= count
	return count
}

// Has reports whether every stack is fully covered, counting repeated goods
// together. On failure it returns the first good that falls short.
func (inv Inventory) Has(stacks []Stack) (Good, bool) {
	for _, s := range stacks {
		if inv.Shortfall(stacks, s.Good) > 0 {
			return s.Good, false
		}
	}
	return 0, true
}

// Consume removes all stacks, or nothing if any falls short.
func (inv *Inventory) Consume(stacks []Stack) bool {
	if _, ok := inv.Has(stacks); !ok {
		return false
	}
	for _, s := range stacks {
		inv[s.Good] -= s.Count
	}
	return true
}

// Shortfall returns how many units of g are still needed to cover stacks.
func (inv Inventory) Shortfall(stacks []Stack, g Good) int {
	need := 0
	for _, s := range stacks {
		if s.Good == g {
			need += s.Count
		}
	}
	if need <= inv[g] {
		return 0
	}
	return need - inv[g]
}

// Map returns the non-zero quantities keyed by good name, for JSON output.
func (inv Inventory) Map() map[string]int {
	out := make(map[string]int)
	for i, qty := range inv {
		if qty != 0 {
			out[Good(i).String()] = qty
		}
	}
	return out
}
