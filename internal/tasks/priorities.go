package tasks

import "fmt"

// Priorities weights each task kind for one agent. Zero means the agent never
// takes tasks of that kind; higher weights are preferred.
type Priorities [NumKinds]uint8

// Weight returns the agent's weight for k.
func (p Priorities) Weight(k Kind) uint8 {
	if int(k) >= NumKinds {
		return 0
	}
	return p[k]
}

// Eligible reports whether the agent takes tasks of kind k at all.
func (p Priorities) Eligible(k Kind) bool {
	return p.Weight(k) > 0
}

// Set assigns the weight for k.
func (p *Priorities) Set(k Kind, w uint8) {
	if int(k) < NumKinds {
		p[k] = w
	}
}

// PrioritiesFromMap builds Priorities from kind names, as found in config files.
func PrioritiesFromMap(m map[string]uint8) (Priorities, error) {
	var p Priorities
	for name, w := range m {
		k, err := ParseKind(name)
		if err != nil {
			return p, fmt.Errorf("priorities: %w", err)
		}
		p.Set(k, w)
	}
	return p, nil
}

// Map returns the non-zero weights keyed by kind name.
func (p Priorities) Map() map[string]uint8 {
	out := make(map[string]uint8)
	for i, w := range p {
		if w > 0 {
			out[Kind(i).String()] = w
		}
	}
	return out
}
