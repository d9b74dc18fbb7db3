// Package tasks provides units of work, the slotted queues that task sources
// keep them in, and the per-agent preferences used to pick among them.
package tasks

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/world"
)

// Kind classifies tasks for priority matching.
type Kind uint8

const (
	KindDig       Kind = iota // Dig out a rock tile
	KindChop                  // Fell a tree
	KindCarpentry             // Work at a carpenter's workshop
	KindMasonry               // Work at a mason's workshop
)

// NumKinds is the total number of task kinds.
const NumKinds = 4

var kindNames = [NumKinds]string{
	KindDig:       "dig",
	KindChop:      "chop",
	KindCarpentry: "carpentry",
	KindMasonry:   "masonry",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind looks a kind up by name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Task is one unit of work. It is a value owned by exactly one queue slot.
type Task struct {
	ID       uuid.UUID       `json:"id"`
	Kind     Kind            `json:"kind"`
	Reaction string          `json:"reaction"` // Reaction catalog ID performed on completion
	Reagents []economy.Stack `json:"reagents,omitempty"`
}

// New creates a task with a fresh ID.
func New(kind Kind, reaction string, reagents []economy.Stack) Task {
	return Task{
		ID:       uuid.New(),
		Kind:     kind,
		Reaction: reaction,
		Reagents: reagents,
	}
}

// Outcome is how a claimed task was resolved.
type Outcome uint8

const (
	OutcomeComplete Outcome = iota
	OutcomeCancelled
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "complete":
		*o = OutcomeComplete
	case "cancelled":
		*o = OutcomeCancelled
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Record is an agent's claim on a task: which source it came from, the handle
// into that source's queue, and the task itself.
type Record struct {
	Source world.EntityID `json:"source"`
	Handle Handle         `json:"handle"`
	Task   Task           `json:"task"`
}

// LastTask is a resolved claim kept for history and inspection.
type LastTask struct {
	Record  Record  `json:"record"`
	Outcome Outcome `json:"outcome"`
	Tick    uint64  `json:"tick"`
}
