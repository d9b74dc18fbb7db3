package taskcache

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// Candidate is one Available task considered by FindBest.
type Candidate struct {
	Source   world.EntityID
	Queue    *tasks.Queue
	Location world.Position
	Handle   tasks.Handle
	Task     tasks.Task
	Weight   uint8 // Agent's priority for the task's kind
	Distance int   // Chebyshev distance from the agent to the source
	Order    int   // Encounter order during the scan
}

// Ranker decides which of two candidates is preferred. Better must be a strict
// ordering: Better(a, a) is false.
type Ranker interface {
	Better(a, b Candidate) bool
}

// PriorityThenDistance prefers higher priority weight, then shorter distance,
// then earlier encounter order.
//
// Encounter order follows source registration order and slot index, which is
// not stable if sources are unregistered and re-registered.
type PriorityThenDistance struct{}

func (PriorityThenDistance) Better(a, b Candidate) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Order < b.Order
}

// FirstMatch takes the first eligible task encountered, ignoring weight and
// distance.
type FirstMatch struct{}

func (FirstMatch) Better(a, b Candidate) bool {
	return a.Order < b.Order
}

// Ranker names accepted by RankerByName.
const (
	RankPriorityDistance = "priority_distance"
	RankFirstMatch       = "first_match"
)

// RankerByName returns the ranker configured under name.
func RankerByName(name string) (Ranker, error) {
	switch name {
	case "", RankPriorityDistance:
		return PriorityThenDistance{}, nil
	case RankFirstMatch:
		return FirstMatch{}, nil
	default:
		return nil, fmt.Errorf("unknown task ranking %q", name)
	}
}
