// Package taskcache indexes every task source in the world and answers
// "which task should this agent take next" queries.
//
// The cache is derived data: it holds (source, queue) pairs and can be rebuilt
// from the sources at any time. Queries never change task state; the caller
// claims the chosen task with Queue.Take.
package taskcache

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// ErrNoTasks is returned when no Available task is eligible for the agent.
var ErrNoTasks = errors.New("no tasks")

// ErrMissingReagent matches every *MissingReagentError with errors.Is.
var ErrMissingReagent = errors.New("missing reagent")

// MissingReagentError reports that eligible tasks exist but none can start
// because a reagent is short. Good names the shortfall of the best-ranked
// blocked task.
type MissingReagentError struct {
	Good economy.Good
	Kind tasks.Kind
}

func (e *MissingReagentError) Error() string {
	return fmt.Sprintf("missing reagent %s for %s task", e.Good, e.Kind)
}

// Is lets errors.Is(err, ErrMissingReagent) match.
func (e *MissingReagentError) Is(target error) bool {
	return target == ErrMissingReagent
}

// World is what the cache needs to know about the world while ranking.
type World interface {
	// Position returns the position of an entity and whether it is alive.
	Position(id world.EntityID) (world.Position, bool)
	// Satisfiable reports whether agent could start t now. On failure it
	// returns the first reagent that falls short.
	Satisfiable(agent world.EntityID, t tasks.Task) (economy.Good, bool)
}

// Slot names one task by its source and queue handle.
type Slot struct {
	Source world.EntityID `json:"source"`
	Handle tasks.Handle   `json:"handle"`
}

// Match is the result of a successful query: where to go and what to claim.
type Match struct {
	Location world.Position
	Source   world.EntityID
	Queue    *tasks.Queue
	Handle   tasks.Handle
	Task     tasks.Task
}

type source struct {
	id    world.EntityID
	queue *tasks.Queue
}

// Cache is the world-wide index over task sources.
type Cache struct {
	sources []source
	index   map[world.EntityID]int

	// Ranker orders candidates. Nil means PriorityThenDistance.
	Ranker Ranker
}

// New returns an empty cache using ranker, or the default ranking if nil.
func New(ranker Ranker) *Cache {
	return &Cache{
		index:  make(map[world.EntityID]int),
		Ranker: ranker,
	}
}

// Register adds a source's queue to the index, replacing any previous queue
// registered for the same source.
func (c *Cache) Register(id world.EntityID, q *tasks.Queue) {
	if c.index == nil {
		c.index = make(map[world.EntityID]int)
	}
	if i, ok := c.index[id]; ok {
		c.sources[i].queue = q
		return
	}
	c.index[id] = len(c.sources)
	c.sources = append(c.sources, source{id: id, queue: q})
}

// Unregister removes a source. Registration order of the remaining sources is
// preserved.
func (c *Cache) Unregister(id world.EntityID) {
	i, ok := c.index[id]
	if !ok {
		return
	}
	c.sources = append(c.sources[:i], c.sources[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.sources); j++ {
		c.index[c.sources[j].id] = j
	}
}

// Rebuild replaces the index with the given sources, in the given order.
func (c *Cache) Rebuild(queues map[world.EntityID]*tasks.Queue, order []world.EntityID) {
	c.sources = c.sources[:0]
	c.index = make(map[world.EntityID]int, len(order))
	for _, id := range order {
		if q, ok := queues[id]; ok {
			c.Register(id, q)
		}
	}
}

// Queue returns the queue registered for a source.
func (c *Cache) Queue(id world.EntityID) (*tasks.Queue, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.sources[i].queue, true
}

// Sources returns the registered source IDs in registration order.
func (c *Cache) Sources() []world.EntityID {
	out := make([]world.EntityID, len(c.sources))
	for i, s := range c.sources {
		out[i] = s.id
	}
	return out
}

// Len returns the number of registered sources.
func (c *Cache) Len() int {
	return len(c.sources)
}

// Available returns the number of Available tasks across all sources.
func (c *Cache) Available() int {
	n := 0
	for _, s := range c.sources {
		n += s.queue.Available()
	}
	return n
}

func (c *Cache) ranker() Ranker {
	if c.Ranker == nil {
		return PriorityThenDistance{}
	}
	return c.Ranker
}

// FindBest picks the task agent at from should claim next.
//
// Candidates are the Available tasks of live sources whose kind the agent has
// a non-zero priority for. Among candidates whose reagents are satisfiable the
// best one by the cache's Ranker is returned. If every candidate is blocked on
// a reagent, a *MissingReagentError for the best-ranked blocked candidate is
// returned. With no candidates at all the error is ErrNoTasks. Tasks named in
// skip are not candidates.
func (c *Cache) FindBest(w World, agent world.EntityID, from world.Position, prio tasks.Priorities, skip ...Slot) (Match, error) {
	rank := c.ranker()

	var (
		best, blocked       Candidate
		haveBest, isBlocked bool
		missing             economy.Good
		order               int
	)

	for _, s := range c.sources {
		loc, alive := w.Position(s.id)
		if !alive {
			continue
		}
		for h, e := range s.queue.All() {
			if e.State != tasks.SlotAvailable || !prio.Eligible(e.Task.Kind) {
				continue
			}
			if slices.Contains(skip, Slot{Source: s.id, Handle: h}) {
				continue
			}
			cand := Candidate{
				Source:   s.id,
				Queue:    s.queue,
				Location: loc,
				Handle:   h,
				Task:     e.Task,
				Weight:   prio.Weight(e.Task.Kind),
				Distance: world.Distance(from, loc),
				Order:    order,
			}
			order++

			if g, ok := w.Satisfiable(agent, e.Task); !ok {
				if !isBlocked || rank.Better(cand, blocked) {
					blocked, isBlocked, missing = cand, true, g
				}
				continue
			}
			if !haveBest || rank.Better(cand, best) {
				best, haveBest = cand, true
			}
		}
	}

	switch {
	case haveBest:
		slog.Debug("task match",
			"agent", agent,
			"source", best.Source,
			"kind", best.Task.Kind,
			"distance", best.Distance,
		)
		return Match{
			Location: best.Location,
			Source:   best.Source,
			Queue:    best.Queue,
			Handle:   best.Handle,
			Task:     best.Task,
		}, nil
	case isBlocked:
		return Match{}, &MissingReagentError{Good: missing, Kind: blocked.Task.Kind}
	default:
		return Match{}, ErrNoTasks
	}
}
