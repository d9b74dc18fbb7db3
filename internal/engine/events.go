// Event log and live fan-out to stream subscribers.
package engine

import (
	"sync"

	"github.com/talgya/mini-colony/internal/world"
)

const (
	maxEvents       = 1000 // Events kept in the in-memory log
	subscriberQueue = 64   // Buffered events per subscriber before drops
)

// Event is a notable occurrence in the colony.
type Event struct {
	Tick        uint64         `json:"tick"`
	Category    string         `json:"category"` // "task", "reagent", "designation", "workshop"
	Description string         `json:"description"`
	Agent       world.EntityID `json:"agent,omitempty"`
	Source      world.EntityID `json:"source,omitempty"`
}

// broadcaster fans events out to subscribers. Slow subscribers miss events
// rather than stall the simulation.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// Subscribe registers a listener and returns its ID and event channel.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	b := &s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	b.nextID++
	ch := make(chan Event, subscriberQueue)
	b.subs[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	b := &s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// addEvent records an event and publishes it. Caller holds the write lock.
func (s *Simulation) addEvent(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.bus.publish(e)
}

// SubscribeFrom registers a listener and returns up to limit recent events
// alongside it. Both are taken under the read lock, and events are published
// under the write lock, so every event lands in exactly one of the two.
func (s *Simulation) SubscribeFrom(limit int) (int, <-chan Event, []Event) {
	s.RLock()
	defer s.RUnlock()
	id, ch := s.Subscribe()
	return id, ch, s.RecentEvents(limit)
}

// RecentEvents returns up to limit of the newest events, oldest first.
// Caller holds the read lock.
func (s *Simulation) RecentEvents(limit int) []Event {
	start := 0
	if len(s.Events) > limit {
		start = len(s.Events) - limit
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}
