// Simulation ties together the colony's systems and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/behavior"
	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/taskcache"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// Simulation holds the complete colony state. Step takes the write lock;
// readers (HTTP, persistence) take the read lock. Other mutators expect the
// caller to hold the write lock or to own the simulation exclusively.
type Simulation struct {
	sync.RWMutex

	Map       *world.Map
	Entities  *world.Entities
	Colonists []*agents.Agent
	Index     map[world.EntityID]*agents.Agent

	Sources map[world.EntityID]*Source
	Piles   map[world.EntityID]*Pile

	// Stockpile is the colony's shared store. Workshop reagents come from here.
	Stockpile economy.Inventory

	// TileChanges records terrain altered by finished designations.
	TileChanges map[world.Position]world.Terrain

	Cache     *taskcache.Cache
	Reactions *catalog.Reactions

	Events   []Event // Recent events, bounded
	LastTick uint64  // Most recent tick processed
	Totals   Totals

	RepeatOrders int // Orders kept queued per workshop reaction

	log      *slog.Logger
	registry *behavior.Registry[*agents.Context]
	brains   map[world.EntityID]*agents.Brain
	retiring []world.EntityID
	journal  []JournalEntry
	bus      broadcaster
}

// Totals are lifetime task counters.
type Totals struct {
	Completed uint64 `json:"completed"`
	Cancelled uint64 `json:"cancelled"`
	PickedUp  uint64 `json:"picked_up"`
}

// JournalEntry is a resolved claim awaiting persistence.
type JournalEntry struct {
	Tick     uint64         `json:"tick"`
	Agent    world.EntityID `json:"agent"`
	Source   world.EntityID `json:"source"`
	TaskID   uuid.UUID      `json:"task_id"`
	Kind     tasks.Kind     `json:"kind"`
	Reaction string         `json:"reaction"`
	Outcome  tasks.Outcome  `json:"outcome"`
}

// Options configures a new Simulation.
type Options struct {
	Reactions    *catalog.Reactions // Nil loads the built-in catalog
	Ranker       taskcache.Ranker   // Nil uses priority-then-distance
	RepeatOrders int
	Logger       *slog.Logger
}

// NewSimulation creates an empty simulation over a map and entity registry.
func NewSimulation(m *world.Map, ents *world.Entities, opts Options) (*Simulation, error) {
	if opts.Reactions == nil {
		r, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		opts.Reactions = r
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reg, err := agents.BuildRegistry()
	if err != nil {
		return nil, err
	}

	return &Simulation{
		Map:          m,
		Entities:     ents,
		Index:        make(map[world.EntityID]*agents.Agent),
		Sources:      make(map[world.EntityID]*Source),
		Piles:        make(map[world.EntityID]*Pile),
		TileChanges:  make(map[world.Position]world.Terrain),
		Cache:        taskcache.New(opts.Ranker),
		Reactions:    opts.Reactions,
		RepeatOrders: opts.RepeatOrders,
		log:          opts.Logger,
		registry:     reg,
		brains:       make(map[world.EntityID]*agents.Brain),
	}, nil
}

// AddColonist gives a colonist a brain. The colonist's entity is registered
// at pos unless it already exists.
func (s *Simulation) AddColonist(a *agents.Agent, pos world.Position) error {
	if _, dup := s.Index[a.ID]; dup {
		return fmt.Errorf("colonist %d already added", a.ID)
	}
	if !s.Entities.Alive(a.ID) {
		s.Entities.Insert(a.ID, world.KindColonist, pos)
	}
	if a.Board == nil {
		a.Board = blackboard.New()
	}

	brain, err := agents.NewBrain(s.registry, &agents.Context{
		Agent:     a,
		World:     s,
		Cache:     s.Cache,
		Reactions: s.Reactions,
		Log:       s.log,
		Notify:    s.onAgentEvent,
	})
	if err != nil {
		return err
	}

	s.Colonists = append(s.Colonists, a)
	s.Index[a.ID] = a
	s.brains[a.ID] = brain
	return nil
}

// Step runs one tick: every colonist's task tree in order, then source upkeep.
func (s *Simulation) Step(tick uint64) {
	s.Lock()
	defer s.Unlock()

	s.LastTick = tick
	for _, a := range s.Colonists {
		s.brains[a.ID].Tick(tick)
	}

	for _, id := range s.retiring {
		s.retireDesignation(id, tick)
	}
	s.retiring = s.retiring[:0]
	s.refillWorkshops()
}

// TickDay logs the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.RLock()
	defer s.RUnlock()

	st := s.Stats()
	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"colonists", st.Colonists,
		"busy", st.Busy,
		"available", st.Available,
		"completed", humanize.Comma(int64(s.Totals.Completed)),
		"cancelled", humanize.Comma(int64(s.Totals.Cancelled)),
		"stockpile", humanize.Comma(int64(s.Stockpile.Total())),
	)
}

func (s *Simulation) onAgentEvent(e agents.Event) {
	name := fmt.Sprintf("#%d", e.Agent)
	if a, ok := s.Index[e.Agent]; ok {
		name = a.Name
	}

	switch e.Kind {
	case agents.EventClaimed:
		s.addEvent(Event{
			Tick:        e.Tick,
			Category:    "task",
			Description: fmt.Sprintf("%s took %s (%s)", name, e.Record.Task.Kind, e.Record.Task.Reaction),
			Agent:       e.Agent,
			Source:      e.Record.Source,
		})

	case agents.EventCompleted, agents.EventCancelled:
		outcome := tasks.OutcomeComplete
		if e.Kind == agents.EventCancelled {
			outcome = tasks.OutcomeCancelled
			s.Totals.Cancelled++
		} else {
			s.Totals.Completed++
			if src, ok := s.Sources[e.Record.Source]; ok && src.Kind == SourceDesignation {
				s.retiring = append(s.retiring, src.ID)
			}
		}
		s.journal = append(s.journal, JournalEntry{
			Tick:     e.Tick,
			Agent:    e.Agent,
			Source:   e.Record.Source,
			TaskID:   e.Record.Task.ID,
			Kind:     e.Record.Task.Kind,
			Reaction: e.Record.Task.Reaction,
			Outcome:  outcome,
		})
		s.addEvent(Event{
			Tick:        e.Tick,
			Category:    "task",
			Description: fmt.Sprintf("%s %s %s", name, e.Kind, e.Record.Task.Reaction),
			Agent:       e.Agent,
			Source:      e.Record.Source,
		})

	case agents.EventPickedUp:
		s.Totals.PickedUp++
		s.addEvent(Event{
			Tick:        e.Tick,
			Category:    "reagent",
			Description: fmt.Sprintf("%s fetched %d %s", name, e.Count, e.Good),
			Agent:       e.Agent,
		})
	}
}

// Journal returns the resolved claims not yet acknowledged. Caller holds the
// lock.
func (s *Simulation) Journal() []JournalEntry {
	out := make([]JournalEntry, len(s.journal))
	copy(out, s.journal)
	return out
}

// AckJournal drops the oldest n entries once they are stored. Caller holds
// the write lock.
func (s *Simulation) AckJournal(n int) {
	n = min(n, len(s.journal))
	s.journal = append(s.journal[:0], s.journal[n:]...)
}

// SimStats is a point-in-time summary of the colony.
type SimStats struct {
	Tick         uint64         `json:"tick"`
	Colonists    int            `json:"colonists"`
	Busy         int            `json:"busy"`
	Designations int            `json:"designations"`
	Workshops    int            `json:"workshops"`
	Piles        int            `json:"piles"`
	Available    int            `json:"available"`
	Claimed      int            `json:"claimed"`
	Totals       Totals         `json:"totals"`
	Stockpile    map[string]int `json:"stockpile"`
}

// Stats summarizes the colony. Caller holds at least the read lock.
func (s *Simulation) Stats() SimStats {
	st := SimStats{
		Tick:      s.LastTick,
		Colonists: len(s.Colonists),
		Piles:     len(s.Piles),
		Totals:    s.Totals,
		Stockpile: s.Stockpile.Map(),
	}
	for _, a := range s.Colonists {
		if a.Busy() {
			st.Busy++
		}
	}
	for _, src := range s.Sources {
		switch src.Kind {
		case SourceDesignation:
			st.Designations++
		case SourceWorkshop:
			st.Workshops++
		}
		st.Available += src.Queue.Available()
		st.Claimed += src.Queue.Claimed()
	}
	return st
}
