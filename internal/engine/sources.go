// Task sources: designations (one-off site work) and workshops (standing
// orders), plus the item piles colonists fetch reagents from.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

var (
	ErrBadSite       = errors.New("site cannot host this work")
	ErrNoReaction    = errors.New("no reaction for this work")
	ErrUnknownSource = errors.New("unknown task source")
)

// SourceKind distinguishes the two kinds of task source.
type SourceKind uint8

const (
	SourceDesignation SourceKind = iota // A dig or chop order on one tile; retires when done
	SourceWorkshop                      // A building with repeating orders
)

// String returns the lowercase name of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceDesignation:
		return "designation"
	case SourceWorkshop:
		return "workshop"
	default:
		return fmt.Sprintf("source(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Source is an entity that owns a task queue.
type Source struct {
	ID       world.EntityID `json:"id"`
	Kind     SourceKind     `json:"kind"`
	Position world.Position `json:"position"`
	Workshop string         `json:"workshop,omitempty"` // Workshop type, e.g. "carpenter"
	TaskKind tasks.Kind     `json:"task_kind"`          // Designations only
	Reaction string         `json:"reaction,omitempty"` // Designations only
	Queue    *tasks.Queue   `json:"-"`
}

// Pile is a loose stack of goods on the ground.
type Pile struct {
	ID       world.EntityID    `json:"id"`
	Position world.Position    `json:"position"`
	Contents economy.Inventory `json:"contents"`
}

// designationTerrain maps a designation kind to the terrain it works on and
// the terrain left behind.
var designationTerrain = map[tasks.Kind][2]world.Terrain{
	tasks.KindDig:  {world.TerrainRock, world.TerrainFloor},
	tasks.KindChop: {world.TerrainTree, world.TerrainGrass},
}

// AddDesignation marks a tile for digging or felling.
func (s *Simulation) AddDesignation(kind tasks.Kind, pos world.Position) (*Source, error) {
	terr, ok := designationTerrain[kind]
	if !ok {
		return nil, fmt.Errorf("designate %s: %w", kind, ErrBadSite)
	}
	tile := s.Map.Get(pos)
	if tile == nil || tile.Terrain != terr[0] {
		return nil, fmt.Errorf("designate %s at %s: %w", kind, pos, ErrBadSite)
	}
	for _, src := range s.Sources {
		if src.Position == pos {
			return nil, fmt.Errorf("designate %s at %s: already designated: %w", kind, pos, ErrBadSite)
		}
	}
	reactions := s.Reactions.ForKind(kind)
	if len(reactions) == 0 {
		return nil, fmt.Errorf("designate %s: %w", kind, ErrNoReaction)
	}

	src := &Source{
		ID:       s.Entities.Spawn(world.KindDesignation, pos),
		Kind:     SourceDesignation,
		Position: pos,
		TaskKind: kind,
		Reaction: reactions[0].ID,
	}
	s.attach(src)
	return src, nil
}

// AddWorkshop places a workshop of the given type.
func (s *Simulation) AddWorkshop(workshop string, pos world.Position) (*Source, error) {
	if !s.Map.Passable(pos) {
		return nil, fmt.Errorf("workshop at %s: %w", pos, ErrBadSite)
	}
	if len(s.Reactions.ForWorkshop(workshop)) == 0 {
		return nil, fmt.Errorf("workshop %q: %w", workshop, ErrNoReaction)
	}
	src := &Source{
		ID:       s.Entities.Spawn(world.KindWorkshop, pos),
		Kind:     SourceWorkshop,
		Position: pos,
		Workshop: workshop,
	}
	s.attach(src)
	return src, nil
}

// RestoreSource re-attaches a source loaded from storage under its saved ID.
func (s *Simulation) RestoreSource(src *Source) {
	kind := world.KindWorkshop
	if src.Kind == SourceDesignation {
		kind = world.KindDesignation
	}
	s.Entities.Insert(src.ID, kind, src.Position)
	s.attach(src)
}

func (s *Simulation) attach(src *Source) {
	src.Queue = tasks.NewQueue()
	s.Sources[src.ID] = src
	s.Cache.Register(src.ID, src.Queue)

	switch src.Kind {
	case SourceDesignation:
		src.Queue.Push(tasks.New(src.TaskKind, src.Reaction, nil))
	case SourceWorkshop:
		s.refill(src)
	}
}

// RemoveSource deletes a source and withdraws its unclaimed tasks. Claims on
// it are left to the claiming colonists, which release them on their next tick.
func (s *Simulation) RemoveSource(id world.EntityID) error {
	src, ok := s.Sources[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownSource)
	}
	var open []tasks.Handle
	for h, e := range src.Queue.All() {
		if e.State == tasks.SlotAvailable {
			open = append(open, h)
		}
	}
	for _, h := range open {
		src.Queue.Withdraw(h)
	}
	delete(s.Sources, id)
	s.Cache.Unregister(id)
	s.Entities.Despawn(id)
	return nil
}

// RebuildCache re-indexes every source in ID order.
func (s *Simulation) RebuildCache() {
	queues := make(map[world.EntityID]*tasks.Queue, len(s.Sources))
	order := make([]world.EntityID, 0, len(s.Sources))
	for _, src := range s.SourceList() {
		queues[src.ID] = src.Queue
		order = append(order, src.ID)
	}
	s.Cache.Rebuild(queues, order)
}

// SourceList returns every source ordered by ID.
func (s *Simulation) SourceList() []*Source {
	out := make([]*Source, 0, len(s.Sources))
	for _, src := range s.Sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulation) retireDesignation(id world.EntityID, tick uint64) {
	src, ok := s.Sources[id]
	if !ok {
		return
	}
	after := designationTerrain[src.TaskKind][1]
	s.Map.SetTerrain(src.Position, after)
	s.TileChanges[src.Position] = after
	_ = s.RemoveSource(id)

	s.addEvent(Event{
		Tick:        tick,
		Category:    "designation",
		Description: fmt.Sprintf("%s at %s finished, now %s", src.TaskKind, src.Position, world.TerrainName(after)),
		Source:      id,
	})
}

// ApplyTileChanges replays saved terrain changes onto a regenerated map.
func (s *Simulation) ApplyTileChanges(changes map[world.Position]world.Terrain) {
	for p, t := range changes {
		s.Map.SetTerrain(p, t)
		s.TileChanges[p] = t
	}
}

func (s *Simulation) refillWorkshops() {
	for _, src := range s.Sources {
		if src.Kind == SourceWorkshop {
			s.refill(src)
		}
	}
}

// refill tops up each of a workshop's reactions to RepeatOrders queued tasks.
func (s *Simulation) refill(src *Source) {
	queued := make(map[string]int)
	for _, e := range src.Queue.All() {
		queued[e.Task.Reaction]++
	}
	for _, r := range s.Reactions.ForWorkshop(src.Workshop) {
		for n := queued[r.ID]; n < s.RepeatOrders; n++ {
			src.Queue.Push(tasks.New(r.Kind, r.ID, r.Inputs))
		}
	}
}

// AddPile places goods on the ground. Goods dropped where a pile already lies
// join that pile.
func (s *Simulation) AddPile(pos world.Position, contents economy.Inventory) *Pile {
	for _, p := range s.Piles {
		if p.Position == pos {
			for g, n := range contents {
				p.Contents.Add(economy.Good(g), n)
			}
			return p
		}
	}
	p := &Pile{
		ID:       s.Entities.Spawn(world.KindItemPile, pos),
		Position: pos,
		Contents: contents,
	}
	s.Piles[p.ID] = p
	return p
}

// RestorePile re-attaches a pile loaded from storage under its saved ID.
func (s *Simulation) RestorePile(p *Pile) {
	s.Entities.Insert(p.ID, world.KindItemPile, p.Position)
	s.Piles[p.ID] = p
}

// PileList returns every pile ordered by ID.
func (s *Simulation) PileList() []*Pile {
	out := make([]*Pile, 0, len(s.Piles))
	for _, p := range s.Piles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulation) removePile(id world.EntityID) {
	delete(s.Piles, id)
	s.Entities.Despawn(id)
}
