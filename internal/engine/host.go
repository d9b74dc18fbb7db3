// The simulation's side of the task program: positions, locomotion, reaction
// work and item handling.
package engine

import (
	"fmt"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/behavior"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

var _ agents.World = (*Simulation)(nil)

// Position returns an entity's position and whether it is alive.
func (s *Simulation) Position(id world.EntityID) (world.Position, bool) {
	return s.Entities.Position(id)
}

// Satisfiable reports whether the stockpile covers a task's reagents.
func (s *Simulation) Satisfiable(_ world.EntityID, t tasks.Task) (economy.Good, bool) {
	return s.Stockpile.Has(t.Reagents)
}

// MoveTo steps a colonist one tile toward the target. Movement is greedy:
// straight toward the target, or around a blocking tile if a neighbor gets
// closer. A colonist that cannot get closer has no way there.
func (s *Simulation) MoveTo(agent world.EntityID, p agents.MoveParameters) behavior.Status {
	pos, ok := s.Entities.Position(agent)
	if !ok {
		return behavior.Failure
	}
	if world.Distance(pos, p.Target) <= p.Tolerance {
		return behavior.Success
	}
	if !s.Map.InBounds(p.Target) || (p.Tolerance == 0 && !s.Map.Passable(p.Target)) {
		return behavior.Failure
	}
	next, ok := s.nextStep(pos, p.Target)
	if !ok {
		return behavior.Failure
	}
	s.Entities.Move(agent, next)
	return behavior.Running
}

func (s *Simulation) nextStep(from, to world.Position) (world.Position, bool) {
	if step := world.StepToward(from, to); s.Map.Passable(step) {
		return step, true
	}
	best, bestDist := from, world.Distance(from, to)
	for _, n := range from.Neighbors() {
		if !s.Map.Passable(n) {
			continue
		}
		if d := world.Distance(n, to); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, best != from
}

// ExecuteReaction works one tick on a reaction. Inputs are checked when work
// starts and consumed when it finishes; outputs go to the stockpile, or onto
// the ground beside the work site for site reactions.
func (s *Simulation) ExecuteReaction(agent world.EntityID, p agents.ReactionParameters, progress int) (int, behavior.Status) {
	pos, ok := s.Entities.Position(agent)
	if !ok || !s.Entities.Alive(p.Source) {
		return 0, behavior.Failure
	}
	if world.Distance(pos, p.Site) > agents.WorkTolerance {
		return 0, behavior.Failure
	}
	r := p.Reaction
	if progress == 0 {
		if _, ok := s.Stockpile.Has(r.Inputs); !ok {
			return 0, behavior.Failure
		}
	}

	progress++
	if progress < r.TimeTicks {
		return progress, behavior.Running
	}
	if !s.Stockpile.Consume(r.Inputs) {
		return 0, behavior.Failure
	}

	if r.DropAtSite {
		var out economy.Inventory
		for _, st := range r.Outputs {
			out.Add(st.Good, st.Count)
		}
		s.AddPile(pos, out)
	} else {
		for _, st := range r.Outputs {
			s.Stockpile.Add(st.Good, st.Count)
		}
	}

	s.addEvent(Event{
		Tick:        s.LastTick,
		Category:    "workshop",
		Description: fmt.Sprintf("%s produced %s", r.ID, stacksString(r.Outputs)),
		Agent:       agent,
		Source:      p.Source,
	})
	return 0, behavior.Success
}

// NearestItem finds the closest pile holding g. Ties go to the lower ID.
func (s *Simulation) NearestItem(from world.Position, g economy.Good) (world.EntityID, world.Position, bool) {
	var (
		best     *Pile
		bestDist int
	)
	for _, p := range s.Piles {
		if p.Contents[g] == 0 {
			continue
		}
		d := world.Distance(from, p.Position)
		if best == nil || d < bestDist || (d == bestDist && p.ID < best.ID) {
			best, bestDist = p, d
		}
	}
	if best == nil {
		return 0, world.Position{}, false
	}
	return best.ID, best.Position, true
}

// PickUp moves all of g in a pile into the stockpile. The colonist must be
// standing at the pile. Emptied piles disappear.
func (s *Simulation) PickUp(agent, pile world.EntityID, g economy.Good) (int, bool) {
	p, ok := s.Piles[pile]
	if !ok || p.Contents[g] == 0 {
		return 0, false
	}
	pos, ok := s.Entities.Position(agent)
	if !ok || world.Distance(pos, p.Position) > agents.PickupTolerance {
		return 0, false
	}
	n := p.Contents.Take(g, p.Contents[g])
	s.Stockpile.Add(g, n)
	if p.Contents.IsEmpty() {
		s.removePile(pile)
	}
	return n, true
}

func stacksString(stacks []economy.Stack) string {
	out := ""
	for i, st := range stacks {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", st.Count, st.Good)
	}
	return out
}
