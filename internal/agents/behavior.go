// Task behavior program: the leaves and trees that take a colonist from
// "looking for work" to a finished (or abandoned) task, and the Brain that
// ticks them once per simulation step.
package agents

import (
	"errors"
	"fmt"
	"log/slog"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/talgya/mini-colony/internal/behavior"
	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/taskcache"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// Tree names.
const (
	TreeTask   = "task"
	TreePickup = "pickup_item"
)

// World is everything the task program needs from the host simulation.
type World interface {
	taskcache.World

	// MoveTo advances agent one step toward p.Target. Running while en route,
	// Success within p.Tolerance, Failure if the target cannot be reached.
	MoveTo(agent world.EntityID, p MoveParameters) behavior.Status
	// ExecuteReaction performs one tick of work. progress is the value kept
	// from the previous tick (zero on the first); next is stored while the
	// result is Running.
	ExecuteReaction(agent world.EntityID, p ReactionParameters, progress int) (next int, status behavior.Status)
	// NearestItem finds the closest item pile holding g.
	NearestItem(from world.Position, g economy.Good) (world.EntityID, world.Position, bool)
	// PickUp moves g from pile into the colony stockpile and returns how much
	// was moved. It fails if the pile is gone or holds none.
	PickUp(agent, pile world.EntityID, g economy.Good) (int, bool)
}

// EventKind enumerates the notable things the task program reports.
type EventKind uint8

const (
	EventClaimed EventKind = iota
	EventCompleted
	EventCancelled
	EventPickedUp
)

// String returns the lowercase name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventClaimed:
		return "claimed"
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventPickedUp:
		return "picked_up"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event reports a claim, an outcome, or a pick-up.
type Event struct {
	Tick   uint64         `json:"tick"`
	Kind   EventKind      `json:"kind"`
	Agent  world.EntityID `json:"agent"`
	Record tasks.Record   `json:"record"`
	Good   economy.Good   `json:"good,omitempty"`
	Count  int            `json:"count,omitempty"`
}

// Context is what the task program's leaves are bound to: one per agent.
type Context struct {
	Agent     *Agent
	World     World
	Cache     *taskcache.Cache
	Reactions *catalog.Reactions
	Tick      uint64
	Log       *slog.Logger

	// Notify, if set, receives every Event.
	Notify func(Event)
}

func (c *Context) emit(e Event) {
	e.Tick = c.Tick
	e.Agent = c.Agent.ID
	if c.Notify != nil {
		c.Notify(e)
	}
}

// BuildRegistry defines and resolves the task program's trees.
func BuildRegistry() (*behavior.Registry[*Context], error) {
	r := behavior.NewRegistry[*Context]()

	move := behavior.Closure("move_to", moveTo)
	cancel := behavior.Closure("cancel_task", cancelTask)

	task := behavior.IfElse(
		behavior.Closure("find_task", findTask),
		behavior.Sequence(
			behavior.Selector(move, behavior.Not(cancel)),
			behavior.IfElse(
				behavior.Sequence(
					behavior.Closure("prepare_reaction_parameters", prepareReactionParameters),
					behavior.Closure("execute_reaction", executeReaction),
				),
				behavior.Closure("complete_task", completeTask),
				behavior.Not(cancel),
			),
		),
		behavior.Sequence(
			behavior.Closure("try_get_reagent", tryGetReagent),
			behavior.Sub[*Context](TreePickup),
		),
	)
	pickup := behavior.Sequence(
		move,
		behavior.Closure("pick_up", pickUp),
	)

	if _, err := r.Define(TreeTask, task); err != nil {
		return nil, err
	}
	if _, err := r.Define(TreePickup, pickup); err != nil {
		return nil, err
	}
	if err := r.Resolve(); err != nil {
		return nil, fmt.Errorf("task program: %w", err)
	}
	return r, nil
}

func findTask(c *Context) behavior.Status {
	b := c.Agent.Board
	if rec, ok := blackboard.Get(b, CurrentTask); ok {
		_, alive := c.World.Position(rec.Source)
		return behavior.Of(alive)
	}

	from, ok := c.World.Position(c.Agent.ID)
	if !ok {
		return behavior.Failure
	}

	var skip []taskcache.Slot
	if ab, ok := blackboard.Get(b, AbandonedTask); ok {
		if c.Tick < ab.Until {
			skip = append(skip, ab.Slot)
		} else {
			b.Remove(AbandonedTask)
		}
	}

	m, err := c.Cache.FindBest(c.World, c.Agent.ID, from, c.Agent.Priorities, skip...)
	if err != nil {
		var missing *taskcache.MissingReagentError
		if errors.As(err, &missing) {
			blackboard.Insert(b, MissingReagent, missing.Good)
		} else {
			b.Remove(MissingReagent)
		}
		return behavior.Failure
	}

	t, ok := m.Queue.Take(m.Handle)
	if !ok {
		return behavior.Failure
	}
	rec := tasks.Record{Source: m.Source, Handle: m.Handle, Task: t}
	blackboard.Insert(b, CurrentTask, rec)
	blackboard.Insert(b, Move, MoveParameters{Target: m.Location, Tolerance: WorkTolerance})
	b.Remove(MissingReagent)

	c.Log.Debug("task claimed", "agent", c.Agent.ID, "source", m.Source, "kind", t.Kind, "reaction", t.Reaction)
	c.emit(Event{Kind: EventClaimed, Record: rec})
	return behavior.Success
}

func moveTo(c *Context) behavior.Status {
	p, ok := blackboard.Get(c.Agent.Board, Move)
	if !ok {
		return behavior.Failure
	}
	return c.World.MoveTo(c.Agent.ID, p)
}

func cancelTask(c *Context) behavior.Status {
	rec, ok := blackboard.Get(c.Agent.Board, CurrentTask)
	if !ok {
		return behavior.Failure
	}
	if _, alive := c.World.Position(rec.Source); !alive {
		return behavior.Failure
	}
	q, ok := c.Cache.Queue(rec.Source)
	if !ok || !q.Cancel(rec.Handle) {
		return behavior.Failure
	}
	blackboard.Insert(c.Agent.Board, AbandonedTask, Abandoned{
		Slot:  taskcache.Slot{Source: rec.Source, Handle: rec.Handle},
		Until: c.Tick + AbandonCooldown,
	})
	retire(c, rec, tasks.OutcomeCancelled)
	return behavior.Success
}

func prepareReactionParameters(c *Context) behavior.Status {
	rec, ok := blackboard.Get(c.Agent.Board, CurrentTask)
	if !ok {
		return behavior.Failure
	}
	site, alive := c.World.Position(rec.Source)
	if !alive {
		return behavior.Failure
	}
	r, ok := c.Reactions.Get(rec.Task.Reaction)
	if !ok {
		c.Log.Warn("task names unknown reaction", "agent", c.Agent.ID, "reaction", rec.Task.Reaction)
		return behavior.Failure
	}
	blackboard.Insert(c.Agent.Board, Reaction, ReactionParameters{
		Reaction: r,
		Source:   rec.Source,
		Site:     site,
		Task:     rec.Task,
	})
	return behavior.Success
}

func executeReaction(c *Context) behavior.Status {
	b := c.Agent.Board
	p, ok := blackboard.Get(b, Reaction)
	if !ok {
		return behavior.Failure
	}
	progress, _ := blackboard.Get(b, ReactionProgress)
	next, status := c.World.ExecuteReaction(c.Agent.ID, p, progress)
	if status == behavior.Running {
		blackboard.Insert(b, ReactionProgress, next)
	} else {
		b.Remove(ReactionProgress)
	}
	return status
}

func completeTask(c *Context) behavior.Status {
	rec, ok := blackboard.Get(c.Agent.Board, CurrentTask)
	if !ok {
		return behavior.Failure
	}
	q, ok := c.Cache.Queue(rec.Source)
	if !ok || !q.Complete(rec.Handle) {
		return behavior.Failure
	}
	retire(c, rec, tasks.OutcomeComplete)
	return behavior.Success
}

func tryGetReagent(c *Context) behavior.Status {
	b := c.Agent.Board
	g, ok := blackboard.Get(b, MissingReagent)
	if !ok {
		return behavior.Failure
	}
	from, ok := c.World.Position(c.Agent.ID)
	if !ok {
		return behavior.Failure
	}
	pile, loc, ok := c.World.NearestItem(from, g)
	if !ok {
		b.Remove(MissingReagent)
		b.Remove(PickupTarget)
		return behavior.Failure
	}
	blackboard.Insert(b, PickupTarget, pile)
	blackboard.Insert(b, Move, MoveParameters{Target: loc, Tolerance: PickupTolerance})
	return behavior.Success
}

func pickUp(c *Context) behavior.Status {
	b := c.Agent.Board
	pile, ok := blackboard.Get(b, PickupTarget)
	if !ok {
		return behavior.Failure
	}
	g, ok := blackboard.Get(b, MissingReagent)
	if !ok {
		return behavior.Failure
	}
	n, ok := c.World.PickUp(c.Agent.ID, pile, g)
	if !ok {
		b.Remove(PickupTarget)
		return behavior.Failure
	}
	b.Remove(MissingReagent)
	b.Remove(PickupTarget)
	b.Remove(Move)

	c.Log.Debug("reagent fetched", "agent", c.Agent.ID, "good", g, "count", n, "pile", pile)
	c.emit(Event{Kind: EventPickedUp, Good: g, Count: n})
	return behavior.Success
}

// retire moves the current claim to last_task and clears the work state.
func retire(c *Context, rec tasks.Record, outcome tasks.Outcome) {
	b := c.Agent.Board
	b.Remove(CurrentTask)
	b.Remove(Reaction)
	b.Remove(ReactionProgress)
	lt := tasks.LastTask{Record: rec, Outcome: outcome, Tick: c.Tick}
	blackboard.Insert(b, LastTask, lt)
	RecordWork(c.Agent, lt)

	kind := EventCompleted
	if outcome == tasks.OutcomeCancelled {
		kind = EventCancelled
	}
	c.Log.Debug("task "+outcome.String(), "agent", c.Agent.ID, "source", rec.Source, "kind", rec.Task.Kind)
	c.emit(Event{Kind: kind, Record: rec})
}

// Brain runs the task tree for one agent.
type Brain struct {
	ctx  *Context
	root bt.Node
}

// NewBrain instantiates the task tree from reg for the agent in ctx.
func NewBrain(reg *behavior.Registry[*Context], ctx *Context) (*Brain, error) {
	if ctx.Log == nil {
		ctx.Log = slog.Default()
	}
	root, err := reg.InstantiateNamed(TreeTask, ctx)
	if err != nil {
		return nil, fmt.Errorf("agent %d: %w", ctx.Agent.ID, err)
	}
	return &Brain{ctx: ctx, root: root}, nil
}

// Context returns the context the brain's leaves are bound to.
func (br *Brain) Context() *Context { return br.ctx }

// Tick evaluates the task tree once. A claim whose source died is retired as
// cancelled after the tree has run, so it never outlives this tick.
func (br *Brain) Tick(tick uint64) behavior.Status {
	c := br.ctx
	c.Tick = tick
	status := behavior.Run(br.root, c.Log)

	if rec, ok := blackboard.Get(c.Agent.Board, CurrentTask); ok {
		if _, alive := c.World.Position(rec.Source); !alive {
			retire(c, rec, tasks.OutcomeCancelled)
		}
	}
	return status
}
