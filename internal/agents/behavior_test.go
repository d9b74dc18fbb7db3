package agents

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/behavior"
	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/taskcache"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

const testReactions = `reactions:
  - {id: dig_rock, kind: dig, time_ticks: 2, outputs: [{item: stone, count: 1}]}
  - {id: saw_planks, kind: carpentry, workshop: carpenter, time_ticks: 1, inputs: [{item: log, count: 1}], outputs: [{item: plank, count: 2}]}
`

// fakeWorld is a minimal host: straight-line movement, a shared stockpile,
// and item piles.
type fakeWorld struct {
	positions   map[world.EntityID]world.Position
	stockpile   economy.Inventory
	piles       map[world.EntityID]*economy.Inventory
	unreachable map[world.Position]bool
	failWork    bool

	onSatisfiable func(tasks.Task)
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		positions:   make(map[world.EntityID]world.Position),
		piles:       make(map[world.EntityID]*economy.Inventory),
		unreachable: make(map[world.Position]bool),
	}
}

func (w *fakeWorld) Position(id world.EntityID) (world.Position, bool) {
	p, ok := w.positions[id]
	return p, ok
}

func (w *fakeWorld) Satisfiable(_ world.EntityID, t tasks.Task) (economy.Good, bool) {
	if w.onSatisfiable != nil {
		w.onSatisfiable(t)
	}
	return w.stockpile.Has(t.Reagents)
}

func (w *fakeWorld) MoveTo(agent world.EntityID, p MoveParameters) behavior.Status {
	if w.unreachable[p.Target] {
		return behavior.Failure
	}
	pos := w.positions[agent]
	if world.Distance(pos, p.Target) <= p.Tolerance {
		return behavior.Success
	}
	w.positions[agent] = world.StepToward(pos, p.Target)
	return behavior.Running
}

func (w *fakeWorld) ExecuteReaction(_ world.EntityID, p ReactionParameters, progress int) (int, behavior.Status) {
	if w.failWork {
		return 0, behavior.Failure
	}
	progress++
	if progress < p.Reaction.TimeTicks {
		return progress, behavior.Running
	}
	if !w.stockpile.Consume(p.Reaction.Inputs) {
		return 0, behavior.Failure
	}
	for _, s := range p.Reaction.Outputs {
		w.stockpile.Add(s.Good, s.Count)
	}
	return 0, behavior.Success
}

func (w *fakeWorld) NearestItem(from world.Position, g economy.Good) (world.EntityID, world.Position, bool) {
	var (
		best     world.EntityID
		bestPos  world.Position
		bestDist = -1
	)
	for id, inv := range w.piles {
		if inv[g] == 0 {
			continue
		}
		pos := w.positions[id]
		if d := world.Distance(from, pos); bestDist < 0 || d < bestDist || (d == bestDist && id < best) {
			best, bestPos, bestDist = id, pos, d
		}
	}
	return best, bestPos, bestDist >= 0
}

func (w *fakeWorld) PickUp(_, pile world.EntityID, g economy.Good) (int, bool) {
	inv, ok := w.piles[pile]
	if !ok || inv[g] == 0 {
		return 0, false
	}
	n := inv.Take(g, inv[g])
	w.stockpile.Add(g, n)
	return n, true
}

type harness struct {
	world  *fakeWorld
	cache  *taskcache.Cache
	reg    *behavior.Registry[*Context]
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := BuildRegistry()
	require.NoError(t, err)
	return &harness{
		world: newFakeWorld(),
		cache: taskcache.New(nil),
		reg:   reg,
	}
}

func (h *harness) source(id world.EntityID, pos world.Position) *tasks.Queue {
	h.world.positions[id] = pos
	q := tasks.NewQueue()
	h.cache.Register(id, q)
	return q
}

func (h *harness) brain(t *testing.T, id world.EntityID, pos world.Position, prio tasks.Priorities) *Brain {
	t.Helper()
	reactions, err := catalog.Parse([]byte(testReactions))
	require.NoError(t, err)

	h.world.positions[id] = pos
	b, err := NewBrain(h.reg, &Context{
		Agent:     NewAgent(id, "Test", ProfessionLaborer, prio),
		World:     h.world,
		Cache:     h.cache,
		Reactions: reactions,
		Log:       slog.Default(),
		Notify:    func(e Event) { h.events = append(h.events, e) },
	})
	require.NoError(t, err)
	return b
}

func (h *harness) run(b *Brain, from uint64, limit int, done func() bool) uint64 {
	tick := from
	for i := 0; i < limit && !done(); i++ {
		tick++
		b.Tick(tick)
	}
	return tick
}

var digOnly = tasks.Priorities{1, 0, 0, 0}

func TestRegistryShape(t *testing.T) {
	reg, err := BuildRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{TreePickup, TreeTask}, reg.Names())

	id, ok := reg.Lookup(TreeTask)
	require.True(t, ok)
	root, ok := reg.Tree(id)
	require.True(t, ok)
	assert.Equal(t,
		`IfElse(find_task, Sequence(Selector(move_to, Not(cancel_task)), IfElse(Sequence(prepare_reaction_parameters, execute_reaction), complete_task, Not(cancel_task))), Sequence(try_get_reagent, Sub("pickup_item")))`,
		root.String())
}

func TestFindTaskWithEmptyCache(t *testing.T) {
	h := newHarness(t)
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	blackboard.Insert(b.Context().Agent.Board, MissingReagent, economy.GoodLog)

	assert.Equal(t, behavior.Failure, findTask(b.Context()))
	assert.False(t, b.Context().Agent.Busy())
	assert.False(t, b.Context().Agent.Board.Contains(MissingReagent), "NoTasks clears the missing reagent")
}

func TestTaskLifecycleCompletes(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(3, 0, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	a := b.Context().Agent

	assert.Equal(t, behavior.Running, b.Tick(1))
	rec, ok := a.CurrentTask()
	require.True(t, ok)
	assert.Equal(t, handle, rec.Handle)
	assert.False(t, q.IsAvailable(handle))

	h.run(b, 1, 20, func() bool { return !a.Busy() })

	assert.False(t, a.Busy())
	last, ok := a.LastTask()
	require.True(t, ok)
	assert.Equal(t, tasks.OutcomeComplete, last.Outcome)
	assert.Equal(t, rec, last.Record)
	assert.Equal(t, 0, q.Len(), "completed slot is freed")
	assert.Equal(t, 1, h.world.stockpile[economy.GoodStone])
	assert.Equal(t, world.Pos(2, 0, 0), h.world.positions[1], "stops within work tolerance")
	assert.False(t, a.Board.Contains(Reaction))
	assert.False(t, a.Board.Contains(ReactionProgress))

	require.Len(t, a.WorkLog, 1)
	assert.Equal(t, uint32(1), a.Completed)
	require.Len(t, h.events, 2)
	assert.Equal(t, EventClaimed, h.events[0].Kind)
	assert.Equal(t, EventCompleted, h.events[1].Kind)
}

func TestSourceDeathRetiresClaim(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(5, 0, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	c := b.Context()

	b.Tick(1)
	require.True(t, c.Agent.Busy())

	delete(h.world.positions, 100)

	assert.Equal(t, behavior.Failure, findTask(c))
	assert.Equal(t, behavior.Failure, cancelTask(c))
	assert.True(t, c.Agent.Busy(), "leaves do not clear the claim themselves")

	b.Tick(2)
	assert.False(t, c.Agent.Busy())
	last, ok := c.Agent.LastTask()
	require.True(t, ok)
	assert.Equal(t, tasks.OutcomeCancelled, last.Outcome)
	assert.Equal(t, handle, last.Record.Handle)
	assert.Equal(t, uint64(2), last.Tick)
}

func TestFailedWorkCancelsAndReoffers(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(1, 0, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	h.world.failWork = true

	assert.Equal(t, behavior.Failure, b.Tick(1), "a cancelled task reports failure")

	a := b.Context().Agent
	assert.False(t, a.Busy())
	last, ok := a.LastTask()
	require.True(t, ok)
	assert.Equal(t, tasks.OutcomeCancelled, last.Outcome)
	assert.True(t, q.IsAvailable(handle), "cancelled task is offered again under the same handle")
	assert.Equal(t, uint32(1), a.Cancelled)
}

func TestUnreachableSourceCancels(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(4, 4, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	h.world.unreachable[world.Pos(4, 4, 0)] = true

	assert.Equal(t, behavior.Failure, b.Tick(1))
	assert.False(t, b.Context().Agent.Busy())
	assert.True(t, q.IsAvailable(handle))
	assert.Equal(t, world.Pos(0, 0, 0), h.world.positions[1])
}

func TestCancelledTaskIsNotRetakenDuringCooldown(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(4, 4, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	a := b.Context().Agent
	h.world.unreachable[world.Pos(4, 4, 0)] = true

	b.Tick(1)
	require.Equal(t, uint32(1), a.Cancelled)
	ab, ok := blackboard.Get(a.Board, AbandonedTask)
	require.True(t, ok)
	assert.Equal(t, taskcache.Slot{Source: 100, Handle: handle}, ab.Slot)
	assert.Equal(t, uint64(1+AbandonCooldown), ab.Until)

	for tick := uint64(2); tick < 1+AbandonCooldown; tick++ {
		b.Tick(tick)
	}
	assert.False(t, a.Busy())
	assert.Equal(t, uint32(1), a.Cancelled, "no take-and-cancel churn while cooling down")
	assert.True(t, q.IsAvailable(handle))

	// Other work is still taken in the meantime.
	other := h.source(101, world.Pos(1, 0, 0))
	otherHandle := other.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b.Tick(AbandonCooldown)
	rec, busy := a.CurrentTask()
	require.True(t, busy)
	assert.Equal(t, otherHandle, rec.Handle)
	assert.True(t, q.IsAvailable(handle))
}

func TestAbandonedTaskRetakenAfterCooldown(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(4, 4, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	a := b.Context().Agent
	h.world.unreachable[world.Pos(4, 4, 0)] = true

	b.Tick(1)
	require.Equal(t, uint32(1), a.Cancelled)
	delete(h.world.unreachable, world.Pos(4, 4, 0))

	b.Tick(2)
	assert.False(t, a.Busy())

	b.Tick(1 + AbandonCooldown)
	rec, busy := a.CurrentTask()
	require.True(t, busy)
	assert.Equal(t, handle, rec.Handle)
}

func TestMissingReagentFetchesFromPile(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(2, 0, 0))
	q.Push(tasks.New(tasks.KindCarpentry, "saw_planks", []economy.Stack{{Good: economy.GoodLog, Count: 1}}))

	h.world.positions[200] = world.Pos(0, 3, 0)
	pile := &economy.Inventory{}
	pile.Add(economy.GoodLog, 2)
	h.world.piles[200] = pile

	b := h.brain(t, 1, world.Pos(0, 0, 0), tasks.Priorities{0, 0, 1, 0})
	a := b.Context().Agent

	assert.Equal(t, behavior.Running, b.Tick(1))
	g, ok := blackboard.Get(a.Board, MissingReagent)
	require.True(t, ok)
	assert.Equal(t, economy.GoodLog, g)
	target, ok := blackboard.Get(a.Board, PickupTarget)
	require.True(t, ok)
	assert.Equal(t, world.EntityID(200), target)
	assert.False(t, a.Busy())

	tick := h.run(b, 1, 10, func() bool { return h.world.stockpile[economy.GoodLog] > 0 })
	assert.Equal(t, 2, h.world.stockpile[economy.GoodLog])
	assert.True(t, pile.IsEmpty())
	assert.False(t, a.Board.Contains(MissingReagent))
	assert.False(t, a.Board.Contains(PickupTarget))

	h.run(b, tick, 20, func() bool { _, ok := a.LastTask(); return ok })
	last, ok := a.LastTask()
	require.True(t, ok)
	assert.Equal(t, tasks.OutcomeComplete, last.Outcome)
	assert.Equal(t, 1, h.world.stockpile[economy.GoodLog])
	assert.Equal(t, 2, h.world.stockpile[economy.GoodPlank])
}

func TestMissingReagentWithoutPile(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(2, 0, 0))
	q.Push(tasks.New(tasks.KindCarpentry, "saw_planks", []economy.Stack{{Good: economy.GoodLog, Count: 1}}))
	b := h.brain(t, 1, world.Pos(0, 0, 0), tasks.Priorities{0, 0, 1, 0})

	assert.Equal(t, behavior.Failure, b.Tick(1))
	assert.False(t, b.Context().Agent.Board.Contains(MissingReagent))
	assert.Equal(t, 1, q.Available())
}

func TestLostTakeRaceFails(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(2, 0, 0))
	handle := q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	b := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)

	h.world.onSatisfiable = func(tasks.Task) { q.Take(handle) }

	assert.Equal(t, behavior.Failure, findTask(b.Context()))
	assert.False(t, b.Context().Agent.Busy())
}

func TestTwoAgentsNeverShareAClaim(t *testing.T) {
	h := newHarness(t)
	q := h.source(100, world.Pos(3, 3, 0))
	q.Push(tasks.New(tasks.KindDig, "dig_rock", nil))
	first := h.brain(t, 1, world.Pos(0, 0, 0), digOnly)
	second := h.brain(t, 2, world.Pos(1, 1, 0), digOnly)

	first.Tick(1)
	second.Tick(1)

	assert.NotEqual(t, first.Context().Agent.Busy(), second.Context().Agent.Busy())
	assert.Equal(t, 1, q.Claimed())
}

func TestWorkLogIsBounded(t *testing.T) {
	a := NewAgent(1, "Test", ProfessionMiner, digOnly)
	for i := 0; i < MaxWorkLog+5; i++ {
		RecordWork(a, tasks.LastTask{Tick: uint64(i), Outcome: tasks.OutcomeComplete})
	}
	assert.Len(t, a.WorkLog, MaxWorkLog)
	assert.Equal(t, uint64(5), a.WorkLog[0].Tick)

	recent := RecentWork(a, 3)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(MaxWorkLog+4), recent[0].Tick)
	assert.Equal(t, uint32(MaxWorkLog+5), a.Completed)
}
