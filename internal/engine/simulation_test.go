package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/behavior"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// newTestSim builds a 12x12 grass map with one rock and one tree.
func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	m := world.NewMap(12, 12)
	m.SetTerrain(world.Pos(6, 2, 0), world.TerrainRock)
	m.SetTerrain(world.Pos(2, 6, 0), world.TerrainTree)

	sim, err := NewSimulation(m, world.NewEntities(), Options{RepeatOrders: 1})
	require.NoError(t, err)
	return sim
}

func addColonist(t *testing.T, sim *Simulation, name string, pos world.Position, prio tasks.Priorities) *agents.Agent {
	t.Helper()
	id := sim.Entities.Spawn(world.KindColonist, pos)
	a := agents.NewAgent(id, name, agents.ProfessionLaborer, prio)
	require.NoError(t, sim.AddColonist(a, pos))
	return a
}

func runUntil(sim *Simulation, from uint64, limit int, done func() bool) uint64 {
	tick := from
	for i := 0; i < limit && !done(); i++ {
		tick++
		sim.Step(tick)
	}
	return tick
}

// checkClaims asserts every claimed slot is held by exactly one colonist.
func checkClaims(t *testing.T, sim *Simulation) {
	t.Helper()
	type claim struct {
		source world.EntityID
		handle tasks.Handle
	}
	held := make(map[claim]world.EntityID)
	for _, a := range sim.Colonists {
		rec, ok := a.CurrentTask()
		if !ok {
			continue
		}
		c := claim{rec.Source, rec.Handle}
		if other, dup := held[c]; dup {
			t.Fatalf("colonists %d and %d both hold %v", other, a.ID, c)
		}
		held[c] = a.ID
	}
	claimed := 0
	for _, src := range sim.Sources {
		claimed += src.Queue.Claimed()
	}
	assert.Equal(t, len(held), claimed, "claimed slots match held claims")
}

func TestDesignationLifecycle(t *testing.T) {
	sim := newTestSim(t)
	rock := world.Pos(6, 2, 0)
	src, err := sim.AddDesignation(tasks.KindDig, rock)
	require.NoError(t, err)
	a := addColonist(t, sim, "Digger", world.Pos(1, 1, 0), tasks.Priorities{1, 0, 0, 0})

	runUntil(sim, 0, 50, func() bool { return a.Completed > 0 })

	assert.Equal(t, uint32(1), a.Completed)
	assert.Equal(t, world.TerrainFloor, sim.Map.Get(rock).Terrain)
	assert.Equal(t, world.TerrainFloor, sim.TileChanges[rock])
	assert.False(t, sim.Entities.Alive(src.ID), "finished designation retires")
	_, registered := sim.Cache.Queue(src.ID)
	assert.False(t, registered)

	require.Len(t, sim.Piles, 1, "dug stone is dropped beside the site")
	for _, p := range sim.Piles {
		assert.Equal(t, 1, p.Contents[economy.GoodStone])
		assert.LessOrEqual(t, world.Distance(p.Position, rock), 1)
	}

	journal := sim.Journal()
	require.Len(t, journal, 1)
	assert.Equal(t, tasks.OutcomeComplete, journal[0].Outcome)
	assert.Equal(t, src.ID, journal[0].Source)
	assert.Len(t, sim.Journal(), 1, "unacknowledged entries stay")
	sim.AckJournal(len(journal))
	assert.Empty(t, sim.Journal())
	assert.Equal(t, uint64(1), sim.Totals.Completed)
}

func TestAddDesignationValidatesSite(t *testing.T) {
	sim := newTestSim(t)
	_, err := sim.AddDesignation(tasks.KindDig, world.Pos(0, 0, 0))
	assert.ErrorIs(t, err, ErrBadSite)
	_, err = sim.AddDesignation(tasks.KindCarpentry, world.Pos(6, 2, 0))
	assert.ErrorIs(t, err, ErrBadSite)

	_, err = sim.AddDesignation(tasks.KindChop, world.Pos(2, 6, 0))
	require.NoError(t, err)
	_, err = sim.AddDesignation(tasks.KindChop, world.Pos(2, 6, 0))
	assert.ErrorIs(t, err, ErrBadSite, "one designation per tile")

	_, err = sim.AddWorkshop("tannery", world.Pos(5, 5, 0))
	assert.ErrorIs(t, err, ErrNoReaction)
	_, err = sim.AddWorkshop("carpenter", world.Pos(6, 2, 0))
	assert.ErrorIs(t, err, ErrBadSite)
	assert.ErrorIs(t, sim.RemoveSource(999), ErrUnknownSource)
}

func TestColonistsNeverShareAClaim(t *testing.T) {
	sim := newTestSim(t)
	_, err := sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	_, err = sim.AddDesignation(tasks.KindChop, world.Pos(2, 6, 0))
	require.NoError(t, err)
	_, err = sim.AddWorkshop("carpenter", world.Pos(8, 8, 0))
	require.NoError(t, err)

	all := tasks.Priorities{1, 1, 1, 1}
	addColonist(t, sim, "A", world.Pos(4, 4, 0), all)
	addColonist(t, sim, "B", world.Pos(4, 4, 0), all)
	addColonist(t, sim, "C", world.Pos(5, 5, 0), all)

	for tick := uint64(1); tick <= 120; tick++ {
		sim.Step(tick)
		checkClaims(t, sim)
	}
	assert.GreaterOrEqual(t, sim.Totals.Completed, uint64(2))
}

func TestRemovedSourceReleasesClaimNextTick(t *testing.T) {
	sim := newTestSim(t)
	src, err := sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	a := addColonist(t, sim, "Digger", world.Pos(0, 10, 0), tasks.Priorities{1, 0, 0, 0})

	sim.Step(1)
	require.True(t, a.Busy())

	sim.Lock()
	require.NoError(t, sim.RemoveSource(src.ID))
	sim.Unlock()

	assert.Zero(t, src.Queue.Available())
	assert.Equal(t, 1, src.Queue.Claimed(), "the claim stays until its holder releases it")

	sim.Step(2)
	assert.False(t, a.Busy())
	last, ok := a.LastTask()
	require.True(t, ok)
	assert.Equal(t, tasks.OutcomeCancelled, last.Outcome)
	assert.Equal(t, uint64(2), last.Tick)
	assert.Equal(t, world.TerrainRock, sim.Map.Get(world.Pos(6, 2, 0)).Terrain)
}

func TestRemoveWorkshopWithdrawsOrders(t *testing.T) {
	sim := newTestSim(t)
	shop, err := sim.AddWorkshop("carpenter", world.Pos(8, 8, 0))
	require.NoError(t, err)
	q := shop.Queue
	require.Equal(t, 3, q.Available())

	require.NoError(t, sim.RemoveSource(shop.ID))
	assert.Zero(t, q.Len())
	assert.Zero(t, sim.Cache.Available())
}

func TestRebuildCacheOrdersByID(t *testing.T) {
	sim := newTestSim(t)
	dig, err := sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	shop, err := sim.AddWorkshop("carpenter", world.Pos(8, 8, 0))
	require.NoError(t, err)

	sim.Cache.Unregister(dig.ID)
	sim.RebuildCache()
	assert.Equal(t, []world.EntityID{dig.ID, shop.ID}, sim.Cache.Sources())
	got, ok := sim.Cache.Queue(shop.ID)
	require.True(t, ok)
	assert.Same(t, shop.Queue, got)
}

func TestWorkshopFetchesReagentsAndRefills(t *testing.T) {
	sim := newTestSim(t)
	shop, err := sim.AddWorkshop("carpenter", world.Pos(8, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, shop.Queue.Available(), "one order per carpenter reaction")

	var logs economy.Inventory
	logs.Add(economy.GoodLog, 2)
	sim.AddPile(world.Pos(4, 8, 0), logs)

	a := addColonist(t, sim, "Sawyer", world.Pos(1, 8, 0), tasks.Priorities{0, 0, 1, 0})
	runUntil(sim, 0, 80, func() bool { return sim.Stockpile[economy.GoodPlank] > 0 })

	assert.Positive(t, sim.Stockpile[economy.GoodPlank])
	assert.Equal(t, uint64(1), sim.Totals.PickedUp)
	assert.Empty(t, sim.Piles, "emptied pile is removed")
	assert.Equal(t, uint32(1), a.Completed)
	assert.Equal(t, 3, shop.Queue.Len(), "completed orders are refilled")
}

func TestMoveToAroundObstacles(t *testing.T) {
	sim := newTestSim(t)
	id := sim.Entities.Spawn(world.KindColonist, world.Pos(5, 1, 0))

	// (6,2) is rock: the diagonal step is blocked, so the colonist goes around.
	params := agents.MoveParameters{Target: world.Pos(7, 2, 0)}
	assert.Equal(t, behavior.Running, sim.MoveTo(id, params))
	pos, _ := sim.Entities.Position(id)
	assert.True(t, sim.Map.Passable(pos))
	assert.Equal(t, 1, world.Distance(pos, world.Pos(5, 1, 0)))

	assert.Equal(t, behavior.Failure, sim.MoveTo(id, agents.MoveParameters{Target: world.Pos(6, 2, 0)}),
		"cannot stand on rock")
	assert.Equal(t, behavior.Failure, sim.MoveTo(id, agents.MoveParameters{Target: world.Pos(40, 2, 0)}),
		"off the map")
	assert.Equal(t, behavior.Success, sim.MoveTo(id, agents.MoveParameters{Target: world.Pos(6, 2, 0), Tolerance: 1}))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	sim := newTestSim(t)
	_, err := sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	addColonist(t, sim, "Digger", world.Pos(5, 1, 0), tasks.Priorities{1, 0, 0, 0})

	id, ch := sim.Subscribe()
	sim.Step(1)

	select {
	case e := <-ch:
		assert.Equal(t, "task", e.Category)
		assert.Contains(t, e.Description, "Digger took dig")
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	sim.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)

	sim.RLock()
	assert.NotEmpty(t, sim.RecentEvents(10))
	sim.RUnlock()
}

func TestSubscribeFromSplitsBacklogAndLive(t *testing.T) {
	sim := newTestSim(t)
	_, err := sim.AddDesignation(tasks.KindDig, world.Pos(6, 2, 0))
	require.NoError(t, err)
	_, err = sim.AddDesignation(tasks.KindChop, world.Pos(2, 6, 0))
	require.NoError(t, err)
	addColonist(t, sim, "Digger", world.Pos(5, 1, 0), tasks.Priorities{1, 1, 0, 0})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for tick := uint64(1); tick <= 40; tick++ {
			sim.Step(tick)
		}
	}()
	id, ch, backlog := sim.SubscribeFrom(maxEvents)
	<-done
	sim.Unsubscribe(id)

	var live []Event
	for e := range ch {
		live = append(live, e)
	}

	// Every event is seen exactly once, in order.
	sim.RLock()
	defer sim.RUnlock()
	require.NotEmpty(t, sim.Events)
	assert.Equal(t, sim.Events, append(backlog, live...))
}

func TestFoundColony(t *testing.T) {
	sim, err := Found(FoundConfig{
		Seed:         42,
		Width:        32,
		Height:       32,
		Colonists:    5,
		Designations: 3,
		RepeatOrders: 1,
	})
	require.NoError(t, err)

	st := sim.Stats()
	assert.Equal(t, 5, st.Colonists)
	assert.Positive(t, st.Available)
	assert.Len(t, sim.Colonists, 5)

	for tick := uint64(1); tick <= 200; tick++ {
		sim.Step(tick)
		checkClaims(t, sim)
	}
	assert.Positive(t, sim.Totals.Completed)
}

func TestEngineRunsCallbacks(t *testing.T) {
	eng := NewEngine()
	eng.Interval = time.Microsecond
	eng.MaxTicks = TicksPerSimDay

	var ticks, hours, days int
	eng.OnTick = func(uint64) { ticks++ }
	eng.OnHour = func(uint64) { hours++ }
	eng.OnDay = func(uint64) { days++ }
	eng.SetSpeed(1000)
	eng.Run()

	assert.Equal(t, TicksPerSimDay, ticks)
	assert.Equal(t, 24, hours)
	assert.Equal(t, 1, days)
	assert.False(t, eng.Running())
	assert.Equal(t, "Day 2, 00:00", SimTime(eng.Tick))
	assert.Equal(t, "Day 1, 01:05", SimTime(65))
}
