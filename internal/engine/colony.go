// Founding a new colony: map generation, site placement and the starting
// colonists, workshops, designations and piles.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/taskcache"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// workshopTypes are built in order at the colony's workshop sites.
var workshopTypes = []string{"carpenter", "mason"}

// FoundConfig controls new colony generation.
type FoundConfig struct {
	Seed         int64
	Width        int
	Height       int
	Colonists    int
	Designations int
	RepeatOrders int
	Professions  agents.ProfessionTable
	Reactions    *catalog.Reactions
	Ranker       taskcache.Ranker
	Logger       *slog.Logger
}

// GenerateMap builds the deterministic map for a seed and size. Saved colonies
// regenerate it on load and replay their tile changes.
func GenerateMap(seed int64, width, height int) *world.Map {
	gen := world.DefaultGenConfig()
	gen.Seed = seed
	gen.Width = width
	gen.Height = height
	return world.Generate(gen)
}

// Found generates a map and settles a new colony on it.
func Found(cfg FoundConfig) (*Simulation, error) {
	if cfg.Professions == (agents.ProfessionTable{}) {
		cfg.Professions = agents.DefaultProfessionTable()
	}
	m := GenerateMap(cfg.Seed, cfg.Width, cfg.Height)
	site := world.PlaceColony(m, cfg.Seed, cfg.Designations)

	sim, err := NewSimulation(m, world.NewEntities(), Options{
		Reactions:    cfg.Reactions,
		Ranker:       cfg.Ranker,
		RepeatOrders: cfg.RepeatOrders,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	for i, p := range site.Workshops {
		if _, err := sim.AddWorkshop(workshopTypes[i%len(workshopTypes)], p); err != nil {
			return nil, fmt.Errorf("found colony: %w", err)
		}
	}
	for _, p := range site.DigSites {
		if _, err := sim.AddDesignation(tasks.KindDig, p); err != nil {
			return nil, fmt.Errorf("found colony: %w", err)
		}
	}
	for _, p := range site.ChopSites {
		if _, err := sim.AddDesignation(tasks.KindChop, p); err != nil {
			return nil, fmt.Errorf("found colony: %w", err)
		}
	}

	// Starting supplies: a log pile and a stone pile.
	starting := []economy.Stack{
		{Good: economy.GoodLog, Count: 4},
		{Good: economy.GoodStone, Count: 3},
	}
	for i, p := range site.PileSites {
		var inv economy.Inventory
		st := starting[i%len(starting)]
		inv.Add(st.Good, st.Count)
		sim.AddPile(p, inv)
	}

	spawner := agents.NewSpawner(cfg.Seed, cfg.Professions)
	for _, a := range spawner.SpawnColonists(sim.Entities, m, cfg.Colonists, site.Center, 0) {
		pos, _ := sim.Entities.Position(a.ID)
		if err := sim.AddColonist(a, pos); err != nil {
			return nil, err
		}
	}

	slog.Info("colony founded",
		"center", site.Center,
		"colonists", len(sim.Colonists),
		"workshops", len(site.Workshops),
		"designations", len(site.DigSites)+len(site.ChopSites),
		"piles", len(sim.Piles),
	)
	return sim, nil
}
