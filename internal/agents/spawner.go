// Colonist spawning: names, professions and their task priorities.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// ProfessionTable maps each profession to its default task priorities.
type ProfessionTable [NumProfessions]tasks.Priorities

// DefaultProfessionTable returns the built-in priorities. Every profession
// keeps a low weight for every kind so no task goes unworked.
func DefaultProfessionTable() ProfessionTable {
	var t ProfessionTable
	t[ProfessionLaborer] = tasks.Priorities{2, 2, 1, 1}
	t[ProfessionMiner] = tasks.Priorities{5, 1, 1, 3}
	t[ProfessionWoodcutter] = tasks.Priorities{1, 5, 3, 1}
	t[ProfessionCarpenter] = tasks.Priorities{1, 2, 5, 1}
	t[ProfessionMason] = tasks.Priorities{2, 1, 1, 5}
	return t
}

// ProfessionTableFromMap overlays config entries (profession -> kind -> weight)
// onto the defaults.
func ProfessionTableFromMap(m map[string]map[string]uint8) (ProfessionTable, error) {
	t := DefaultProfessionTable()
	for name, weights := range m {
		p, err := ParseProfession(name)
		if err != nil {
			return t, err
		}
		prio, err := tasks.PrioritiesFromMap(weights)
		if err != nil {
			return t, fmt.Errorf("profession %s: %w", p, err)
		}
		t[p] = prio
	}
	return t, nil
}

// Spawner creates colonists for the simulation.
type Spawner struct {
	rng   *rand.Rand
	table ProfessionTable
}

// NewSpawner creates a colonist spawner with the given seed.
func NewSpawner(seed int64, table ProfessionTable) *Spawner {
	return &Spawner{
		rng:   rand.New(rand.NewSource(seed + 300)),
		table: table,
	}
}

// Priorities returns the table entry for a profession.
func (s *Spawner) Priorities(p Profession) tasks.Priorities {
	if int(p) >= NumProfessions {
		return s.table[ProfessionLaborer]
	}
	return s.table[p]
}

// SpawnColonists registers count colonists around center and returns them.
// Professions cycle so small colonies still cover every kind of work.
func (s *Spawner) SpawnColonists(ents *world.Entities, m *world.Map, count int, center world.Position, tick uint64) []*Agent {
	spots := s.spawnSpots(m, center, count)
	out := make([]*Agent, 0, count)

	for i := 0; i < count; i++ {
		prof := Profession((i + 1) % NumProfessions)
		if s.rng.Float32() < 0.2 {
			prof = ProfessionLaborer
		}
		id := ents.Spawn(world.KindColonist, spots[i%len(spots)])
		a := NewAgent(id, s.generateName(), prof, s.Priorities(prof))
		a.BornTick = tick
		out = append(out, a)
	}
	return out
}

// spawnSpots returns passable positions nearest center, center first.
func (s *Spawner) spawnSpots(m *world.Map, center world.Position, count int) []world.Position {
	spots := []world.Position{center}
	for r := 1; len(spots) < count && r < 8; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				p := world.Pos(center.X+dx, center.Y+dy, center.Z)
				if m == nil || m.Passable(p) {
					spots = append(spots, p)
				}
			}
		}
	}
	return spots
}

func (s *Spawner) generateName() string {
	var first string
	if s.rng.Float32() < 0.5 {
		first = maleNames[s.rng.Intn(len(maleNames))]
	} else {
		first = femaleNames[s.rng.Intn(len(femaleNames))]
	}
	return first + " " + lastNames[s.rng.Intn(len(lastNames))]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Name pools for procedural generation.
var maleNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Oswin", "Per", "Quinn", "Rowan", "Stellan", "Theron", "Ulric",
}

var femaleNames = []string{
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
	"Olwen", "Petra", "Runa", "Senna", "Thea", "Una", "Vera",
}

var lastNames = []string{
	"Voss", "Thornwood", "Ashford", "Ironhand", "Dunmore", "Greenvale",
	"Hearthstone", "Millward", "Copperfield", "Stoneheart", "Deepwell",
	"Oakenshield", "Redforge", "Marshwood", "Riverstone", "Holloway",
	"Thatcher", "Caldwell", "Harper", "Mercer", "Ward", "Cross",
}
