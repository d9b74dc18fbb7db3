package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

func TestSpawnColonists(t *testing.T) {
	m := world.NewMap(16, 16)
	ents := world.NewEntities()
	s := NewSpawner(42, DefaultProfessionTable())

	colonists := s.SpawnColonists(ents, m, 6, world.Pos(8, 8, 0), 0)
	require.Len(t, colonists, 6)

	seen := make(map[world.EntityID]bool)
	for _, a := range colonists {
		assert.False(t, seen[a.ID], "ids are unique")
		seen[a.ID] = true
		assert.NotEmpty(t, a.Name)
		assert.NotNil(t, a.Board)
		assert.Equal(t, s.Priorities(a.Profession), a.Priorities)

		pos, ok := ents.Position(a.ID)
		require.True(t, ok)
		assert.LessOrEqual(t, world.Distance(pos, world.Pos(8, 8, 0)), 1)
	}
}

func TestSpawnerIsDeterministic(t *testing.T) {
	names := func() []string {
		s := NewSpawner(7, DefaultProfessionTable())
		var out []string
		for _, a := range s.SpawnColonists(world.NewEntities(), nil, 4, world.Pos(0, 0, 0), 0) {
			out = append(out, a.Name+"/"+a.Profession.String())
		}
		return out
	}
	assert.Equal(t, names(), names())
}

func TestProfessionTableFromMap(t *testing.T) {
	table, err := ProfessionTableFromMap(map[string]map[string]uint8{
		"miner": {"dig": 9},
	})
	require.NoError(t, err)
	assert.Equal(t, tasks.Priorities{9, 0, 0, 0}, table[ProfessionMiner])
	assert.Equal(t, DefaultProfessionTable()[ProfessionMason], table[ProfessionMason])

	_, err = ProfessionTableFromMap(map[string]map[string]uint8{"bard": {"dig": 1}})
	assert.Error(t, err)
	_, err = ProfessionTableFromMap(map[string]map[string]uint8{"miner": {"sing": 1}})
	assert.Error(t, err)
}

func TestProfessionText(t *testing.T) {
	var p Profession
	require.NoError(t, p.UnmarshalText([]byte("Carpenter")))
	assert.Equal(t, ProfessionCarpenter, p)
	assert.Error(t, p.UnmarshalText([]byte("bard")))
	assert.Equal(t, "profession(9)", Profession(9).String())
}
