package world

import "fmt"

// Terrain types for map tiles.
type Terrain uint8

const (
	TerrainGrass Terrain = iota // Open ground, walkable
	TerrainTree                 // Walkable, can be felled for logs
	TerrainRock                 // Solid, can be dug out for stone
	TerrainWater                // Impassable
	TerrainFloor                // Dug-out or cleared ground
)

// Tile is a single cell of the map.
type Tile struct {
	Terrain   Terrain `json:"terrain"`
	Elevation float64 `json:"elevation"` // 0.0 (sea level) to 1.0 (peak)
	Moisture  float64 `json:"moisture"`  // 0.0 (arid) to 1.0 (wet)
}

// Map holds a rectangular single-layer tile grid.
type Map struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tiles  []Tile `json:"-"` // Row-major, Width*Height
}

// NewMap creates a map of grass tiles.
func NewMap(width, height int) *Map {
	return &Map{
		Width:  width,
		Height: height,
		Tiles:  make([]Tile, width*height),
	}
}

// InBounds returns true if the position lies on the map layer.
func (m *Map) InBounds(p Position) bool {
	return p.Z == 0 && p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// Get returns the tile at p, or nil if out of bounds.
func (m *Map) Get(p Position) *Tile {
	if !m.InBounds(p) {
		return nil
	}
	return &m.Tiles[p.Y*m.Width+p.X]
}

// SetTerrain changes the terrain at p. Out-of-bounds positions are ignored.
func (m *Map) SetTerrain(p Position, t Terrain) {
	if tile := m.Get(p); tile != nil {
		tile.Terrain = t
	}
}

// Passable reports whether a colonist may stand on p.
func (m *Map) Passable(p Position) bool {
	tile := m.Get(p)
	if tile == nil {
		return false
	}
	return tile.Terrain != TerrainWater && tile.Terrain != TerrainRock
}

// TileCount returns the number of tiles in the map.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d)", m.Width, m.Height)
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainGrass:
		return "Grass"
	case TerrainTree:
		return "Tree"
	case TerrainRock:
		return "Rock"
	case TerrainWater:
		return "Water"
	case TerrainFloor:
		return "Floor"
	default:
		return "Unknown"
	}
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, tile := range m.Tiles {
		counts[tile.Terrain]++
	}
	return counts
}
