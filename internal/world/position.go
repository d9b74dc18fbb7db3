// Package world provides the tile grid, terrain, entity registry and spatial types
// shared by the task core and the host simulation.
package world

import "fmt"

// EntityID identifies any entity in the world: colonists, task sources, item piles.
// Zero is never issued.
type EntityID uint64

// Position is a tile coordinate. Z is the layer; generated maps use Z = 0.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Pos is shorthand for a Position literal.
func Pos(x, y, z int) Position {
	return Position{X: x, Y: y, Z: z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// NeighborDirections defines the eight horizontal neighbor offsets.
var NeighborDirections = [8]Position{
	{X: 1, Y: 0},
	{X: 1, Y: -1},
	{X: 0, Y: -1},
	{X: -1, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
}

// Neighbors returns the eight adjacent positions on the same layer.
func (p Position) Neighbors() [8]Position {
	var result [8]Position
	for i, dir := range NeighborDirections {
		result[i] = Position{X: p.X + dir.X, Y: p.Y + dir.Y, Z: p.Z}
	}
	return result
}

// Distance returns the Chebyshev distance between two positions: the number of
// king moves needed, counting a layer change as one move.
func Distance(a, b Position) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	dz := abs(a.Z - b.Z)
	max := dx
	if dy > max {
		max = dy
	}
	if dz > max {
		max = dz
	}
	return max
}

// StepToward returns the position one king move from p in the direction of target.
// Returns p unchanged when already there.
func StepToward(p, target Position) Position {
	return Position{
		X: p.X + sign(target.X-p.X),
		Y: p.Y + sign(target.Y-p.Y),
		Z: p.Z + sign(target.Z-p.Z),
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
