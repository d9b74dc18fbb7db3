// World generation using layered simplex noise.
// Elevation and moisture layers are sampled per tile and thresholded into terrain.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width     int     // Tiles along X
	Height    int     // Tiles along Y
	Seed      int64   // Random seed (0 = random)
	WaterLvl  float64 // Elevation below which tiles are water
	RockLvl   float64 // Elevation above which tiles are rock
	TreeMoist float64 // Moisture above which grass becomes forest
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:     48,
		Height:    48,
		Seed:      0,
		WaterLvl:  0.22,
		RockLvl:   0.68,
		TreeMoist: 0.58,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:     16,
		Height:    16,
		Seed:      42,
		WaterLvl:  0.20,
		RockLvl:   0.70,
		TreeMoist: 0.60,
	}
}

// Generate creates a map with terrain derived from two noise layers.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Width, cfg.Height)
	cx := float64(cfg.Width) / 2
	cy := float64(cfg.Height) / 2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			fx, fy := float64(x), float64(y)

			elev := octaveNoise(elevNoise, fx, fy, 4, 0.07, 0.5)
			moist := octaveNoise(moistNoise, fx, fy, 3, 0.05, 0.5)

			// Lift the middle of the map so the colony site is dry land.
			centerBias := 1.0 - math.Hypot(fx-cx, fy-cy)/maxDist
			elev = elev*0.7 + centerBias*0.3

			tile := m.Get(Pos(x, y, 0))
			tile.Elevation = elev
			tile.Moisture = moist
			tile.Terrain = deriveTerrain(elev, moist, cfg)
		}
	}

	return m
}

func deriveTerrain(elev, moist float64, cfg GenConfig) Terrain {
	switch {
	case elev < cfg.WaterLvl:
		return TerrainWater
	case elev > cfg.RockLvl:
		return TerrainRock
	case moist > cfg.TreeMoist:
		return TerrainTree
	default:
		return TerrainGrass
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
