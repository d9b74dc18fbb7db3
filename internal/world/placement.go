// Colony placement: finds the colony site and seeds initial work on the map.
package world

import (
	"math/rand"
	"sort"
)

// ColonySite holds the positions chosen for a new colony.
type ColonySite struct {
	Center    Position   // Where colonists spawn
	Workshops []Position // Free ground next to the center
	DigSites  []Position // Rock tiles to designate for digging
	ChopSites []Position // Tree tiles to designate for felling
	PileSites []Position // Free ground for starting item piles
}

// PlaceColony picks the best open spot on the map and nearby work sites.
// maxDesignations bounds each of DigSites and ChopSites.
func PlaceColony(m *Map, seed int64, maxDesignations int) ColonySite {
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		pos   Position
		score int
	}
	var candidates []scored

	for y := 2; y < m.Height-2; y++ {
		for x := 2; x < m.Width-2; x++ {
			p := Pos(x, y, 0)
			if !m.Passable(p) {
				continue
			}
			candidates = append(candidates, scored{p, siteScore(m, p)})
		}
	}

	var site ColonySite
	if len(candidates) == 0 {
		site.Center = Pos(m.Width/2, m.Height/2, 0)
		return site
	}

	// Best score first; break ties toward the map center, then by position.
	mid := Pos(m.Width/2, m.Height/2, 0)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		di, dj := Distance(candidates[i].pos, mid), Distance(candidates[j].pos, mid)
		if di != dj {
			return di < dj
		}
		if candidates[i].pos.Y != candidates[j].pos.Y {
			return candidates[i].pos.Y < candidates[j].pos.Y
		}
		return candidates[i].pos.X < candidates[j].pos.X
	})
	site.Center = candidates[0].pos

	// Walk outward from the center collecting sites in distance order.
	for radius := 1; radius <= max(m.Width, m.Height); radius++ {
		for _, p := range ring(site.Center, radius) {
			tile := m.Get(p)
			if tile == nil {
				continue
			}
			switch tile.Terrain {
			case TerrainRock:
				if len(site.DigSites) < maxDesignations {
					site.DigSites = append(site.DigSites, p)
				}
			case TerrainTree:
				if len(site.ChopSites) < maxDesignations {
					site.ChopSites = append(site.ChopSites, p)
				}
			case TerrainGrass:
				if radius >= 2 && len(site.Workshops) < 2 {
					site.Workshops = append(site.Workshops, p)
				} else if radius >= 3 && len(site.PileSites) < 2 && rng.Intn(4) == 0 {
					site.PileSites = append(site.PileSites, p)
				}
			}
		}
		if len(site.DigSites) >= maxDesignations && len(site.ChopSites) >= maxDesignations &&
			len(site.Workshops) >= 2 && len(site.PileSites) >= 2 {
			break
		}
	}

	return site
}

// siteScore counts passable ground within two tiles.
func siteScore(m *Map, p Position) int {
	score := 0
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if m.Passable(Pos(p.X+dx, p.Y+dy, p.Z)) {
				score++
			}
		}
	}
	return score
}

// ring returns the positions at exactly Chebyshev distance r from c, in a fixed order.
func ring(c Position, r int) []Position {
	out := make([]Position, 0, 8*r)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if abs(dx) != r && abs(dy) != r {
				continue
			}
			out = append(out, Pos(c.X+dx, c.Y+dy, c.Z))
		}
	}
	return out
}
