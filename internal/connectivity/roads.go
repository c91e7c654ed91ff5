package connectivity

import "github.com/talgya/mini-city/internal/world"

// RoadAccess marks houses and factories that touch at least one road.
// Every other kind reports access unconditionally.
func RoadAccess(g *world.Grid) *world.Layer[bool] {
	access := world.NewLayer[bool](g)
	g.Each(func(at world.Coord, cell *world.Cell) {
		if !cell.NeedsRoad() {
			access.Set(at, true)
			return
		}
		for _, n := range at.Neighbors() {
			if nc := g.At(n); nc != nil && nc.Kind == world.KindRoad {
				access.Set(at, true)
				return
			}
		}
	})
	return access
}

// RoadMask sets, for every road cell, one bit per orthogonal road neighbor
// (bit 0 north, 1 east, 2 south, 3 west). Non-road cells get 0.
// The mask is also the edge set of the route-planning graph.
func RoadMask(g *world.Grid) *world.Layer[uint8] {
	mask := world.NewLayer[uint8](g)
	g.Each(func(at world.Coord, cell *world.Cell) {
		if cell.Kind != world.KindRoad {
			return
		}
		var m uint8
		for _, d := range world.Directions {
			if nc := g.At(at.Step(d)); nc != nil && nc.Kind == world.KindRoad {
				m |= d.Bit()
			}
		}
		mask.Set(at, m)
	})
	return mask
}
