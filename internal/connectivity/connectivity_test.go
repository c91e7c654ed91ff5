package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/world"
)

func build(t *testing.T, g *world.Grid, kind world.Kind, coords ...world.Coord) {
	t.Helper()
	for _, c := range coords {
		require.NoError(t, g.Build(c, kind))
	}
}

func TestPower_AdjacentConduction(t *testing.T) {
	// GIVEN a power plant at (0,0) and a house at (0,1), nothing else
	g := world.NewGrid(5, 5)
	build(t, g, world.KindPowerPlant, world.Coord{X: 0, Y: 0})
	build(t, g, world.KindHouse, world.Coord{X: 0, Y: 1})

	powered := Power(g)

	assert.True(t, powered.At(world.Coord{X: 0, Y: 0}))
	assert.True(t, powered.At(world.Coord{X: 0, Y: 1}))
	assert.False(t, powered.At(world.Coord{X: 1, Y: 1}), "empty ground is never powered")
	assert.Equal(t, 2, PoweredCount(powered))
}

func TestPower_StopsAtGapsAndWater(t *testing.T) {
	// GIVEN a chain plant → road → house, a water cell, then another house
	g := world.Generate(world.GenConfig{Width: 6, Height: 1, Lakes: []world.Rect{{X: 3, Y: 0, W: 1, H: 1}}})
	build(t, g, world.KindPowerPlant, world.Coord{X: 0, Y: 0})
	build(t, g, world.KindRoad, world.Coord{X: 1, Y: 0})
	build(t, g, world.KindHouse, world.Coord{X: 2, Y: 0}, world.Coord{X: 4, Y: 0})
	build(t, g, world.KindFactory, world.Coord{X: 5, Y: 0})

	powered := Power(g)

	assert.Equal(t, []bool{true, true, true, false, false, false}, powered.Values)
}

func TestPower_MultipleSources(t *testing.T) {
	g := world.NewGrid(7, 1)
	build(t, g, world.KindPowerPlant, world.Coord{X: 0, Y: 0}, world.Coord{X: 6, Y: 0})
	build(t, g, world.KindPark, world.Coord{X: 1, Y: 0}, world.Coord{X: 5, Y: 0})

	powered := Power(g)

	assert.Equal(t, []bool{true, true, false, false, false, true, true}, powered.Values)
}

// TestPower_MatchesReachability checks the flood fill against a brute-force
// reachability search on a mixed grid.
func TestPower_MatchesReachability(t *testing.T) {
	g := world.Generate(world.GenConfig{Width: 12, Height: 9, Seed: 3, WaterLevel: 0.4})
	kinds := []world.Kind{world.KindHouse, world.KindRoad, world.KindFactory, world.KindEmpty, world.KindPark}
	g.Each(func(at world.Coord, cell *world.Cell) {
		if cell.Kind != world.KindEmpty {
			return
		}
		k := kinds[(at.X*7+at.Y*3)%len(kinds)]
		if k != world.KindEmpty {
			require.NoError(t, g.Build(at, k))
		}
	})
	if g.At(world.Coord{X: 0, Y: 0}).Kind != world.KindEmpty {
		require.NoError(t, g.Demolish(world.Coord{X: 0, Y: 0}))
	}
	build(t, g, world.KindPowerPlant, world.Coord{X: 0, Y: 0})

	powered := Power(g)

	// Brute force: repeat relaxation until stable.
	want := world.NewLayer[bool](g)
	want.Set(world.Coord{X: 0, Y: 0}, true)
	for changed := true; changed; {
		changed = false
		g.Each(func(at world.Coord, cell *world.Cell) {
			if want.At(at) || !cell.Conducts() {
				return
			}
			for _, n := range at.Neighbors() {
				if want.At(n) {
					want.Set(at, true)
					changed = true
					return
				}
			}
		})
	}
	assert.Equal(t, want.Values, powered.Values)
}

func TestRoadAccess(t *testing.T) {
	g := world.NewGrid(4, 3)
	build(t, g, world.KindRoad, world.Coord{X: 1, Y: 1})
	build(t, g, world.KindHouse, world.Coord{X: 1, Y: 0}, world.Coord{X: 3, Y: 0})
	build(t, g, world.KindFactory, world.Coord{X: 2, Y: 1}, world.Coord{X: 3, Y: 2})
	build(t, g, world.KindPark, world.Coord{X: 0, Y: 2})

	access := RoadAccess(g)

	assert.True(t, access.At(world.Coord{X: 1, Y: 0}), "house north of road")
	assert.False(t, access.At(world.Coord{X: 3, Y: 0}), "isolated house")
	assert.True(t, access.At(world.Coord{X: 2, Y: 1}), "factory east of road")
	assert.False(t, access.At(world.Coord{X: 3, Y: 2}), "isolated factory")
	assert.True(t, access.At(world.Coord{X: 0, Y: 2}), "parks do not need roads")
	assert.True(t, access.At(world.Coord{X: 0, Y: 0}), "empty ground reports access")
}

func TestRoadMask_EastSouthScenario(t *testing.T) {
	g := world.NewGrid(6, 6)
	build(t, g, world.KindRoad, world.Coord{X: 2, Y: 2}, world.Coord{X: 3, Y: 2}, world.Coord{X: 2, Y: 3})
	build(t, g, world.KindHouse, world.Coord{X: 1, Y: 2})

	mask := RoadMask(g)

	assert.Equal(t, uint8(0b0110), mask.At(world.Coord{X: 2, Y: 2}))
	assert.Equal(t, uint8(0b1000), mask.At(world.Coord{X: 3, Y: 2}))
	assert.Equal(t, uint8(0b0001), mask.At(world.Coord{X: 2, Y: 3}))
	assert.Equal(t, uint8(0), mask.At(world.Coord{X: 1, Y: 2}), "non-road cells have no mask")
}

func TestRoadMask_Symmetric(t *testing.T) {
	g := world.NewGrid(8, 8)
	g.Each(func(at world.Coord, cell *world.Cell) {
		if (at.X*at.Y+at.X)%3 != 0 {
			require.NoError(t, g.Build(at, world.KindRoad))
		}
	})

	mask := RoadMask(g)

	g.Each(func(at world.Coord, cell *world.Cell) {
		for _, d := range world.Directions {
			n := at.Step(d)
			if !g.InBounds(n) {
				assert.Zero(t, mask.At(at)&d.Bit(), "no bit toward the grid edge")
				continue
			}
			fwd := mask.At(at)&d.Bit() != 0
			back := mask.At(n)&d.Opposite().Bit() != 0
			assert.Equal(t, fwd, back, "asymmetric mask between %s and %s", at, n)
			if fwd {
				assert.Equal(t, world.KindRoad, g.At(n).Kind)
			}
		}
	})
}
