package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/connectivity"
	"github.com/talgya/mini-city/internal/world"
)

func TestAggregate_ProductiveFactoriesOnly(t *testing.T) {
	// GIVEN two factories with two workers each: one powered and on a road,
	// one isolated
	g := world.NewGrid(6, 3)
	require.NoError(t, g.Build(world.Coord{X: 0, Y: 0}, world.KindPowerPlant))
	require.NoError(t, g.Build(world.Coord{X: 1, Y: 0}, world.KindFactory))
	require.NoError(t, g.Build(world.Coord{X: 1, Y: 1}, world.KindRoad))
	require.NoError(t, g.Build(world.Coord{X: 5, Y: 2}, world.KindFactory))
	require.NoError(t, g.Build(world.Coord{X: 3, Y: 2}, world.KindHouse))
	for _, f := range []world.Coord{{X: 1, Y: 0}, {X: 5, Y: 2}} {
		jobs := g.At(f).Jobs
		jobs.Reserve(world.ResidentID{Home: world.Coord{X: 3, Y: 2}, Slot: f.X})
		jobs.Reserve(world.ResidentID{Home: world.Coord{X: 3, Y: 2}, Slot: f.X + 1})
	}

	r := Aggregate(g, connectivity.Power(g), connectivity.RoadAccess(g), DefaultRates())

	assert.Equal(t, 4, r.Population)
	assert.Equal(t, 2, r.Employed)
	assert.Equal(t, 20, r.Jobs)
	assert.Equal(t, int64(4), r.Income)
	assert.Equal(t, int64(0), r.Expenses)
	// 2 factories × 2 + power plant 5
	assert.InDelta(t, 9.0, r.Pollution, 1e-9)
	assert.InDelta(t, 41.0, r.Happiness, 1e-9)
}

func TestAggregate_ParksAndFireStations(t *testing.T) {
	g := world.NewGrid(4, 1)
	require.NoError(t, g.Build(world.Coord{X: 0, Y: 0}, world.KindPark))
	require.NoError(t, g.Upgrade(world.Coord{X: 0, Y: 0}))
	require.NoError(t, g.Build(world.Coord{X: 1, Y: 0}, world.KindFireStation))
	require.NoError(t, g.Build(world.Coord{X: 2, Y: 0}, world.KindFireStation))

	r := Aggregate(g, connectivity.Power(g), connectivity.RoadAccess(g), DefaultRates())

	assert.Zero(t, r.Pollution, "pollution floors at zero")
	assert.InDelta(t, 56.0, r.Happiness, 1e-9)
	assert.Equal(t, int64(20), r.Expenses)
	assert.Equal(t, int64(-20), r.Net())
}

func TestAggregate_HappinessClamps(t *testing.T) {
	g := world.NewGrid(10, 3)
	for x := 0; x < 10; x++ {
		require.NoError(t, g.Build(world.Coord{X: x, Y: 0}, world.KindPowerPlant))
		require.NoError(t, g.Build(world.Coord{X: x, Y: 2}, world.KindPark))
	}
	for x := 0; x < 10; x++ {
		for i := 1; i < world.MaxLevel; i++ {
			require.NoError(t, g.Upgrade(world.Coord{X: x, Y: 2}))
		}
	}

	r := Aggregate(g, connectivity.Power(g), connectivity.RoadAccess(g), DefaultRates())

	// pollution = 50 - 25 = 25; happiness = 50 + 150 - 25 → 100
	assert.InDelta(t, 25.0, r.Pollution, 1e-9)
	assert.Equal(t, 100.0, r.Happiness)

	g2 := world.NewGrid(12, 1)
	for x := 0; x < 12; x++ {
		require.NoError(t, g2.Build(world.Coord{X: x, Y: 0}, world.KindPowerPlant))
	}
	r2 := Aggregate(g2, connectivity.Power(g2), connectivity.RoadAccess(g2), DefaultRates())
	assert.Equal(t, 0.0, r2.Happiness)
}

func TestCosts(t *testing.T) {
	c := DefaultCosts()

	assert.Equal(t, int64(500), c.BuildCost(world.KindPowerPlant))
	assert.Equal(t, int64(0), c.BuildCost(world.KindWater))
	assert.Equal(t, int64(150), c.Refund(world.KindFactory))

	assert.False(t, c.UpgradeAllowed(world.KindHouse, 2, 20), "must exceed the threshold")
	assert.True(t, c.UpgradeAllowed(world.KindHouse, 2, 21))
	assert.True(t, c.UpgradeAllowed(world.KindFactory, 5, 0))
	assert.True(t, c.UpgradeAllowed(world.KindHouse, 6, 0), "levels without thresholds are open")
}

func TestReport_String(t *testing.T) {
	r := Report{Cash: 1234567, Population: 8, Employed: 3, Pollution: 2.5, Happiness: 47}
	assert.Equal(t, "cash=1,234,567 pop=8 employed=3 pollution=2.5 happiness=47", r.String())
}
