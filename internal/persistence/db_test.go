package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/world"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "city.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadGrid_EmptyDatabase(t *testing.T) {
	db := openTemp(t)

	_, err := db.LoadGrid()

	assert.ErrorIs(t, err, ErrNoWorld)
}

func TestWorldState_RoundTripResetsCommutes(t *testing.T) {
	db := openTemp(t)

	// GIVEN a commuting settlement
	g := world.NewGrid(5, 3)
	require.NoError(t, g.Build(world.Coord{X: 0, Y: 1}, world.KindHouse))
	require.NoError(t, g.Upgrade(world.Coord{X: 0, Y: 1}))
	require.NoError(t, g.Build(world.Coord{X: 4, Y: 1}, world.KindFactory))
	for x := 1; x <= 3; x++ {
		require.NoError(t, g.Build(world.Coord{X: x, Y: 1}, world.KindRoad))
	}
	require.NoError(t, g.Place(world.Coord{X: 2, Y: 2}, world.Cell{Kind: world.KindWater}))
	opts := engine.DefaultOptions()
	sim := engine.NewSimulation(g, opts)
	sim.Tick = 120
	sim.PeriodicPass()
	require.Positive(t, sim.Traffic.Len())
	sim.Cash = 4321

	// WHEN it is saved and loaded
	require.NoError(t, db.SaveWorldState(sim))
	loaded, err := db.LoadWorldState(opts)
	require.NoError(t, err)

	// THEN kinds and levels survive while commutes are reset
	assert.Equal(t, uint64(120), loaded.Tick)
	assert.Equal(t, int64(4321), loaded.Cash)
	assert.Equal(t, 5, loaded.Grid.Width)
	assert.Equal(t, 3, loaded.Grid.Height)
	assert.Equal(t, g.CountKinds(), loaded.Grid.CountKinds())

	house := loaded.Grid.At(world.Coord{X: 0, Y: 1})
	assert.Equal(t, 2, house.Level)
	require.Len(t, house.Residents, world.HouseCapacity(2))
	for _, r := range house.Residents {
		assert.Equal(t, world.AtHome, r.State)
	}
	assert.Equal(t, 0, loaded.Grid.At(world.Coord{X: 4, Y: 1}).Jobs.Filled())
	assert.Equal(t, 0, loaded.Traffic.Len())
	assert.True(t, loaded.RoadAccess.At(world.Coord{X: 0, Y: 1}), "layers recomputed on load")
}

func TestEvents_RecentNewestFirst(t *testing.T) {
	db := openTemp(t)
	at := world.Coord{X: 3, Y: 4}

	require.NoError(t, db.SaveEvents([]engine.Event{
		{Tick: 1, Category: engine.CategoryBuilt, Description: "built road at 3,4", At: &at},
		{Tick: 60, Category: engine.CategoryEconomy, Description: "cash=1,000"},
	}))
	require.NoError(t, db.SaveEvents(nil))

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, engine.CategoryEconomy, events[0].Category)
	assert.Nil(t, events[0].At)
	assert.Equal(t, uint64(1), events[1].Tick)
	require.NotNil(t, events[1].At)
	assert.Equal(t, at, *events[1].At)
}

func TestMeta(t *testing.T) {
	db := openTemp(t)

	require.NoError(t, db.SaveMeta("seed", "42"))
	require.NoError(t, db.SaveMeta("seed", "7"))

	v, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}
