package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/world"
)

func TestBuild_ChargesAndEmits(t *testing.T) {
	opts := testOptions()
	s := NewSimulation(world.NewGrid(4, 4), opts)
	at := world.Coord{X: 1, Y: 1}

	require.NoError(t, s.Build(at, world.KindHouse))

	assert.Equal(t, opts.StartingCash-opts.Costs.BuildCost(world.KindHouse), s.Cash)
	events := s.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, CategoryBuilt, events[0].Category)
	assert.Equal(t, at, *events[0].At)
	assert.Equal(t, world.KindHouse, *events[0].Kind)
}

func TestBuild_FailuresLeaveStateUnchanged(t *testing.T) {
	opts := testOptions()
	opts.StartingCash = 50
	g := world.NewGrid(4, 4)
	require.NoError(t, g.Place(world.Coord{X: 2, Y: 2}, world.Cell{Kind: world.KindWater}))
	s := NewSimulation(g, opts)

	err := s.Build(world.Coord{X: 0, Y: 0}, world.KindFactory)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = s.Build(world.Coord{X: 2, Y: 2}, world.KindRoad)
	assert.ErrorIs(t, err, world.ErrIllegalMutation, "water is never buildable")

	err = s.Build(world.Coord{X: 9, Y: 0}, world.KindRoad)
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)

	assert.Equal(t, int64(50), s.Cash)
	assert.Equal(t, world.KindEmpty, s.Grid.At(world.Coord{X: 0, Y: 0}).Kind)
	assert.Zero(t, s.PendingEvents())
}

func TestUpgrade_HouseNeedsLandValue(t *testing.T) {
	opts := testOptions()
	s := NewSimulation(world.NewGrid(8, 8), opts)
	house := world.Coord{X: 1, Y: 1}
	require.NoError(t, s.Build(house, world.KindHouse))
	s.PeriodicPass()

	// GIVEN base land value 5, below the level-2 threshold
	err := s.Upgrade(house)
	assert.ErrorIs(t, err, ErrUpgradeLocked)
	assert.Equal(t, 1, s.Grid.At(house).Level)

	// WHEN a park next door raises land value and a pass runs
	require.NoError(t, s.Build(world.Coord{X: 2, Y: 1}, world.KindPark))
	s.PeriodicPass()
	cash := s.Cash

	// THEN the upgrade goes through and grows the house
	require.NoError(t, s.Upgrade(house))
	assert.Equal(t, 2, s.Grid.At(house).Level)
	assert.Len(t, s.Grid.At(house).Residents, world.HouseCapacity(2))
	assert.Equal(t, cash-opts.Costs.Upgrade, s.Cash)
}

func TestUpgrade_AtMaxLevelFails(t *testing.T) {
	g := world.NewGrid(3, 3)
	at := world.Coord{X: 1, Y: 1}
	require.NoError(t, g.Build(at, world.KindHouse))
	for i := 0; i < world.MaxLevel-1; i++ {
		require.NoError(t, g.Upgrade(at))
	}
	s := NewSimulation(g, testOptions())
	cash := s.Cash

	err := s.Upgrade(at)

	assert.ErrorIs(t, err, world.ErrIllegalMutation)
	assert.Equal(t, world.MaxLevel, s.Grid.At(at).Level)
	assert.Equal(t, cash, s.Cash)
}

func TestUpgrade_FactoryIgnoresThresholds(t *testing.T) {
	s := NewSimulation(world.NewGrid(3, 3), testOptions())
	at := world.Coord{X: 1, Y: 1}
	require.NoError(t, s.Build(at, world.KindFactory))

	require.NoError(t, s.Upgrade(at))
	assert.Equal(t, world.FactoryJobs(2), s.Grid.At(at).Jobs.Total)
}

func TestDemolish_FactorySendsWorkersHome(t *testing.T) {
	s := NewSimulation(corridor(t), testOptions())
	s.PeriodicPass()
	require.Equal(t, 4, s.Traffic.Len())
	cash := s.Cash

	require.NoError(t, s.Demolish(factoryAt))

	for slot := 0; slot < 4; slot++ {
		r := residentAt(s, slot)
		assert.Equal(t, world.AtHome, r.State)
		assert.Nil(t, r.Workplace)
	}
	assert.Equal(t, 0, s.Traffic.Len())
	assert.Equal(t, world.KindEmpty, s.Grid.At(factoryAt).Kind)
	assert.Equal(t, cash+s.opts.Costs.Refund(world.KindFactory), s.Cash)
}

func TestDemolish_HouseReleasesJobs(t *testing.T) {
	s := NewSimulation(corridor(t), testOptions())
	s.PeriodicPass()
	jobs := s.Grid.At(factoryAt).Jobs
	require.Equal(t, 4, jobs.Filled())

	require.NoError(t, s.Demolish(homeAt))

	assert.Equal(t, 0, jobs.Filled())
	assert.Equal(t, 0, s.Traffic.Len())

	err := s.Demolish(homeAt)
	assert.ErrorIs(t, err, world.ErrIllegalMutation, "already empty")
}

func TestSelectAndOverlay(t *testing.T) {
	s := NewSimulation(corridor(t), testOptions())

	info, err := s.SelectTile(world.Coord{X: 2, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, world.KindRoad, info.Cell.Kind)
	assert.Equal(t, world.East.Bit()|world.West.Bit(), info.RoadMask)

	_, err = s.SelectTile(world.Coord{X: -1, Y: 0})
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)

	assert.True(t, s.Deselect())
	assert.False(t, s.Deselect(), "nothing selected")

	on, err := s.ToggleOverlay("power")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = s.ToggleOverlay("power")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = s.ToggleOverlay("weather")
	assert.Error(t, err)

	var categories []string
	for _, e := range s.DrainEvents() {
		categories = append(categories, e.Category)
	}
	assert.Equal(t, []string{CategoryTileSelected, CategoryTileDeselected, CategoryOverlay, CategoryOverlay}, categories)
}

func TestSelectTile_EventDoesNotTrackLaterChanges(t *testing.T) {
	s := NewSimulation(corridor(t), testOptions())
	_, err := s.SelectTile(factoryAt)
	require.NoError(t, err)
	_, err = s.SelectTile(homeAt)
	require.NoError(t, err)
	events := s.DrainEvents()
	require.Len(t, events, 2)

	// Jobs and residents keep changing after the events leave the queue.
	s.Grid.At(factoryAt).Jobs.Reserve(world.ResidentID{Home: homeAt, Slot: 0})
	residentAt(s, 0).State = world.AtWork

	factory, home := events[0].Tile.Cell, events[1].Tile.Cell
	assert.Equal(t, 0, factory.Jobs.Filled())
	assert.Empty(t, factory.Jobs.Workers())
	assert.Equal(t, world.AtHome, home.Residents[0].State)

	data, err := json.Marshal(events[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"filled_by":[]`)
}

func TestClock_StepAndExec(t *testing.T) {
	s := NewSimulation(world.NewGrid(3, 3), testOptions())
	c := NewClock(s, time.Millisecond)
	var drained int
	c.AfterTick = func(sim *Simulation) { drained += len(sim.DrainEvents()) }

	for i := 0; i < 10; i++ {
		c.Step()
	}

	c.Exec(func(sim *Simulation) {
		assert.Equal(t, uint64(10), sim.Tick)
	})
	assert.Equal(t, 1, drained, "one economy event per pass")
	assert.Error(t, c.SetSpeed(-1))
	require.NoError(t, c.SetSpeed(2))
	assert.Equal(t, 2.0, c.Speed())
}

func TestClock_RunStopsOnCancel(t *testing.T) {
	s := NewSimulation(world.NewGrid(3, 3), testOptions())
	c := NewClock(s, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		c.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		var tick uint64
		c.Exec(func(sim *Simulation) { tick = sim.Tick })
		return tick >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clock did not stop")
	}
	assert.False(t, c.Running())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Month 1 Year 1 (tick 0)", SimTime(0, 60))
	assert.Equal(t, "Month 2 Year 1 (tick 60)", SimTime(60, 60))
	assert.Equal(t, "Month 1 Year 2 (tick 720)", SimTime(720, 60))
}
