// Package engine ties the grid, derived layers, traffic and economy together
// into one simulation context advanced one tick at a time.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-city/internal/connectivity"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/landvalue"
	"github.com/talgya/mini-city/internal/traffic"
	"github.com/talgya/mini-city/internal/world"
)

// DefaultTicksPerPass is one simulated month.
const DefaultTicksPerPass = 60

// Options tune a Simulation.
type Options struct {
	TicksPerPass uint64 // Ticks between periodic passes
	WorkDuration uint64 // Ticks a resident stays at work before heading home
	VehicleSpeed float64
	StartingCash int64
	Rates        economy.Rates
	Costs        economy.Costs
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		TicksPerPass: DefaultTicksPerPass,
		WorkDuration: 2 * DefaultTicksPerPass,
		VehicleSpeed: traffic.DefaultSpeed,
		StartingCash: 1000,
		Rates:        economy.DefaultRates(),
		Costs:        economy.DefaultCosts(),
	}
}

// Simulation holds the complete settlement state. It is single-writer:
// every method must run on the goroutine driving the ticks (see Clock.Exec).
type Simulation struct {
	Grid *world.Grid

	// Derived layers, rebuilt on every periodic pass. Between passes they
	// may lag behind grid edits.
	Power      *world.Layer[bool]
	RoadAccess *world.Layer[bool]
	LandValue  *world.Layer[int]
	RoadMask   *world.Layer[uint8]

	Traffic *traffic.Manager

	Tick   uint64         // Most recent tick processed
	Cash   int64          // Treasury
	Report economy.Report // Last periodic report

	Selected *world.Coord
	Overlays map[string]bool

	opts    Options
	pending []Event
}

// NewSimulation wraps a grid in a simulation context. Derived layers are
// computed immediately so readers never see nil layers.
func NewSimulation(g *world.Grid, opts Options) *Simulation {
	if opts.TicksPerPass == 0 {
		opts.TicksPerPass = DefaultTicksPerPass
	}
	s := &Simulation{
		Grid:     g,
		Traffic:  traffic.NewManager(opts.VehicleSpeed),
		Cash:     opts.StartingCash,
		Overlays: make(map[string]bool),
		opts:     opts,
	}
	s.refreshLayers()
	s.Report = economy.Aggregate(g, s.Power, s.RoadAccess, opts.Rates)
	s.Report.Cash = s.Cash
	return s
}

// Options returns the tuning the simulation runs with.
func (s *Simulation) Options() Options {
	return s.opts
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.Tick
}

// Advance runs exactly one tick: vehicles always move, and every
// TicksPerPass-th tick the periodic pass runs.
func (s *Simulation) Advance() {
	s.Tick++
	s.Traffic.Advance(s.handleArrival)
	if s.Tick%s.opts.TicksPerPass == 0 {
		s.PeriodicPass()
	}
}

// PeriodicPass recomputes every derived layer, runs the employment state
// machine, then aggregates and settles the economy.
func (s *Simulation) PeriodicPass() {
	s.refreshLayers()
	hired, released := s.runEmployment()

	report := economy.Aggregate(s.Grid, s.Power, s.RoadAccess, s.opts.Rates)
	s.Cash += report.Net()
	report.Cash = s.Cash
	report.Tick = s.Tick
	s.Report = report

	s.EmitEvent(Event{
		Category:    CategoryEconomy,
		Description: report.String(),
		Report:      &report,
	})

	slog.Info("monthly report",
		"tick", s.Tick,
		"cash", humanize.Comma(s.Cash),
		"net", report.Net(),
		"population", report.Population,
		"employed", report.Employed,
		"pollution", report.Pollution,
		"happiness", report.Happiness,
		"vehicles", s.Traffic.Len(),
		"hired", hired,
		"released", released,
	)
}

// refreshLayers rebuilds power, road access, land value and the road mask.
// The mask must be current before any trip is planned in the same pass.
func (s *Simulation) refreshLayers() {
	s.Power = connectivity.Power(s.Grid)
	s.RoadAccess = connectivity.RoadAccess(s.Grid)
	s.LandValue = landvalue.Diffuse(s.Grid)
	s.RoadMask = connectivity.RoadMask(s.Grid)
}

// Reset abandons every trip and sends all residents home, as after a load.
// It returns how many vehicles were dropped.
func (s *Simulation) Reset() int {
	dropped := s.Traffic.Len()
	s.Traffic.Reset()
	s.Grid.Each(func(_ world.Coord, cell *world.Cell) {
		switch cell.Kind {
		case world.KindHouse:
			for i := range cell.Residents {
				r := &cell.Residents[i]
				r.State = world.AtHome
				r.Workplace = nil
				r.DepartureTick = nil
			}
		case world.KindFactory:
			cell.Jobs.Clear()
		}
	})
	s.refreshLayers()

	s.EmitEvent(Event{
		Category:    CategoryReset,
		Description: fmt.Sprintf("commutes reset, %d vehicles dropped", dropped),
	})
	slog.Info("commutes reset", "vehicles", dropped)
	return dropped
}
