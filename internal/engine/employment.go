// Resident commute cycle: AtHome → ToWork → AtWork → ToHome → AtHome.
// Home departures are decided on the periodic pass; arrivals are driven by
// vehicles every tick.

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/mini-city/internal/traffic"
	"github.com/talgya/mini-city/internal/world"
)

var errNoFreeSlot = errors.New("no free job slot")

// openSlots lists one candidate per free job slot, factories in row-major
// order. It is computed once per pass before any resident is considered.
func (s *Simulation) openSlots() []world.Coord {
	var slots []world.Coord
	s.Grid.Each(func(at world.Coord, cell *world.Cell) {
		if cell.Kind != world.KindFactory {
			return
		}
		for i := 0; i < cell.Jobs.Free(); i++ {
			slots = append(slots, at)
		}
	})
	return slots
}

// nearestSlot returns the index of the slot closest to home, skipping
// factories in skip, first found on ties. It returns -1 when none is left.
func nearestSlot(slots []world.Coord, home world.Coord, skip mapset.Set[world.Coord]) int {
	best, bestDist := -1, 0
	for i, at := range slots {
		if skip.Has(at) {
			continue
		}
		if d := world.Manhattan(at, home); best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// runEmployment evaluates every resident once. Idle residents take the
// nearest free slot they can reach; residents whose shift is over head
// home. Returns how many were hired and how many left work.
func (s *Simulation) runEmployment() (hired, released int) {
	slots := s.openSlots()

	s.Grid.Each(func(home world.Coord, cell *world.Cell) {
		if cell.Kind != world.KindHouse {
			return
		}
		// Factories no trip from this home could reach during this pass.
		unreachable := mapset.New[world.Coord]()
		for i := range cell.Residents {
			r := &cell.Residents[i]
			switch r.State {
			case world.AtHome:
				if s.seekJob(r, home, &slots, unreachable) {
					hired++
				}
			case world.AtWork:
				if r.DepartureTick == nil || s.Tick < *r.DepartureTick {
					continue
				}
				s.leaveWork(r, home)
				released++
			}
		}
	})
	return hired, released
}

// seekJob tries slots nearest first until a trip can be planned. Factories
// that fail are added to unreachable; the slot taken is removed from slots.
func (s *Simulation) seekJob(r *world.Resident, home world.Coord, slots *[]world.Coord, unreachable mapset.Set[world.Coord]) bool {
	for {
		idx := nearestSlot(*slots, home, unreachable)
		if idx < 0 {
			return false
		}
		factory := (*slots)[idx]
		if err := s.startCommute(r, home, factory); err != nil {
			slog.Debug("commute not possible", "resident", r.ID.String(), "factory", factory.String(), "error", err)
			unreachable.Put(factory)
			continue
		}
		*slots = slices.Delete(*slots, idx, idx+1)
		return true
	}
}

// startCommute reserves a slot at factory and sends r on its way. On a
// planning failure the resident stays home and nothing is reserved.
func (s *Simulation) startCommute(r *world.Resident, home, factory world.Coord) error {
	jobs := s.Grid.At(factory).Jobs
	if jobs.Free() <= 0 {
		return fmt.Errorf("factory %s: %w", factory, errNoFreeSlot)
	}
	if _, err := s.Traffic.CreateTrip(s.Grid, s.RoadMask, r.ID, world.ToWork, home, factory); err != nil {
		return err
	}
	jobs.Reserve(r.ID)
	workplace := factory
	r.State = world.ToWork
	r.Workplace = &workplace
	r.DepartureTick = nil
	return nil
}

// leaveWork sends r home. When no route exists the arrival effects apply
// at once: the resident is home without ever entering ToHome.
func (s *Simulation) leaveWork(r *world.Resident, home world.Coord) {
	if r.Workplace != nil {
		_, err := s.Traffic.CreateTrip(s.Grid, s.RoadMask, r.ID, world.ToHome, *r.Workplace, home)
		if err == nil {
			r.State = world.ToHome
			return
		}
		slog.Debug("no route home, returning directly", "resident", r.ID.String(), "error", err)
	}
	s.arriveHome(r)
}

// handleArrival applies a finished trip to the resident it carried.
func (s *Simulation) handleArrival(v *traffic.Vehicle) {
	r := s.resident(v.Resident)
	if r == nil || r.State != v.State {
		return
	}
	switch v.State {
	case world.ToWork:
		departure := s.Tick + s.opts.WorkDuration
		r.State = world.AtWork
		r.DepartureTick = &departure
	case world.ToHome:
		s.arriveHome(r)
	}
}

// arriveHome releases r's job slot and clears its workplace.
func (s *Simulation) arriveHome(r *world.Resident) {
	if r.Workplace != nil {
		if f := s.Grid.At(*r.Workplace); f != nil && f.Kind == world.KindFactory {
			f.Jobs.Release(r.ID)
		}
	}
	r.State = world.AtHome
	r.Workplace = nil
	r.DepartureTick = nil
}

// resident resolves an ID through the grid, or nil if its home is gone.
func (s *Simulation) resident(id world.ResidentID) *world.Resident {
	home := s.Grid.At(id.Home)
	if home == nil {
		return nil
	}
	return home.Resident(id.Slot)
}
