package traffic

import (
	"log/slog"

	"github.com/talgya/mini-city/internal/world"
)

// Manager holds the active vehicle set.
type Manager struct {
	Speed    float64
	vehicles []*Vehicle
}

// NewManager creates an empty manager. Non-positive speeds fall back to
// DefaultSpeed.
func NewManager(speed float64) *Manager {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	return &Manager{Speed: speed}
}

// CreateTrip plans a route between two buildings for a resident and, on
// success, registers a vehicle starting at the first waypoint.
// state is the travel state the resident enters with this trip.
func (m *Manager) CreateTrip(g *world.Grid, mask *world.Layer[uint8], resident world.ResidentID, state world.ResidentState, from, to world.Coord) (*Vehicle, error) {
	path, err := Route(g, mask, from, to)
	if err != nil {
		return nil, err
	}
	v := newVehicle(resident, state, from, to, path, m.Speed)
	m.vehicles = append(m.vehicles, v)
	slog.Debug("trip created", "resident", resident.String(), "state", state.String(), "waypoints", len(path))
	return v, nil
}

// Advance moves every vehicle one tick. onArrive runs synchronously for each
// vehicle reaching its destination, before it leaves the active set.
func (m *Manager) Advance(onArrive func(v *Vehicle)) {
	if len(m.vehicles) == 0 {
		return
	}
	active := m.vehicles
	for _, v := range active {
		if v.step() && onArrive != nil {
			onArrive(v)
		}
	}
	m.Remove(func(v *Vehicle) bool { return v.Arrived })
}

// Remove drops every vehicle matching drop and returns how many were dropped.
func (m *Manager) Remove(drop func(v *Vehicle) bool) int {
	kept := m.vehicles[:0]
	removed := 0
	for _, v := range m.vehicles {
		if drop(v) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(m.vehicles); i++ {
		m.vehicles[i] = nil
	}
	m.vehicles = kept
	return removed
}

// Vehicles returns the active vehicles. The slice must not be modified.
func (m *Manager) Vehicles() []*Vehicle {
	return m.vehicles
}

// Len returns the number of active vehicles.
func (m *Manager) Len() int {
	return len(m.vehicles)
}

// Reset abandons every active trip.
func (m *Manager) Reset() {
	m.vehicles = nil
}
