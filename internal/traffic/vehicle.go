package traffic

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/mini-city/internal/world"
)

// DefaultSpeed is the travel distance per tick, in cells.
const DefaultSpeed = 0.0625

// Vehicle carries one resident along a planned road path. It owns no
// persistent state; arrival effects are applied to the resident it references.
type Vehicle struct {
	ID       uuid.UUID           `json:"id"`
	Resident world.ResidentID    `json:"resident"`
	State    world.ResidentState `json:"state"` // Travel state at creation
	From     world.Coord         `json:"from"`  // Origin building
	To       world.Coord         `json:"to"`    // Destination building
	Path     []world.Coord       `json:"path"`
	Index    int                 `json:"index"` // Next waypoint
	X        float64             `json:"x"`
	Y        float64             `json:"y"`
	Speed    float64             `json:"speed"`
	Arrived  bool                `json:"arrived"`
}

func newVehicle(resident world.ResidentID, state world.ResidentState, from, to world.Coord, path []world.Coord, speed float64) *Vehicle {
	return &Vehicle{
		ID:       uuid.New(),
		Resident: resident,
		State:    state,
		From:     from,
		To:       to,
		Path:     path,
		Index:    1,
		X:        float64(path[0].X),
		Y:        float64(path[0].Y),
		Speed:    speed,
	}
}

// step moves the vehicle one tick along its path. Returns true on the tick
// the final waypoint is reached.
func (v *Vehicle) step() bool {
	if v.Arrived {
		return false
	}
	if v.Index >= len(v.Path) {
		v.Arrived = true
		return true
	}

	target := v.Path[v.Index]
	tx, ty := float64(target.X), float64(target.Y)
	dx := tx - v.X
	dy := ty - v.Y
	distance := math.Hypot(dx, dy)

	if distance <= v.Speed {
		v.X, v.Y = tx, ty
		v.Index++
		if v.Index >= len(v.Path) {
			v.Arrived = true
			return true
		}
		return false
	}

	v.X += dx / distance * v.Speed
	v.Y += dy / distance * v.Speed
	return false
}

// Remaining returns how many waypoints are still ahead.
func (v *Vehicle) Remaining() int {
	if v.Index >= len(v.Path) {
		return 0
	}
	return len(v.Path) - v.Index
}
