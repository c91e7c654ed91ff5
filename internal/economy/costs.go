package economy

import (
	"math"

	"github.com/talgya/mini-city/internal/world"
)

// Costs prices construction commands. Zero costs disable charging.
type Costs struct {
	Build          map[world.Kind]int64
	Upgrade        int64
	DemolishRefund float64     // Fraction of the build cost returned on demolition
	Thresholds     map[int]int // House level → land value that must be exceeded to reach it
}

// DefaultCosts returns the standard price list.
func DefaultCosts() Costs {
	return Costs{
		Build: map[world.Kind]int64{
			world.KindHouse:       100,
			world.KindRoad:        10,
			world.KindFactory:     300,
			world.KindPark:        50,
			world.KindPowerPlant:  500,
			world.KindFireStation: 250,
		},
		Upgrade:        150,
		DemolishRefund: 0.5,
		Thresholds: map[int]int{
			2: 20,
			3: 40,
			4: 60,
			5: 80,
		},
	}
}

// BuildCost returns the price of placing kind.
func (c Costs) BuildCost(kind world.Kind) int64 {
	return c.Build[kind]
}

// Refund returns the money returned when a structure of kind is demolished.
func (c Costs) Refund(kind world.Kind) int64 {
	return int64(math.Floor(float64(c.Build[kind]) * c.DemolishRefund))
}

// UpgradeAllowed reports whether a house may reach nextLevel given the land
// value at its cell. Non-house kinds are never gated.
func (c Costs) UpgradeAllowed(kind world.Kind, nextLevel, landValue int) bool {
	if kind != world.KindHouse {
		return true
	}
	required, ok := c.Thresholds[nextLevel]
	return !ok || landValue > required
}
