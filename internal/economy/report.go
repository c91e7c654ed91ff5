// Package economy aggregates the periodic economic report of the settlement
// and prices construction.
package economy

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-city/internal/world"
)

const (
	BaseHappiness             = 50.0
	FactoryPollutionPerLvl    = 2.0
	ParkPollutionReliefPerLvl = 0.5
	ParkHappinessPerLvl       = 3.0
)

// Rates are the tunable money and pollution constants of a pass.
type Rates struct {
	WageRate            int64   `yaml:"wage_rate"`             // Income per productive worker
	FireStationUpkeep   int64   `yaml:"fire_station_upkeep"`   // Expense per fire station
	PowerPlantPollution float64 `yaml:"power_plant_pollution"` // Flat pollution per power plant
}

// DefaultRates returns the standard rates.
func DefaultRates() Rates {
	return Rates{
		WageRate:            2,
		FireStationUpkeep:   10,
		PowerPlantPollution: 5,
	}
}

// Report is the aggregate state published after each periodic pass.
type Report struct {
	Tick       uint64  `json:"tick"`
	Cash       int64   `json:"cash"`
	Population int     `json:"population"`
	Employed   int     `json:"employed"`
	Jobs       int     `json:"jobs"`
	Pollution  float64 `json:"pollution"`
	Happiness  float64 `json:"happiness"`
	Income     int64   `json:"income"`
	Expenses   int64   `json:"expenses"`
}

// Net returns income minus expenses.
func (r Report) Net() int64 {
	return r.Income - r.Expenses
}

// String formats the headline figures for logs.
func (r Report) String() string {
	return fmt.Sprintf("cash=%s pop=%d employed=%d pollution=%.1f happiness=%.0f",
		humanize.Comma(r.Cash), r.Population, r.Employed, r.Pollution, r.Happiness)
}

// Aggregate scans the grid once and computes population, employment,
// pollution, happiness, income and expenses. A factory's workers count as
// employed only while it is both powered and road-accessible.
// Cash is left for the caller to settle.
func Aggregate(g *world.Grid, powered, access *world.Layer[bool], rates Rates) Report {
	var (
		r         Report
		pollution float64
		parkBonus float64
	)

	g.Each(func(at world.Coord, cell *world.Cell) {
		switch cell.Kind {
		case world.KindHouse:
			r.Population += len(cell.Residents)
		case world.KindFactory:
			r.Jobs += cell.Jobs.Total
			if powered.At(at) && access.At(at) {
				r.Employed += cell.Jobs.Filled()
			}
			pollution += float64(cell.Level) * FactoryPollutionPerLvl
		case world.KindPark:
			pollution -= float64(cell.Level) * ParkPollutionReliefPerLvl
			parkBonus += float64(cell.Level) * ParkHappinessPerLvl
		case world.KindPowerPlant:
			pollution += rates.PowerPlantPollution
		case world.KindFireStation:
			r.Expenses += rates.FireStationUpkeep
		}
	})

	r.Pollution = max(pollution, 0)
	r.Happiness = min(max(BaseHappiness+parkBonus-r.Pollution, 0), 100)
	r.Income = int64(r.Employed) * rates.WageRate
	return r
}
