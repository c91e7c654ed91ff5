// Package landvalue scores every cell from superposed influence sources.
// Parks and fire stations raise value; factories and power plants lower it.
// Each source falls off linearly to zero at its radius.
package landvalue

import (
	"math"

	"github.com/talgya/mini-city/internal/world"
)

const (
	Base = 5   // Value of a cell with no influence
	Min  = 0   // Lower clamp
	Max  = 120 // Upper clamp
)

// Source is a signed, radius-bounded influence on land value.
type Source struct {
	At        world.Coord
	Magnitude float64
	Radius    float64
}

// Influence is the magnitude and radius exerted by a kind.
type Influence struct {
	Magnitude float64
	Radius    float64
}

// Influences maps each influencing kind to its effect. Kinds not listed
// exert no influence.
var Influences = map[world.Kind]Influence{
	world.KindPark:        {Magnitude: 50, Radius: 5},
	world.KindFireStation: {Magnitude: 50, Radius: 5},
	world.KindFactory:     {Magnitude: -40, Radius: 4},
	world.KindPowerPlant:  {Magnitude: -40, Radius: 4},
}

// Sources collects the influence sources present on the grid.
func Sources(g *world.Grid) []Source {
	var sources []Source
	g.Each(func(at world.Coord, cell *world.Cell) {
		if inf, ok := Influences[cell.Kind]; ok {
			sources = append(sources, Source{At: at, Magnitude: inf.Magnitude, Radius: inf.Radius})
		}
	})
	return sources
}

// Contribution returns what a source adds at the given point.
// Zero at or beyond the radius, full magnitude at distance 0.
func (s Source) Contribution(at world.Coord) float64 {
	dx := float64(at.X - s.At.X)
	dy := float64(at.Y - s.At.Y)
	d := math.Sqrt(dx*dx + dy*dy)
	if d >= s.Radius {
		return 0
	}
	return s.Magnitude * (1 - d/s.Radius)
}

// Value scores a single cell against a set of sources.
func Value(at world.Coord, sources []Source) int {
	sum := float64(Base)
	for _, s := range sources {
		sum += s.Contribution(at)
	}
	v := int(math.Round(sum))
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Diffuse computes the land value layer for the whole grid.
func Diffuse(g *world.Grid) *world.Layer[int] {
	values := world.NewLayer[int](g)
	sources := Sources(g)
	g.Each(func(at world.Coord, _ *world.Cell) {
		values.Set(at, Value(at, sources))
	})
	return values
}

// Mean returns the average land value across the layer.
func Mean(values *world.Layer[int]) float64 {
	if len(values.Values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values.Values {
		total += v
	}
	return float64(total) / float64(len(values.Values))
}
