// Terrain generation for a fresh settlement grid.
// Lakes are stamped as rectangles; optional simplex noise scatters extra water.

package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/mini-city/internal/entropy"
)

// Rect is an axis-aligned block of cells.
type Rect struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// Contains reports whether c lies inside the rectangle.
func (r Rect) Contains(c Coord) bool {
	return c.X >= r.X && c.Y >= r.Y && c.X < r.X+r.W && c.Y < r.Y+r.H
}

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Seed       int64   `yaml:"seed"`        // 0 = random (only used with WaterLevel > 0)
	WaterLevel float64 `yaml:"water_level"` // Noise threshold below which a cell is water (0 disables)
	Lakes      []Rect  `yaml:"lakes"`
}

// DefaultGenConfig returns the classic 30×20 map with one lake.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:  30,
		Height: 20,
		Lakes:  []Rect{{X: 5, Y: 10, W: 5, H: 5}},
	}
}

// Generate creates an empty grid with water placed per cfg.
func Generate(cfg GenConfig) *Grid {
	g := NewGrid(cfg.Width, cfg.Height)

	var noise opensimplex.Noise
	if cfg.WaterLevel > 0 {
		seed := cfg.Seed
		if seed == 0 {
			seed = entropy.Seed()
		}
		noise = opensimplex.NewNormalized(seed)
	}

	g.Each(func(at Coord, cell *Cell) {
		for _, lake := range cfg.Lakes {
			if lake.Contains(at) {
				cell.Kind = KindWater
				return
			}
		}
		if noise != nil && octaveNoise(noise, float64(at.X), float64(at.Y), 3, 0.12, 0.5) < cfg.WaterLevel {
			cell.Kind = KindWater
		}
	})
	return g
}

// octaveNoise sums several noise octaves, normalized back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
