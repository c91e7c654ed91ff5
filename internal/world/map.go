package world

import (
	"errors"
	"fmt"
)

// Mutation failures. State is unchanged whenever one is returned.
var (
	ErrInvalidCoordinate = errors.New("coordinate out of bounds")
	ErrIllegalMutation   = errors.New("cell state forbids mutation")
)

// Grid holds every cell of the settlement, row-major.
type Grid struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  []Cell `json:"cells"`
}

// NewGrid creates an all-empty grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

func (g *Grid) index(c Coord) int {
	return c.Y*g.Width + c.X
}

// At returns the cell at c, or nil if out of bounds.
func (g *Grid) At(c Coord) *Cell {
	if !g.InBounds(c) {
		return nil
	}
	return &g.Cells[g.index(c)]
}

// CoordOf returns the coordinate of the i-th cell in row-major order.
func (g *Grid) CoordOf(i int) Coord {
	return Coord{X: i % g.Width, Y: i / g.Width}
}

// Each visits every cell in row-major order.
func (g *Grid) Each(fn func(at Coord, cell *Cell)) {
	for i := range g.Cells {
		fn(g.CoordOf(i), &g.Cells[i])
	}
}

// CanBuild reports why a structure of kind could not be placed at at.
func (g *Grid) CanBuild(at Coord, kind Kind) error {
	cell := g.At(at)
	if cell == nil {
		return fmt.Errorf("build %s at %s: %w", kind, at, ErrInvalidCoordinate)
	}
	if kind == KindEmpty || kind == KindWater {
		return fmt.Errorf("build %s at %s: %w", kind, at, ErrIllegalMutation)
	}
	if !cell.Buildable() {
		return fmt.Errorf("build %s at %s over %s: %w", kind, at, cell.Kind, ErrIllegalMutation)
	}
	return nil
}

// Build places a level-1 structure of the given kind on an empty cell.
func (g *Grid) Build(at Coord, kind Kind) error {
	if err := g.CanBuild(at, kind); err != nil {
		return err
	}
	*g.At(at) = newCell(at, kind)
	return nil
}

// CanUpgrade reports why the cell at at could not be upgraded.
func (g *Grid) CanUpgrade(at Coord) error {
	cell := g.At(at)
	if cell == nil {
		return fmt.Errorf("upgrade at %s: %w", at, ErrInvalidCoordinate)
	}
	if !cell.Upgradable() {
		return fmt.Errorf("upgrade %s level %d at %s: %w", cell.Kind, cell.Level, at, ErrIllegalMutation)
	}
	return nil
}

// Upgrade raises a structure by one level and grows its payload.
func (g *Grid) Upgrade(at Coord) error {
	if err := g.CanUpgrade(at); err != nil {
		return err
	}
	cell := g.At(at)
	cell.Level++
	cell.growPayload(at)
	return nil
}

// Demolish resets a cell to empty ground, discarding its payload.
// Callers release resident and job cross-references themselves.
func (g *Grid) Demolish(at Coord) error {
	cell := g.At(at)
	if cell == nil {
		return fmt.Errorf("demolish at %s: %w", at, ErrInvalidCoordinate)
	}
	if cell.Kind == KindEmpty {
		return fmt.Errorf("demolish at %s: %w", at, ErrIllegalMutation)
	}
	*cell = Cell{}
	return nil
}

// Place sets a cell directly, bypassing build rules. Used by terrain
// generation and storage restore.
func (g *Grid) Place(at Coord, cell Cell) error {
	if !g.InBounds(at) {
		return fmt.Errorf("place at %s: %w", at, ErrInvalidCoordinate)
	}
	g.Cells[g.index(at)] = cell
	return nil
}

// CountKinds tallies cells by kind.
func (g *Grid) CountKinds() map[Kind]int {
	counts := make(map[Kind]int)
	for i := range g.Cells {
		counts[g.Cells[i].Kind]++
	}
	return counts
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.Width, g.Height)
}
