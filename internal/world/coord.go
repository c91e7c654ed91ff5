// Package world provides the settlement grid, cell payloads and the
// derived per-cell layers computed from it.
// Coordinates are (x, y) with y growing southward.
package world

import "fmt"

// Coord is a cell position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the coordinate as "x,y".
func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Direction indexes the four orthogonal neighbors in mask bit order.
type Direction uint8

const (
	North Direction = iota // bit 0
	East                   // bit 1
	South                  // bit 2
	West                   // bit 3
)

// Directions lists the orthogonal directions in mask bit order.
var Directions = [4]Direction{North, East, South, West}

// directionOffsets maps each direction to its (dx, dy) step.
var directionOffsets = [4]Coord{
	North: {X: 0, Y: -1},
	East:  {X: 1, Y: 0},
	South: {X: 0, Y: 1},
	West:  {X: -1, Y: 0},
}

// Bit returns the road-mask bit for the direction.
func (d Direction) Bit() uint8 {
	return 1 << d
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Step returns the neighboring coordinate in direction d.
func (c Coord) Step(d Direction) Coord {
	off := directionOffsets[d]
	return Coord{X: c.X + off.X, Y: c.Y + off.Y}
}

// Neighbors returns the four orthogonal neighbors in N, E, S, W order.
// Some may lie outside the grid.
func (c Coord) Neighbors() [4]Coord {
	var result [4]Coord
	for i, d := range Directions {
		result[i] = c.Step(d)
	}
	return result
}

// Manhattan returns the 4-connected grid distance between two coordinates.
func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
