// Package traffic plans road routes between buildings and moves the
// vehicles that execute them.
package traffic

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/heap"

	"github.com/talgya/mini-city/internal/world"
)

// Planning failures.
var (
	ErrNoFrontage    = errors.New("building has no adjacent road")
	ErrRouteNotFound = errors.New("no road route between frontages")
)

// Frontage returns the first road cell orthogonally adjacent to the
// building, checked in N, E, S, W order.
func Frontage(g *world.Grid, building world.Coord) (world.Coord, error) {
	for _, n := range building.Neighbors() {
		if cell := g.At(n); cell != nil && cell.Kind == world.KindRoad {
			return n, nil
		}
	}
	return world.Coord{}, fmt.Errorf("frontage of %s: %w", building, ErrNoFrontage)
}

type openNode struct {
	at world.Coord
	f  int
}

// FindPath runs A* over the road graph defined by mask, from start to end
// inclusive. Edges have unit cost and the heuristic is Manhattan distance,
// so returned paths are shortest.
func FindPath(mask *world.Layer[uint8], start, end world.Coord) ([]world.Coord, error) {
	if !mask.InBounds(start) || !mask.InBounds(end) {
		return nil, fmt.Errorf("path %s → %s: %w", start, end, ErrRouteNotFound)
	}
	if start == end {
		return []world.Coord{start}, nil
	}

	cameFrom := make(map[world.Coord]world.Coord)
	gScore := map[world.Coord]int{start: 0}
	closed := make(map[world.Coord]bool)

	open := heap.New[openNode](func(a, b openNode) bool { return a.f < b.f })
	open.Push(openNode{at: start, f: world.Manhattan(start, end)})

	for open.Size() > 0 {
		node, _ := open.Pop()
		current := node.at
		if closed[current] {
			continue
		}
		if current == end {
			return reconstruct(cameFrom, current), nil
		}
		closed[current] = true

		m := mask.At(current)
		for _, d := range world.Directions {
			if m&d.Bit() == 0 {
				continue
			}
			next := current.Step(d)
			if closed[next] || !mask.InBounds(next) {
				continue
			}
			tentative := gScore[current] + 1
			if g, seen := gScore[next]; seen && tentative >= g {
				continue
			}
			cameFrom[next] = current
			gScore[next] = tentative
			open.Push(openNode{at: next, f: tentative + world.Manhattan(next, end)})
		}
	}
	return nil, fmt.Errorf("path %s → %s: %w", start, end, ErrRouteNotFound)
}

func reconstruct(cameFrom map[world.Coord]world.Coord, current world.Coord) []world.Coord {
	path := []world.Coord{current}
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Route finds the road path between the frontages of two buildings.
func Route(g *world.Grid, mask *world.Layer[uint8], from, to world.Coord) ([]world.Coord, error) {
	start, err := Frontage(g, from)
	if err != nil {
		return nil, err
	}
	end, err := Frontage(g, to)
	if err != nil {
		return nil, err
	}
	return FindPath(mask, start, end)
}
