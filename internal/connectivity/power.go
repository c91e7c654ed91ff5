// Package connectivity derives the power and road layers from the grid.
// Both are rebuilt from scratch on every periodic pass.
package connectivity

import (
	"github.com/zyedidia/generic/queue"

	"github.com/talgya/mini-city/internal/world"
)

// Power floods power outward from every power plant through any
// constructed cell. Empty ground and water do not conduct.
func Power(g *world.Grid) *world.Layer[bool] {
	powered := world.NewLayer[bool](g)
	frontier := queue.New[world.Coord]()

	g.Each(func(at world.Coord, cell *world.Cell) {
		if cell.Kind == world.KindPowerPlant {
			powered.Set(at, true)
			frontier.Enqueue(at)
		}
	})

	for !frontier.Empty() {
		current := frontier.Dequeue()
		for _, n := range current.Neighbors() {
			cell := g.At(n)
			if cell == nil || powered.At(n) || !cell.Conducts() {
				continue
			}
			powered.Set(n, true)
			frontier.Enqueue(n)
		}
	}
	return powered
}

// PoweredCount returns how many cells are powered.
func PoweredCount(powered *world.Layer[bool]) int {
	n := 0
	for _, p := range powered.Values {
		if p {
			n++
		}
	}
	return n
}
