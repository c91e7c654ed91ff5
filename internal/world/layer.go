package world

// Layer is a per-cell value grid derived from the cell grid.
// Layers are rebuilt wholesale, never patched.
type Layer[T any] struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Values []T `json:"values"`
}

// NewLayer allocates a zero-valued layer matching the grid's size.
func NewLayer[T any](g *Grid) *Layer[T] {
	return &Layer[T]{
		Width:  g.Width,
		Height: g.Height,
		Values: make([]T, g.Width*g.Height),
	}
}

// InBounds returns true if the coordinate lies on the layer.
func (l *Layer[T]) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < l.Width && c.Y < l.Height
}

// At returns the value at c, or the zero value out of bounds.
func (l *Layer[T]) At(c Coord) T {
	if l == nil || !l.InBounds(c) {
		var zero T
		return zero
	}
	return l.Values[c.Y*l.Width+c.X]
}

// Set stores v at c. Out-of-bounds writes are ignored.
func (l *Layer[T]) Set(c Coord, v T) {
	if !l.InBounds(c) {
		return
	}
	l.Values[c.Y*l.Width+c.X] = v
}

// Rows returns the layer as [y][x] for renderers.
func (l *Layer[T]) Rows() [][]T {
	rows := make([][]T, l.Height)
	for y := range rows {
		rows[y] = l.Values[y*l.Width : (y+1)*l.Width]
	}
	return rows
}
