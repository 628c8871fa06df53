// Package grid is a uniform hash grid answering "what is near this point"
// with a fixed 3x3 cell neighborhood.
package grid

import (
	"math"

	"slether-arena/internal/geom"
)

// Cell uniquely identifies a grid cell
type Cell struct {
	X, Y int
}

// Grid maps cells to the ids registered in them. Each cell keeps insertion
// order so queries are stable for a given history.
type Grid struct {
	cellSize float64
	cells    map[Cell][]string
	count    int
}

// New creates an empty grid
func New(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[Cell][]string),
	}
}

// CellSize returns the configured cell edge length.
func (g *Grid) CellSize() float64 { return g.cellSize }

// CellOf maps a point to its cell by floor division on each axis.
func (g *Grid) CellOf(p geom.Point) Cell {
	return Cell{
		X: int(math.Floor(p.X / g.cellSize)),
		Y: int(math.Floor(p.Y / g.cellSize)),
	}
}

// Clear resets all cells
func (g *Grid) Clear() {
	g.cells = make(map[Cell][]string)
	g.count = 0
}

// Len returns the number of (id, cell) registrations.
func (g *Grid) Len() int { return g.count }

// Insert registers id under the cell containing p. Inserting the same id into
// the same cell twice is a no-op.
func (g *Grid) Insert(id string, p geom.Point) {
	c := g.CellOf(p)
	for _, existing := range g.cells[c] {
		if existing == id {
			return
		}
	}
	g.cells[c] = append(g.cells[c], id)
	g.count++
}

// Remove unregisters id from the cell containing p. It reports whether the id
// was found there.
func (g *Grid) Remove(id string, p geom.Point) bool {
	c := g.CellOf(p)
	ids := g.cells[c]
	for i, existing := range ids {
		if existing != id {
			continue
		}
		copy(ids[i:], ids[i+1:])
		ids = ids[:len(ids)-1]
		if len(ids) == 0 {
			delete(g.cells, c)
		} else {
			g.cells[c] = ids
		}
		g.count--
		return true
	}
	return false
}

// Contains reports whether id is registered under the cell containing p.
func (g *Grid) Contains(id string, p geom.Point) bool {
	for _, existing := range g.cells[g.CellOf(p)] {
		if existing == id {
			return true
		}
	}
	return false
}

// Query returns the union of ids in the 3x3 block of cells centered on the
// cell containing p. Ids registered in several of those cells appear once.
func (g *Grid) Query(p geom.Point) []string {
	center := g.CellOf(p)
	var result []string
	var seen map[string]struct{}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			ids := g.cells[Cell{X: center.X + dx, Y: center.Y + dy}]
			if len(ids) == 0 {
				continue
			}
			if seen == nil {
				seen = make(map[string]struct{}, 16)
			}
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				result = append(result, id)
			}
		}
	}
	return result
}
