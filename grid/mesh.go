// Package grid provides the structured Cartesian mesh topology the
// preconditioner is assembled over: interval, quadrilateral and
// hexahedral cells with axis-aligned facets.
package grid

import (
	"fmt"
)

type Mesh struct {
	Dim     int
	NCells  []int     // cells per axis
	Lengths []float64 // domain extent per axis
}

func NewMesh(ncells []int, lengths []float64) (m *Mesh) {
	if len(ncells) < 1 || len(ncells) > 3 {
		panic(fmt.Errorf("mesh dimension must be 1, 2 or 3, got %d", len(ncells)))
	}
	if len(lengths) != len(ncells) {
		panic(fmt.Errorf("mismatch in allocation: NewMesh len(ncells) = %v, len(lengths) = %v", len(ncells), len(lengths)))
	}
	for d, n := range ncells {
		if n < 1 || lengths[d] <= 0 {
			panic(fmt.Errorf("invalid mesh extent on axis %d: %d cells over length %v", d, n, lengths[d]))
		}
	}
	m = &Mesh{
		Dim:     len(ncells),
		NCells:  append([]int{}, ncells...),
		Lengths: append([]float64{}, lengths...),
	}
	return
}

// NewUnitMesh builds an n^dim mesh of the unit cube.
func NewUnitMesh(dim, n int) *Mesh {
	ncells := make([]int, dim)
	lengths := make([]float64, dim)
	for d := 0; d < dim; d++ {
		ncells[d] = n
		lengths[d] = 1
	}
	return NewMesh(ncells, lengths)
}

func (m *Mesh) NumCells() (n int) {
	n = 1
	for _, nc := range m.NCells {
		n *= nc
	}
	return
}

// CellSize returns the edge length of every cell along the given axis.
func (m *Mesh) CellSize(axis int) float64 {
	return m.Lengths[axis] / float64(m.NCells[axis])
}

// CellIndex flattens per-axis cell coordinates, axis 0 slowest.
func (m *Mesh) CellIndex(coords []int) (cell int) {
	for d := 0; d < m.Dim; d++ {
		if coords[d] < 0 || coords[d] >= m.NCells[d] {
			panic(fmt.Errorf("cell coordinate out of range on axis %d: %d", d, coords[d]))
		}
		cell = cell*m.NCells[d] + coords[d]
	}
	return
}

// CellCoords inverts CellIndex.
func (m *Mesh) CellCoords(cell int) (coords []int) {
	coords = make([]int, m.Dim)
	for d := m.Dim - 1; d >= 0; d-- {
		coords[d] = cell % m.NCells[d]
		cell /= m.NCells[d]
	}
	return
}

// CellCenter returns the physical center of a cell.
func (m *Mesh) CellCenter(cell int) (x []float64) {
	coords := m.CellCoords(cell)
	x = make([]float64, m.Dim)
	for d := 0; d < m.Dim; d++ {
		x[d] = (float64(coords[d]) + 0.5) * m.CellSize(d)
	}
	return
}

// InteriorFacet joins two cells adjacent along an axis; Plus is the cell
// on the high side.
type InteriorFacet struct {
	Minus, Plus int
	Axis        int
}

func (m *Mesh) InteriorFacets() (facets []InteriorFacet) {
	nc := m.NumCells()
	for cell := 0; cell < nc; cell++ {
		coords := m.CellCoords(cell)
		for d := 0; d < m.Dim; d++ {
			if coords[d]+1 < m.NCells[d] {
				coords[d]++
				facets = append(facets, InteriorFacet{Minus: cell, Plus: m.CellIndex(coords), Axis: d})
				coords[d]--
			}
		}
	}
	return
}

// ExteriorFacet is a cell face on the domain boundary; Side 0 is the low
// end of the axis.
type ExteriorFacet struct {
	Cell, Axis, Side int
}

func (m *Mesh) ExteriorFacets() (facets []ExteriorFacet) {
	nc := m.NumCells()
	for cell := 0; cell < nc; cell++ {
		coords := m.CellCoords(cell)
		for d := 0; d < m.Dim; d++ {
			if coords[d] == 0 {
				facets = append(facets, ExteriorFacet{Cell: cell, Axis: d, Side: 0})
			}
			if coords[d] == m.NCells[d]-1 {
				facets = append(facets, ExteriorFacet{Cell: cell, Axis: d, Side: 1})
			}
		}
	}
	return
}

// BoundaryMask reports, per axis and side, whether the cell face lies on
// the domain boundary.
func (m *Mesh) BoundaryMask(cell int) (mask [][2]bool) {
	coords := m.CellCoords(cell)
	mask = make([][2]bool, m.Dim)
	for d := 0; d < m.Dim; d++ {
		mask[d][0] = coords[d] == 0
		mask[d][1] = coords[d] == m.NCells[d]-1
	}
	return
}
