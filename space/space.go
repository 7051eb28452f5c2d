// Package space pairs a Cartesian mesh with a finite element, providing
// the cell-to-global DOF maps and boundary condition handling the
// assembly driver consumes.
package space

import (
	"fmt"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/utils"
)

type FunctionSpace struct {
	Mesh *grid.Mesh
	Elem element.Element

	factors   []element.LineFactor
	nodesAxis []int // global scalar nodes per axis (continuous case)
	broken    bool
}

func NewFunctionSpace(mesh *grid.Mesh, elem element.Element) (fs *FunctionSpace) {
	scalar := element.Unrestrict(elem)
	if v, ok := scalar.(element.Vector); ok {
		scalar = v.Sub
	}
	factors, err := element.LineFactors(scalar)
	if err != nil {
		panic(err)
	}
	if len(factors) != mesh.Dim {
		panic(fmt.Errorf("element dimension %d does not match mesh dimension %d", len(factors), mesh.Dim))
	}
	fs = &FunctionSpace{
		Mesh:    mesh,
		Elem:    elem,
		factors: factors,
	}
	fs.broken = !factors[0].Continuous || isBroken(elem)
	fs.nodesAxis = make([]int, mesh.Dim)
	for d := 0; d < mesh.Dim; d++ {
		p := factors[d].P
		if fs.broken {
			fs.nodesAxis[d] = mesh.NCells[d] * (p + 1)
		} else {
			fs.nodesAxis[d] = mesh.NCells[d]*p + 1
		}
	}
	return
}

func isBroken(e element.Element) bool {
	switch v := e.(type) {
	case element.Broken:
		return true
	case element.Vector:
		return isBroken(v.Sub)
	case element.Restricted:
		return isBroken(v.Sub)
	case element.Mapped:
		return isBroken(v.Sub)
	default:
		return false
	}
}

func (fs *FunctionSpace) ValueSize() int { return fs.Elem.ValueSize() }

// NumNodes counts scalar nodes; multiply by ValueSize for DOFs.
func (fs *FunctionSpace) NumNodes() (n int) {
	n = 1
	for _, na := range fs.nodesAxis {
		n *= na
	}
	return
}

func (fs *FunctionSpace) NumDOFs() int { return fs.NumNodes() * fs.ValueSize() }

// NodesPerCell is the scalar local basis size.
func (fs *FunctionSpace) NodesPerCell() (n int) {
	n = 1
	for _, f := range fs.factors {
		n *= f.P + 1
	}
	return
}

// CellNodeMap returns the global scalar node index of each local node of
// the cell, in lexicographic local order with axis 0 slowest.
func (fs *FunctionSpace) CellNodeMap(cell int) (nodes utils.Index) {
	var (
		dim    = fs.Mesh.Dim
		coords = fs.Mesh.CellCoords(cell)
		nloc   = fs.NodesPerCell()
	)
	nodes = make(utils.Index, nloc)
	idx := make([]int, dim)
	for loc := 0; loc < nloc; loc++ {
		var g int
		for d := 0; d < dim; d++ {
			var gd int
			if fs.broken {
				gd = coords[d]*(fs.factors[d].P+1) + idx[d]
			} else {
				gd = coords[d]*fs.factors[d].P + idx[d]
			}
			g = g*fs.nodesAxis[d] + gd
		}
		nodes[loc] = g
		for d := dim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < fs.factors[d].P+1 {
				break
			}
			idx[d] = 0
		}
	}
	return
}

// NodeCoords returns the physical coordinates of a global scalar node,
// locating nodes at the tensor product of per-axis Lobatto points.
func (fs *FunctionSpace) NodeCoords(node int) (x []float64) {
	var (
		dim = fs.Mesh.Dim
	)
	x = make([]float64, dim)
	idx := make([]int, dim)
	for d := dim - 1; d >= 0; d-- {
		idx[d] = node % fs.nodesAxis[d]
		node /= fs.nodesAxis[d]
	}
	for d := 0; d < dim; d++ {
		var (
			p     = fs.factors[d].P
			h     = fs.Mesh.CellSize(d)
			cell  int
			local int
		)
		if fs.broken {
			cell, local = idx[d]/(p+1), idx[d]%(p+1)
		} else {
			cell, local = idx[d]/p, idx[d]%p
			if cell == fs.Mesh.NCells[d] { // top endpoint
				cell, local = cell-1, p
			}
		}
		Z, _ := element.LobattoRule(p + 1)
		x[d] = (float64(cell)+0.5)*h + 0.5*h*Z.AtVec(local)
	}
	return
}

// LocalToGlobalMap returns the DOF-level map with boundary condition
// eliminated entries replaced by the negative sentinel.
func (fs *FunctionSpace) LocalToGlobalMap(bcs []*DirichletBC) (lgmap utils.Index) {
	var (
		vs = fs.ValueSize()
		n  = fs.NumDOFs()
	)
	lgmap = utils.NewRange(0, n)
	for _, bc := range bcs {
		if bc.Space != fs {
			continue
		}
		for _, node := range bc.BCNodes() {
			comps := bc.Components
			if comps == nil {
				comps = utils.NewRange(0, vs)
			}
			for _, c := range comps {
				lgmap[node*vs+c] = -1
			}
		}
	}
	return
}

// MixedSpace is an ordered list of sub spaces with disjoint DOFs.
type MixedSpace []*FunctionSpace

// Offsets returns the starting global DOF of each sub space plus the
// total size as a final entry.
func (ms MixedSpace) Offsets() (off utils.Index) {
	off = make(utils.Index, len(ms)+1)
	for i, fs := range ms {
		off[i+1] = off[i] + fs.NumDOFs()
	}
	return
}
