package space

import (
	"math"
	"testing"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/utils"

	"github.com/stretchr/testify/assert"
)

func TestFunctionSpace(t *testing.T) {
	// 1D continuous space shares nodes between cells
	{
		mesh := grid.NewUnitMesh(1, 2)
		fs := NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 1})
		assert.Equal(t, 5, fs.NumNodes())
		assert.Equal(t, utils.Index{0, 1, 2}, fs.CellNodeMap(0))
		assert.Equal(t, utils.Index{2, 3, 4}, fs.CellNodeMap(1))
		assert.True(t, near(fs.NodeCoords(1)[0], 0.25))
		assert.True(t, near(fs.NodeCoords(2)[0], 0.5))
		assert.True(t, near(fs.NodeCoords(4)[0], 1.0))
	}
	// 2D continuous, axis 0 slowest in both local and global numbering
	{
		mesh := grid.NewUnitMesh(2, 2)
		fs := NewFunctionSpace(mesh, element.Lagrange{P: 1, D: 2})
		assert.Equal(t, 9, fs.NumNodes())
		assert.Equal(t, utils.Index{0, 1, 3, 4}, fs.CellNodeMap(0))
		assert.Equal(t, utils.Index{4, 5, 7, 8}, fs.CellNodeMap(3))
	}
	// broken spaces duplicate shared nodes
	{
		mesh := grid.NewUnitMesh(1, 2)
		fs := NewFunctionSpace(mesh, element.Broken{Sub: element.Lagrange{P: 2, D: 1}})
		assert.Equal(t, 6, fs.NumNodes())
		assert.Equal(t, utils.Index{0, 1, 2}, fs.CellNodeMap(0))
		assert.Equal(t, utils.Index{3, 4, 5}, fs.CellNodeMap(1))
	}
	// vector spaces interleave components
	{
		mesh := grid.NewUnitMesh(2, 2)
		fs := NewFunctionSpace(mesh, element.Vector{Sub: element.Lagrange{P: 1, D: 2}, Components: 2})
		assert.Equal(t, 18, fs.NumDOFs())
		assert.Equal(t, 2, fs.ValueSize())
	}
}

func TestDirichletBC(t *testing.T) {
	mesh := grid.NewUnitMesh(2, 2)
	fs := NewFunctionSpace(mesh, element.Lagrange{P: 1, D: 2})
	bc := NewDirichletBC(fs)
	nodes := bc.BCNodes()
	assert.Equal(t, 8, len(nodes))
	assert.False(t, nodes.Contains(4)) // the single interior node

	lgmap := fs.LocalToGlobalMap([]*DirichletBC{bc})
	assert.Equal(t, -1, lgmap[0])
	assert.Equal(t, 4, lgmap[4])
	assert.Equal(t, -1, lgmap[8])

	// single face selection
	left := NewDirichletBC(fs).OnFaces(func(axis, side int) bool { return axis == 0 && side == 0 })
	assert.Equal(t, utils.Index{0, 1, 2}, left.BCNodes())

	// component restriction on a vector space
	vfs := NewFunctionSpace(mesh, element.Vector{Sub: element.Lagrange{P: 1, D: 2}, Components: 2})
	vbc := NewDirichletBC(vfs).OnComponents(utils.Index{1})
	dofs := vbc.BCDOFs()
	assert.Equal(t, 8, len(dofs))
	assert.True(t, dofs.Contains(0*2+1))
	assert.False(t, dofs.Contains(0))

	// coarsening keeps selectors
	cfs := NewFunctionSpace(mesh, element.Lagrange{P: 1, D: 2})
	cbcs := CoarsenBCs([]*DirichletBC{left}, cfs)
	assert.Equal(t, cfs, cbcs[0].Space)
	assert.Equal(t, utils.Index{0, 1, 2}, cbcs[0].BCNodes())
}

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol float64
	)
	if len(tolI) == 0 {
		tol = 1.e-08
	} else {
		tol = tolI[0]
	}
	bound := math.Max(tol, tol*math.Abs(a))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
