package space

import (
	"github.com/notargets/fastdiag/utils"
)

// DirichletBC marks DOFs for strong elimination on selected boundary
// faces. A nil Faces selector means the whole boundary; a nil Components
// list means every component.
type DirichletBC struct {
	Space      *FunctionSpace
	Components utils.Index
	Faces      func(axis, side int) bool
}

func NewDirichletBC(fs *FunctionSpace) *DirichletBC {
	return &DirichletBC{Space: fs}
}

// OnFaces restricts the condition to the faces accepted by sel.
func (bc *DirichletBC) OnFaces(sel func(axis, side int) bool) *DirichletBC {
	bc.Faces = sel
	return bc
}

// OnComponents restricts the condition to a subset of vector components.
func (bc *DirichletBC) OnComponents(comps utils.Index) *DirichletBC {
	bc.Components = comps
	return bc
}

// BCNodes returns the global scalar nodes sitting on the selected
// boundary faces, in ascending order.
func (bc *DirichletBC) BCNodes() (nodes utils.Index) {
	var (
		fs  = bc.Space
		dim = fs.Mesh.Dim
		n   = fs.NumNodes()
	)
	sel := bc.Faces
	if sel == nil {
		sel = func(axis, side int) bool { return true }
	}
	idx := make([]int, dim)
	for node := 0; node < n; node++ {
		rem := node
		for d := dim - 1; d >= 0; d-- {
			idx[d] = rem % fs.nodesAxis[d]
			rem /= fs.nodesAxis[d]
		}
		for d := 0; d < dim; d++ {
			if (idx[d] == 0 && sel(d, 0)) || (idx[d] == fs.nodesAxis[d]-1 && sel(d, 1)) {
				nodes = append(nodes, node)
				break
			}
		}
	}
	return
}

// BCDOFs expands BCNodes to DOF level for the space's value size.
func (bc *DirichletBC) BCDOFs() (dofs utils.Index) {
	var (
		vs    = bc.Space.ValueSize()
		comps = bc.Components
	)
	if comps == nil {
		comps = utils.NewRange(0, vs)
	}
	for _, node := range bc.BCNodes() {
		for _, c := range comps {
			dofs = append(dofs, node*vs+c)
		}
	}
	return
}

// CoarsenBCs rebuilds the boundary conditions on a coarse space,
// preserving face selectors and component restriction.
func CoarsenBCs(bcs []*DirichletBC, coarse *FunctionSpace) (cbcs []*DirichletBC) {
	cbcs = make([]*DirichletBC, len(bcs))
	for i, bc := range bcs {
		comps := bc.Components
		if comps != nil {
			comps = comps.Copy()
		}
		cbcs[i] = &DirichletBC{
			Space:      coarse,
			Components: comps,
			Faces:      bc.Faces,
		}
	}
	return
}
