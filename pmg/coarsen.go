// Package pmg builds the degree-coarsening multigrid hierarchy: element
// and quadrature coarsening, matrix-free transfer operators between
// consecutive degrees, and the V-cycle preconditioner over the chain.
package pmg

import (
	"fmt"
	"math"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/space"
)

// ErrNoCoarsening marks a level already at the coarse degree floor.
var ErrNoCoarsening = fmt.Errorf("no further coarsening")

// State tracks the life of a level. Terminal is absorbing.
type State int

const (
	Active State = iota
	Coarsened
	Terminal
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Coarsened:
		return "coarsened"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CoarsenElement halves the polynomial degree, flooring at the coarse
// degree. A level already at or below the floor cannot coarsen further.
func CoarsenElement(e element.Element, floor int) (element.Element, error) {
	deg := e.Degree()
	if deg <= floor {
		return nil, fmt.Errorf("degree %d is at the coarse floor %d: %w", deg, floor, ErrNoCoarsening)
	}
	half := deg / 2
	if half < floor {
		half = floor
	}
	return e.WithDegree(half), nil
}

// CoarsenQuadratureDegree preserves the ratio of quadrature points to
// interpolation nodes across the degree drop, never going below the
// exactness needed for the coarse mass matrix.
func CoarsenQuadratureDegree(qdeg, fdeg, cdeg int) int {
	r := ((qdeg+1)*(cdeg+1)+fdeg)/(fdeg+1) - 1
	if m := 2*cdeg + 1; m > r {
		r = m
	}
	return r
}

// Level is one node of the p-multigrid hierarchy: a function space at a
// specific degree, the form restricted to it, its boundary conditions
// and near-nullspace, and the memoized link to the next coarser level.
type Level struct {
	State        State
	Space        *space.FunctionSpace
	Form         *form.Form
	BCs          []*space.DirichletBC
	QuadDegree   int
	CoarseDegree int
	Nullspace    [][]float64

	child    *Level
	transfer *TransferOperator
}

func NewLevel(f *form.Form, bcs []*space.DirichletBC, coarseDegree int) *Level {
	if coarseDegree < 1 {
		coarseDegree = 1
	}
	p := f.Test.Elem.Degree()
	return &Level{
		State:        Active,
		Space:        f.Test,
		Form:         f,
		BCs:          bcs,
		QuadDegree:   2*p + 1,
		CoarseDegree: coarseDegree,
	}
}

// Coarsen builds the next coarser level on first call and returns the
// cached child afterwards. The coarse level carries the structurally
// substituted form, restricted boundary conditions, the coarsened
// quadrature degree and the propagated nullspace. Hitting the degree
// floor flips the level to Terminal.
func (l *Level) Coarsen() (child *Level, T *TransferOperator, err error) {
	if l.child != nil {
		return l.child, l.transfer, nil
	}
	if l.State == Terminal {
		return nil, nil, fmt.Errorf("level is terminal: %w", ErrNoCoarsening)
	}
	celem, err := CoarsenElement(l.Space.Elem, l.CoarseDegree)
	if err != nil {
		l.State = Terminal
		return nil, nil, err
	}
	var (
		cspace = space.NewFunctionSpace(l.Space.Mesh, celem)
		cform  = l.Form.WithSpaces(cspace, cspace)
	)
	child = &Level{
		State:        Active,
		Space:        cspace,
		Form:         cform,
		BCs:          space.CoarsenBCs(l.BCs, cspace),
		QuadDegree:   CoarsenQuadratureDegree(l.QuadDegree, l.Space.Elem.Degree(), celem.Degree()),
		CoarseDegree: l.CoarseDegree,
	}
	if T, err = NewTransferOperator(l.Space, cspace); err != nil {
		return nil, nil, err
	}
	if sol := l.Form.Solution; sol != nil && sol.Space == l.Space {
		cdata := make([]float64, cspace.NumDOFs())
		if err = T.Restrict(sol.Data, cdata); err != nil {
			return nil, nil, err
		}
		child.Form = cform.WithSolution(&form.Coefficient{Space: cspace, Data: cdata})
	}
	if len(l.Nullspace) > 0 {
		if child.Nullspace, err = coarsenNullspace(l.Nullspace, T); err != nil {
			return nil, nil, err
		}
	}
	l.child, l.transfer = child, T
	l.State = Coarsened
	return child, T, nil
}

// coarsenNullspace pushes each near-nullspace vector through the
// restriction and re-orthonormalizes by modified Gram-Schmidt, dropping
// vectors that become linearly dependent on the coarse level.
func coarsenNullspace(ns [][]float64, T *TransferOperator) (out [][]float64, err error) {
	const dropTol = 1.e-12
	for _, v := range ns {
		c := make([]float64, T.Coarse.NumDOFs())
		if err = T.Restrict(v, c); err != nil {
			return nil, err
		}
		for _, u := range out {
			d := dot(u, c)
			for i := range c {
				c[i] -= d * u[i]
			}
		}
		nrm := math.Sqrt(dot(c, c))
		if nrm <= dropTol {
			continue
		}
		for i := range c {
			c[i] /= nrm
		}
		out = append(out, c)
	}
	return
}

func dot(a, b []float64) (d float64) {
	for i, v := range a {
		d += v * b[i]
	}
	return
}
