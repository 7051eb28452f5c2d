// Package form carries a closed structural model of the bilinear forms
// the preconditioner accepts: sums of second-order (grad-grad) and
// zero-th order (mass) terms with spatially varying tensor coefficients,
// tagged by integral type. Coefficient extraction walks this tree
// exactly instead of differencing numerically.
package form

import (
	"fmt"

	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"
)

type IntegralType int

const (
	Cell IntegralType = iota
	ExteriorFacet
	InteriorFacet
)

func (t IntegralType) String() string {
	switch t {
	case Cell:
		return "cell"
	case ExteriorFacet:
		return "exterior_facet"
	case InteriorFacet:
		return "interior_facet"
	}
	return fmt.Sprintf("IntegralType(%d)", int(t))
}

// Term is one addend of an integrand. The taxonomy is closed.
type Term interface {
	isTerm()
}

// GradGrad is the second-order term grad(v) . alpha(x) . grad(u).
// Alpha returns a dim x dim tensor at a physical point.
type GradGrad struct {
	Alpha func(x []float64) utils.Matrix
}

// Mass is the zero-th order term v . beta(x) . u. Beta returns a
// value-size square tensor at a physical point.
type Mass struct {
	Beta func(x []float64) utils.Matrix
}

func (GradGrad) isTerm() {}
func (Mass) isTerm()     {}

type Integral struct {
	Type  IntegralType
	Terms []Term
}

// Coefficient is a discrete field a form may depend on, e.g. the frozen
// solution state of an outer nonlinear iteration.
type Coefficient struct {
	Space *space.FunctionSpace
	Data  []float64
}

// Form is a bilinear form restricted to one test/trial space pair.
type Form struct {
	Test, Trial *space.FunctionSpace
	Integrals   []Integral
	Solution    *Coefficient // optional linearization state
}

func (f *Form) IntegralsByType(t IntegralType) (out []Integral) {
	for _, integ := range f.Integrals {
		if integ.Type == t {
			out = append(out, integ)
		}
	}
	return
}

// WithSpaces rebuilds the form over new argument spaces, keeping the
// integrand structure. Used by degree coarsening.
func (f *Form) WithSpaces(test, trial *space.FunctionSpace) *Form {
	return &Form{
		Test:      test,
		Trial:     trial,
		Integrals: f.Integrals,
		Solution:  f.Solution,
	}
}

// WithSolution substitutes the linearization state.
func (f *Form) WithSolution(sol *Coefficient) *Form {
	g := *f
	g.Solution = sol
	return &g
}

// NewRieszMap builds the H1 Riesz-map form
// a(v,u) = int grad(v).alpha.grad(u) + v.beta.u over cells, with the
// matching interior and exterior facet integrals when dg is set.
func NewRieszMap(fs *space.FunctionSpace, alpha func(x []float64) utils.Matrix,
	beta func(x []float64) utils.Matrix, dg bool) *Form {
	terms := []Term{GradGrad{Alpha: alpha}}
	if beta != nil {
		terms = append(terms, Mass{Beta: beta})
	}
	f := &Form{
		Test:      fs,
		Trial:     fs,
		Integrals: []Integral{{Type: Cell, Terms: terms}},
	}
	if dg {
		jump := []Term{GradGrad{Alpha: alpha}}
		f.Integrals = append(f.Integrals,
			Integral{Type: InteriorFacet, Terms: jump},
			Integral{Type: ExteriorFacet, Terms: jump})
	}
	return f
}

// ConstantTensor returns a coefficient function yielding the same
// diagonal tensor everywhere.
func ConstantTensor(diag []float64) func(x []float64) utils.Matrix {
	M := utils.NewDiagMatrix(diag)
	M.SetReadOnly("ConstantTensor")
	return func(x []float64) utils.Matrix {
		return M
	}
}
