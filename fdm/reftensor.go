// Package fdm builds sparse preconditioner operators for tensor-product
// finite elements in the fast diagonalization basis: per-element
// reference tensors, coefficient extraction, static condensation,
// interior penalty facet coupling and the global assembly driver.
package fdm

import (
	"fmt"
	"math"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/utils"
)

// Key identifies one reference tensor. Building is a pure function of
// the key, so identical keys always resolve to the same cached tensor.
type Key struct {
	Degree     int
	Dim        int
	FormDegree int
	ValueSize  int
	Interior   bool
	Facet      bool
}

// lineMoments holds the per-direction interval matrices in the FDM
// basis, expressed in the weight-orthonormal quadrature frame: A00 pairs
// the basis values against the quadrature dual basis, A10 pairs the
// derivative against the discontinuous companion basis after solving out
// the companion mass, so that A11 is the identity. In this frame
// A00^T A00 is the interval mass matrix and A10^T A10 the stiffness.
type lineMoments struct {
	A00 utils.CSR
	A10 utils.CSR
	n0  int // continuous basis size, degree+1
	n1  int // discontinuous basis size, degree
}

// Cache owns the reference tensors and 1D moment matrices of one
// preconditioner instance. Never shared across instances.
type Cache struct {
	tensors map[Key]utils.CSR
	moments map[int]lineMoments
	bases   map[int]element.FDMBasis
	hits    int
	misses  int
}

func NewCache() *Cache {
	return &Cache{
		tensors: make(map[Key]utils.CSR),
		moments: make(map[int]lineMoments),
		bases:   make(map[int]element.FDMBasis),
	}
}

// Hits reports cache statistics for diagnostics.
func (c *Cache) Hits() (hits, misses int) { return c.hits, c.misses }

// FDMBasis returns the memoized interval eigenbasis of the given degree.
func (c *Cache) FDMBasis(p int) element.FDMBasis {
	if fb, ok := c.bases[p]; ok {
		return fb
	}
	fb := element.NewFDMBasis(p)
	c.bases[p] = fb
	return fb
}

func (c *Cache) intervalMoments(p int) lineMoments {
	if lm, ok := c.moments[p]; ok {
		return lm
	}
	var (
		e0 = c.FDMBasis(p)
		e1 = element.NewGaussBasis(p - 1)
	)
	// moments against the quadrature dual basis at the p+1 point rule
	Xq, Wq := element.GaussRule(p + 1)
	J0, _ := e0.Tabulate(Xq)
	A00 := scaleRowsSqrt(J0, Wq)

	// derivative moments against the discontinuous companion at its own
	// nodes; solving against the companion mass leaves the plain
	// derivative tabulation, orthonormalized by the square root weights
	Xd, Wd := element.GaussRule(e1.P + 1)
	A11 := e1.MassMatrix()
	J1, _ := e1.Tabulate(Xd)
	_, D0 := e0.Tabulate(Xd)
	A10d := J1.Transpose().Mul(utils.NewDiagMatrix(Wd.Data())).Mul(D0)
	A10, err := A11.Solve(A10d)
	if err != nil {
		panic(fmt.Errorf("reference tensor build failed: %v", err))
	}
	A10 = scaleRowsSqrt(A10, Wd)

	lm := lineMoments{
		A00: utils.NewCSRFromDense(A00, element.SparseTol),
		A10: utils.NewCSRFromDense(A10, element.SparseTol),
		n0:  p + 1,
		n1:  p,
	}
	c.moments[p] = lm
	return lm
}

func scaleRowsSqrt(A utils.Matrix, W utils.Vector) utils.Matrix {
	var (
		nr, nc = A.Dims()
	)
	for i := 0; i < nr; i++ {
		s := math.Sqrt(W.AtVec(i))
		for j := 0; j < nc; j++ {
			A.M.Set(i, j, s*A.At(i, j))
		}
	}
	return A
}

// ReferenceTensor builds (or returns the cached copy of) the stacked
// block operator [[Ihat],[Dhat]] for the key: the mass moments of the
// form-degree components on top, the exterior derivative moments below.
func (c *Cache) ReferenceTensor(key Key) (R utils.CSR, err error) {
	if t, ok := c.tensors[key]; ok {
		c.hits++
		return t, nil
	}
	c.misses++
	if err = validateKey(key); err != nil {
		return
	}
	var (
		lm    = c.intervalMoments(key.Degree)
		dim   = key.Dim
		q     = key.FormDegree
		comps = combinations(dim, q)
	)
	eye1 := utils.NewCSREye(lm.n1)

	// Ihat: block diagonal mass over the q-form components
	nq := len(comps)
	massBlocks := make([][]*utils.CSR, nq)
	for i, S := range comps {
		massBlocks[i] = make([]*utils.CSR, nq)
		M := kronChain(dim, S, nil, lm, eye1)
		massBlocks[i][i] = &M
	}
	Ihat := utils.BlockMat(massBlocks)

	blocks := [][]*utils.CSR{{&Ihat}}
	if q < dim {
		// Dhat: exterior derivative into the (q+1)-form components
		dcomps := combinations(dim, q+1)
		derivBlocks := make([][]*utils.CSR, len(dcomps))
		for r, T := range dcomps {
			derivBlocks[r] = make([]*utils.CSR, nq)
			for s, S := range comps {
				j, pos, ok := insertedAxis(S, T)
				if !ok {
					continue
				}
				D := kronChain(dim, S, &j, lm, eye1)
				if pos%2 == 1 {
					D = D.Scale(-1)
				}
				derivBlocks[r][s] = &D
			}
		}
		Dhat := utils.BlockMat(derivBlocks)
		blocks = append(blocks, []*utils.CSR{&Dhat})
	}
	R = utils.BlockMat(blocks)

	if key.ValueSize > 1 {
		R = R.Kron(utils.NewCSREye(key.ValueSize))
	}
	if key.Interior || key.Facet {
		if q != 0 {
			err = fmt.Errorf("DOF restriction of form degree %d tensors: %w", q, element.ErrNotImplemented)
			return
		}
		e := element.Lagrange{P: key.Degree, D: dim, Var: element.FDMVariant}
		interior, facet := element.SplitDOFs(e)
		keep := interior
		if key.Facet {
			keep = facet
		}
		R = R.SliceCols(expandDOFs(keep, key.ValueSize))
	}
	c.tensors[key] = R
	return R, nil
}

func validateKey(key Key) error {
	switch {
	case key.Dim < 1 || key.Dim > 3:
		return fmt.Errorf("reference tensor in dimension %d: %w", key.Dim, element.ErrNotImplemented)
	case key.Degree < 1:
		return fmt.Errorf("reference tensor needs degree >= 1, got %d", key.Degree)
	case key.FormDegree < 0 || key.FormDegree > key.Dim:
		return fmt.Errorf("form degree %d in dimension %d: %w", key.FormDegree, key.Dim, element.ErrNotImplemented)
	case key.ValueSize < 1:
		return fmt.Errorf("value size must be positive, got %d", key.ValueSize)
	case key.Interior && key.Facet:
		return fmt.Errorf("tensor cannot be both interior and facet restricted")
	}
	return nil
}

// kronChain forms the Kronecker product over axes 0..dim-1, axis 0
// slowest: the derivative coupling A10 on axis deriv (if non-nil), the
// discontinuous identity on axes in S, the continuous mass elsewhere.
func kronChain(dim int, S utils.Index, deriv *int, lm lineMoments, eye1 utils.CSR) (R utils.CSR) {
	for d := 0; d < dim; d++ {
		var F utils.CSR
		switch {
		case deriv != nil && d == *deriv:
			F = lm.A10
		case S.Contains(d):
			F = eye1
		default:
			F = lm.A00
		}
		if d == 0 {
			R = F.Copy() // callers may scale in place
		} else {
			R = R.Kron(F)
		}
	}
	return
}

// combinations lists the size-q subsets of {0..dim-1} in lexicographic
// order; these index the components of a q-form.
func combinations(dim, q int) (out []utils.Index) {
	if q == 0 {
		return []utils.Index{{}}
	}
	var rec func(start int, cur utils.Index)
	rec = func(start int, cur utils.Index) {
		if len(cur) == q {
			out = append(out, cur.Copy())
			return
		}
		for v := start; v < dim; v++ {
			rec(v+1, append(cur, v))
		}
	}
	rec(0, utils.Index{})
	return
}

// insertedAxis reports the axis j with T = S union {j}, and the position
// of j within T for the exterior derivative sign.
func insertedAxis(S, T utils.Index) (j, pos int, ok bool) {
	if len(T) != len(S)+1 {
		return 0, 0, false
	}
	var (
		si    int
		found = false
	)
	for ti, tv := range T {
		if si < len(S) && S[si] == tv {
			si++
			continue
		}
		if found {
			return 0, 0, false
		}
		j, pos, found = tv, ti, true
	}
	ok = found && si == len(S)
	return
}

// expandDOFs interleaves the component index into a scalar node list.
func expandDOFs(nodes utils.Index, vs int) (dofs utils.Index) {
	if vs == 1 {
		return nodes
	}
	dofs = make(utils.Index, 0, len(nodes)*vs)
	for _, n := range nodes {
		for c := 0; c < vs; c++ {
			dofs = append(dofs, n*vs+c)
		}
	}
	return
}
