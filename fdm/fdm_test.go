package fdm

import (
	"math"
	"testing"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"

	"github.com/stretchr/testify/assert"
)

func near(a, b float64, tolI ...float64) (l bool) {
	tol := 1.e-08
	if len(tolI) != 0 {
		tol = tolI[0]
	}
	if math.Abs(a-b) <= tol*math.Max(math.Abs(a), 1) {
		l = true
	}
	return
}

func nearMat(A, B utils.Matrix, tolI ...float64) bool {
	ar, ac := A.Dims()
	br, bc := B.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if !near(A.At(i, j), B.At(i, j), tolI...) {
				return false
			}
		}
	}
	return true
}

func TestReferenceTensorCache(t *testing.T) {
	c := NewCache()
	key := Key{Degree: 3, Dim: 2, FormDegree: 0, ValueSize: 1}
	R1, err := c.ReferenceTensor(key)
	assert.NoError(t, err)
	R2, err := c.ReferenceTensor(key)
	assert.NoError(t, err)
	hits, misses := c.Hits()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	// the cached tensor is returned as is, down to the backing arrays
	assert.Equal(t, R1.RawMatrix(), R2.RawMatrix())

	// a different key is a different tensor
	_, err = c.ReferenceTensor(Key{Degree: 3, Dim: 2, FormDegree: 0, ValueSize: 2})
	assert.NoError(t, err)
	_, misses2 := c.Hits()
	assert.Equal(t, 2, misses2)

	// rejected keys
	_, err = c.ReferenceTensor(Key{Degree: 3, Dim: 4, FormDegree: 0, ValueSize: 1})
	assert.Error(t, err)
	_, err = c.ReferenceTensor(Key{Degree: 3, Dim: 2, FormDegree: 0, ValueSize: 1, Interior: true, Facet: true})
	assert.Error(t, err)
}

// The triple product R^T diag(c) R must reproduce the Galerkin matrix of
// the interval element exactly when the coefficients are constant.
func TestReferenceTensorGalerkin1D(t *testing.T) {
	var (
		p           = 3
		c           = NewCache()
		alpha, beta = 1.7, 0.3
	)
	R, err := c.ReferenceTensor(Key{Degree: p, Dim: 1, FormDegree: 0, ValueSize: 1})
	assert.NoError(t, err)

	// reference cell: unit Jacobian, mass rows then the derivative block
	cvec := make([]float64, 0, 2*p+1)
	for i := 0; i < p+1; i++ {
		cvec = append(cvec, beta)
	}
	for i := 0; i < p; i++ {
		cvec = append(cvec, alpha)
	}
	A := R.Transpose().Mul(R.Copy().ScaleRows(cvec)).ToDense()

	fb := c.FDMBasis(p)
	M, K := fb.MassMatrix(), fb.StiffnessMatrix()
	E := utils.NewMatrix(p+1, p+1)
	for i := 0; i <= p; i++ {
		for j := 0; j <= p; j++ {
			E.M.Set(i, j, beta*M.At(i, j)+alpha*K.At(i, j))
		}
	}
	assert.True(t, nearMat(A, E, 1.e-10))
}

func TestReferenceTensorGalerkin2D(t *testing.T) {
	var (
		p           = 2
		c           = NewCache()
		alpha, beta = 2.0, 0.5
		n0, n1      = p + 1, p
	)
	R, err := c.ReferenceTensor(Key{Degree: p, Dim: 2, FormDegree: 0, ValueSize: 1})
	assert.NoError(t, err)

	cvec := make([]float64, 0, n0*n0+2*n1*n0)
	for i := 0; i < n0*n0; i++ {
		cvec = append(cvec, beta)
	}
	for i := 0; i < 2*n1*n0; i++ {
		cvec = append(cvec, alpha)
	}
	A := R.Transpose().Mul(R.Copy().ScaleRows(cvec)).ToDense()

	fb := c.FDMBasis(p)
	var (
		M = utils.NewCSRFromDense(fb.MassMatrix(), 0)
		K = utils.NewCSRFromDense(fb.StiffnessMatrix(), 0)
	)
	E := M.Kron(M).Scale(beta).
		AddScaled(alpha, K.Kron(M)).
		AddScaled(alpha, M.Kron(K)).ToDense()
	assert.True(t, nearMat(A, E, 1.e-09))
}

// Restricting the tensor columns must commute with restricting the
// Galerkin matrix: facet columns of the full tensor give the
// facet-facet coupling block.
func TestReferenceTensorRestriction(t *testing.T) {
	var (
		p = 3
		c = NewCache()
	)
	full, err := c.ReferenceTensor(Key{Degree: p, Dim: 2, FormDegree: 0, ValueSize: 1})
	assert.NoError(t, err)
	fac, err := c.ReferenceTensor(Key{Degree: p, Dim: 2, FormDegree: 0, ValueSize: 1, Facet: true})
	assert.NoError(t, err)

	_, facet := element.SplitDOFs(element.Lagrange{P: p, D: 2, Var: element.FDMVariant})
	E := full.SliceCols(facet)
	nr, nc := fac.Dims()
	er, ec := E.Dims()
	assert.Equal(t, er, nr)
	assert.Equal(t, ec, nc)
	assert.True(t, nearMat(fac.ToDense(), E.ToDense(), 1.e-14))
}

func TestCondenseAgainstDenseSchur(t *testing.T) {
	// small SPD matrix with a 3-DOF interior block and a 3-DOF facet block
	n := 6
	D := utils.NewMatrix(n, n)
	for i := 0; i < n; i++ {
		D.M.Set(i, i, 4+float64(i))
		if i+1 < n {
			D.M.Set(i, i+1, -1)
			D.M.Set(i+1, i, -1)
		}
	}
	D.M.Set(0, 5, 0.25)
	D.M.Set(5, 0, 0.25)
	var (
		i0 = utils.Index{0, 1, 2}
		i1 = utils.Index{3, 4, 5}
		A  = utils.NewCSRFromDense(D, 0)
	)
	S, err := Condense(A, i0, i1)
	assert.NoError(t, err)

	// dense Schur complement A11 - A01^T A00^-1 A01
	var (
		A00 = utils.NewMatrix(3, 3)
		A01 = utils.NewMatrix(3, 3)
		A11 = utils.NewMatrix(3, 3)
	)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			A00.M.Set(i, j, D.At(i0[i], i0[j]))
			A01.M.Set(i, j, D.At(i0[i], i1[j]))
			A11.M.Set(i, j, D.At(i1[i], i1[j]))
		}
	}
	X, err := A00.Solve(A01)
	assert.NoError(t, err)
	E := A01.Transpose().Mul(X)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			E.M.Set(i, j, A11.At(i, j)-E.At(i, j))
		}
	}
	assert.True(t, nearMat(S.ToDense(), E, 1.e-10))
}

func TestGlobalMatrixSymmetricStorage(t *testing.T) {
	var (
		rows = utils.Index{0, 1, 2, 3}
		Ae   = utils.NewMatrix(4, 4)
	)
	vals := [][]float64{
		{4, -1, 0, 0.5},
		{-1, 3, -1, 0},
		{0, -1, 2, -1},
		{0.5, 0, -1, 5},
	}
	for i := range vals {
		for j, v := range vals[i] {
			Ae.M.Set(i, j, v)
		}
	}
	build := func(symmetric bool) *GlobalMatrix {
		G := NewGlobalMatrix(4, 4, symmetric)
		G.AddDense(rows, rows, Ae)
		G.Preallocate()
		G.AddDense(rows, rows, Ae)
		return G
	}
	var (
		full = build(false)
		half = build(true)
		x    = []float64{1, -2, 3, 0.5}
		yf   = make([]float64, 4)
		yh   = make([]float64, 4)
	)
	full.MulVec(x, yf)
	half.MulVec(x, yh)
	for i := range yf {
		assert.True(t, near(yf[i], yh[i], 1.e-14))
	}
	assert.True(t, nearMat(full.Dense(), half.Dense(), 1.e-14))
}

func poissonForm(nx, p int, dg bool) (*form.Form, []*space.DirichletBC) {
	mesh := grid.NewUnitMesh(2, nx)
	var elem element.Element = element.Lagrange{P: p, D: 2, Var: element.FDMVariant}
	if dg {
		elem = element.Broken{Sub: elem}
	}
	V := space.NewFunctionSpace(mesh, elem)
	f := form.NewRieszMap(V,
		form.ConstantTensor([]float64{1, 1}),
		form.ConstantTensor([]float64{1}), dg)
	return f, []*space.DirichletBC{space.NewDirichletBC(V)}
}

// Reassembling with unchanged coefficients must reproduce the stored
// values exactly.
func TestAssemblyIdempotent(t *testing.T) {
	f, bcs := poissonForm(3, 3, false)
	pc := NewFDMPC(f, bcs, Options{})
	assert.NoError(t, pc.Initialize())
	e1 := pc.P.Entries()
	assert.NoError(t, pc.Update())
	e2 := pc.P.Entries()
	assert.Equal(t, len(e1), len(e2))
	for k := range e1 {
		assert.Equal(t, e1[k], e2[k])
	}
}

func TestBoundaryRowsIdentity(t *testing.T) {
	f, bcs := poissonForm(2, 3, false)
	pc := NewFDMPC(f, bcs, Options{})
	assert.NoError(t, pc.Initialize())
	var (
		D      = pc.P.Dense()
		_, n   = D.Dims()
		bcdofs = map[int]struct{}{}
	)
	for _, dof := range bcs[0].BCDOFs() {
		bcdofs[dof] = struct{}{}
	}
	assert.NotEmpty(t, bcdofs)
	for i := range bcdofs {
		for j := 0; j < n; j++ {
			want := 0.0
			if j == i {
				want = 1.0
			}
			assert.True(t, near(D.At(i, j), want, 1.e-14))
		}
	}
}

func TestFDMPCSymmetricModes(t *testing.T) {
	f, bcs := poissonForm(3, 3, false)
	var (
		pf = NewFDMPC(f, bcs, Options{Symmetric: false})
		ph = NewFDMPC(f, bcs, Options{Symmetric: true})
	)
	assert.NoError(t, pf.Initialize())
	assert.NoError(t, ph.Initialize())
	var (
		n  = f.Test.NumDOFs()
		x  = make([]float64, n)
		yf = make([]float64, n)
		yh = make([]float64, n)
	)
	for i := range x {
		x[i] = math.Sin(float64(i + 1))
	}
	pf.P.MulVec(x, yf)
	ph.P.MulVec(x, yh)
	for i := range yf {
		assert.True(t, near(yf[i], yh[i], 1.e-12))
	}
}

func TestCondensedSchurMatchesDense(t *testing.T) {
	f, bcs := poissonForm(2, 4, false)
	var (
		pc = NewFDMPC(f, bcs, Options{})
		sc = NewFDMPC(f, bcs, Options{Condense: true})
	)
	assert.NoError(t, pc.Initialize())
	assert.NoError(t, sc.Initialize())

	// on the DOFs the condensed operator keeps, it must agree with the
	// dense Schur complement of the uncondensed one
	var (
		D        = pc.P.Dense()
		S        = sc.P.Dense()
		n, _     = D.Dims()
		interior utils.Index
		kept     utils.Index
	)
	isInterior := make([]bool, n)
	for i := 0; i < n; i++ {
		if near(S.At(i, i), 1, 1.e-14) {
			row := true
			for j := 0; j < n && row; j++ {
				if j != i && S.At(i, j) != 0 {
					row = false
				}
			}
			if row && !near(D.At(i, i), 1, 1.e-14) {
				isInterior[i] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		if isInterior[i] {
			interior = append(interior, i)
		} else {
			kept = append(kept, i)
		}
	}
	assert.NotEmpty(t, interior)

	var (
		ni, nk = len(interior), len(kept)
		A00    = utils.NewMatrix(ni, ni)
		A01    = utils.NewMatrix(ni, nk)
		A11    = utils.NewMatrix(nk, nk)
	)
	for i := 0; i < ni; i++ {
		for j := 0; j < ni; j++ {
			A00.M.Set(i, j, D.At(interior[i], interior[j]))
		}
		for j := 0; j < nk; j++ {
			A01.M.Set(i, j, D.At(interior[i], kept[j]))
		}
	}
	for i := 0; i < nk; i++ {
		for j := 0; j < nk; j++ {
			A11.M.Set(i, j, D.At(kept[i], kept[j]))
		}
	}
	X, err := A00.Solve(A01)
	assert.NoError(t, err)
	E := A01.Transpose().Mul(X)
	for i := 0; i < nk; i++ {
		for j := 0; j < nk; j++ {
			E.M.Set(i, j, A11.At(i, j)-E.At(i, j))
		}
	}
	for i := 0; i < nk; i++ {
		for j := 0; j < nk; j++ {
			assert.True(t, near(S.At(kept[i], kept[j]), E.At(i, j), 1.e-10))
		}
	}
}

// Iteration counts of the preconditioned solve must not grow with the
// polynomial degree.
func TestDegreeIndependentIterations(t *testing.T) {
	variable := func(x []float64) utils.Matrix {
		return utils.NewDiagMatrix([]float64{
			1 + 0.5*x[0], 1 + 0.5*x[1],
		})
	}
	for _, p := range []int{3, 4, 5} {
		mesh := grid.NewUnitMesh(2, 4)
		V := space.NewFunctionSpace(mesh, element.Lagrange{P: p, D: 2, Var: element.FDMVariant})
		bcs := []*space.DirichletBC{space.NewDirichletBC(V)}
		var (
			fA = form.NewRieszMap(V, variable, form.ConstantTensor([]float64{1}), false)
			fM = form.NewRieszMap(V, form.ConstantTensor([]float64{1, 1}),
				form.ConstantTensor([]float64{1}), false)
			opA = NewFDMPC(fA, bcs, Options{})
			pc  = NewFDMPC(fM, bcs, Options{DiagonalScaling: true})
		)
		assert.NoError(t, opA.Initialize())
		assert.NoError(t, pc.Initialize())

		n := V.NumDOFs()
		b := make([]float64, n)
		for i := range b {
			b[i] = math.Sin(float64(2*i + 1))
		}
		_, iters, err := solver.CG(opA.P, b, pc, 1.e-08, 30)
		assert.NoError(t, err)
		assert.True(t, iters <= 9, "degree %d took %d iterations", p, iters)
	}
}

// The interior penalty operator over a broken space must assemble to a
// symmetric positive definite matrix and precondition itself exactly.
func TestPoissonFDMPCAssembly(t *testing.T) {
	f, bcs := poissonForm(2, 3, true)
	pc := NewPoissonFDMPC(f, bcs, Options{})
	// positive definiteness is enforced by the inner factorization
	assert.NoError(t, pc.Initialize())

	var (
		D    = pc.P.Dense()
		n, _ = D.Dims()
	)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			assert.True(t, near(D.At(i, j), D.At(j, i), 1.e-11))
		}
	}

	b := make([]float64, n)
	for i := range b {
		b[i] = math.Cos(float64(i))
	}
	_, iters, err := solver.CG(pc.P, b, pc, 1.e-10, 5)
	assert.NoError(t, err)
	assert.True(t, iters <= 2)
}

func TestPoissonFDMPCRejectsCondensedFacets(t *testing.T) {
	f, bcs := poissonForm(2, 3, true)
	pc := NewPoissonFDMPC(f, bcs, Options{Condense: true})
	err := pc.Initialize()
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}

func TestFDMPCRejectsFacetIntegrals(t *testing.T) {
	f, bcs := poissonForm(2, 3, true)
	pc := NewFDMPC(f, bcs, Options{})
	err := pc.Initialize()
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}

func TestMixedBlockMatchesDenseProduct(t *testing.T) {
	var (
		Rrow = utils.NewMatrix(3, 2, []float64{
			1, 0,
			0, 1,
			2, 1,
		})
		Rcol = utils.NewMatrix(3, 4, []float64{
			1, 0, 0, 1,
			0, 2, 0, 0,
			0, 0, 3, 1,
		})
		c = []float64{2, 0.5, 1}
	)
	Ae := MixedCellMatrix(
		utils.NewCSRFromDense(Rrow, 0).Transpose(),
		utils.NewCSRFromDense(Rcol, 0), c)

	want := Rrow.Transpose().Mul(utils.NewDiagMatrix(c)).Mul(Rcol)
	assert.True(t, nearMat(Ae.ToDense(), want, 1.e-14))
}

// A two-block operator with a mass coupling: the off-diagonal block
// must equal the scaled mass matrix, mirrored into the opposite pair.
func TestMixedOperatorTwoBlocks(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		v    = space.NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 2, Var: element.FDMVariant})
		q    = space.NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 2, Var: element.FDMVariant})
		ms   = space.MixedSpace{v, q}
		off  = ms.Offsets()

		coupling = &form.Form{
			Test:  v,
			Trial: q,
			Integrals: []form.Integral{{Type: form.Cell, Terms: []form.Term{
				form.Mass{Beta: form.ConstantTensor([]float64{0.5})},
			}}},
		}
		blocks = map[[2]int]*form.Form{
			{0, 0}: form.NewRieszMap(v, form.ConstantTensor([]float64{1, 1}), form.ConstantTensor([]float64{1}), false),
			{1, 1}: form.NewRieszMap(q, form.ConstantTensor([]float64{2, 2}), form.ConstantTensor([]float64{1}), false),
			{0, 1}: coupling,
		}
		bcs = [][]*space.DirichletBC{
			{space.NewDirichletBC(v)},
			{space.NewDirichletBC(q)},
		}
	)
	pc := NewMixedFDMPC(ms, blocks, bcs, Options{})
	assert.NoError(t, pc.Initialize())

	// the mass matrix on v, isolated as the difference of two
	// single-space operators with and without the mass term
	withMass := NewFDMPC(form.NewRieszMap(v,
		form.ConstantTensor([]float64{1, 1}),
		form.ConstantTensor([]float64{1}), false), bcs[0], Options{})
	assert.NoError(t, withMass.Initialize())
	stiffOnly := NewFDMPC(form.NewRieszMap(v,
		form.ConstantTensor([]float64{1, 1}), nil, false), bcs[0], Options{})
	assert.NoError(t, stiffOnly.Initialize())

	var (
		D  = pc.P.Dense()
		Dm = withMass.P.Dense()
		Ds = stiffOnly.P.Dense()
		nv = v.NumDOFs()
	)
	for i := 0; i < nv; i++ {
		for j := 0; j < nv; j++ {
			mass := Dm.At(i, j) - Ds.At(i, j)
			assert.True(t, near(D.At(i, off[1]+j), 0.5*mass, 1.e-12))
			// the transpose view mirrors the block
			assert.True(t, near(D.At(off[1]+j, i), D.At(i, off[1]+j), 1.e-14))
		}
	}

	// the block operator preconditions itself exactly
	b := make([]float64, off[len(off)-1])
	for i := range b {
		b[i] = math.Sin(float64(i + 1))
	}
	_, iters, err := solver.CG(pc.P, b, pc, 1.e-10, 5)
	assert.NoError(t, err)
	assert.True(t, iters <= 2)
}

func TestMixedOperatorRejectsLayoutMismatch(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		v    = space.NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 2, Var: element.FDMVariant})
		q    = space.NewFunctionSpace(mesh, element.Lagrange{P: 3, D: 2, Var: element.FDMVariant})
		ms   = space.MixedSpace{v, q}

		coupling = &form.Form{
			Test:  v,
			Trial: q,
			Integrals: []form.Integral{{Type: form.Cell, Terms: []form.Term{
				form.Mass{Beta: form.ConstantTensor([]float64{1})},
			}}},
		}
		blocks = map[[2]int]*form.Form{
			{0, 0}: form.NewRieszMap(v, form.ConstantTensor([]float64{1, 1}), form.ConstantTensor([]float64{1}), false),
			{1, 1}: form.NewRieszMap(q, form.ConstantTensor([]float64{1, 1}), form.ConstantTensor([]float64{1}), false),
			{0, 1}: coupling,
		}
	)
	pc := NewMixedFDMPC(ms, blocks, nil, Options{})
	err := pc.Initialize()
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}

func TestValidateMixedSpaceRejectsTwoTraces(t *testing.T) {
	var (
		mesh  = grid.NewUnitMesh(2, 1)
		base  = element.Lagrange{P: 2, D: 2}
		trace = element.Restricted{Sub: base, Domain: element.RestrictFacet}
		ms    = space.MixedSpace{
			space.NewFunctionSpace(mesh, trace),
			space.NewFunctionSpace(mesh, trace),
		}
	)
	err := ValidateMixedSpace(ms)
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}

func TestPoissonFDMPCCoupledMass(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		elem = element.Vector{
			Sub:        element.Broken{Sub: element.Lagrange{P: 2, D: 2, Var: element.FDMVariant}},
			Components: 2,
		}
		V    = space.NewFunctionSpace(mesh, elem)
		beta = func(x []float64) utils.Matrix {
			return utils.NewMatrix(2, 2, []float64{2, 0.5, 0.5, 2})
		}
		f   = form.NewRieszMap(V, form.ConstantTensor([]float64{1, 1}), beta, true)
		bcs = []*space.DirichletBC{space.NewDirichletBC(V)}
	)
	pc := NewPoissonFDMPC(f, bcs, Options{})
	assert.NoError(t, pc.Initialize())
	assert.True(t, pc.Coef.BetaCoupled)

	D := pc.P.Dense()
	n, _ := D.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			assert.True(t, near(D.At(i, j), D.At(j, i), 1.e-11))
		}
	}

	// on a broken space the cell DOFs are disjoint, so the cross-component
	// block of cell 0 is exactly the scaled Kronecker mass
	var (
		Bd   = pc.tables.Bhat.Kron(pc.tables.Bhat).ToDense()
		rows = pc.componentDOFs(0, 0)
		cols = pc.componentDOFs(0, 1)
		detJ = 0.25 * 0.25
	)
	for i := range rows {
		for j := range cols {
			assert.True(t, near(D.At(rows[i], cols[j]), 0.5*detJ*Bd.At(i, j), 1.e-12))
		}
	}
}

func TestPoissonFDMPCRejectsCondensedCoupledMass(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		elem = element.Vector{
			Sub:        element.Lagrange{P: 3, D: 2, Var: element.FDMVariant},
			Components: 2,
		}
		V    = space.NewFunctionSpace(mesh, elem)
		beta = func(x []float64) utils.Matrix {
			return utils.NewMatrix(2, 2, []float64{1, 0.25, 0.25, 1})
		}
		f   = form.NewRieszMap(V, form.ConstantTensor([]float64{1, 1}), beta, false)
		bcs = []*space.DirichletBC{space.NewDirichletBC(V)}
	)
	pc := NewPoissonFDMPC(f, bcs, Options{Condense: true})
	err := pc.Initialize()
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}

func TestFDMPCRejectsMappedElements(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		elem = element.Mapped{
			Sub: element.Lagrange{P: 2, D: 2, Var: element.FDMVariant},
			Map: element.ContravariantPiola,
		}
		V = space.NewFunctionSpace(mesh, elem)
		f = form.NewRieszMap(V,
			form.ConstantTensor([]float64{1, 1}),
			form.ConstantTensor([]float64{1}), false)
	)
	pc := NewFDMPC(f, nil, Options{})
	err := pc.Initialize()
	assert.Error(t, err)
	assert.ErrorIs(t, err, element.ErrNotImplemented)
}
