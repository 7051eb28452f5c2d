package pmg

import (
	"math"
	"testing"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/fdm"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/grid"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"

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

func rieszLevel(nx, p int, v element.Variant) *Level {
	mesh := grid.NewUnitMesh(2, nx)
	V := space.NewFunctionSpace(mesh, element.Lagrange{P: p, D: 2, Var: v})
	f := form.NewRieszMap(V,
		form.ConstantTensor([]float64{1, 1}),
		form.ConstantTensor([]float64{1}), false)
	return NewLevel(f, []*space.DirichletBC{space.NewDirichletBC(V)}, 1)
}

// Halving from degree 8 with floor 1 visits 4, 2, 1 and then refuses.
func TestCoarseningTermination(t *testing.T) {
	lvl := rieszLevel(2, 8, element.FDMVariant)
	want := []int{4, 2, 1}
	for _, deg := range want {
		child, T, err := lvl.Coarsen()
		assert.NoError(t, err)
		assert.NotNil(t, T)
		assert.Equal(t, deg, child.Space.Elem.Degree())
		assert.Equal(t, Coarsened, lvl.State)
		lvl = child
	}
	_, _, err := lvl.Coarsen()
	assert.ErrorIs(t, err, ErrNoCoarsening)
	assert.Equal(t, Terminal, lvl.State)
	// terminal is absorbing
	_, _, err = lvl.Coarsen()
	assert.ErrorIs(t, err, ErrNoCoarsening)
}

func TestCoarsenMemoized(t *testing.T) {
	lvl := rieszLevel(2, 4, element.FDMVariant)
	c1, t1, err := lvl.Coarsen()
	assert.NoError(t, err)
	c2, t2, err := lvl.Coarsen()
	assert.NoError(t, err)
	assert.True(t, c1 == c2)
	assert.True(t, t1 == t2)
}

func TestCoarsenQuadratureDegree(t *testing.T) {
	// ratio of points to nodes preserved under halving
	assert.Equal(t, 9, CoarsenQuadratureDegree(17, 8, 4))
	assert.Equal(t, 3, CoarsenQuadratureDegree(5, 2, 1))
	// the coarse mass exactness floor wins for small ratios
	assert.Equal(t, 2*3+1, CoarsenQuadratureDegree(7, 7, 3))
}

func TestTransferAdjointness(t *testing.T) {
	for _, v := range []element.Variant{element.Nodal, element.FDMVariant} {
		var (
			mesh   = grid.NewUnitMesh(2, 3)
			fine   = space.NewFunctionSpace(mesh, element.Lagrange{P: 4, D: 2, Var: v})
			coarse = space.NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 2, Var: v})
		)
		T, err := NewTransferOperator(fine, coarse)
		assert.NoError(t, err)
		var (
			nf = fine.NumDOFs()
			nc = coarse.NumDOFs()
			x  = make([]float64, nf)
			y  = make([]float64, nc)
			Py = make([]float64, nf)
			Rx = make([]float64, nc)
		)
		for i := range x {
			x[i] = math.Sin(float64(3*i + 1))
		}
		for i := range y {
			y[i] = math.Cos(float64(2*i + 1))
		}
		assert.NoError(t, T.Prolong(y, Py))
		assert.NoError(t, T.Restrict(x, Rx))
		assert.True(t, near(dot(Py, x), dot(y, Rx), 1.e-10))
	}
}

// Prolonging the nodal coefficients of a coarse-space polynomial must
// reproduce its fine-space interpolant exactly.
func TestProlongationReproducesPolynomials(t *testing.T) {
	var (
		mesh   = grid.NewUnitMesh(2, 2)
		fine   = space.NewFunctionSpace(mesh, element.Lagrange{P: 4, D: 2, Var: element.Nodal})
		coarse = space.NewFunctionSpace(mesh, element.Lagrange{P: 2, D: 2, Var: element.Nodal})
		f      = func(x []float64) float64 {
			return x[0]*x[0] + 2*x[0]*x[1] - x[1]
		}
	)
	T, err := NewTransferOperator(fine, coarse)
	assert.NoError(t, err)
	xc := make([]float64, coarse.NumDOFs())
	for node := 0; node < coarse.NumNodes(); node++ {
		xc[node] = f(coarse.NodeCoords(node))
	}
	xf := make([]float64, fine.NumDOFs())
	assert.NoError(t, T.Prolong(xc, xf))
	for node := 0; node < fine.NumNodes(); node++ {
		assert.True(t, near(xf[node], f(fine.NodeCoords(node)), 1.e-10))
	}
}

func TestNullspaceCoarsening(t *testing.T) {
	lvl := rieszLevel(2, 4, element.FDMVariant)
	n := lvl.Space.NumDOFs()
	ones := make([]float64, n)
	twos := make([]float64, n)
	for i := range ones {
		ones[i] = 1
		twos[i] = 2
	}
	lvl.Nullspace = [][]float64{ones, twos}
	child, _, err := lvl.Coarsen()
	assert.NoError(t, err)
	// the dependent vector is dropped, the survivor is unit norm
	assert.Equal(t, 1, len(child.Nullspace))
	assert.True(t, near(dot(child.Nullspace[0], child.Nullspace[0]), 1, 1.e-12))
}

// The V-cycle preconditioned solve must converge in a degree-independent
// number of iterations.
func TestPMGPoissonDegreeIndependence(t *testing.T) {
	wantLevels := map[int]int{3: 2, 4: 3, 5: 3}
	for _, p := range []int{3, 4, 5} {
		var (
			mesh = grid.NewUnitMesh(2, 3)
			V    = space.NewFunctionSpace(mesh, element.Lagrange{P: p, D: 2, Var: element.FDMVariant})
			f    = form.NewRieszMap(V,
				form.ConstantTensor([]float64{1, 1}),
				form.ConstantTensor([]float64{1}), false)
			bcs = []*space.DirichletBC{space.NewDirichletBC(V)}
		)
		mg, err := NewPMG(f, bcs, Options{FDM: fdm.Options{DiagonalScaling: true}})
		assert.NoError(t, err)
		assert.Equal(t, wantLevels[p], len(mg.Levels()))

		n := V.NumDOFs()
		b := make([]float64, n)
		for i := range b {
			b[i] = math.Sin(float64(2*i + 1))
		}
		_, iters, err := solver.CG(mg.Operator().P, b, mg, 1.e-08, 30)
		assert.NoError(t, err)
		assert.True(t, iters <= 9, "degree %d took %d iterations", p, iters)
	}
}

// A coarsening failure below the finest level is a configuration error,
// not a terminal level: the hierarchy build must surface it instead of
// truncating silently.
func TestHierarchyPropagatesCoarseningErrors(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		V    = space.NewFunctionSpace(mesh, element.Lagrange{P: 4, D: 2, Var: element.FDMVariant})
		f    = form.NewRieszMap(V,
			form.ConstantTensor([]float64{1, 1}),
			form.ConstantTensor([]float64{1}), false)
		bcs = []*space.DirichletBC{space.NewDirichletBC(V)}
	)
	// a linearization state of the wrong length makes the solution
	// restriction fail during coarsening
	f = f.WithSolution(&form.Coefficient{Space: V, Data: make([]float64, 3)})
	mg, err := NewPMG(f, bcs, Options{})
	assert.Error(t, err)
	assert.Nil(t, mg)
}

func TestHierarchyRejectsMappedElements(t *testing.T) {
	var (
		mesh = grid.NewUnitMesh(2, 2)
		elem = element.Mapped{
			Sub: element.Lagrange{P: 4, D: 2, Var: element.FDMVariant},
			Map: element.ContravariantPiola,
		}
		V = space.NewFunctionSpace(mesh, elem)
		f = form.NewRieszMap(V,
			form.ConstantTensor([]float64{1, 1}),
			form.ConstantTensor([]float64{1}), false)
	)
	mg, err := NewPMG(f, nil, Options{})
	assert.Error(t, err)
	assert.Nil(t, mg)
}
