package fdm

import (
	"fmt"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"
)

// PoissonFDMPC is the interior penalty variant: the element matrix is a
// Kronecker sum of interval mass and stiffness matrices, picking the
// stiffness variant per facet from the weak boundary condition flags,
// plus SIPG jump/average blocks on interior facets.
type PoissonFDMPC struct {
	V    *space.FunctionSpace
	J    *form.Form
	BCs  []*space.DirichletBC
	Opts Options

	Cache *Cache
	Coef  *Coefficients
	P     *GlobalMatrix

	tables element.IPDGTables
	lgmap  utils.Index
	weak   bool // weak Dirichlet through the penalty, for broken spaces
	inner  *solver.Cholesky
	diag   []float64
	init   bool
}

func NewPoissonFDMPC(J *form.Form, bcs []*space.DirichletBC, opts Options) *PoissonFDMPC {
	return &PoissonFDMPC{
		V:     J.Test,
		J:     J,
		BCs:   bcs,
		Opts:  opts,
		Cache: NewCache(),
	}
}

func (pc *PoissonFDMPC) Initialize() (err error) {
	if pc.init {
		return nil
	}
	var (
		p        = pc.V.Elem.Degree()
		hasFacet = len(pc.J.IntegralsByType(form.InteriorFacet)) > 0
	)
	if pc.Opts.Condense && hasFacet {
		return fmt.Errorf("static condensation with interior penalty terms: %w", element.ErrNotImplemented)
	}
	if m := element.MappingOf(pc.V.Elem); m != element.IdentityMapping {
		return fmt.Errorf("interior penalty assembly with mapping %v: %w", m, element.ErrNotImplemented)
	}
	if pc.Coef, err = ExtractCoefficients(pc.J); err != nil {
		return fmt.Errorf("coefficient extraction failed: %v", err)
	}
	for _, assemble := range pc.Coef.Assemble {
		if err = assemble(); err != nil {
			return fmt.Errorf("coefficient assembly failed: %v", err)
		}
	}
	if pc.Opts.Condense && pc.Coef.BetaCoupled {
		return fmt.Errorf("static condensation with component-coupled mass coefficients: %w", element.ErrNotImplemented)
	}
	eta := pc.Opts.PenaltyEta
	if eta == 0 {
		eta = float64(p * (p + 1))
	}
	pc.tables = element.FDMSetupIPDG(pc.Cache.FDMBasis(p), eta)

	// broken spaces take Dirichlet conditions weakly through the penalty
	pc.weak = len(pc.J.IntegralsByType(form.ExteriorFacet)) > 0
	if pc.weak {
		pc.lgmap = pc.V.LocalToGlobalMap(nil)
	} else {
		pc.lgmap = pc.V.LocalToGlobalMap(pc.BCs)
	}
	n := pc.V.NumDOFs()
	pc.P = NewGlobalMatrix(n, n, pc.Opts.Symmetric)
	if err = pc.fill(); err != nil {
		return
	}
	pc.P.Preallocate()
	pc.init = true
	return pc.Update()
}

func (pc *PoissonFDMPC) Update() (err error) {
	if !pc.init {
		return fmt.Errorf("preconditioner not initialized")
	}
	for _, assemble := range pc.Coef.Assemble {
		if err = assemble(); err != nil {
			return fmt.Errorf("coefficient assembly failed: %v", err)
		}
	}
	pc.P.ZeroEntries()
	if err = pc.fill(); err != nil {
		return
	}
	pc.diag = nil
	if pc.Opts.DiagonalScaling {
		pc.diag = pc.P.DiagonalScale()
	}
	if pc.inner, err = solver.NewCholesky(pc.P.Dense()); err != nil {
		return fmt.Errorf("inner factorization failed: %v", err)
	}
	return nil
}

func (pc *PoissonFDMPC) fill() (err error) {
	var (
		mesh   = pc.V.Mesh
		dim    = mesh.Dim
		vs     = pc.V.ValueSize()
		ncells = mesh.NumCells()
	)
	var i0, i1 utils.Index
	if pc.Opts.Condense {
		interior, facet := element.SplitDOFs(pc.V.Elem)
		i0, i1 = interior, facet
	}
	identity := make(map[int]struct{})
	for dof, g := range pc.lgmap {
		if g < 0 {
			identity[dof] = struct{}{}
		}
	}
	// component coupling through a full mass tensor rides on a separate
	// Kronecker mass block per ordered component pair
	var Bkron utils.CSR
	if pc.Coef.BetaCoupled {
		Bkron = pc.tables.Bhat
		for m := 1; m < dim; m++ {
			Bkron = Bkron.Kron(pc.tables.Bhat)
		}
	}
	mue := make([]float64, dim)
	for cell := 0; cell < ncells; cell++ {
		fbc := pc.bcFlags(cell)
		detJ := 1.0
		for d := 0; d < dim; d++ {
			detJ *= 0.5 * mesh.CellSize(d)
		}
		for d := 0; d < dim; d++ {
			g := 2.0 / mesh.CellSize(d)
			mue[d] = pc.Coef.Alpha[cell][d] * detJ * g * g
		}
		for k := 0; k < vs; k++ {
			var bqe float64
			if pc.Coef.Beta != nil && !pc.Coef.BetaCoupled {
				bqe = pc.Coef.Beta[cell][k] * detJ
			}
			Ae := pc.componentMatrix(mue, bqe, fbc)
			rows := pc.componentDOFs(cell, k)
			if pc.Opts.Condense {
				S, cerr := Condense(Ae, i0, i1)
				if cerr != nil {
					return fmt.Errorf("static condensation failed on cell %d: %v", cell, cerr)
				}
				pc.P.AddValues(rows.Subset(i1), rows.Subset(i1), S)
				for _, li := range i0 {
					if g := rows[li]; g >= 0 {
						identity[g] = struct{}{}
					}
				}
			} else {
				pc.P.AddValues(rows, rows, Ae)
			}
		}
		if pc.Coef.BetaCoupled {
			B := pc.Coef.BetaBlock[cell]
			for k := 0; k < vs; k++ {
				rows := pc.componentDOFs(cell, k)
				for l := 0; l < vs; l++ {
					v := B.At(k, l) * detJ
					pc.P.AddValues(rows, pc.componentDOFs(cell, l), Bkron.Copy().Scale(v))
				}
			}
		}
	}
	if len(pc.J.IntegralsByType(form.InteriorFacet)) > 0 {
		if err = pc.fillFacets(); err != nil {
			return
		}
	}
	rows := make(utils.Index, 0, len(identity))
	for dof := range identity {
		rows = append(rows, dof)
	}
	pc.P.SetIdentityRows(rows)
	return nil
}

// componentMatrix accumulates the Kronecker sum
// mue[0] Ahat[fbc0] kron Bhat ... + ... + bqe Bhat kron ... kron Bhat,
// axis 0 slowest.
func (pc *PoissonFDMPC) componentMatrix(mue []float64, bqe float64, fbc []int) utils.CSR {
	var (
		dim = len(mue)
		tab = pc.tables
	)
	Ae := tab.Ahat[fbc[0]].Copy().Scale(mue[0])
	// keep the mass pattern in place even for zero values so refills
	// never step outside the preallocated pattern
	if pc.Coef.Beta != nil && !pc.Coef.BetaCoupled {
		Ae = Ae.AddScaled(bqe, tab.Bhat)
	}
	Be := tab.Bhat
	for m := 1; m < dim; m++ {
		Ae = Ae.Kron(tab.Bhat)
		Ae = Ae.AddScaled(mue[m], Be.Kron(tab.Ahat[fbc[m]]))
		if m+1 < dim {
			Be = Be.Kron(tab.Bhat)
		}
	}
	return Ae
}

// bcFlags returns the two-bit weak boundary condition mask per axis:
// bit 0 for the low face, bit 1 for the high face.
func (pc *PoissonFDMPC) bcFlags(cell int) (fbc []int) {
	var (
		mesh = pc.V.Mesh
		mask = mesh.BoundaryMask(cell)
	)
	fbc = make([]int, mesh.Dim)
	if !pc.weak {
		return
	}
	for d := 0; d < mesh.Dim; d++ {
		for side := 0; side < 2; side++ {
			if !mask[d][side] {
				continue
			}
			for _, bc := range pc.BCs {
				sel := bc.Faces
				if sel == nil || sel(d, side) {
					fbc[d] |= 1 << side
					break
				}
			}
		}
	}
	return
}

// componentDOFs lists the translated global DOFs of one vector component
// over the cell, in lexicographic scalar order.
func (pc *PoissonFDMPC) componentDOFs(cell, k int) (dofs utils.Index) {
	var (
		vs    = pc.V.ValueSize()
		nodes = pc.V.CellNodeMap(cell)
	)
	dofs = make(utils.Index, len(nodes))
	for i, node := range nodes {
		dofs[i] = pc.lgmap[node*vs+k]
	}
	return
}

// fillFacets adds the SIPG jump/average coupling over interior facets.
// The two-cell block is dense in the facet axis and Kronecker-extended
// by the interval mass in the tangential axes; rows are permuted so the
// facet axis becomes slowest.
func (pc *PoissonFDMPC) fillFacets() error {
	var (
		mesh = pc.V.Mesh
		dim  = mesh.Dim
		vs   = pc.V.ValueSize()
		tab  = pc.tables
		n    = tab.P + 1
		eta  = pc.Opts.PenaltyEta
	)
	if eta == 0 {
		eta = float64(tab.P * (tab.P + 1))
	}
	shape := make([]int, dim)
	for d := range shape {
		shape[d] = n
	}
	for fi, fc := range mesh.InteriorFacets() {
		var (
			a    = fc.Axis
			detJ = 1.0
		)
		for d := 0; d < dim; d++ {
			detJ *= 0.5 * mesh.CellSize(d)
		}
		g := 2.0 / mesh.CellSize(a)
		mu := [2]float64{
			pc.Coef.FacetAlpha[fi][0] * detJ * g * g,
			pc.Coef.FacetAlpha[fi][1] * detJ * g * g,
		}
		// local facet per side: the minus cell touches through its high
		// face, the plus cell through its low face
		lfd := [2]int{1, 0}
		Adense := utils.NewMatrix(2*n, 2*n)
		for j := 0; j < 2; j++ {
			jj := j*n + tab.BDof[lfd[j]]
			for i := 0; i < 2; i++ {
				ii := i*n + tab.BDof[lfd[i]]
				sij := -0.5
				if i == j {
					sij = 0.5
				}
				smu := [2]float64{sij * mu[0], sij * mu[1]}
				Adense.M.Set(ii, jj, Adense.At(ii, jj)+eta*(smu[0]+smu[1]))
				for r := 0; r < n; r++ {
					Adense.M.Set(i*n+r, jj, Adense.At(i*n+r, jj)-smu[i]*tab.Dfacet.At(r, lfd[i]))
					Adense.M.Set(ii, j*n+r, Adense.At(ii, j*n+r)-smu[j]*tab.Dfacet.At(r, lfd[j]))
				}
			}
		}
		Ae := utils.NewCSRFromDense(Adense, element.SparseTol)
		for m := 1; m < dim; m++ {
			Ae = Ae.Kron(tab.Bhat)
		}
		for k := 0; k < vs; k++ {
			rows := append(
				pullAxis(pc.componentDOFs(fc.Minus, k), shape, a),
				pullAxis(pc.componentDOFs(fc.Plus, k), shape, a)...)
			pc.P.AddValues(rows, rows, Ae)
		}
	}
	return nil
}

// pullAxis reorders a lexicographic DOF block so the given axis varies
// slowest.
func pullAxis(x utils.Index, shape []int, axis int) (out utils.Index) {
	var (
		dim   = len(shape)
		total = len(x)
	)
	if axis == 0 {
		return x
	}
	strides := make([]int, dim)
	s := 1
	for d := dim - 1; d >= 0; d-- {
		strides[d] = s
		s *= shape[d]
	}
	// walk the multi-index with the facet axis slowest; the tangential
	// axes keep their cyclic order, which rows and columns share
	order := utils.NewRange(0, dim).Roll(axis)
	out = make(utils.Index, 0, total)
	idx := make([]int, dim) // position along order[pos]
	for count := 0; count < total; count++ {
		var src int
		for pos, d := range order {
			src += idx[pos] * strides[d]
		}
		out = append(out, x[src])
		for pos := dim - 1; pos >= 0; pos-- {
			idx[pos]++
			if idx[pos] < shape[order[pos]] {
				break
			}
			idx[pos] = 0
		}
	}
	return
}

func (pc *PoissonFDMPC) Apply(x []float64) (y []float64, err error) {
	if pc.inner == nil {
		return nil, fmt.Errorf("preconditioner not initialized")
	}
	b := x
	if pc.diag != nil {
		b = make([]float64, len(x))
		for i, v := range x {
			b[i] = pc.diag[i] * v
		}
	}
	if y, err = pc.inner.Solve(b); err != nil {
		return
	}
	if pc.diag != nil {
		for i := range y {
			y[i] *= pc.diag[i]
		}
	}
	return
}

func (pc *PoissonFDMPC) ApplyTranspose(x []float64) ([]float64, error) {
	return pc.Apply(x)
}

func (pc *PoissonFDMPC) Destroy() {
	pc.P = nil
	pc.inner = nil
	pc.Coef = nil
	pc.Cache = NewCache()
	pc.init = false
}
