package fdm

import (
	"fmt"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"
)

// Options selects the assembly strategy of a preconditioner instance.
type Options struct {
	Condense        bool    // static condensation of cell interior DOFs
	Symmetric       bool    // store the upper triangle only
	DiagonalScaling bool    // P := D P D with D = 1/sqrt(|diag|)
	PenaltyEta      float64 // interior penalty strength, DG variant only
}

// FDMPC approximates the operator of a bilinear form by a sparse matrix
// assembled in the fast diagonalization basis, then delegates its
// preconditioner action to a direct solve over that matrix.
type FDMPC struct {
	V    *space.FunctionSpace
	J    *form.Form
	BCs  []*space.DirichletBC
	Opts Options

	Cache *Cache
	Coef  *Coefficients
	P     *GlobalMatrix

	lgmap utils.Index
	rtA   utils.CSR // reference tensor, cached per instance
	rtAT  utils.CSR
	inner *solver.Cholesky
	diag  []float64
	init  bool
}

func NewFDMPC(J *form.Form, bcs []*space.DirichletBC, opts Options) *FDMPC {
	return &FDMPC{
		V:     J.Test,
		J:     J,
		BCs:   bcs,
		Opts:  opts,
		Cache: NewCache(),
	}
}

// Initialize extracts coefficients, preallocates the sparse operator
// with a counting pass, and runs the first assembly.
func (pc *FDMPC) Initialize() (err error) {
	if pc.init {
		return nil
	}
	if len(pc.J.IntegralsByType(form.InteriorFacet)) > 0 {
		return fmt.Errorf("interior facet integrals in the cell assembler: %w (use the interior penalty variant)", element.ErrNotImplemented)
	}
	if m := element.MappingOf(pc.V.Elem); m != element.IdentityMapping {
		return fmt.Errorf("cell assembly with mapping %v: %w", m, element.ErrNotImplemented)
	}
	if pc.Coef, err = ExtractCoefficients(pc.J); err != nil {
		return fmt.Errorf("coefficient extraction failed: %v", err)
	}
	for _, assemble := range pc.Coef.Assemble {
		if err = assemble(); err != nil {
			return fmt.Errorf("coefficient assembly failed: %v", err)
		}
	}
	key := Key{
		Degree:     pc.V.Elem.Degree(),
		Dim:        pc.V.Mesh.Dim,
		FormDegree: pc.V.Elem.FormDegree(),
		ValueSize:  pc.V.ValueSize(),
	}
	if pc.rtA, err = pc.Cache.ReferenceTensor(key); err != nil {
		return fmt.Errorf("reference tensor build failed: %v", err)
	}
	pc.rtAT = pc.rtA.Transpose()
	pc.lgmap = pc.V.LocalToGlobalMap(pc.BCs)
	n := pc.V.NumDOFs()
	pc.P = NewGlobalMatrix(n, n, pc.Opts.Symmetric)
	if err = pc.fill(); err != nil {
		return
	}
	pc.P.Preallocate()
	pc.init = true
	return pc.Update()
}

// Update refreshes the coefficient fields and refills the operator in
// place without touching the sparsity pattern.
func (pc *FDMPC) Update() (err error) {
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

// fill inserts every cell matrix; in the counting phase this only
// records the pattern.
func (pc *FDMPC) fill() (err error) {
	var (
		mesh   = pc.V.Mesh
		vs     = pc.V.ValueSize()
		ncells = mesh.NumCells()
	)
	var i0, i1 utils.Index
	if pc.Opts.Condense {
		interior, facet := element.SplitDOFs(pc.V.Elem)
		i0 = expandDOFs(interior, vs)
		i1 = expandDOFs(facet, vs)
	}
	identity := make(map[int]struct{})
	for dof, g := range pc.lgmap {
		if g < 0 {
			identity[dof] = struct{}{}
		}
	}
	for cell := 0; cell < ncells; cell++ {
		Ae := pc.cellMatrix(cell)
		dofs := pc.cellDOFs(cell)
		if pc.Opts.Condense {
			S, cerr := Condense(Ae, i0, i1)
			if cerr != nil {
				return fmt.Errorf("static condensation failed on cell %d: %v", cell, cerr)
			}
			pc.P.AddValues(dofs.Subset(i1), dofs.Subset(i1), S)
			for _, li := range i0 {
				if g := dofs[li]; g >= 0 {
					identity[g] = struct{}{}
				}
			}
		} else {
			pc.P.AddValues(dofs, dofs, Ae)
		}
	}
	rows := make(utils.Index, 0, len(identity))
	for dof := range identity {
		rows = append(rows, dof)
	}
	pc.P.SetIdentityRows(rows)
	return nil
}

// cellDOFs translates local DOFs through the cell node map and the
// boundary-eliminating local-to-global map.
func (pc *FDMPC) cellDOFs(cell int) (dofs utils.Index) {
	var (
		vs    = pc.V.ValueSize()
		nodes = pc.V.CellNodeMap(cell)
	)
	dofs = make(utils.Index, 0, len(nodes)*vs)
	for _, node := range nodes {
		for c := 0; c < vs; c++ {
			dofs = append(dofs, pc.lgmap[node*vs+c])
		}
	}
	return
}

// cellMatrix forms the sparse element matrix as the triple product
// R^T diag(c) R of the reference tensor with the cell coefficient
// diagonal, then drops the round-off entries.
func (pc *FDMPC) cellMatrix(cell int) utils.CSR {
	c := pc.coefficientDiagonal(cell)
	Rs := pc.rtA.Copy().ScaleRows(c)
	return pc.rtAT.Mul(Rs).Sparsify(element.SparseTol)
}

func (pc *FDMPC) coefficientDiagonal(cell int) []float64 {
	nr, _ := pc.rtA.Dims()
	return cellCoefficientDiagonal(pc.V, pc.Coef, nr, cell)
}

// cellCoefficientDiagonal lays the frozen cell coefficients over the
// block row structure of the reference tensor: the mass rows first, then
// one derivative block per axis, all interleaved by vector component.
func cellCoefficientDiagonal(V *space.FunctionSpace, coef *Coefficients, nr, cell int) (c []float64) {
	var (
		mesh = V.Mesh
		dim  = mesh.Dim
		vs   = V.ValueSize()
		p    = V.Elem.Degree()
		n0   = p + 1
		n1   = p
	)
	detJ := 1.0
	for d := 0; d < dim; d++ {
		detJ *= 0.5 * mesh.CellSize(d)
	}
	c = make([]float64, 0, nr)
	// mass rows
	nm := utils.POWInt(n0, dim)
	for r := 0; r < nm; r++ {
		for comp := 0; comp < vs; comp++ {
			var beta float64
			if coef.Beta != nil {
				beta = coef.Beta[cell][comp]
			}
			c = append(c, beta*detJ)
		}
	}
	// one derivative block per axis
	for d := 0; d < dim; d++ {
		var (
			g     = 2.0 / mesh.CellSize(d)
			scale = coef.Alpha[cell][d] * detJ * g * g
			nrows = n1 * utils.POWInt(n0, dim-1)
		)
		for r := 0; r < nrows; r++ {
			for comp := 0; comp < vs; comp++ {
				c = append(c, scale)
			}
		}
	}
	if len(c) != nr {
		panic(fmt.Errorf("coefficient diagonal has %d entries for %d tensor rows", len(c), nr))
	}
	return
}

// Apply computes y = P^-1 x through the inner factorization.
func (pc *FDMPC) Apply(x []float64) (y []float64, err error) {
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

// ApplyTranspose coincides with Apply; the operator is symmetric.
func (pc *FDMPC) ApplyTranspose(x []float64) ([]float64, error) {
	return pc.Apply(x)
}

// Destroy releases the matrix and factorization handles.
func (pc *FDMPC) Destroy() {
	pc.P = nil
	pc.inner = nil
	pc.Coef = nil
	pc.Cache = NewCache()
	pc.init = false
}
