package fdm

import (
	"fmt"

	"github.com/notargets/fastdiag/element"
	"github.com/notargets/fastdiag/form"
	"github.com/notargets/fastdiag/solver"
	"github.com/notargets/fastdiag/space"
	"github.com/notargets/fastdiag/utils"
)

// MixedCellMatrix forms the off-diagonal element block coupling two
// function spaces on one cell, R_row^T diag(c) R_col, from their
// reference tensors. The coefficient diagonal is laid out by the row
// tensor; the caller supplies the transpose of the row tensor so the
// product stays a row-major sparse pass.
func MixedCellMatrix(rtRowT, rtCol utils.CSR, c []float64) utils.CSR {
	return rtRowT.Mul(rtCol.Copy().ScaleRows(c)).Sparsify(element.SparseTol)
}

// InsertMixedBlock adds the element block of one ordered space pair
// into the global matrix, offsetting rows and columns by the mixed
// space layout, and mirrors the transpose into the opposite pair so
// each block is assembled only once. Symmetric storage keeps the upper
// block and reconstructs the mirror from it.
func InsertMixedBlock(G *GlobalMatrix, ms space.MixedSpace, row, col int,
	rows, cols utils.Index, Ae utils.CSR) {
	var (
		off = ms.Offsets()
		gr  = offsetDOFs(rows, off[row])
		gc  = offsetDOFs(cols, off[col])
	)
	G.AddValues(gr, gc, Ae)
	if row != col && !G.Symmetric {
		G.AddValues(gc, gr, Ae.Transpose())
	}
}

// offsetDOFs shifts a DOF map into its block range, leaving the
// negative elimination sentinels in place.
func offsetDOFs(dofs utils.Index, off int) (out utils.Index) {
	out = make(utils.Index, len(dofs))
	for i, d := range dofs {
		out[i] = d
		if d >= 0 {
			out[i] = d + off
		}
	}
	return
}

// ValidateMixedSpace rejects layouts the assembler cannot serve: at
// most one sub space may be restricted to facet DOFs.
func ValidateMixedSpace(ms space.MixedSpace) error {
	restricted := 0
	for _, fs := range ms {
		if r, ok := fs.Elem.(element.Restricted); ok && r.Domain == element.RestrictFacet {
			restricted++
		}
	}
	if restricted > 1 {
		return fmt.Errorf("more than one facet-restricted space in a mixed space: %w", element.ErrNotImplemented)
	}
	return nil
}

// MixedFDMPC assembles the block operator of a mixed space: one
// diagonal block per sub space, one off-diagonal block per ordered
// sub-space pair carrying a coupling form. Off-diagonal blocks are
// given for the upper pair only and mirrored on insertion.
type MixedFDMPC struct {
	Spaces space.MixedSpace
	Blocks map[[2]int]*form.Form
	BCs    [][]*space.DirichletBC
	Opts   Options

	Cache *Cache
	P     *GlobalMatrix

	coefs  map[[2]int]*Coefficients
	lgmaps []utils.Index
	inner  *solver.Cholesky
	diag   []float64
	init   bool
}

func NewMixedFDMPC(ms space.MixedSpace, blocks map[[2]int]*form.Form,
	bcs [][]*space.DirichletBC, opts Options) *MixedFDMPC {
	return &MixedFDMPC{
		Spaces: ms,
		Blocks: blocks,
		BCs:    bcs,
		Opts:   opts,
		Cache:  NewCache(),
	}
}

func (pc *MixedFDMPC) Initialize() (err error) {
	if pc.init {
		return nil
	}
	if err = ValidateMixedSpace(pc.Spaces); err != nil {
		return
	}
	if pc.Opts.Condense {
		return fmt.Errorf("static condensation over a mixed space: %w", element.ErrNotImplemented)
	}
	for i, fs := range pc.Spaces {
		if m := element.MappingOf(fs.Elem); m != element.IdentityMapping {
			return fmt.Errorf("mixed assembly with mapping %v in block %d: %w", m, i, element.ErrNotImplemented)
		}
		if _, ok := pc.Blocks[[2]int{i, i}]; !ok {
			return fmt.Errorf("missing diagonal block (%d,%d)", i, i)
		}
	}
	for key, f := range pc.Blocks {
		r, c := key[0], key[1]
		if r > c {
			return fmt.Errorf("block (%d,%d) lies below the diagonal; couplings are given once per ordered pair", r, c)
		}
		if f.Test != pc.Spaces[r] || f.Trial != pc.Spaces[c] {
			return fmt.Errorf("block (%d,%d) form does not match its sub spaces", r, c)
		}
		if len(f.IntegralsByType(form.InteriorFacet)) > 0 {
			return fmt.Errorf("interior facet integrals in the mixed cell assembler: %w", element.ErrNotImplemented)
		}
		if r != c && (pc.Spaces[r].Elem.Degree() != pc.Spaces[c].Elem.Degree() ||
			pc.Spaces[r].ValueSize() != pc.Spaces[c].ValueSize()) {
			return fmt.Errorf("coupling block (%d,%d) between different local layouts: %w", r, c, element.ErrNotImplemented)
		}
	}
	pc.coefs = make(map[[2]int]*Coefficients)
	for key, f := range pc.Blocks {
		coef, cerr := ExtractCoefficients(f)
		if cerr != nil {
			return fmt.Errorf("coefficient extraction for block (%d,%d) failed: %v", key[0], key[1], cerr)
		}
		for _, assemble := range coef.Assemble {
			if cerr = assemble(); cerr != nil {
				return fmt.Errorf("coefficient assembly for block (%d,%d) failed: %v", key[0], key[1], cerr)
			}
		}
		pc.coefs[key] = coef
	}
	pc.lgmaps = make([]utils.Index, len(pc.Spaces))
	for i, fs := range pc.Spaces {
		var b []*space.DirichletBC
		if i < len(pc.BCs) {
			b = pc.BCs[i]
		}
		pc.lgmaps[i] = fs.LocalToGlobalMap(b)
	}
	off := pc.Spaces.Offsets()
	n := off[len(off)-1]
	pc.P = NewGlobalMatrix(n, n, pc.Opts.Symmetric)
	if err = pc.fill(); err != nil {
		return
	}
	pc.P.Preallocate()
	pc.init = true
	return pc.Update()
}

// Update refreshes every block's coefficients and refills the operator
// in place.
func (pc *MixedFDMPC) Update() (err error) {
	if !pc.init {
		return fmt.Errorf("preconditioner not initialized")
	}
	for key, coef := range pc.coefs {
		for _, assemble := range coef.Assemble {
			if err = assemble(); err != nil {
				return fmt.Errorf("coefficient assembly for block (%d,%d) failed: %v", key[0], key[1], err)
			}
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

func (pc *MixedFDMPC) fill() (err error) {
	var (
		off    = pc.Spaces.Offsets()
		ncells = pc.Spaces[0].Mesh.NumCells()
	)
	identity := make(utils.Index, 0)
	for i := range pc.Spaces {
		for dof, g := range pc.lgmaps[i] {
			if g < 0 {
				identity = append(identity, off[i]+dof)
			}
		}
	}
	for key, coef := range pc.coefs {
		r, c := key[0], key[1]
		rowT, colR, terr := pc.blockTensors(key)
		if terr != nil {
			return fmt.Errorf("reference tensor for block (%d,%d) failed: %v", r, c, terr)
		}
		nr, _ := colR.Dims()
		for cell := 0; cell < ncells; cell++ {
			cvec := cellCoefficientDiagonal(pc.Spaces[r], coef, nr, cell)
			Ae := MixedCellMatrix(rowT, colR, cvec)
			rows := blockDOFs(pc.Spaces[r], pc.lgmaps[r], cell)
			cols := rows
			if r != c {
				cols = blockDOFs(pc.Spaces[c], pc.lgmaps[c], cell)
			}
			InsertMixedBlock(pc.P, pc.Spaces, r, c, rows, cols, Ae)
		}
	}
	pc.P.SetIdentityRows(identity)
	return nil
}

// blockTensors resolves the reference tensors of one block pair through
// the shared cache, transposing the row side.
func (pc *MixedFDMPC) blockTensors(key [2]int) (rowT, colR utils.CSR, err error) {
	var (
		r, c = key[0], key[1]
		Vr   = pc.Spaces[r]
		Vc   = pc.Spaces[c]
	)
	Rr, err := pc.Cache.ReferenceTensor(Key{
		Degree:     Vr.Elem.Degree(),
		Dim:        Vr.Mesh.Dim,
		FormDegree: Vr.Elem.FormDegree(),
		ValueSize:  Vr.ValueSize(),
	})
	if err != nil {
		return
	}
	Rc := Rr
	if r != c {
		if Rc, err = pc.Cache.ReferenceTensor(Key{
			Degree:     Vc.Elem.Degree(),
			Dim:        Vc.Mesh.Dim,
			FormDegree: Vc.Elem.FormDegree(),
			ValueSize:  Vc.ValueSize(),
		}); err != nil {
			return
		}
	}
	return Rr.Transpose(), Rc, nil
}

// blockDOFs translates a cell's local DOFs of one sub space through its
// boundary-eliminating local-to-global map.
func blockDOFs(fs *space.FunctionSpace, lgmap utils.Index, cell int) (dofs utils.Index) {
	var (
		vs    = fs.ValueSize()
		nodes = fs.CellNodeMap(cell)
	)
	dofs = make(utils.Index, 0, len(nodes)*vs)
	for _, node := range nodes {
		for c := 0; c < vs; c++ {
			dofs = append(dofs, lgmap[node*vs+c])
		}
	}
	return
}

// Apply computes y = P^-1 x through the inner factorization.
func (pc *MixedFDMPC) Apply(x []float64) (y []float64, err error) {
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
func (pc *MixedFDMPC) ApplyTranspose(x []float64) ([]float64, error) {
	return pc.Apply(x)
}

// Destroy releases the matrix and factorization handles.
func (pc *MixedFDMPC) Destroy() {
	pc.P = nil
	pc.inner = nil
	pc.coefs = nil
	pc.Cache = NewCache()
	pc.init = false
}
