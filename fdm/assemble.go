package fdm

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/fastdiag/utils"
)

// GlobalMatrix is the assembled sparse operator. It is built in two
// passes: insertions before Preallocate only record the sparsity
// pattern; Preallocate freezes it into an exact CSR layout; later
// insertions add values into that fixed pattern. Symmetric storage keeps
// the upper triangle only.
type GlobalMatrix struct {
	NRows, NCols int
	Symmetric    bool

	counting bool
	cols     []map[int]struct{}
	M        utils.CSR
}

func NewGlobalMatrix(nrows, ncols int, symmetric bool) (G *GlobalMatrix) {
	G = &GlobalMatrix{
		NRows:     nrows,
		NCols:     ncols,
		Symmetric: symmetric,
		counting:  true,
		cols:      make([]map[int]struct{}, nrows),
	}
	for i := range G.cols {
		G.cols[i] = make(map[int]struct{})
	}
	return
}

// Preallocate converts the counted pattern into the exact CSR layout and
// switches the matrix to value insertion.
func (G *GlobalMatrix) Preallocate() {
	if !G.counting {
		panic(fmt.Errorf("matrix already preallocated"))
	}
	ia := make([]int, 1, G.NRows+1)
	var nnz int
	for _, set := range G.cols {
		nnz += len(set)
	}
	ja := make([]int, 0, nnz)
	data := make([]float64, nnz)
	for _, set := range G.cols {
		rowStart := len(ja)
		for j := range set {
			ja = append(ja, j)
		}
		sort.Ints(ja[rowStart:])
		ia = append(ia, len(ja))
	}
	G.M = utils.NewCSR(G.NRows, G.NCols, ia, ja, data)
	G.cols = nil
	G.counting = false
}

// ZeroEntries clears the values, keeping the pattern for reassembly.
func (G *GlobalMatrix) ZeroEntries() {
	if G.counting {
		return
	}
	raw := G.M.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = 0
	}
}

// AddValue inserts additively at a global position. Negative indices
// mark eliminated DOFs and are skipped; in symmetric mode strictly lower
// entries fold away, their mirror image carrying the value.
func (G *GlobalMatrix) AddValue(row, col int, val float64) {
	if row < 0 || col < 0 {
		return
	}
	if G.Symmetric && col < row {
		return
	}
	if G.counting {
		G.cols[row][col] = struct{}{}
		return
	}
	raw := G.M.RawMatrix()
	lo, hi := raw.Indptr[row], raw.Indptr[row+1]
	k := lo + sort.SearchInts(raw.Ind[lo:hi], col)
	if k == hi || raw.Ind[k] != col {
		panic(fmt.Errorf("insertion outside the preallocated pattern at (%d,%d)", row, col))
	}
	raw.Data[k] += val
}

// AddValues copies a sparse element matrix into the global operator,
// translating local indices through the row and column maps.
func (G *GlobalMatrix) AddValues(rows, cols utils.Index, Ae utils.CSR) {
	var (
		nr, nc = Ae.Dims()
		raw    = Ae.RawMatrix()
	)
	if nr != len(rows) || nc != len(cols) {
		panic(fmt.Errorf("element matrix is %dx%d but the index maps are %dx%d", nr, nc, len(rows), len(cols)))
	}
	for i := 0; i < nr; i++ {
		irow := rows[i]
		if irow < 0 {
			continue
		}
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			G.AddValue(irow, cols[raw.Ind[k]], raw.Data[k])
		}
	}
}

// AddDense is AddValues for a dense element matrix.
func (G *GlobalMatrix) AddDense(rows, cols utils.Index, Ae utils.Matrix) {
	var (
		nr, nc = Ae.Dims()
	)
	if nr != len(rows) || nc != len(cols) {
		panic(fmt.Errorf("element matrix is %dx%d but the index maps are %dx%d", nr, nc, len(rows), len(cols)))
	}
	for i := 0; i < nr; i++ {
		if rows[i] < 0 {
			continue
		}
		for j := 0; j < nc; j++ {
			if v := Ae.At(i, j); v != 0 {
				G.AddValue(rows[i], cols[j], v)
			}
		}
	}
}

// SetIdentityRows forces each listed row to the unit row, keeping the
// preconditioner well posed on eliminated DOFs.
func (G *GlobalMatrix) SetIdentityRows(rows utils.Index) {
	if G.counting {
		for _, i := range rows {
			G.cols[i][i] = struct{}{}
		}
		return
	}
	raw := G.M.RawMatrix()
	for _, i := range rows {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if raw.Ind[k] == i {
				raw.Data[k] = 1
			} else {
				raw.Data[k] = 0
			}
		}
	}
}

// DiagonalScale applies P := D P D with D = 1/sqrt(|diag P|).
func (G *GlobalMatrix) DiagonalScale() (D []float64) {
	raw := G.M.RawMatrix()
	D = make([]float64, G.NRows)
	for i := 0; i < G.NRows; i++ {
		D[i] = 1
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if raw.Ind[k] == i && raw.Data[k] != 0 {
				D[i] = 1 / math.Sqrt(math.Abs(raw.Data[k]))
			}
		}
	}
	for i := 0; i < G.NRows; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			raw.Data[k] *= D[i] * D[raw.Ind[k]]
		}
	}
	return
}

// MulVec applies the operator, unfolding symmetric storage.
func (G *GlobalMatrix) MulVec(x, y []float64) {
	if G.counting {
		panic(fmt.Errorf("matrix not yet preallocated"))
	}
	raw := G.M.RawMatrix()
	for i := range y {
		y[i] = 0
	}
	for i := 0; i < G.NRows; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			v := raw.Data[k]
			y[i] += v * x[j]
			if G.Symmetric && j != i {
				y[j] += v * x[i]
			}
		}
	}
}

// Dense expands to a dense matrix, mirroring the upper triangle in
// symmetric mode. Intended for the direct coarse solve and for tests.
func (G *GlobalMatrix) Dense() (R utils.Matrix) {
	raw := G.M.RawMatrix()
	R = utils.NewMatrix(G.NRows, G.NCols)
	for i := 0; i < G.NRows; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			R.M.Set(i, j, R.At(i, j)+raw.Data[k])
			if G.Symmetric && j != i {
				R.M.Set(j, i, R.At(j, i)+raw.Data[k])
			}
		}
	}
	return
}

// Entries returns a copy of the stored CSR values, used by the
// idempotence checks.
func (G *GlobalMatrix) Entries() []float64 {
	raw := G.M.RawMatrix()
	out := make([]float64, len(raw.Data))
	copy(out, raw.Data)
	return out
}
