package utils

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M    *sparse.DOK
	name string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		"unnamed",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix      { return m.M.T() }

func (m DOK) Set(i, j int, val float64) { m.M.Set(i, j, val) }

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

// CSR wraps a compressed sparse row matrix with the small set of
// operations needed to build Kronecker-structured reference tensors.
type CSR struct {
	M    *sparse.CSR
	name string
}

func NewCSR(nr, nc int, ia, ja []int, data []float64) (R CSR) {
	if ia == nil {
		ia = make([]int, nr+1)
	}
	R = CSR{
		sparse.NewCSR(nr, nc, ia, ja, data),
		"unnamed",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                { return m.M.T() }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }

func (m CSR) NNZ() int {
	raw := m.RawMatrix()
	return raw.Indptr[len(raw.Indptr)-1]
}

// NewCSREye returns the n x n sparse identity.
func NewCSREye(n int) (R CSR) {
	ia := make([]int, n+1)
	ja := make([]int, n)
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		ia[i+1] = i + 1
		ja[i] = i
		data[i] = 1
	}
	return NewCSR(n, n, ia, ja, data)
}

// BlockMat assembles a sparse matrix from a grid of blocks; nil entries
// stand for zero blocks. Every block row and column must contain at least
// one non-nil block to fix its size.
func BlockMat(blocks [][]*CSR) (R CSR) {
	var (
		nbr = len(blocks)
		nbc = len(blocks[0])
	)
	rowH := make([]int, nbr)
	colW := make([]int, nbc)
	for i := 0; i < nbr; i++ {
		for j := 0; j < nbc; j++ {
			if b := blocks[i][j]; b != nil {
				br, bc := b.Dims()
				rowH[i], colW[j] = br, bc
			}
		}
	}
	for i, h := range rowH {
		if h == 0 {
			panic(fmt.Errorf("block row %d has no non-nil block", i))
		}
	}
	colOff := make([]int, nbc+1)
	for j := 0; j < nbc; j++ {
		if colW[j] == 0 {
			panic(fmt.Errorf("block column %d has no non-nil block", j))
		}
		colOff[j+1] = colOff[j] + colW[j]
	}
	var nr int
	for _, h := range rowH {
		nr += h
	}
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	for i := 0; i < nbr; i++ {
		for r := 0; r < rowH[i]; r++ {
			for j := 0; j < nbc; j++ {
				b := blocks[i][j]
				if b == nil {
					continue
				}
				raw := b.RawMatrix()
				for k := raw.Indptr[r]; k < raw.Indptr[r+1]; k++ {
					ja = append(ja, raw.Ind[k]+colOff[j])
					data = append(data, raw.Data[k])
				}
			}
			ia = append(ia, len(ja))
		}
	}
	return NewCSR(nr, colOff[nbc], ia, ja, data)
}

// NewCSRFromDense sparsifies a dense matrix, dropping entries whose
// magnitude is below rtol times the largest entry.
func NewCSRFromDense(A Matrix, rtol float64) (R CSR) {
	var (
		nr, nc = A.Dims()
		amax   float64
	)
	for _, val := range A.Data() {
		if math.Abs(val) > amax {
			amax = math.Abs(val)
		}
	}
	atol := rtol * amax
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			v := A.At(i, j)
			if math.Abs(v) > atol {
				ja = append(ja, j)
				data = append(data, v)
			}
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, nc, ia, ja, data)
}

func (m CSR) ToDense() (R Matrix) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	R = NewMatrix(nr, nc)
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			R.M.Set(i, raw.Ind[k], raw.Data[k])
		}
	}
	return
}

func (m CSR) Copy() (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	ia := make([]int, len(raw.Indptr))
	ja := make([]int, len(raw.Ind))
	data := make([]float64, len(raw.Data))
	copy(ia, raw.Indptr)
	copy(ja, raw.Ind)
	copy(data, raw.Data)
	return NewCSR(nr, nc, ia, ja, data)
}

func (m CSR) Scale(a float64) CSR { // Changes receiver
	raw := m.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] *= a
	}
	return m
}

// ScaleRows multiplies row i by c[i] in place.
func (m CSR) ScaleRows(c []float64) CSR {
	var (
		nr, _ = m.Dims()
		raw   = m.RawMatrix()
	)
	if len(c) != nr {
		panic(fmt.Errorf("dimension mismatch in ScaleRows: %d rows, %d scales", nr, len(c)))
	}
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			raw.Data[k] *= c[i]
		}
	}
	return m
}

// Sparsify drops entries below rtol times the largest magnitude,
// returning a compacted copy.
func (m CSR) Sparsify(rtol float64) (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
		amax   float64
	)
	for _, v := range raw.Data[:m.NNZ()] {
		if math.Abs(v) > amax {
			amax = math.Abs(v)
		}
	}
	atol := rtol * amax
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if math.Abs(raw.Data[k]) > atol {
				ja = append(ja, raw.Ind[k])
				data = append(data, raw.Data[k])
			}
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, nc, ia, ja, data)
}

// Kron computes the Kronecker product of m with B.
func (m CSR) Kron(B CSR) (R CSR) {
	var (
		mar, mac = m.Dims()
		mbr, mbc = B.Dims()
		ra       = m.RawMatrix()
		rb       = B.RawMatrix()
	)
	nnz := m.NNZ() * B.NNZ()
	ia := make([]int, 1, mar*mbr+1)
	ja := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for i := 0; i < mar; i++ {
		for k := 0; k < mbr; k++ {
			for p := ra.Indptr[i]; p < ra.Indptr[i+1]; p++ {
				va := ra.Data[p]
				jbase := ra.Ind[p] * mbc
				for q := rb.Indptr[k]; q < rb.Indptr[k+1]; q++ {
					ja = append(ja, jbase+rb.Ind[q])
					data = append(data, va*rb.Data[q])
				}
			}
			ia = append(ia, len(ja))
		}
	}
	return NewCSR(mar*mbr, mac*mbc, ia, ja, data)
}

// AddScaled computes m + a*B over the union sparsity pattern.
func (m CSR) AddScaled(a float64, B CSR) (R CSR) {
	var (
		nr, nc   = m.Dims()
		nrB, ncB = B.Dims()
		ra       = m.RawMatrix()
		rb       = B.RawMatrix()
	)
	if nr != nrB || nc != ncB {
		panic(fmt.Errorf("dimension mismatch in AddScaled: %dx%d vs %dx%d", nr, nc, nrB, ncB))
	}
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	for i := 0; i < nr; i++ {
		p, q := ra.Indptr[i], rb.Indptr[i]
		pe, qe := ra.Indptr[i+1], rb.Indptr[i+1]
		for p < pe || q < qe {
			switch {
			case q >= qe || (p < pe && ra.Ind[p] < rb.Ind[q]):
				ja = append(ja, ra.Ind[p])
				data = append(data, ra.Data[p])
				p++
			case p >= pe || rb.Ind[q] < ra.Ind[p]:
				ja = append(ja, rb.Ind[q])
				data = append(data, a*rb.Data[q])
				q++
			default:
				ja = append(ja, ra.Ind[p])
				data = append(data, ra.Data[p]+a*rb.Data[q])
				p++
				q++
			}
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, nc, ia, ja, data)
}

// SliceCols restricts m to the columns listed in J, renumbering them 0..len(J)-1.
func (m CSR) SliceCols(J Index) (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	lookup := make([]int, nc)
	for j := range lookup {
		lookup[j] = -1
	}
	for jNew, j := range J {
		if j < 0 || j > nc-1 {
			panic("unable to subset columns from sparse matrix, index out of bounds")
		}
		lookup[j] = jNew
	}
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if jNew := lookup[raw.Ind[k]]; jNew >= 0 {
				ja = append(ja, jNew)
				data = append(data, raw.Data[k])
			}
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, len(J), ia, ja, data)
}

// SliceRows restricts m to the rows listed in I.
func (m CSR) SliceRows(I Index) (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	ia := make([]int, 1, len(I)+1)
	var ja []int
	var data []float64
	for _, i := range I {
		if i < 0 || i > nr-1 {
			panic("unable to subset rows from sparse matrix, index out of bounds")
		}
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			ja = append(ja, raw.Ind[k])
			data = append(data, raw.Data[k])
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(len(I), nc, ia, ja, data)
}

// VStack stacks the given matrices on top of each other.
func VStack(blocks ...CSR) (R CSR) {
	var (
		nr, nnz int
		_, nc   = blocks[0].Dims()
	)
	for _, B := range blocks {
		br, bc := B.Dims()
		if bc != nc {
			panic(fmt.Errorf("column mismatch in VStack: %d vs %d", bc, nc))
		}
		nr += br
		nnz += B.NNZ()
	}
	ia := make([]int, 1, nr+1)
	ja := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for _, B := range blocks {
		raw := B.RawMatrix()
		br, _ := B.Dims()
		for i := 0; i < br; i++ {
			ja = append(ja, raw.Ind[raw.Indptr[i]:raw.Indptr[i+1]]...)
			data = append(data, raw.Data[raw.Indptr[i]:raw.Indptr[i+1]]...)
			ia = append(ia, len(ja))
		}
	}
	return NewCSR(nr, nc, ia, ja, data)
}

// HStack places the given matrices side by side.
func HStack(blocks ...CSR) (R CSR) {
	var (
		nc, nnz int
		nr, _   = blocks[0].Dims()
	)
	for _, B := range blocks {
		br, bc := B.Dims()
		if br != nr {
			panic(fmt.Errorf("row mismatch in HStack: %d vs %d", br, nr))
		}
		nc += bc
		nnz += B.NNZ()
	}
	ia := make([]int, 1, nr+1)
	ja := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for i := 0; i < nr; i++ {
		shift := 0
		for _, B := range blocks {
			raw := B.RawMatrix()
			_, bc := B.Dims()
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				ja = append(ja, raw.Ind[k]+shift)
				data = append(data, raw.Data[k])
			}
			shift += bc
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, nc, ia, ja, data)
}

// Mul computes the sparse product m*B.
func (m CSR) Mul(B CSR) (R CSR) {
	var (
		nr, nc   = m.Dims()
		nrB, ncB = B.Dims()
		ra       = m.RawMatrix()
		rb       = B.RawMatrix()
	)
	if nc != nrB {
		panic(fmt.Errorf("dimension mismatch in sparse Mul: %dx%d times %dx%d", nr, nc, nrB, ncB))
	}
	ia := make([]int, 1, nr+1)
	var ja []int
	var data []float64
	acc := make([]float64, ncB)
	mark := make([]int, ncB)
	for j := range mark {
		mark[j] = -1
	}
	for i := 0; i < nr; i++ {
		var cols []int
		for p := ra.Indptr[i]; p < ra.Indptr[i+1]; p++ {
			va := ra.Data[p]
			k := ra.Ind[p]
			for q := rb.Indptr[k]; q < rb.Indptr[k+1]; q++ {
				j := rb.Ind[q]
				if mark[j] != i {
					mark[j] = i
					acc[j] = 0
					cols = append(cols, j)
				}
				acc[j] += va * rb.Data[q]
			}
		}
		sortInts(cols)
		for _, j := range cols {
			ja = append(ja, j)
			data = append(data, acc[j])
		}
		ia = append(ia, len(ja))
	}
	return NewCSR(nr, ncB, ia, ja, data)
}

// MulVec computes m*x into y, which must have the right length.
func (m CSR) MulVec(x, y []float64) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	if len(x) != nc || len(y) != nr {
		panic(fmt.Errorf("dimension mismatch in sparse MulVec: %dx%d, len(x)=%d, len(y)=%d", nr, nc, len(x), len(y)))
	}
	for i := 0; i < nr; i++ {
		var sum float64
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			sum += raw.Data[k] * x[raw.Ind[k]]
		}
		y[i] = sum
	}
}

// Transpose returns m^T in CSR form.
func (m CSR) Transpose() (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
		nnz    = m.NNZ()
	)
	count := make([]int, nc+1)
	for _, j := range raw.Ind[:nnz] {
		count[j+1]++
	}
	ia := make([]int, nc+1)
	for j := 0; j < nc; j++ {
		ia[j+1] = ia[j] + count[j+1]
	}
	ja := make([]int, nnz)
	data := make([]float64, nnz)
	next := make([]int, nc)
	copy(next, ia[:nc])
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			ja[next[j]] = i
			data[next[j]] = raw.Data[k]
			next[j]++
		}
	}
	return NewCSR(nc, nr, ia, ja, data)
}

func sortInts(a []int) {
	// insertion sort; rows are short
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
