package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	M        *mat.Dense
	readOnly bool
	name     string
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v\n", nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{
		m,
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// NewIdentity returns the N x N identity matrix.
func NewIdentity(n int) (R Matrix) {
	R = NewMatrix(n, n)
	for i := 0; i < n; i++ {
		R.M.Set(i, i, 1)
	}
	return
}

// NewDiagMatrix builds a diagonal matrix from the values in d.
func NewDiagMatrix(d []float64) (R Matrix) {
	R = NewMatrix(len(d), len(d))
	for i, val := range d {
		R.M.Set(i, i, val)
	}
	return
}

// NewSymTriDiagonal builds a symmetric tridiagonal matrix from the main
// diagonal d0 and first off-diagonal d1, suitable for mat.EigenSym.
func NewSymTriDiagonal(d0, d1 []float64) (R *mat.SymDense) {
	n := len(d0)
	if len(d1) != n-1 {
		err := fmt.Errorf("mismatch in allocation: NewSymTriDiagonal len(d0) = %v, len(d1) = %v\n", n, len(d1))
		panic(err)
	}
	R = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		R.SetSym(i, i, d0[i])
		if i < n-1 {
			R.SetSym(i, i+1, d1[i])
		}
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }
func (m Matrix) Data() []float64           { return m.M.RawMatrix().Data }

// Chainable methods (extended)
func (m *Matrix) SetReadOnly(name ...string) Matrix {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m *Matrix) SetWritable() Matrix {
	m.readOnly = false
	return *m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.M.RawMatrix().Data
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(j, i, m.M.At(i, j))
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		_, ncA = A.M.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return
}

// MulT computes m * A^T without forming the transpose.
func (m Matrix) MulT(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		nrA, _ = A.M.Dims()
	)
	R = NewMatrix(nrM, nrA)
	R.M.Mul(m.M, A.M.T())
	return
}

// Kron computes the Kronecker product of m with A as a dense matrix.
func (m Matrix) Kron(A Matrix) (R Matrix) { // Does not change receiver
	var (
		mr, mc = m.Dims()
		ar, ac = A.Dims()
	)
	R = NewMatrix(mr*ar, mc*ac)
	for i := 0; i < mr; i++ {
		for j := 0; j < mc; j++ {
			v := m.M.At(i, j)
			if v == 0 {
				continue
			}
			for k := 0; k < ar; k++ {
				for l := 0; l < ac; l++ {
					R.M.Set(i*ar+k, j*ac+l, v*A.M.At(k, l))
				}
			}
		}
	}
	return
}

func (m Matrix) SliceRows(I Index) (R Matrix) { // Does not change receiver
	// I should contain a list of row indices into M
	var (
		nr, nc = m.Dims()
		nI     = len(I)
	)
	R = NewMatrix(nI, nc)
	for iNewRow, i := range I {
		if i > nr-1 || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, nr-1)
			panic("unable to subset rows from matrix")
		}
		R.M.SetRow(iNewRow, m.M.RawRowView(i))
	}
	return
}

func (m Matrix) SliceCols(I Index) (R Matrix) { // Does not change receiver
	// I should contain a list of column indices into M
	var (
		nr, nc  = m.Dims()
		nI      = len(I)
		colData = make([]float64, nr)
	)
	R = NewMatrix(nr, nI)
	for jNewCol, j := range I {
		if j > nc-1 || j < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", j, nc-1)
			panic("unable to subset columns from matrix")
		}
		for i := 0; i < nr; i++ {
			colData[i] = m.M.At(i, j)
		}
		R.M.SetCol(jNewCol, colData)
	}
	return
}

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) SetCol(j int, data []float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.SetCol(j, data)
	return m
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.SetRow(i, data)
	return m
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.M.RawMatrix().Data
		dataA = A.M.RawMatrix().Data
	)
	m.checkWritable()
	for i, val := range dataA {
		dataM[i] += val
	}
	return m
}

// AddScaled adds a*A to the receiver.
func (m Matrix) AddScaled(a float64, A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.M.RawMatrix().Data
		dataA = A.M.RawMatrix().Data
	)
	m.checkWritable()
	for i, val := range dataA {
		dataM[i] += a * val
	}
	return m
}

func (m Matrix) Subtract(A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.M.RawMatrix().Data
		dataA = A.M.RawMatrix().Data
	)
	m.checkWritable()
	for i, val := range dataA {
		dataM[i] -= val
	}
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	var (
		data = m.M.RawMatrix().Data
	)
	m.checkWritable()
	for i := range data {
		data[i] *= a
	}
	return m
}

func (m Matrix) Apply(f func(float64) float64) Matrix { // Changes receiver
	var (
		data = m.M.RawMatrix().Data
	)
	m.checkWritable()
	for i, val := range data {
		data[i] = f(val)
	}
	return m
}

// Non chainable methods
func (m Matrix) Inverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nr, nc)
	if err = R.M.Inverse(m.M); err != nil {
		err = fmt.Errorf("unable to invert matrix: %v", err)
	}
	return
}

// Solve returns X such that m * X = B.
func (m Matrix) Solve(B Matrix) (R Matrix, err error) {
	var (
		nrM, _ = m.Dims()
		_, ncB = B.Dims()
	)
	R = NewMatrix(nrM, ncB)
	if err = R.M.Solve(m.M, B.M); err != nil {
		err = fmt.Errorf("unable to solve linear system: %v", err)
	}
	return
}

// MulVec computes m*x into a new slice.
func (m Matrix) MulVec(x []float64) (y []float64) {
	var (
		nr, nc = m.Dims()
		data   = m.M.RawMatrix().Data
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: nc = %d, len(x) = %d", nc, len(x)))
	}
	y = make([]float64, nr)
	for i := 0; i < nr; i++ {
		row := data[i*nc : (i+1)*nc]
		var sum float64
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] = sum
	}
	return
}

func (m Matrix) Col(j int) (V Vector) {
	var (
		nr, _ = m.Dims()
		data  = make([]float64, nr)
	)
	for i := 0; i < nr; i++ {
		data[i] = m.M.At(i, j)
	}
	return NewVector(nr, data)
}

func (m Matrix) Row(i int) (V Vector) {
	var (
		_, nc = m.Dims()
		data  = make([]float64, nc)
	)
	copy(data, m.M.RawRowView(i))
	return NewVector(nc, data)
}

func (m Matrix) SumRows() (V Vector) {
	var (
		nr, nc = m.Dims()
		data   = make([]float64, nr)
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			data[i] += m.M.At(i, j)
		}
	}
	return NewVector(nr, data)
}

func (m Matrix) SumCols() (V Vector) {
	var (
		nr, nc = m.Dims()
		data   = make([]float64, nc)
	)
	for j := 0; j < nc; j++ {
		for i := 0; i < nr; i++ {
			data[j] += m.M.At(i, j)
		}
	}
	return NewVector(nc, data)
}

func (m Matrix) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}
