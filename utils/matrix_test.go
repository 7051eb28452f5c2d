package utils

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix(t *testing.T) {
	// Chainable ops and the readOnly guard
	{
		A := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		B := A.Copy().Scale(2)
		assert.True(t, near(B.At(1, 1), 8))
		assert.True(t, near(A.At(1, 1), 4)) // Copy does not alias

		A.SetReadOnly("A")
		assert.Panics(t, func() { A.Set(0, 0, 99) })
		A.SetWritable()
		A.Set(0, 0, 99)
		assert.True(t, near(A.At(0, 0), 99))
	}
	// Mul, MulT, Transpose
	{
		A := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
		B := NewMatrix(3, 2, []float64{7, 8, 9, 10, 11, 12})
		C := A.Mul(B)
		assert.True(t, near(C.At(0, 0), 58))
		assert.True(t, near(C.At(1, 1), 154))
		D := A.MulT(A) // 2x2 Gram matrix
		assert.True(t, near(D.At(0, 0), 14))
		assert.True(t, near(D.At(0, 1), 32))
		assert.True(t, near(D.At(1, 0), A.Transpose().At(0, 1)*1+A.At(1, 1)*2+A.At(1, 2)*3))
	}
	// Kron
	{
		I := NewIdentity(2)
		A := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		K := I.Kron(A)
		nr, nc := K.Dims()
		assert.Equal(t, 4, nr)
		assert.Equal(t, 4, nc)
		assert.True(t, near(K.At(0, 1), 2))
		assert.True(t, near(K.At(3, 2), 3))
		assert.True(t, near(K.At(0, 2), 0))
		assert.True(t, near(K.At(2, 0), 0))
	}
	// Slicing
	{
		A := NewMatrix(3, 3, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8})
		R := A.SliceRows(Index{2, 0})
		assert.True(t, near(R.At(0, 1), 7))
		assert.True(t, near(R.At(1, 2), 2))
		C := A.SliceCols(Index{1})
		nr, nc := C.Dims()
		assert.Equal(t, 3, nr)
		assert.Equal(t, 1, nc)
		assert.True(t, near(C.At(2, 0), 7))
		assert.Panics(t, func() { A.SliceRows(Index{3}) })
	}
	// Solve / Inverse
	{
		A := NewMatrix(2, 2, []float64{4, 1, 1, 3})
		B := NewIdentity(2)
		X, err := A.Solve(B)
		assert.Nil(t, err)
		AX := A.Mul(X)
		assert.True(t, nearVec(AX.Data(), B.Data(), 1.e-12))
		Ainv, err := A.Inverse()
		assert.Nil(t, err)
		assert.True(t, nearVec(Ainv.Data(), X.Data(), 1.e-12))
	}
	// MulVec and row/col sums
	{
		A := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
		y := A.MulVec([]float64{1, 1, 1})
		assert.True(t, near(y[0], 6))
		assert.True(t, near(y[1], 15))
		assert.True(t, near(A.SumRows().AtVec(1), 15))
		assert.True(t, near(A.SumCols().AtVec(2), 9))
	}
}

func TestVector(t *testing.T) {
	v := NewVector(3, []float64{3, 4, 0})
	assert.True(t, near(v.Norm(), 5))
	assert.True(t, near(v.Min(), 0))
	assert.True(t, near(v.Max(), 4))
	w := v.Copy().Apply(func(x float64) float64 { return x * x })
	assert.True(t, near(w.AtVec(1), 16))
	assert.True(t, near(v.AtVec(1), 4))
	assert.True(t, near(v.Dot(w), 91))
	O := v.Outer(w)
	assert.True(t, near(O.At(1, 0), 36))
}

func TestIndex(t *testing.T) {
	I := NewRange(0, 5)
	assert.Equal(t, Index{0, 1, 2, 3, 4}, I)
	assert.Equal(t, Index{2, 4}, I.Subset(Index{2, 4}))
	assert.Equal(t, Index{1, 3}, Index{0, 2, 4}.Complement(5))
	assert.Equal(t, Index{2, 3, 4, 0, 1}, I.Roll(2))
	assert.Equal(t, Index{10, 11, 12, 13, 14}, I.Copy().Add(10))
	assert.True(t, I.Contains(3))
	assert.False(t, I.Contains(5))
}

func nearVec(a, b []float64, tol float64) (l bool) {
	for i, val := range a {
		if !near(b[i], val, tol) {
			fmt.Printf("Diff = %v, Left[%d] = %v, Right[%d] = %v\n", math.Abs(val-b[i]), i, val, i, b[i])
			return false
		}
	}
	return true
}

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol float64
	)
	if len(tolI) == 0 {
		tol = 1.e-08
	} else {
		tol = tolI[0]
	}
	bound := math.Max(tol, tol*math.Abs(a))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
